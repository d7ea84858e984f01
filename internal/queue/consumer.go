package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"basicsos.app/automation/common/logger"
	"github.com/redis/go-redis/v9"
)

type ConsumerConfig struct {
	Queue     string        // queue name, the stream is queue:<name>
	Group     string        // Redis consumer group name
	Consumer  string        // Redis consumer name
	BatchSize int64         // Number of messages to read per call
	Block     time.Duration // How long to block/poll for new messages
	Options   Options
}

// MessageProcessor processes a queue message.
type MessageProcessor func(ctx context.Context, msg Message) error

type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	if cfg.Options.Attempts == 0 {
		cfg.Options = DefaultOptions()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}

	consumer := &RedisConsumer{
		client: client,
		cfg:    cfg,
	}

	if err := consumer.ensureGroup(ctx); err != nil {
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) Queue() string {
	return c.cfg.Queue
}

func (c *RedisConsumer) Options() Options {
	return c.cfg.Options
}

func (c *RedisConsumer) stream() string {
	return StreamName(c.cfg.Queue)
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Start from "0" so a recreated group still sees entries already in the stream.
	if err := c.client.XGroupCreateMkStream(ctx, c.stream(), c.cfg.Group, "0").Err(); err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Read returns up to BatchSize messages never delivered to this group.
// Pending messages of crashed consumers are picked up by ClaimStale.
func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "automation.queue.consumer",
	})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.stream(), ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		messages = append(messages, c.parseAll(ctx, stream.Messages)...)
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.stream(),
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

// ClaimStale takes over messages pending longer than minIdle on any consumer.
// The Attempt of a claimed message includes the deliveries that never settled,
// so a job that keeps crashing its worker eventually exhausts its attempts.
func (c *RedisConsumer) ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]Message, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream(),
		Group:  c.cfg.Group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xpending: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(pending))
	deliveries := make(map[string]int64, len(pending))
	for _, p := range pending {
		slog.InfoContext(ctx, "reclaiming stale message",
			"message_id", p.ID,
			"original_consumer", p.Consumer,
			"idle_time", p.Idle,
			"retry_count", p.RetryCount)
		ids = append(ids, p.ID)
		deliveries[p.ID] = p.RetryCount
	}

	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream(),
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xclaim: %w", err)
	}

	messages := c.parseAll(ctx, claimed)
	for i := range messages {
		messages[i].Deliveries = deliveries[messages[i].ID]
		// Every unsettled delivery used up one attempt.
		messages[i].Attempt += int(messages[i].Deliveries)
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream(), c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.stream(), err)
	}

	slog.DebugContext(ctx, "message acknowledged", "stream", c.stream())
	return nil
}

// Retry schedules the next attempt of msg after the backoff delay, then
// acknowledges it. PromoteDue moves it back into the stream once due. If the
// ack fails the entry stays pending and may be delivered twice.
func (c *RedisConsumer) Retry(ctx context.Context, msg Message, errMsg string) error {
	delay := BackoffDelay(c.cfg.Options.Backoff, msg.Attempt)
	next := msg
	next.LastError = errMsg

	member, err := json.Marshal(messageValues(next, msg.Attempt+1))
	if err != nil {
		return fmt.Errorf("encoding delayed job: %w", err)
	}

	dueAt := time.Now().Add(delay)
	if err := c.client.ZAdd(ctx, DelayedKey(c.cfg.Queue), redis.Z{
		Score:  float64(dueAt.UnixMilli()),
		Member: string(member),
	}).Err(); err != nil {
		return fmt.Errorf("zadd delayed: %w", err)
	}

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking message scheduled for retry: %w", err)
	}

	slog.InfoContext(ctx, "job scheduled for retry",
		"job_id", msg.JobID,
		"next_attempt", msg.Attempt+1,
		"delay", delay,
		"reason", errMsg)
	return nil
}

// Fail records msg on the failed stream, then acknowledges it.
func (c *RedisConsumer) Fail(ctx context.Context, msg Message, errMsg string) error {
	values := messageValues(msg, msg.Attempt)
	values["error"] = errMsg

	if err := c.addFailed(ctx, values); err != nil {
		return err
	}

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking message moved to dlq: %w", err)
	}

	slog.ErrorContext(ctx, "job moved to failed stream",
		"job_id", msg.JobID,
		"final_error", errMsg,
		"failed_stream", FailedStreamName(c.cfg.Queue))
	return nil
}

// PromoteDue moves delayed jobs whose time has come back into the stream.
// ZREM decides ownership so concurrent promoters never duplicate a job.
func (c *RedisConsumer) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	key := DelayedKey(c.cfg.Queue)
	due, err := c.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore: %w", err)
	}

	promoted := 0
	for _, member := range due {
		removed, err := c.client.ZRem(ctx, key, member).Result()
		if err != nil {
			return promoted, fmt.Errorf("zrem: %w", err)
		}
		if removed == 0 {
			continue
		}

		var values map[string]any
		if err := json.Unmarshal([]byte(member), &values); err != nil {
			slog.ErrorContext(ctx, "dropping undecodable delayed job", "error", err)
			continue
		}

		if err := c.client.XAdd(ctx, &redis.XAddArgs{
			Stream: c.stream(),
			MaxLen: c.cfg.Options.RetainCompleted,
			Approx: true,
			Values: normalizeValues(values),
		}).Err(); err != nil {
			return promoted, fmt.Errorf("xadd promoted job: %w", err)
		}
		promoted++
	}

	return promoted, nil
}

func (c *RedisConsumer) addFailed(ctx context.Context, values map[string]any) error {
	if err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: FailedStreamName(c.cfg.Queue),
		MaxLen: c.cfg.Options.RetainFailed,
		Approx: true,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("xadd failed stream (queue=%s): %w", c.cfg.Queue, err)
	}
	return nil
}

// parseAll drops malformed entries into the failed stream so they are not redelivered forever.
func (c *RedisConsumer) parseAll(ctx context.Context, raw []redis.XMessage) []Message {
	messages := make([]Message, 0, len(raw))
	for _, msg := range raw {
		parsed, err := ParseMessage(c.cfg.Queue, msg)
		if err != nil {
			slog.ErrorContext(ctx, "failed to parse message",
				"error", err,
				"raw_message_id", msg.ID,
				"stream", c.stream())
			values := make(map[string]any, len(msg.Values)+1)
			for k, v := range msg.Values {
				values[k] = v
			}
			values["error"] = err.Error()
			if dlqErr := c.addFailed(ctx, values); dlqErr != nil {
				slog.ErrorContext(ctx, "failed to record malformed message", "error", dlqErr)
			}
			_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
			continue
		}
		messages = append(messages, parsed)
	}
	return messages
}

// normalizeValues turns JSON numbers back into integers so stream fields keep their original form.
func normalizeValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		if f, ok := v.(float64); ok && f == float64(int64(f)) {
			out[k] = int64(f)
			continue
		}
		out[k] = v
	}
	return out
}
