package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"basicsos.app/automation/common/id"
	"basicsos.app/automation/common/logger"
	"github.com/redis/go-redis/v9"
)

// Producer appends jobs to a named durable queue.
type Producer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload any) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	opts   Options
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, opts Options, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		opts:   opts,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, queueName, jobName string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", jobName, err)
	}

	msg := Message{
		JobID:      id.NewString(),
		Queue:      queueName,
		JobName:    jobName,
		Payload:    body,
		TraceID:    logger.TraceID(ctx),
		EnqueuedAt: time.Now().UTC(),
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName(queueName),
		MaxLen: p.opts.RetainCompleted,
		Approx: true,
		Values: messageValues(msg, 1),
	}).Err(); err != nil {
		return fmt.Errorf("enqueue %s on %s: %w", jobName, queueName, err)
	}

	p.logger.InfoContext(ctx, "enqueued job",
		"queue", queueName,
		"job_name", jobName,
		"job_id", msg.JobID)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
