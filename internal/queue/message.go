package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMissingField is returned when a stream entry lacks a required field.
var ErrMissingField = errors.New("missing field")

type Message struct {
	ID         string // stream entry id, empty for delayed jobs
	JobID      string
	Queue      string
	JobName    string
	Payload    json.RawMessage
	Attempt    int
	TraceID    string
	EnqueuedAt time.Time
	LastError  string
	// Deliveries counts unsettled deliveries before a reclaim. Zero for fresh reads.
	Deliveries int64
	Raw        redis.XMessage
}

// Decode unmarshals the job payload into v.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", m.JobName, err)
	}
	return nil
}

func ParseMessage(queueName string, msg redis.XMessage) (Message, error) {
	jobID, err := parseString(msg.Values, "job_id")
	if err != nil {
		return Message{}, err
	}
	jobName, err := parseString(msg.Values, "job_name")
	if err != nil {
		return Message{}, err
	}
	payload, err := parseString(msg.Values, "payload")
	if err != nil {
		return Message{}, err
	}
	if !json.Valid([]byte(payload)) {
		return Message{}, fmt.Errorf("payload of job %s is not valid JSON", jobID)
	}

	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}
	lastError, err := parseOptionalString(msg.Values, "last_error")
	if err != nil {
		return Message{}, err
	}

	enqueuedMs, err := parseOptionalInt64(msg.Values, "enqueued_at")
	if err != nil {
		return Message{}, err
	}
	var enqueuedAt time.Time
	if enqueuedMs != nil {
		enqueuedAt = time.UnixMilli(*enqueuedMs).UTC()
	}

	return Message{
		ID:         msg.ID,
		JobID:      jobID,
		Queue:      queueName,
		JobName:    jobName,
		Payload:    json.RawMessage(payload),
		Attempt:    attempt,
		TraceID:    traceID,
		EnqueuedAt: enqueuedAt,
		LastError:  lastError,
		Raw:        msg,
	}, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w %s", ErrMissingField, key)
	}
	str := fmt.Sprint(raw)
	if str == "" {
		return "", fmt.Errorf("%w %s", ErrMissingField, key)
	}
	return str, nil
}

func parseOptionalInt64(values map[string]any, key string) (*int64, error) {
	raw, ok := values[key]
	if !ok {
		return nil, nil
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return &num, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"job_id":   msg.JobID,
		"job_name": msg.JobName,
		"payload":  string(msg.Payload),
		"attempt":  attempt,
	}
	if !msg.EnqueuedAt.IsZero() {
		values["enqueued_at"] = msg.EnqueuedAt.UnixMilli()
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}
	if msg.LastError != "" {
		values["last_error"] = msg.LastError
	}
	return values
}
