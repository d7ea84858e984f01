package worker

import (
	"context"
	"time"

	"basicsos.app/automation/internal/queue"
)

// Consumer is the part of queue.RedisConsumer the worker drives.
type Consumer interface {
	Queue() string
	Options() queue.Options
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Retry(ctx context.Context, msg queue.Message, errMsg string) error
	Fail(ctx context.Context, msg queue.Message, errMsg string) error
}

type Claimer interface {
	ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]queue.Message, error)
}

type DuePromoter interface {
	PromoteDue(ctx context.Context, now time.Time) (int, error)
}

// Handler runs one job. A returned error triggers a retry until the queue
// attempts are exhausted.
type Handler func(ctx context.Context, msg queue.Message) error
