package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"basicsos.app/automation/common/logger"
	"basicsos.app/automation/internal/queue"
	"go.opentelemetry.io/otel/attribute"
)

// ErrUnknownJob is returned for jobs no handler is registered for.
var ErrUnknownJob = errors.New("unknown job")

type Config struct {
	Concurrency int
}

// Worker reads jobs from one queue and runs them on at most Concurrency goroutines.
type Worker struct {
	consumer Consumer
	handlers map[string]Handler
	cfg      Config

	slots    chan struct{}
	inflight sync.WaitGroup

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, cfg Config) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Worker{
		consumer:  consumer,
		handlers:  make(map[string]Handler),
		cfg:       cfg,
		slots:     make(chan struct{}, cfg.Concurrency),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Handle registers h for jobs named jobName. Must be called before Run.
func (w *Worker) Handle(jobName string, h Handler) {
	w.handlers[jobName] = h
}

// Run blocks until ctx is cancelled or Stop is called, then waits for
// in-flight jobs before returning.
func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "automation.worker",
	})
	defer close(w.stoppedCh)
	defer w.inflight.Wait()

	slog.InfoContext(ctx, "worker started",
		"queue", w.consumer.Queue(),
		"concurrency", w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

// Stop signals Run to return and waits for it, in-flight jobs included.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		// Blocks while every slot is busy.
		w.slots <- struct{}{}
		w.start(ctx, msg)
	}

	return nil
}

// Reclaim runs a message taken over from a crashed consumer under the same
// concurrency limit as messages read from the stream. A message whose
// deliveries used up every attempt goes to the failed stream without running.
// While the worker is stopping the message is left pending for a later reclaim.
func (w *Worker) Reclaim(ctx context.Context, msg queue.Message) {
	if limit := w.consumer.Options().Attempts; msg.Attempt > limit {
		errMsg := fmt.Sprintf("abandoned after %d unsettled deliveries", msg.Deliveries)
		slog.ErrorContext(ctx, "reclaimed job exhausted its attempts",
			"job_name", msg.JobName,
			"job_id", msg.JobID,
			"attempt", msg.Attempt,
			"max_attempts", limit)
		if err := w.consumer.Fail(ctx, msg, errMsg); err != nil {
			slog.ErrorContext(ctx, "failed to move job to failed stream", "error", err)
		}
		return
	}

	select {
	case w.slots <- struct{}{}:
	case <-w.stopCh:
		return
	case <-ctx.Done():
		return
	}
	w.start(ctx, msg)
}

// start runs msg on its own goroutine. The caller holds a slot.
func (w *Worker) start(ctx context.Context, msg queue.Message) {
	w.inflight.Add(1)
	go func() {
		defer func() {
			<-w.slots
			w.inflight.Done()
		}()
		// A started job runs to completion even when shutdown cancels ctx.
		w.ProcessMessage(context.WithoutCancel(ctx), msg)
	}()
}

// ProcessMessage runs msg through its handler and settles it on the queue:
// ack on success, retry with backoff, or the failed stream once attempts
// are exhausted. It runs on the calling goroutine and ignores the
// concurrency limit.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) {
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
	})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.job")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(
		attribute.String("queue", msg.Queue),
		attribute.String("job.name", msg.JobName),
		attribute.String("job.id", msg.JobID),
		attribute.Int("job.attempt", msg.Attempt),
	)

	slog.InfoContext(ctx, "processing job",
		"job_name", msg.JobName,
		"job_id", msg.JobID,
		"attempt", msg.Attempt)

	start := time.Now()
	err := w.processMessageSafe(ctx, msg)
	if err == nil {
		if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
			// The reclaimer will redeliver it.
			slog.WarnContext(ctx, "failed to ACK message", "error", ackErr)
		}
		slog.InfoContext(ctx, "job completed",
			"job_name", msg.JobName,
			"duration_ms", time.Since(start).Milliseconds())
		return
	}

	sc.RecordError(err)
	slog.ErrorContext(ctx, "job failed",
		"error", err,
		"job_name", msg.JobName,
		"attempt", msg.Attempt)
	w.handleFailedMessage(ctx, msg, err)
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in job processing",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	h, ok := w.handlers[msg.JobName]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownJob, msg.JobName)
	}
	return h(ctx, msg)
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if errors.Is(err, ErrUnknownJob) || msg.Attempt >= w.consumer.Options().Attempts {
		if failErr := w.consumer.Fail(ctx, msg, err.Error()); failErr != nil {
			slog.ErrorContext(ctx, "failed to move job to failed stream", "error", failErr)
		}
		return
	}

	if retryErr := w.consumer.Retry(ctx, msg, err.Error()); retryErr != nil {
		slog.ErrorContext(ctx, "failed to schedule retry", "error", retryErr)
	}
}
