package subscribers

import (
	"context"
	"log/slog"

	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/queue"
)

// Enqueuer is satisfied by queue.Producer.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload any) error
}

// ReindexTrigger asks the search indexer to refresh documents when they change.
type ReindexTrigger struct {
	producer Enqueuer
}

func NewReindexTrigger(producer Enqueuer) *ReindexTrigger {
	return &ReindexTrigger{producer: producer}
}

func (r *ReindexTrigger) Register(bus *events.Bus) []events.Subscription {
	opts := []events.ListenerOption{events.Named("subscribers.reindex")}
	return []events.Subscription{
		bus.On(events.DocumentUploaded, r.Handle, opts...),
		bus.On(events.DocumentUpdated, r.Handle, opts...),
		bus.On(events.DocumentDeleted, r.Handle, opts...),
	}
}

func (r *ReindexTrigger) Handle(ctx context.Context, e events.Event) error {
	p, err := events.DecodePayload[events.DocumentPayload](e)
	if err != nil || p.DocumentID == 0 {
		slog.WarnContext(ctx, "skipping reindex for event without document id", "error", err)
		return nil
	}

	job := queue.JobIndexDocument
	if e.Type == events.DocumentDeleted {
		job = queue.JobRemoveDocument
	}

	payload := queue.ReindexDocumentPayload{
		TenantID:   model.ID(e.TenantID),
		DocumentID: p.DocumentID,
	}
	if err := r.producer.Enqueue(ctx, queue.QueueSearchReindex, job, payload); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue reindex job",
			"job_name", job,
			"document_id", p.DocumentID.Int64(),
			"error", err)
	}
	return nil
}
