package automation

import (
	"context"
	"fmt"
	"log/slog"

	"basicsos.app/automation/common/logger"
	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/queue"
	"basicsos.app/automation/internal/store"
)

// Enqueuer is satisfied by queue.Producer.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName, jobName string, payload any) error
}

// Matcher turns bus events into execute-automation jobs for every enabled
// automation of the event's tenant whose trigger names the event type.
type Matcher struct {
	automations store.AutomationStore
	producer    Enqueuer
}

func NewMatcher(automations store.AutomationStore, producer Enqueuer) *Matcher {
	return &Matcher{automations: automations, producer: producer}
}

// Register subscribes the matcher to every event on bus.
func (m *Matcher) Register(bus *events.Bus) events.Subscription {
	return bus.OnAny(m.Handle, events.Async(), events.Named("automation.matcher"))
}

// Matches reports whether e triggers a.
func Matches(a model.Automation, e events.Event) bool {
	return a.TenantID == e.TenantID &&
		a.Enabled &&
		a.TriggerConfig.EventType == string(e.Type)
}

// Handle enqueues one job per matching automation. A failed enqueue is
// logged and does not stop the remaining automations.
func (m *Matcher) Handle(ctx context.Context, e events.Event) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "automation.matcher",
	})

	candidates, err := m.automations.ListEnabledByTenant(ctx, e.TenantID)
	if err != nil {
		return fmt.Errorf("listing automations for tenant %d: %w", e.TenantID, err)
	}

	enqueued := 0
	for _, a := range candidates {
		if !Matches(a, e) {
			continue
		}

		job := queue.ExecuteAutomationPayload{
			TenantID:       model.ID(e.TenantID),
			AutomationID:   model.ID(a.ID),
			TriggerPayload: e.Payload,
			TriggerEventID: e.ID,
		}
		if e.UserID != nil {
			uid := model.ID(*e.UserID)
			job.TriggerUserID = &uid
		}

		if err := m.producer.Enqueue(ctx, queue.QueueAutomation, queue.JobExecuteAutomation, job); err != nil {
			slog.ErrorContext(ctx, "failed to enqueue automation",
				"automation_id", a.ID,
				"error", err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		slog.InfoContext(ctx, "automations triggered", "count", enqueued)
	}
	return nil
}
