package subscribers

import (
	"context"
	"log/slog"

	"basicsos.app/automation/common/id"
	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/store"
)

// AuditLogger writes one audit_logs row per bus event.
type AuditLogger struct {
	audits store.AuditStore
}

func NewAuditLogger(audits store.AuditStore) *AuditLogger {
	return &AuditLogger{audits: audits}
}

func (a *AuditLogger) Register(bus *events.Bus) events.Subscription {
	return bus.OnAny(a.Handle, events.Async(), events.Named("subscribers.audit"))
}

// Handle never fails; a lost audit row is logged.
func (a *AuditLogger) Handle(ctx context.Context, e events.Event) error {
	entry := &model.AuditLog{
		ID:        id.New(),
		TenantID:  e.TenantID,
		UserID:    e.UserID,
		EventID:   e.ID,
		EventType: string(e.Type),
		Payload:   e.Payload,
	}
	if err := a.audits.Append(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to write audit log", "error", err)
	}
	return nil
}
