package store

import (
	"context"
	"errors"
	"time"

	"basicsos.app/automation/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrRunNotRunning is returned when finishing a run that already reached a terminal status.
var ErrRunNotRunning = errors.New("run is not running")

// ErrUnknownField is returned when a partial CRM update names a field outside the allow-list.
var ErrUnknownField = errors.New("unknown field")

// AutomationStore reads automation definitions. Every lookup is tenant scoped.
type AutomationStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*model.Automation, error)
	ListEnabledByTenant(ctx context.Context, tenantID int64) ([]model.Automation, error)
	TouchLastRun(ctx context.Context, id int64, at time.Time) error
}

// RunStore persists automation runs
type RunStore interface {
	Create(ctx context.Context, run *model.Run) error
	// Finish writes the terminal status, report and error of a running run.
	Finish(ctx context.Context, run *model.Run) error
	ListByAutomation(ctx context.Context, tenantID, automationID int64, limit int32) ([]model.Run, error)
}

type UserStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*model.User, error)
	// FirstInTenant returns the oldest user of the tenant.
	FirstInTenant(ctx context.Context, tenantID int64) (*model.User, error)
}

type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
}

// CRMStore applies partial updates to contacts and deals.
type CRMStore interface {
	// UpdateFields returns false when no row matches (id, tenantID).
	UpdateFields(ctx context.Context, entity model.CRMEntity, tenantID, id int64, fields map[string]any) (bool, error)
}

type AuditStore interface {
	Append(ctx context.Context, entry *model.AuditLog) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
}
