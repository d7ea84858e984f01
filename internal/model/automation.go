package model

import (
	"encoding/json"
	"time"
)

// TriggerConfig selects the events an automation reacts to.
// Conditions are stored for the editor but never evaluated when matching.
type TriggerConfig struct {
	EventType  string          `json:"eventType"`
	Conditions json.RawMessage `json:"conditions,omitempty"`
}

// Automation is a tenant rule mapping one event type to an ordered action chain.
// ActionChain holds the raw authored JSON; the executor validates it per entry.
type Automation struct {
	ID            int64           `json:"id"`
	TenantID      int64           `json:"tenant_id"`
	Name          string          `json:"name"`
	TriggerConfig TriggerConfig   `json:"trigger_config"`
	ActionChain   json.RawMessage `json:"action_chain"`
	Enabled       bool            `json:"enabled"`
	LastRunAt     *time.Time      `json:"last_run_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// Run is one execution attempt of an automation for one triggering event.
// It is created running and written to a terminal status exactly once.
type Run struct {
	ID             int64             `json:"id"`
	AutomationID   int64             `json:"automation_id"`
	TenantID       int64             `json:"tenant_id"`
	TriggerEventID *string           `json:"trigger_event_id,omitempty"`
	Status         RunStatus         `json:"status"`
	StartedAt      time.Time         `json:"started_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty"`
	Result         *CompletionReport `json:"result,omitempty"`
	Error          *string           `json:"error,omitempty"`
}

type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusFailed  ActionStatus = "failed"
)

// ActionResult is the outcome of one chain entry, embedded in the run report.
type ActionResult struct {
	Type       string       `json:"type"`
	Status     ActionStatus `json:"status"`
	Output     any          `json:"output"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"durationMs"`
}

// ChainIssue describes a chain entry excluded by validation.
type ChainIssue struct {
	Index int    `json:"index"`
	Type  string `json:"type,omitempty"`
	Error string `json:"error"`
}

// CompletionReport is persisted as the run result. ActionResults is always a
// prefix of the validated chain that stops at the first failure.
type CompletionReport struct {
	ActionsExecuted  int             `json:"actionsExecuted"`
	ActionResults    []ActionResult  `json:"actionResults"`
	ExecutionTimeMs  int64           `json:"executionTimeMs"`
	TriggerPayload   json.RawMessage `json:"triggerPayload"`
	ValidationErrors []ChainIssue    `json:"validationErrors,omitempty"`
}
