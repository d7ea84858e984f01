package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"basicsos.app/automation/internal/model"
)

// Type names a built-in action. The catalog is closed.
type Type string

const (
	TypeCreateTask  Type = "create_task"
	TypeCallWebhook Type = "call_webhook"
	TypeRunAIPrompt Type = "run_ai_prompt"
	TypeUpdateCRM   Type = "update_crm"
	TypeSendEmail   Type = "send_email"
	TypePostSlack   Type = "post_slack"
)

// Types returns every catalog action type in display order.
func Types() []Type {
	return []Type{
		TypeCreateTask,
		TypeCallWebhook,
		TypeRunAIPrompt,
		TypeUpdateCRM,
		TypeSendEmail,
		TypePostSlack,
	}
}

func (t Type) Valid() bool {
	for _, known := range Types() {
		if t == known {
			return true
		}
	}
	return false
}

var (
	ErrUnknownActionType = errors.New("unknown action type")
	ErrInvalidConfig     = errors.New("invalid config")
)

// RunContext is what a handler knows about the run it belongs to.
type RunContext struct {
	TenantID       int64
	RunID          int64
	TriggerPayload json.RawMessage
	TriggerUserID  *int64
	// Data is TriggerPayload decoded with json.Number preserved, for interpolation.
	Data map[string]any
}

// NewRunContext decodes the trigger payload once for all actions of a run.
// A payload that is not a JSON object leaves Data empty.
func NewRunContext(tenantID, runID int64, payload json.RawMessage, triggerUserID *int64) RunContext {
	return RunContext{
		TenantID:       tenantID,
		RunID:          runID,
		TriggerPayload: payload,
		TriggerUserID:  triggerUserID,
		Data:           decodeData(payload),
	}
}

// Result is a handler outcome. Failures are values; the registry turns
// handler errors and panics into failed results too.
type Result struct {
	Status model.ActionStatus
	Output any
	Error  string
}

func Success(output any) Result {
	return Result{Status: model.ActionStatusSuccess, Output: output}
}

func Failure(message string) Result {
	return Result{Status: model.ActionStatusFailed, Error: message}
}

func (r Result) Failed() bool {
	return r.Status != model.ActionStatusSuccess
}

// Handler executes one action kind against its raw config.
type Handler interface {
	Execute(ctx context.Context, config json.RawMessage, actx RunContext) (Result, error)
}

// Config is implemented by every typed action config.
type Config interface {
	Validate() error
}

// ParseConfig unmarshals and validates a typed config.
func ParseConfig[T Config](actionType Type, raw json.RawMessage) (T, error) {
	var cfg T
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w for %s: %v", ErrInvalidConfig, actionType, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w for %s: %v", ErrInvalidConfig, actionType, err)
	}
	return cfg, nil
}

type typedHandler[T Config] struct {
	actionType Type
	run        func(ctx context.Context, cfg T, actx RunContext) (Result, error)
}

func (h typedHandler[T]) Execute(ctx context.Context, raw json.RawMessage, actx RunContext) (Result, error) {
	cfg, err := ParseConfig[T](h.actionType, raw)
	if err != nil {
		return Failure(err.Error()), nil
	}
	return h.run(ctx, cfg, actx)
}

func typed[T Config](t Type, run func(ctx context.Context, cfg T, actx RunContext) (Result, error)) Handler {
	return typedHandler[T]{actionType: t, run: run}
}
