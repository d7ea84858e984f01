package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basicsos.app/automation/common/id"
	"basicsos.app/automation/common/logger"
	"basicsos.app/automation/internal/action"
	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/queue"
	"basicsos.app/automation/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// ActionRunner is satisfied by *action.Registry.
type ActionRunner interface {
	Execute(ctx context.Context, actionType string, config json.RawMessage, actx action.RunContext) action.Result
}

// Emitter is satisfied by *events.Bus.
type Emitter interface {
	Emit(ctx context.Context, e events.Event)
}

// Executor runs the action chain of one automation job and records it as a Run.
type Executor struct {
	automations store.AutomationStore
	runs        store.RunStore
	actions     ActionRunner
	bus         Emitter
	now         func() time.Time
}

func NewExecutor(automations store.AutomationStore, runs store.RunStore, actions ActionRunner, bus Emitter) *Executor {
	return &Executor{
		automations: automations,
		runs:        runs,
		actions:     actions,
		bus:         bus,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// HandleJob decodes an execute-automation job and executes it.
func (x *Executor) HandleJob(ctx context.Context, msg queue.Message) error {
	var job queue.ExecuteAutomationPayload
	if err := msg.Decode(&job); err != nil {
		return err
	}
	return x.Execute(ctx, job)
}

// Execute runs the chain fail-fast. Errors returned before the Run exists, or
// while persisting its outcome, are meant for the queue to retry. Action
// failures are not errors: they end in a failed Run.
func (x *Executor) Execute(ctx context.Context, job queue.ExecuteAutomationPayload) error {
	tenantID := job.TenantID.Int64()
	automationID := job.AutomationID.Int64()
	userID := model.IDPtr(job.TriggerUserID)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		TenantID:     &tenantID,
		AutomationID: &automationID,
		Component:    "automation.executor",
	})

	automation, err := x.automations.GetByID(ctx, tenantID, automationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "automation not found, skipping job")
			return nil
		}
		return fmt.Errorf("loading automation: %w", err)
	}

	actions, issues, err := ParseChain(automation.ActionChain)
	if err != nil {
		return fmt.Errorf("automation %d: %w", automation.ID, err)
	}
	for _, issue := range issues {
		slog.WarnContext(ctx, "skipping invalid chain entry",
			"index", issue.Index,
			"type", issue.Type,
			"error", issue.Error)
	}

	run := &model.Run{
		ID:           id.New(),
		AutomationID: automation.ID,
		TenantID:     tenantID,
		Status:       model.RunStatusRunning,
		StartedAt:    x.now(),
	}
	if job.TriggerEventID != "" {
		run.TriggerEventID = &job.TriggerEventID
	}
	if err := x.runs.Create(ctx, run); err != nil {
		return fmt.Errorf("creating run: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: &run.ID})
	sc := logger.StartSpan(ctx, "automation.execute")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(
		attribute.Int64("automation.id", automation.ID),
		attribute.Int64("run.id", run.ID),
		attribute.Int("chain.length", len(actions)),
	)

	x.emit(ctx, events.AutomationTriggered, tenantID, userID, events.AutomationTriggeredPayload{
		AutomationID: model.ID(automation.ID),
		RunID:        model.ID(run.ID),
	})

	payload := job.TriggerPayload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	actx := action.NewRunContext(tenantID, run.ID, payload, userID)

	results, failure := x.runChain(ctx, actions, actx)

	finishedAt := x.now()
	run.CompletedAt = &finishedAt
	run.Result = &model.CompletionReport{
		ActionsExecuted:  len(results),
		ActionResults:    results,
		ExecutionTimeMs:  finishedAt.Sub(run.StartedAt).Milliseconds(),
		TriggerPayload:   payload,
		ValidationErrors: issues,
	}
	run.Status = model.RunStatusCompleted
	if failure != nil {
		run.Status = model.RunStatusFailed
		run.Error = failure
		sc.RecordError(errors.New(*failure))
	}

	if err := x.runs.Finish(ctx, run); err != nil {
		return fmt.Errorf("finishing run %d: %w", run.ID, err)
	}

	if err := x.automations.TouchLastRun(ctx, automation.ID, finishedAt); err != nil {
		slog.WarnContext(ctx, "failed to update automation last run", "error", err)
	}

	slog.InfoContext(ctx, "automation run finished",
		"status", run.Status,
		"actions_executed", len(results),
		"duration_ms", run.Result.ExecutionTimeMs)

	if failure != nil {
		x.emit(ctx, events.AutomationFailed, tenantID, userID, events.AutomationFailedPayload{
			AutomationID: model.ID(automation.ID),
			RunID:        model.ID(run.ID),
			Error:        *failure,
		})
		return nil
	}
	x.emit(ctx, events.AutomationCompleted, tenantID, userID, events.AutomationCompletedPayload{
		AutomationID: model.ID(automation.ID),
		RunID:        model.ID(run.ID),
	})
	return nil
}

// runChain executes actions in order and stops at the first failure, whose
// message it returns.
func (x *Executor) runChain(ctx context.Context, actions []ChainAction, actx action.RunContext) ([]model.ActionResult, *string) {
	results := make([]model.ActionResult, 0, len(actions))
	for _, a := range actions {
		start := time.Now()
		res := x.actions.Execute(ctx, a.Type, a.Config, actx)
		results = append(results, model.ActionResult{
			Type:       a.Type,
			Status:     res.Status,
			Output:     res.Output,
			Error:      res.Error,
			DurationMs: time.Since(start).Milliseconds(),
		})

		if res.Failed() {
			slog.WarnContext(ctx, "action failed, stopping chain",
				"index", a.Index,
				"action_type", a.Type,
				"error", res.Error)
			msg := res.Error
			return results, &msg
		}
	}
	return results, nil
}

func (x *Executor) emit(ctx context.Context, t events.EventType, tenantID int64, userID *int64, payload any) {
	e, err := events.New(t, tenantID, userID, payload)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build event", "event_type", t, "error", err)
		return
	}
	x.bus.Emit(ctx, e)
}
