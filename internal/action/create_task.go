package action

import (
	"context"
	"errors"
	"fmt"

	"basicsos.app/automation/common/id"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/store"
)

type createTask struct {
	tasks store.TaskStore
	users store.UserStore
}

func (h *createTask) run(ctx context.Context, cfg CreateTaskConfig, actx RunContext) (Result, error) {
	creator, err := h.creator(ctx, actx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Failure("No user found in tenant to assign as task creator"), nil
		}
		return Result{}, fmt.Errorf("resolving task creator: %w", err)
	}

	assignee := model.IDPtr(cfg.AssigneeID)
	if assignee != nil {
		if _, err := h.users.GetByID(ctx, actx.TenantID, *assignee); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return Failure("Assignee not found in tenant"), nil
			}
			return Result{}, fmt.Errorf("loading assignee: %w", err)
		}
	}

	due, _ := cfg.dueDate()
	task := &model.Task{
		ID:         id.New(),
		TenantID:   actx.TenantID,
		Title:      cfg.Title,
		Status:     model.TaskStatusTodo,
		Priority:   cfg.priority(),
		AssigneeID: assignee,
		CreatedBy:  creator,
		DueDate:    due,
	}
	if cfg.Description != "" {
		task.Description = &cfg.Description
	}

	if err := h.tasks.Create(ctx, task); err != nil {
		return Result{}, fmt.Errorf("creating task: %w", err)
	}

	return Success(map[string]any{
		"taskId": model.ID(task.ID),
		"title":  task.Title,
	}), nil
}

// creator is the triggering user when known, else the tenant's oldest user.
func (h *createTask) creator(ctx context.Context, actx RunContext) (int64, error) {
	if actx.TriggerUserID != nil {
		return *actx.TriggerUserID, nil
	}
	u, err := h.users.FirstInTenant(ctx, actx.TenantID)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}
