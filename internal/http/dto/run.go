package dto

import (
	"time"

	"basicsos.app/automation/internal/model"
)

type RunResponse struct {
	ID             model.ID                `json:"id"`
	AutomationID   model.ID                `json:"automationId"`
	TriggerEventID *string                 `json:"triggerEventId,omitempty"`
	Status         model.RunStatus         `json:"status"`
	StartedAt      time.Time               `json:"startedAt"`
	CompletedAt    *time.Time              `json:"completedAt,omitempty"`
	Result         *model.CompletionReport `json:"result,omitempty"`
	Error          *string                 `json:"error,omitempty"`
}

type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

func RunFromModel(r model.Run) RunResponse {
	return RunResponse{
		ID:             model.ID(r.ID),
		AutomationID:   model.ID(r.AutomationID),
		TriggerEventID: r.TriggerEventID,
		Status:         r.Status,
		StartedAt:      r.StartedAt,
		CompletedAt:    r.CompletedAt,
		Result:         r.Result,
		Error:          r.Error,
	}
}
