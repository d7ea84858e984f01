package dto

import (
	"encoding/json"

	"basicsos.app/automation/internal/model"
)

type EmitEventRequest struct {
	Type     string          `json:"type" binding:"required"`
	TenantID model.ID        `json:"tenantId" binding:"required"`
	UserID   *model.ID       `json:"userId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type EmitEventResponse struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
