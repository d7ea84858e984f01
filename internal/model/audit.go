package model

import (
	"encoding/json"
	"time"
)

// AuditLog is an append-only record of one bus event.
type AuditLog struct {
	ID        int64           `json:"id"`
	TenantID  int64           `json:"tenant_id"`
	UserID    *int64          `json:"user_id,omitempty"`
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type NotificationKind string

const (
	NotificationTaskAssigned     NotificationKind = "task_assigned"
	NotificationAutomationFailed NotificationKind = "automation_failed"
)

type Notification struct {
	ID        int64            `json:"id"`
	TenantID  int64            `json:"tenant_id"`
	UserID    int64            `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      *string          `json:"body,omitempty"`
	Link      *string          `json:"link,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
