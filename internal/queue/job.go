package queue

import (
	"encoding/json"

	"basicsos.app/automation/internal/model"
)

const (
	QueueAutomation    = "automation"
	QueueSearchReindex = "search-reindex"
)

const (
	JobExecuteAutomation = "execute-automation"
	JobIndexDocument     = "index-document"
	JobRemoveDocument    = "remove-document"
)

// ExecuteAutomationPayload is the job the trigger matcher enqueues for one
// (automation, event) match.
type ExecuteAutomationPayload struct {
	TenantID       model.ID        `json:"tenantId"`
	AutomationID   model.ID        `json:"automationId"`
	TriggerPayload json.RawMessage `json:"triggerPayload"`
	TriggerUserID  *model.ID       `json:"triggerUserId,omitempty"`
	TriggerEventID string          `json:"triggerEventId,omitempty"`
}

type ReindexDocumentPayload struct {
	TenantID   model.ID `json:"tenantId"`
	DocumentID model.ID `json:"documentId"`
}
