package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"basicsos.app/automation/common/id"
	"basicsos.app/automation/internal/model"
)

var ErrUnknownEventType = errors.New("unknown event type")

// EventType is a closed catalog of domain occurrences.
type EventType string

const (
	DocumentUploaded EventType = "document.uploaded"
	DocumentUpdated  EventType = "document.updated"
	DocumentDeleted  EventType = "document.deleted"
	DocumentIndexed  EventType = "document.indexed"

	ContactCreated   EventType = "crm.contact.created"
	ContactUpdated   EventType = "crm.contact.updated"
	ContactDeleted   EventType = "crm.contact.deleted"
	CompanyCreated   EventType = "crm.company.created"
	DealCreated      EventType = "crm.deal.created"
	DealUpdated      EventType = "crm.deal.updated"
	DealStageChanged EventType = "crm.deal.stage_changed"
	DealWon          EventType = "crm.deal.won"
	DealLost         EventType = "crm.deal.lost"

	MeetingCreated    EventType = "meeting.created"
	MeetingStarted    EventType = "meeting.started"
	MeetingEnded      EventType = "meeting.ended"
	MeetingSummarized EventType = "meeting.summarized"

	TaskCreated   EventType = "task.created"
	TaskUpdated   EventType = "task.updated"
	TaskAssigned  EventType = "task.assigned"
	TaskCompleted EventType = "task.completed"

	AIEmployeeJobStarted   EventType = "ai_employee.job.started"
	AIEmployeeJobCompleted EventType = "ai_employee.job.completed"
	AIEmployeeJobFailed    EventType = "ai_employee.job.failed"
	AIEmployeeNeedsReview  EventType = "ai_employee.job.needs_review"

	AutomationTriggered EventType = "automation.triggered"
	AutomationCompleted EventType = "automation.completed"
	AutomationFailed    EventType = "automation.failed"
)

var catalog = map[EventType]struct{}{
	DocumentUploaded: {}, DocumentUpdated: {}, DocumentDeleted: {}, DocumentIndexed: {},
	ContactCreated: {}, ContactUpdated: {}, ContactDeleted: {}, CompanyCreated: {},
	DealCreated: {}, DealUpdated: {}, DealStageChanged: {}, DealWon: {}, DealLost: {},
	MeetingCreated: {}, MeetingStarted: {}, MeetingEnded: {}, MeetingSummarized: {},
	TaskCreated: {}, TaskUpdated: {}, TaskAssigned: {}, TaskCompleted: {},
	AIEmployeeJobStarted: {}, AIEmployeeJobCompleted: {}, AIEmployeeJobFailed: {}, AIEmployeeNeedsReview: {},
	AutomationTriggered: {}, AutomationCompleted: {}, AutomationFailed: {},
}

// Valid reports whether t belongs to the catalog.
func (t EventType) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// Domain returns the catalog prefix, e.g. "crm" for "crm.deal.won".
func (t EventType) Domain() string {
	domain, _, _ := strings.Cut(string(t), ".")
	return domain
}

// Types lists the catalog, for documentation endpoints and tests.
func Types() []EventType {
	types := make([]EventType, 0, len(catalog))
	for t := range catalog {
		types = append(types, t)
	}
	return types
}

// Event is an immutable, tenant-scoped record of a domain occurrence.
// Build it with New; the Bus never stores it.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	TenantID  int64           `json:"tenantId"`
	UserID    *int64          `json:"userId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// New builds an event with a fresh id. payload is JSON encoded unless it is
// already a json.RawMessage; nil encodes as an empty object.
func New(t EventType, tenantID int64, userID *int64, payload any) (Event, error) {
	if !t.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}

	var raw json.RawMessage
	switch p := payload.(type) {
	case nil:
		raw = json.RawMessage(`{}`)
	case json.RawMessage:
		raw = p
		if len(raw) == 0 {
			raw = json.RawMessage(`{}`)
		}
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		raw = data
	}

	return Event{
		ID:        id.NewString(),
		Type:      t,
		TenantID:  tenantID,
		UserID:    userID,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodePayload unmarshals the event payload into T.
func DecodePayload[T any](e Event) (T, error) {
	var v T
	if err := json.Unmarshal(e.Payload, &v); err != nil {
		return v, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return v, nil
}

// Payloads for events produced by the automation engine.

type AutomationTriggeredPayload struct {
	AutomationID model.ID `json:"automationId"`
	RunID        model.ID `json:"runId"`
}

type AutomationCompletedPayload struct {
	AutomationID model.ID `json:"automationId"`
	RunID        model.ID `json:"runId"`
}

type AutomationFailedPayload struct {
	AutomationID model.ID `json:"automationId"`
	RunID        model.ID `json:"runId"`
	Error        string   `json:"error"`
}

// Payloads consumed by the supporting subscribers.

type DocumentPayload struct {
	DocumentID model.ID `json:"documentId"`
	Title      string   `json:"title,omitempty"`
}

type TaskAssignedPayload struct {
	TaskID     model.ID `json:"taskId"`
	Title      string   `json:"title"`
	AssigneeID model.ID `json:"assigneeId"`
}
