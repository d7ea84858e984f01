package subscribers

import (
	"context"
	"fmt"
	"log/slog"

	"basicsos.app/automation/common/id"
	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/store"
)

// NotificationDispatcher turns task assignments and failed automations into
// in-app notifications.
type NotificationDispatcher struct {
	notifications store.NotificationStore
}

func NewNotificationDispatcher(notifications store.NotificationStore) *NotificationDispatcher {
	return &NotificationDispatcher{notifications: notifications}
}

func (d *NotificationDispatcher) Register(bus *events.Bus) []events.Subscription {
	return []events.Subscription{
		bus.On(events.TaskAssigned, d.HandleTaskAssigned, events.Async(), events.Named("subscribers.notify.task_assigned")),
		bus.On(events.AutomationFailed, d.HandleAutomationFailed, events.Async(), events.Named("subscribers.notify.automation_failed")),
	}
}

func (d *NotificationDispatcher) HandleTaskAssigned(ctx context.Context, e events.Event) error {
	p, err := events.DecodePayload[events.TaskAssignedPayload](e)
	if err != nil {
		slog.WarnContext(ctx, "skipping task.assigned notification", "error", err)
		return nil
	}
	if p.AssigneeID == 0 {
		return nil
	}

	link := fmt.Sprintf("/tasks/%s", p.TaskID)
	d.create(ctx, &model.Notification{
		TenantID: e.TenantID,
		UserID:   p.AssigneeID.Int64(),
		Kind:     model.NotificationTaskAssigned,
		Title:    fmt.Sprintf("New task assigned: %s", p.Title),
		Link:     &link,
	})
	return nil
}

func (d *NotificationDispatcher) HandleAutomationFailed(ctx context.Context, e events.Event) error {
	if e.UserID == nil {
		return nil
	}
	p, err := events.DecodePayload[events.AutomationFailedPayload](e)
	if err != nil {
		slog.WarnContext(ctx, "skipping automation.failed notification", "error", err)
		return nil
	}

	body := p.Error
	link := fmt.Sprintf("/automations/%s/runs/%s", p.AutomationID, p.RunID)
	d.create(ctx, &model.Notification{
		TenantID: e.TenantID,
		UserID:   *e.UserID,
		Kind:     model.NotificationAutomationFailed,
		Title:    "Automation failed",
		Body:     &body,
		Link:     &link,
	})
	return nil
}

func (d *NotificationDispatcher) create(ctx context.Context, n *model.Notification) {
	n.ID = id.New()
	if err := d.notifications.Create(ctx, n); err != nil {
		slog.ErrorContext(ctx, "failed to create notification",
			"kind", n.Kind,
			"user_id", n.UserID,
			"error", err)
	}
}
