package store

import (
	"context"

	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/model"
)

type notificationStore struct {
	conn db.DBTX
}

func newNotificationStore(conn db.DBTX) NotificationStore {
	return &notificationStore{conn: conn}
}

func (s *notificationStore) Create(ctx context.Context, n *model.Notification) error {
	return s.conn.QueryRow(ctx,
		`INSERT INTO notifications (id, tenant_id, user_id, kind, title, body, link)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		n.ID, n.TenantID, n.UserID, string(n.Kind), n.Title, n.Body, n.Link,
	).Scan(&n.CreatedAt)
}
