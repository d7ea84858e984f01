package store

import (
	"context"

	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/model"
)

type auditStore struct {
	conn db.DBTX
}

func newAuditStore(conn db.DBTX) AuditStore {
	return &auditStore{conn: conn}
}

func (s *auditStore) Append(ctx context.Context, entry *model.AuditLog) error {
	var payload []byte
	if len(entry.Payload) > 0 {
		payload = entry.Payload
	}
	return s.conn.QueryRow(ctx,
		`INSERT INTO audit_logs (id, tenant_id, user_id, event_id, event_type, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		entry.ID, entry.TenantID, entry.UserID, entry.EventID, entry.EventType, payload,
	).Scan(&entry.CreatedAt)
}
