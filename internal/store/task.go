package store

import (
	"context"

	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/model"
)

type taskStore struct {
	conn db.DBTX
}

func newTaskStore(conn db.DBTX) TaskStore {
	return &taskStore{conn: conn}
}

func (s *taskStore) Create(ctx context.Context, task *model.Task) error {
	return s.conn.QueryRow(ctx,
		`INSERT INTO tasks (id, tenant_id, title, description, status, priority, assignee_id, created_by, due_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		task.ID, task.TenantID, task.Title, task.Description, task.Status, string(task.Priority),
		task.AssigneeID, task.CreatedBy, task.DueDate,
	).Scan(&task.CreatedAt)
}
