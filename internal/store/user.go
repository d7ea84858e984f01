package store

import (
	"context"
	"errors"

	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/model"
	"github.com/jackc/pgx/v5"
)

type userStore struct {
	conn db.DBTX
}

func newUserStore(conn db.DBTX) UserStore {
	return &userStore{conn: conn}
}

func (s *userStore) GetByID(ctx context.Context, tenantID, id int64) (*model.User, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT id, tenant_id, name, email, created_at FROM users WHERE id = $1 AND tenant_id = $2`,
		id, tenantID)
	return scanUser(row)
}

func (s *userStore) FirstInTenant(ctx context.Context, tenantID int64) (*model.User, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT id, tenant_id, name, email, created_at FROM users WHERE tenant_id = $1 ORDER BY created_at, id LIMIT 1`,
		tenantID)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.TenantID, &u.Name, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
