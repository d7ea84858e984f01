package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/model"
	"github.com/jackc/pgx/v5"
)

const automationColumns = `id, tenant_id, name, trigger_config, action_chain, enabled, last_run_at, created_at, updated_at`

type automationStore struct {
	conn db.DBTX
}

func newAutomationStore(conn db.DBTX) AutomationStore {
	return &automationStore{conn: conn}
}

func (s *automationStore) GetByID(ctx context.Context, tenantID, id int64) (*model.Automation, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT `+automationColumns+` FROM automations WHERE id = $1 AND tenant_id = $2`,
		id, tenantID)

	a, err := scanAutomation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *automationStore) ListEnabledByTenant(ctx context.Context, tenantID int64) ([]model.Automation, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+automationColumns+` FROM automations WHERE tenant_id = $1 AND enabled ORDER BY created_at, id`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *automationStore) TouchLastRun(ctx context.Context, id int64, at time.Time) error {
	_, err := s.conn.Exec(ctx, `UPDATE automations SET last_run_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanAutomation(row pgx.Row) (*model.Automation, error) {
	var (
		a       model.Automation
		trigger []byte
		chain   []byte
	)
	if err := row.Scan(&a.ID, &a.TenantID, &a.Name, &trigger, &chain, &a.Enabled, &a.LastRunAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if len(trigger) > 0 {
		if err := json.Unmarshal(trigger, &a.TriggerConfig); err != nil {
			return nil, fmt.Errorf("decoding trigger config of automation %d: %w", a.ID, err)
		}
	}
	a.ActionChain = json.RawMessage(chain)
	return &a, nil
}
