package store

import (
	"context"
	"encoding/json"
	"fmt"

	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/model"
	"github.com/jackc/pgx/v5"
)

type runStore struct {
	conn db.DBTX
}

func newRunStore(conn db.DBTX) RunStore {
	return &runStore{conn: conn}
}

func (s *runStore) Create(ctx context.Context, run *model.Run) error {
	_, err := s.conn.Exec(ctx,
		`INSERT INTO automation_runs (id, automation_id, tenant_id, trigger_event_id, status, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.AutomationID, run.TenantID, run.TriggerEventID, string(run.Status), run.StartedAt)
	return err
}

func (s *runStore) Finish(ctx context.Context, run *model.Run) error {
	if !run.Status.Terminal() {
		return fmt.Errorf("finishing run %d with non-terminal status %q", run.ID, run.Status)
	}

	var result []byte
	if run.Result != nil {
		b, err := json.Marshal(run.Result)
		if err != nil {
			return fmt.Errorf("encoding run result: %w", err)
		}
		result = b
	}

	tag, err := s.conn.Exec(ctx,
		`UPDATE automation_runs
		 SET status = $2, completed_at = $3, result = $4, error = $5
		 WHERE id = $1 AND status = 'running'`,
		run.ID, string(run.Status), run.CompletedAt, result, run.Error)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotRunning
	}
	return nil
}

func (s *runStore) ListByAutomation(ctx context.Context, tenantID, automationID int64, limit int32) ([]model.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.Query(ctx,
		`SELECT id, automation_id, tenant_id, trigger_event_id, status, started_at, completed_at, result, error
		 FROM automation_runs
		 WHERE automation_id = $1 AND tenant_id = $2
		 ORDER BY started_at DESC
		 LIMIT $3`,
		automationID, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (*model.Run, error) {
	var (
		r      model.Run
		status string
		result []byte
	)
	if err := row.Scan(&r.ID, &r.AutomationID, &r.TenantID, &r.TriggerEventID, &status, &r.StartedAt, &r.CompletedAt, &result, &r.Error); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if len(result) > 0 {
		var report model.CompletionReport
		if err := json.Unmarshal(result, &report); err != nil {
			return nil, fmt.Errorf("decoding result of run %d: %w", r.ID, err)
		}
		r.Result = &report
	}
	return &r, nil
}
