package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"basicsos.app/automation/core/db"
	"basicsos.app/automation/internal/model"
)

// crmColumns maps the field names accepted from action configs to writable columns.
var crmColumns = map[model.CRMEntity]map[string]string{
	model.CRMEntityContact: {
		"name":      "name",
		"email":     "email",
		"phone":     "phone",
		"companyId": "company_id",
		"title":     "title",
		"notes":     "notes",
	},
	model.CRMEntityDeal: {
		"title":       "title",
		"stage":       "stage",
		"value":       "value",
		"probability": "probability",
		"closeDate":   "close_date",
		"contactId":   "contact_id",
		"notes":       "notes",
	},
}

var crmTables = map[model.CRMEntity]string{
	model.CRMEntityContact: "contacts",
	model.CRMEntityDeal:    "deals",
}

// CRMFields lists the updatable field names of entity in sorted order.
func CRMFields(entity model.CRMEntity) []string {
	cols := crmColumns[entity]
	out := make([]string, 0, len(cols))
	for name := range cols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type crmStore struct {
	conn db.DBTX
}

func newCRMStore(conn db.DBTX) CRMStore {
	return &crmStore{conn: conn}
}

func (s *crmStore) UpdateFields(ctx context.Context, entity model.CRMEntity, tenantID, id int64, fields map[string]any) (bool, error) {
	query, args, err := buildCRMUpdate(entity, tenantID, id, fields)
	if err != nil {
		return false, err
	}
	tag, err := s.conn.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// buildCRMUpdate renders a parameterized UPDATE. Columns come only from the
// allow-list; values are always bound.
func buildCRMUpdate(entity model.CRMEntity, tenantID, id int64, fields map[string]any) (string, []any, error) {
	table, ok := crmTables[entity]
	if !ok {
		return "", nil, fmt.Errorf("unknown crm entity %q", entity)
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		if _, ok := crmColumns[entity][name]; !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	sets := make([]string, 0, len(names)+1)
	args := []any{id, tenantID}
	for _, name := range names {
		args = append(args, fields[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", crmColumns[entity][name], len(args)))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $1 AND tenant_id = $2", table, strings.Join(sets, ", "))
	return query, args, nil
}
