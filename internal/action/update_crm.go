package action

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"basicsos.app/automation/internal/model"
	"basicsos.app/automation/internal/store"
)

type updateCRM struct {
	crm store.CRMStore
}

func (h *updateCRM) run(ctx context.Context, cfg UpdateCRMConfig, actx RunContext) (Result, error) {
	updated, err := h.crm.UpdateFields(ctx, cfg.Entity, actx.TenantID, cfg.ID.Int64(), cfg.Fields)
	if err != nil {
		if errors.Is(err, store.ErrUnknownField) {
			return Failure(err.Error()), nil
		}
		return Result{}, fmt.Errorf("updating %s: %w", cfg.Entity, err)
	}
	if !updated {
		if cfg.Entity == model.CRMEntityDeal {
			return Failure("Deal not found"), nil
		}
		return Failure("Contact not found"), nil
	}

	return Success(map[string]any{
		"entity":        cfg.Entity,
		"id":            cfg.ID,
		"updatedFields": slices.Sorted(maps.Keys(cfg.Fields)),
	}), nil
}
