package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"basicsos.app/automation/internal/http/dto"
	"basicsos.app/automation/internal/model"
)

const maxRunsLimit = 200

// RunLister is the read side of store.RunStore.
type RunLister interface {
	ListByAutomation(ctx context.Context, tenantID, automationID int64, limit int32) ([]model.Run, error)
}

type RunHandler struct {
	runs RunLister
}

func NewRunHandler(runs RunLister) *RunHandler {
	return &RunHandler{runs: runs}
}

// List returns the newest runs of one automation, scoped to the tenant in the path.
func (h *RunHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	tenantID, err := strconv.ParseInt(c.Param("tenantId"), 10, 64)
	if err != nil || tenantID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant id"})
		return
	}
	automationID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || automationID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid automation id"})
		return
	}

	var limit int32
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = int32(n)
	}

	runs, err := h.runs.ListByAutomation(ctx, tenantID, automationID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list runs", "error", err, "automation_id", automationID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}

	resp := dto.ListRunsResponse{Runs: make([]dto.RunResponse, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, dto.RunFromModel(r))
	}
	c.JSON(http.StatusOK, resp)
}
