package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"basicsos.app/automation/internal/events"
	"basicsos.app/automation/internal/http/dto"
	"basicsos.app/automation/internal/model"
)

// Emitter is satisfied by *events.Bus.
type Emitter interface {
	Emit(ctx context.Context, e events.Event)
}

type EventHandler struct {
	bus Emitter
}

func NewEventHandler(bus Emitter) *EventHandler {
	return &EventHandler{bus: bus}
}

// Emit validates the event and publishes it on the process bus. Listener
// outcomes are not reported; 202 only means the event was accepted.
func (h *EventHandler) Emit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.EmitEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid emit event request", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	e, err := events.New(events.EventType(req.Type), req.TenantID.Int64(), model.IDPtr(req.UserID), req.Payload)
	if err != nil {
		if errors.Is(err, events.ErrUnknownEventType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to build event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build event"})
		return
	}

	h.bus.Emit(ctx, e)

	c.JSON(http.StatusAccepted, dto.EmitEventResponse{ID: e.ID, Type: string(e.Type)})
}
