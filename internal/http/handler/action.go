package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"basicsos.app/automation/internal/action"
)

type ActionHandler struct {
	catalog []action.Descriptor
}

// NewActionHandler reflects the catalog once; it never changes at runtime.
func NewActionHandler() *ActionHandler {
	return &ActionHandler{catalog: action.Catalog()}
}

func (h *ActionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"actions": h.catalog})
}
