package router

import (
	"github.com/gin-gonic/gin"

	"basicsos.app/automation/internal/http/handler"
)

func EventRouter(rg *gin.RouterGroup, h *handler.EventHandler) {
	rg.POST("", h.Emit)
}
