package router

import (
	"github.com/gin-gonic/gin"

	"basicsos.app/automation/internal/http/handler"
)

func RunRouter(rg *gin.RouterGroup, h *handler.RunHandler) {
	rg.GET("/:id/runs", h.List)
}
