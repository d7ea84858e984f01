package router

import (
	"github.com/gin-gonic/gin"

	"basicsos.app/automation/internal/http/handler"
)

func ActionRouter(rg *gin.RouterGroup, h *handler.ActionHandler) {
	rg.GET("", h.List)
}
