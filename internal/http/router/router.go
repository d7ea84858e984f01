package router

import (
	"github.com/gin-gonic/gin"

	"basicsos.app/automation/internal/http/handler"
	"basicsos.app/automation/internal/http/middleware"
)

type RouterConfig struct {
	AdminAPIKey string
}

type Handlers struct {
	Events  *handler.EventHandler
	Actions *handler.ActionHandler
	Runs    *handler.RunHandler
	Health  *handler.HealthHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, cfg RouterConfig) {
	router.GET("/healthz", h.Health.Health)

	v1 := router.Group("/v1", middleware.RequireAdminAPIKey(cfg.AdminAPIKey))
	{
		EventRouter(v1.Group("/events"), h.Events)
		ActionRouter(v1.Group("/actions"), h.Actions)
		RunRouter(v1.Group("/tenants/:tenantId/automations"), h.Runs)
	}
}
