package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ToolFox/internal/pkg/middleware"
)

type AdminRouter struct {
	controllers Controllers
	userContext fiber.Handler
}

func (h AdminRouter) InstallRouter(app *fiber.App) {
	admin := app.Group("/admin", h.userContext, middleware.RequireAdmin)
	admin.Delete("/advertisements/:id", h.controllers.Advertising.HandleDeletePending)
	admin.Post("/users/:id/reconcile", h.controllers.Billing.HandleReconcileUser)
	admin.Post("/users/:id/ban", h.controllers.Moderation.HandleBanUser)
	admin.Delete("/users/:id/ban", h.controllers.Moderation.HandleUnbanUser)
	admin.Post("/tools", h.controllers.Moderation.HandleCreateTool)
	admin.Post("/sweeps/:name/run", h.controllers.Admin.HandleRunSweep)
	admin.Get("/sweeps/:name/last", h.controllers.Admin.HandleLastSweep)
}

func NewAdminRouter(c Controllers, userContext fiber.Handler) *AdminRouter {
	return &AdminRouter{controllers: c, userContext: userContext}
}
