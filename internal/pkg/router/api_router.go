package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/ToolFox/internal/pkg/middleware"
)

type ApiRouter struct {
	controllers Controllers
	userContext fiber.Handler
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	public := api.Group("/public")
	public.Get("/tools", h.controllers.Public.HandleHomepageTools)
	public.Get("/tools/:slug", h.controllers.Public.HandleToolBySlug)
	public.Get("/categories/:category/tools", h.controllers.Public.HandleCategoryTools)
	public.Get("/advertisements", h.controllers.Advertising.HandleActiveAdvertisements)
	public.Get("/plans", h.controllers.Billing.HandlePlans)

	user := api.Group("", h.userContext, middleware.RequireAPISessionAuth, middleware.RejectBanned(h.controllers.Bans))

	user.Get("/tools", h.controllers.Tools.HandleListTools)
	user.Post("/tools", h.controllers.Tools.HandleCreateTool)
	user.Get("/tools/limits", h.controllers.Tools.HandleToolLimits)
	user.Patch("/tools/:id", h.controllers.Tools.HandleUpdateTool)

	user.Get("/selection", h.controllers.Selection.HandleGetSelection)
	user.Post("/selection", h.controllers.Selection.HandleSaveSelection)

	user.Post("/advertisements/checkout", h.controllers.Advertising.HandleCheckout)
	user.Get("/advertisements/mine", h.controllers.Advertising.HandleMyAdvertisements)

	user.Post("/billing/checkout", h.controllers.Billing.HandleCheckout)
	user.Post("/billing/portal", h.controllers.Billing.HandlePortal)
}

func NewApiRouter(c Controllers, userContext fiber.Handler) *ApiRouter {
	return &ApiRouter{controllers: c, userContext: userContext}
}
