package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ToolFox/internal/pkg/middleware"
)

// HookRouter serves the cron triggers and the payment webhook.
type HookRouter struct {
	controllers Controllers
	cronSecret  string
}

func (h HookRouter) InstallRouter(app *fiber.App) {
	cron := app.Group("/api/cron", middleware.RequireCronSecret(h.cronSecret))
	cron.Get("/check-expired-subscriptions", h.controllers.Cron.HandleCheckExpiredSubscriptions)
	cron.Get("/process-expired-advertisements", h.controllers.Cron.HandleProcessExpiredAdvertisements)

	app.Post("/api/stripe/webhook", h.controllers.StripeWebhook.HandleStripeWebhook)
}

func NewHookRouter(c Controllers, cronSecret string) *HookRouter {
	return &HookRouter{controllers: c, cronSecret: cronSecret}
}
