package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/ToolFox/app/controllers"
	"github.com/ManuelReschke/ToolFox/internal/pkg/middleware"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Controllers bundles the handlers the routers mount.
type Controllers struct {
	Cron          *controllers.CronController
	StripeWebhook *controllers.StripeWebhookController
	Tools         *controllers.ToolController
	Selection     *controllers.SelectionController
	Advertising   *controllers.AdvertisementController
	Billing       *controllers.BillingController
	Public        *controllers.PublicController
	Admin         *controllers.AdminController
	Moderation    *controllers.ModerationController
	// Bans refuses banned accounts on the signed-in API routes.
	Bans middleware.BanChecker
}

// InstallRouter mounts the machine endpoints first so the session middleware
// and the rate limiter never run for them.
func InstallRouter(app *fiber.App, c Controllers, cronSecret string, userContext fiber.Handler) {
	setup(app,
		NewHookRouter(c, cronSecret),
		NewApiRouter(c, userContext),
		NewAdminRouter(c, userContext),
	)
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
