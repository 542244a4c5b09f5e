package main

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	apiv1 "github.com/ManuelReschke/ToolFox/internal/api/v1"
	"github.com/ManuelReschke/ToolFox/internal/pkg/bootstrap"
	"github.com/ManuelReschke/ToolFox/internal/pkg/cache"
	"github.com/ManuelReschke/ToolFox/internal/pkg/config"
	"github.com/ManuelReschke/ToolFox/internal/pkg/database"
	"github.com/ManuelReschke/ToolFox/internal/pkg/env"
	"github.com/ManuelReschke/ToolFox/internal/pkg/middleware"
	"github.com/ManuelReschke/ToolFox/internal/pkg/router"
	"github.com/ManuelReschke/ToolFox/internal/pkg/scheduler"
	"github.com/ManuelReschke/ToolFox/internal/pkg/session"
)

func main() {
	app, sched := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		if sched != nil {
			sched.Stop()
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Shutdown failed: %v", err)
		}
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

// NewApplication wires the HTTP server. The scheduler is returned started
// when SCHEDULER_ENABLED is true, nil otherwise.
func NewApplication() (*fiber.App, *scheduler.Manager) {
	env.SetupEnvFile()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	database.SetupDatabase()
	cache.SetupCache()

	ctx := context.Background()
	if _, err := apiv1.Load(ctx); err != nil {
		panic(err)
	}

	svc, err := bootstrap.New(ctx, bootstrap.FromDB(cfg, database.GetDB(), cache.GetClient()))
	if err != nil {
		panic(err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "ToolFox",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	// An empty METRICS_PASSWORD locks the endpoints outside development.
	metricsAuth := basicauth.New(basicauth.Config{
		Authorizer: func(user, pass string) bool {
			return cfg.MetricsPassword != "" &&
				subtle.ConstantTimeCompare([]byte(user), []byte(cfg.MetricsUser)) == 1 &&
				subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.MetricsPassword)) == 1
		},
		Next: func(*fiber.Ctx) bool { return cfg.MetricsPassword == "" && env.IsDev() },
	})
	app.Get("/metrics", metricsAuth, monitor.New())
	app.Get("/metrics/prometheus", metricsAuth, adaptor.HTTPHandler(svc.Metrics.Handler()))

	// SWAGGER / OPENAPI
	app.Use(apiv1.Swagger())

	session.NewSessionStore()
	router.InstallRouter(app, svc.Controllers(), cfg.CronSecret, middleware.UserContextMiddleware)

	var sched *scheduler.Manager
	if cfg.Scheduler.Enabled {
		sched = svc.Scheduler()
		sched.Start()
	}

	return app, sched
}
