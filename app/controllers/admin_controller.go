package controllers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/cache"
	"github.com/ManuelReschke/ToolFox/internal/pkg/sweep"
)

// SweepOperator runs sweeps by name and reads back their last summary.
type SweepOperator interface {
	Run(ctx context.Context, name string) (*sweep.Summary, error)
	LastRun(ctx context.Context, name string) ([]byte, error)
}

// AdminController exposes sweep operations to administrators.
type AdminController struct {
	sweeps SweepOperator
}

func NewAdminController(sweeps SweepOperator) *AdminController {
	return &AdminController{sweeps: sweeps}
}

func validSweep(name string) bool {
	return name == sweep.Subscriptions || name == sweep.Advertisements
}

// HandleRunSweep triggers a sweep outside its schedule.
func (ac *AdminController) HandleRunSweep(c *fiber.Ctx) error {
	name := c.Params("name")
	if !validSweep(name) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown sweep"})
	}
	ctx, cancel := requestContext(c, sweepTimeout)
	defer cancel()

	summary, err := ac.sweeps.Run(ctx, name)
	if err != nil {
		return sweepError(c, name, err)
	}
	log.Infof("[Cron] Sweep %s triggered by admin", name)
	return c.JSON(summary)
}

// HandleLastSweep returns the stored summary of the latest run.
func (ac *AdminController) HandleLastSweep(c *fiber.Ctx) error {
	name := c.Params("name")
	if !validSweep(name) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Unknown sweep"})
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	body, err := ac.sweeps.LastRun(ctx, name)
	if errors.Is(err, cache.ErrNoLastRun) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Sweep has not run yet"})
	}
	if err != nil {
		return internalError(c, "Failed to load last sweep")
	}
	if !json.Valid(body) {
		return internalError(c, "Stored sweep summary is corrupt")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(body)
}
