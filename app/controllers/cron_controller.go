package controllers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/internal/pkg/advertising"
	"github.com/ManuelReschke/ToolFox/internal/pkg/billing"
	"github.com/ManuelReschke/ToolFox/internal/pkg/sweep"
)

// SweepRunner runs the expiry sweeps under the shared lock.
type SweepRunner interface {
	Subscriptions(ctx context.Context) (*billing.ExpiryReport, *sweep.Summary, error)
	Advertisements(ctx context.Context) (*advertising.ExpiryReport, *sweep.Summary, error)
}

// CronController serves the sweep triggers called by the external scheduler.
type CronController struct {
	runner SweepRunner
}

func NewCronController(runner SweepRunner) *CronController {
	return &CronController{runner: runner}
}

// HandleCheckExpiredSubscriptions expires canceled subscriptions and enforces
// pending downgrades.
func (cc *CronController) HandleCheckExpiredSubscriptions(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, sweepTimeout)
	defer cancel()

	report, summary, err := cc.runner.Subscriptions(ctx)
	if err != nil {
		return sweepError(c, sweep.Subscriptions, err)
	}
	if report.Results == nil {
		report.Results = []billing.SweepItem{}
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Processed %d expired subscriptions and %d downgrades", report.Expired, report.Downgrades),
		"processed": fiber.Map{
			"expired":    report.Expired,
			"downgrades": report.Downgrades,
			"errors":     report.Errors,
		},
		"results":     report.Results,
		"duration_ms": summary.DurationMS,
		"archive_key": summary.ArchiveKey,
	})
}

// HandleProcessExpiredAdvertisements expires advertisements past their end date.
func (cc *CronController) HandleProcessExpiredAdvertisements(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, sweepTimeout)
	defer cancel()

	report, summary, err := cc.runner.Advertisements(ctx)
	if err != nil {
		return sweepError(c, sweep.Advertisements, err)
	}
	if report.Results == nil {
		report.Results = []advertising.SweepItem{}
	}

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Processed %d expired advertisements", report.Processed),
		"processed": fiber.Map{
			"disabled":         report.Disabled,
			"skipped":          report.Skipped,
			"already_disabled": report.AlreadyDisabled,
			"errors":           report.Errors,
		},
		"results":     report.Results,
		"duration_ms": summary.DurationMS,
		"archive_key": summary.ArchiveKey,
	})
}

func sweepError(c *fiber.Ctx, name string, err error) error {
	if errors.Is(err, sweep.ErrAlreadyRunning) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "sweep_running", "message": "Sweep " + name + " is already running"})
	}
	log.Errorf("[Cron] Sweep %s failed: %v", name, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
}
