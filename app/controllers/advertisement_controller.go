package controllers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"github.com/ManuelReschke/ToolFox/internal/pkg/advertising"
)

// AdvertisementService books and lists advertisement campaigns.
type AdvertisementService interface {
	Create(ctx context.Context, user *models.User, req advertising.CreateRequest) (*advertising.CreateResult, error)
	UserAdvertisements(ctx context.Context, userID string) ([]advertising.UserAdvertisement, error)
	ActiveAdvertisements(ctx context.Context, placement models.Placement) ([]models.ToolAdvertisement, error)
	DeletePending(ctx context.Context, adID string) error
}

type AdvertisementController struct {
	ads    AdvertisementService
	users  repository.UserRepository
	appURL string
}

func NewAdvertisementController(ads AdvertisementService, users repository.UserRepository, appURL string) *AdvertisementController {
	return &AdvertisementController{ads: ads, users: users, appURL: strings.TrimRight(appURL, "/")}
}

// HandleCheckout creates a pending advertisement and returns the hosted
// checkout URL. The price is computed server side.
func (ac *AdvertisementController) HandleCheckout(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	var req advertising.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	req.SuccessURL = ac.appURL + "/dashboard/advertisements?success=true&session_id={CHECKOUT_SESSION_ID}"
	req.CancelURL = ac.appURL + "/dashboard/advertisements?canceled=true"

	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	user, err := ac.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return internalError(c, "Failed to load user")
	}

	result, err := ac.ads.Create(ctx, user, req)
	if err != nil {
		log.Errorf("[Advertising] Checkout for %s failed: %v", userID, err)
		return internalError(c, "Failed to create checkout session")
	}
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.JSON(result)
}

// HandleMyAdvertisements lists the paid campaigns of the signed-in user.
func (ac *AdvertisementController) HandleMyAdvertisements(c *fiber.Ctx) error {
	userID, ok := currentUserID(c)
	if !ok {
		return unauthorized(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	ads, err := ac.ads.UserAdvertisements(ctx, userID)
	if err != nil {
		log.Errorf("[Advertising] Failed to list advertisements of %s: %v", userID, err)
		return internalError(c, "Failed to load advertisements")
	}
	return c.JSON(fiber.Map{"advertisements": ads})
}

// HandleActiveAdvertisements lists live campaigns. placement=homepage also
// returns campaigns booked for all pages.
func (ac *AdvertisementController) HandleActiveAdvertisements(c *fiber.Ctx) error {
	placement := models.Placement(c.Query("placement", string(models.PlacementAll)))
	if !placement.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_placement", "message": "placement must be homepage or all"})
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	ads, err := ac.ads.ActiveAdvertisements(ctx, placement)
	if err != nil {
		log.Errorf("[Advertising] Failed to list active advertisements: %v", err)
		return internalError(c, "Failed to load advertisements")
	}
	return c.JSON(fiber.Map{"advertisements": ads})
}

// HandleDeletePending removes an abandoned checkout (admin only).
func (ac *AdvertisementController) HandleDeletePending(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	err := ac.ads.DeletePending(ctx, c.Params("id"))
	switch {
	case errors.Is(err, advertising.ErrAdvertisementNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Advertisement not found"})
	case errors.Is(err, advertising.ErrAdvertisementNotPending):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not_pending", "message": err.Error()})
	case err != nil:
		log.Errorf("[Advertising] Failed to delete advertisement %s: %v", c.Params("id"), err)
		return internalError(c, "Failed to delete advertisement")
	}
	return c.JSON(fiber.Map{"success": true})
}
