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
	"github.com/ManuelReschke/ToolFox/internal/pkg/billing"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
)

// BillingService starts subscriptions and reconciles tool quotas.
type BillingService interface {
	StartSubscriptionCheckout(ctx context.Context, gw billing.CheckoutGateway, user *models.User, plan, successURL, cancelURL string) (*billing.CheckoutResult, error)
	ApplySubscriptionLimits(ctx context.Context, userID string, force bool) (*billing.LimitsResult, error)
}

// PortalGateway opens the provider's self-service billing portal.
type PortalGateway interface {
	billing.CheckoutGateway
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type BillingController struct {
	billing BillingService
	gateway PortalGateway
	users   repository.UserRepository
	appURL  string
}

func NewBillingController(b BillingService, gw PortalGateway, users repository.UserRepository, appURL string) *BillingController {
	return &BillingController{billing: b, gateway: gw, users: users, appURL: strings.TrimRight(appURL, "/")}
}

type checkoutRequest struct {
	Plan string `json:"plan"`
}

// HandlePlans lists the purchasable plans.
func (bc *BillingController) HandlePlans(c *fiber.Ctx) error {
	type planView struct {
		entitlements.Entry
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}
	plans := entitlements.Plans()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{Entry: p, Name: entitlements.DisplayName(p.Plan), Price: p.Price()})
	}
	return c.JSON(fiber.Map{"plans": out})
}

// HandleCheckout starts a subscription checkout for the signed-in user.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	user, done, err := bc.loadUser(c)
	if done {
		return err
	}
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	result, err := bc.billing.StartSubscriptionCheckout(ctx, bc.gateway, user, req.Plan,
		bc.appURL+"/dashboard?subscription=success",
		bc.appURL+"/pricing?canceled=true")
	if err != nil {
		log.Errorf("[Billing] Checkout for %s failed: %v", user.ID, err)
		return internalError(c, "Failed to create checkout session")
	}
	if !result.Success {
		return c.Status(fiber.StatusBadRequest).JSON(result)
	}
	return c.JSON(result)
}

// HandlePortal returns a billing portal URL for users with a customer record.
func (bc *BillingController) HandlePortal(c *fiber.Ctx) error {
	user, done, err := bc.loadUser(c)
	if done {
		return err
	}
	if user.StripeCustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no_billing_account", "message": "No billing account found"})
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	url, err := bc.gateway.CreatePortalSession(ctx, user.StripeCustomerID, bc.appURL+"/dashboard")
	if err != nil {
		log.Errorf("[Billing] Portal session for %s failed: %v", user.ID, err)
		return internalError(c, "Failed to create portal session")
	}
	return c.JSON(fiber.Map{"url": url})
}

// HandleReconcileUser re-applies the plan limits of a user (admin only).
// force=true also enforces pending downgrades.
func (bc *BillingController) HandleReconcileUser(c *fiber.Ctx) error {
	userID := c.Params("id")
	force := c.QueryBool("force", false)
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	if _, err := bc.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return internalError(c, "Failed to load user")
	}

	result, err := bc.billing.ApplySubscriptionLimits(ctx, userID, force)
	if err != nil {
		log.Errorf("[Billing] Reconcile of %s failed: %v", userID, err)
		return internalError(c, "Failed to apply subscription limits")
	}
	return c.JSON(result)
}

// loadUser resolves the session user. When done is true the response was
// already written and err is the handler's return value.
func (bc *BillingController) loadUser(c *fiber.Ctx) (*models.User, bool, error) {
	userID, ok := currentUserID(c)
	if !ok {
		return nil, true, unauthorized(c)
	}
	ctx, cancel := requestContext(c, requestTimeout)
	defer cancel()

	user, err := bc.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, true, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "User not found"})
		}
		return nil, true, internalError(c, "Failed to load user")
	}
	return user, false, nil
}
