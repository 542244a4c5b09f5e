package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment"
)

// CheckoutGateway is the part of the payment gateway needed to sign up.
type CheckoutGateway interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateSubscriptionCheckout(ctx context.Context, in payment.SubscriptionCheckout) (*payment.CheckoutSession, error)
}

// CheckoutResult is returned to the client starting a subscription checkout.
type CheckoutResult struct {
	Success   bool   `json:"success"`
	URL       string `json:"url,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// StartSubscriptionCheckout records a pending subscription row for the user
// and opens a Stripe checkout for the plan's price.
func (s *Service) StartSubscriptionCheckout(ctx context.Context, gw CheckoutGateway, user *models.User, plan, successURL, cancelURL string) (*CheckoutResult, error) {
	p := entitlements.Normalize(plan)
	if !entitlements.IsKnown(p) {
		return &CheckoutResult{Error: "Unknown plan"}, nil
	}
	priceID, err := s.PriceIDFor(p)
	if err != nil {
		return nil, err
	}

	customerID := user.StripeCustomerID
	if customerID == "" {
		customerID, err = gw.CreateCustomer(ctx, user.ID, user.Email, user.Name)
		if err != nil {
			return nil, err
		}
		if err := s.users.SetStripeCustomerID(ctx, user.ID, customerID); err != nil {
			return nil, fmt.Errorf("store stripe customer: %w", err)
		}
		user.StripeCustomerID = customerID
	}

	pending, err := s.repo.FindLatestIncomplete(ctx, user.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if pending == nil {
		pending = &models.Subscription{
			ID:               uuid.NewString(),
			ReferenceID:      user.ID,
			Plan:             p,
			StripeCustomerID: customerID,
			StripePriceID:    priceID,
			Status:           models.BillingStatusIncomplete,
		}
		err = s.repo.CreateSubscription(ctx, pending)
	} else {
		pending.Plan = p
		pending.StripePriceID = priceID
		pending.StripeCustomerID = customerID
		err = s.repo.SaveSubscription(ctx, pending)
	}
	if err != nil {
		return nil, err
	}

	session, err := gw.CreateSubscriptionCheckout(ctx, payment.SubscriptionCheckout{
		CustomerID: customerID,
		UserID:     user.ID,
		Plan:       p,
		PriceID:    priceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[Billing] Started %s checkout %s for user %s", p, session.ID, user.ID)
	return &CheckoutResult{Success: true, URL: session.URL, SessionID: session.ID}, nil
}
