// Package payment wraps the Stripe calls made by billing and advertising.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"

	PaymentStatusPaid = "paid"
)

// Metadata keys written to checkout sessions.
const (
	MetaAdvertisementID    = "advertisementId"
	MetaToolID             = "toolId"
	MetaPlacement          = "placement"
	MetaDuration           = "duration"
	MetaDiscountPercentage = "discountPercentage"
	MetaUserID             = "userId"
	MetaPlan               = "plan"
)

var (
	ErrNotConfigured    = errors.New("payment provider not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// CheckoutSession is a minimal representation of a Stripe checkout session.
type CheckoutSession struct {
	ID            string            `json:"id"`
	URL           string            `json:"url"`
	Mode          string            `json:"mode"`
	PaymentStatus string            `json:"payment_status"`
	Customer      string            `json:"customer"`
	Subscription  string            `json:"subscription"`
	Currency      string            `json:"currency"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// Paid reports whether Stripe marked the session as paid.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

type subscriptionItem struct {
	Quantity           int64 `json:"quantity"`
	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
	Price              struct {
		ID string `json:"id"`
	} `json:"price"`
}

// Subscription is a minimal representation of a Stripe subscription.
type Subscription struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []subscriptionItem `json:"data"`
	} `json:"items"`
}

// FirstPriceID returns the price ID from the first subscription item.
func (s *Subscription) FirstPriceID() string {
	for _, item := range s.Items.Data {
		if priceID := strings.TrimSpace(item.Price.ID); priceID != "" {
			return priceID
		}
	}
	return ""
}

// Period returns the current billing period. Newer API versions carry it on
// the subscription item only.
func (s *Subscription) Period() (start, end *time.Time) {
	startUnix, endUnix := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		if s.Items.Data[0].CurrentPeriodStart > 0 {
			startUnix = s.Items.Data[0].CurrentPeriodStart
		}
		if s.Items.Data[0].CurrentPeriodEnd > 0 {
			endUnix = s.Items.Data[0].CurrentPeriodEnd
		}
	}
	return unixPtr(startUnix), unixPtr(endUnix)
}

// Seats returns the quantity of the first item, nil when unset.
func (s *Subscription) Seats() *int {
	if len(s.Items.Data) == 0 || s.Items.Data[0].Quantity == 0 {
		return nil
	}
	n := int(s.Items.Data[0].Quantity)
	return &n
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// Event is a verified webhook event with its raw data object.
type Event struct {
	ID       string
	Type     string
	ObjectID string
	Raw      json.RawMessage
	Payload  []byte
}

// DecodeCheckoutSession decodes the data object of a checkout event.
func (e *Event) DecodeCheckoutSession() (*CheckoutSession, error) {
	var s CheckoutSession
	if err := json.Unmarshal(e.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode checkout.session: %w", err)
	}
	return &s, nil
}

// DecodeSubscription decodes the data object of a subscription event.
func (e *Event) DecodeSubscription() (*Subscription, error) {
	var s Subscription
	if err := json.Unmarshal(e.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode subscription: %w", err)
	}
	return &s, nil
}

// AdvertisementCheckout describes a one-off payment for an advertisement.
type AdvertisementCheckout struct {
	CustomerID         string
	AdvertisementID    string
	ToolID             string
	ToolName           string
	LogoURL            string
	Placement          string
	Duration           int
	DiscountPercentage int
	UnitAmount         int64
	Currency           string
	SuccessURL         string
	CancelURL          string
}

// Metadata is the session metadata read back by ConfirmPayment.
func (a AdvertisementCheckout) Metadata() map[string]string {
	return map[string]string{
		MetaAdvertisementID:    a.AdvertisementID,
		MetaToolID:             a.ToolID,
		MetaPlacement:          a.Placement,
		MetaDuration:           fmt.Sprintf("%d", a.Duration),
		MetaDiscountPercentage: fmt.Sprintf("%d", a.DiscountPercentage),
	}
}

// SubscriptionCheckout describes a subscription sign-up.
type SubscriptionCheckout struct {
	CustomerID string
	UserID     string
	Plan       string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// Gateway is the payment provider surface used by the services.
type Gateway interface {
	CreateCustomer(ctx context.Context, userID, email, name string) (string, error)
	CreateAdvertisementCheckout(ctx context.Context, in AdvertisementCheckout) (*CheckoutSession, error)
	CreateSubscriptionCheckout(ctx context.Context, in SubscriptionCheckout) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ConstructEvent(payload []byte, signature string) (*Event, error)
}
