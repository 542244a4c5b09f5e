// Package stripehook verifies Stripe webhook deliveries, records them once
// and routes them to billing and advertising.
package stripehook

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"github.com/ManuelReschke/ToolFox/internal/pkg/advertising"
	"github.com/ManuelReschke/ToolFox/internal/pkg/billing"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrPersist          = errors.New("webhook event could not be stored")
	ErrProcessing       = errors.New("webhook event processing failed")
	ErrUnknownUser      = errors.New("subscription cannot be linked to a user")
)

// Billing is the subscription side of webhook processing.
type Billing interface {
	RecordWebhookEvent(ctx context.Context, in billing.WebhookEventInput) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error
	SyncSubscription(ctx context.Context, in billing.NormalizedSubscription) (*models.Subscription, error)
	ApplySubscriptionLimits(ctx context.Context, userID string, force bool) (*billing.LimitsResult, error)
}

// Advertising confirms paid advertisement checkouts.
type Advertising interface {
	ConfirmPayment(ctx context.Context, sessionID string) (*advertising.ConfirmResult, error)
}

// Gateway verifies deliveries and serves fresh subscription state.
type Gateway interface {
	ConstructEvent(payload []byte, signature string) (*payment.Event, error)
	GetSubscription(ctx context.Context, id string) (*payment.Subscription, error)
}

// Outcome describes what happened to one delivery.
type Outcome struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Handled   bool   `json:"handled"`
	Detail    string `json:"detail,omitempty"`
}

type Dispatcher struct {
	billing Billing
	ads     Advertising
	gateway Gateway
	users   repository.UserRepository
	metrics *metrics.Metrics
}

func NewDispatcher(b Billing, ads Advertising, gw Gateway, users repository.UserRepository, m *metrics.Metrics) *Dispatcher {
	if m == nil {
		m = metrics.Get()
	}
	return &Dispatcher{billing: b, ads: ads, gateway: gw, users: users, metrics: m}
}

// Handle verifies, records and processes a delivery. A delivery that was
// already processed successfully is acknowledged without side effects; one
// that failed before is processed again.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte, signature string) (*Outcome, error) {
	event, err := d.gateway.ConstructEvent(payload, signature)
	if err != nil {
		d.metrics.RecordWebhook("unknown", "invalid_signature")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	out := &Outcome{EventID: event.ID, Type: event.Type}

	created, stored, err := d.billing.RecordWebhookEvent(ctx, billing.WebhookEventInput{
		Provider:        billing.ProviderStripe,
		ProviderEventID: event.ID,
		EventType:       event.Type,
		ObjectID:        event.ObjectID,
		PayloadJSON:     string(event.Payload),
	})
	if err != nil {
		d.metrics.RecordWebhook(event.Type, "persist_failed")
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if !created && stored.Succeeded() {
		log.Infof("[Payment] Duplicate webhook %s (%s) ignored", event.ID, event.Type)
		d.metrics.RecordWebhook(event.Type, "duplicate")
		out.Duplicate = true
		return out, nil
	}

	handled, detail, procErr := d.process(ctx, event)
	out.Handled, out.Detail = handled, detail

	if err := d.billing.MarkWebhookProcessed(ctx, stored.ID, procErr); err != nil {
		log.Errorf("[Payment] Failed to mark webhook %s processed: %v", event.ID, err)
	}
	if procErr != nil {
		log.Errorf("[Payment] Webhook %s (%s) failed: %v", event.ID, event.Type, procErr)
		d.metrics.RecordWebhook(event.Type, "failed")
		return out, fmt.Errorf("%w: %v", ErrProcessing, procErr)
	}
	if handled {
		d.metrics.RecordWebhook(event.Type, "processed")
	} else {
		d.metrics.RecordWebhook(event.Type, "ignored")
	}
	return out, nil
}

func (d *Dispatcher) process(ctx context.Context, event *payment.Event) (bool, string, error) {
	switch event.Type {
	case payment.EventCheckoutCompleted:
		session, err := event.DecodeCheckoutSession()
		if err != nil {
			return false, "", err
		}
		return d.checkoutCompleted(ctx, session)
	case payment.EventSubscriptionUpdated, payment.EventSubscriptionDeleted:
		sub, err := event.DecodeSubscription()
		if err != nil {
			return false, "", err
		}
		if sub.ID == "" {
			return false, "", errors.New("subscription event without subscription id")
		}
		userID, err := d.syncAndApply(ctx, sub.ID, "")
		if err != nil {
			return false, "", err
		}
		return true, "subscription limits applied for " + userID, nil
	default:
		return false, "event type not handled", nil
	}
}

func (d *Dispatcher) checkoutCompleted(ctx context.Context, session *payment.CheckoutSession) (bool, string, error) {
	if adID := session.Metadata[payment.MetaAdvertisementID]; adID != "" {
		res, err := d.ads.ConfirmPayment(ctx, session.ID)
		if err != nil {
			return false, "", err
		}
		if res.AlreadyProcessed {
			return true, "advertisement " + res.AdvertisementID + " already active", nil
		}
		return true, "advertisement " + res.AdvertisementID + " activated", nil
	}

	if session.Mode == payment.ModeSubscription && session.Subscription != "" {
		userID, err := d.syncAndApply(ctx, session.Subscription, session.Metadata[payment.MetaUserID])
		if err != nil {
			return false, "", err
		}
		return true, "subscription limits applied for " + userID, nil
	}
	return false, "checkout session not linked to an advertisement or subscription", nil
}

// syncAndApply stores the provider's current view of a subscription and
// reconciles the owner's tools from the stored rows.
func (d *Dispatcher) syncAndApply(ctx context.Context, subscriptionID, userHint string) (string, error) {
	sub, err := d.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return "", fmt.Errorf("retrieve subscription %s: %w", subscriptionID, err)
	}
	userID, err := d.resolveUser(ctx, sub, userHint)
	if err != nil {
		return "", err
	}

	start, end := sub.Period()
	if _, err := d.billing.SyncSubscription(ctx, billing.NormalizedSubscription{
		UserID:               userID,
		StripeCustomerID:     sub.Customer,
		StripeSubscriptionID: sub.ID,
		PriceID:              sub.FirstPriceID(),
		Status:               sub.Status,
		PeriodStart:          start,
		PeriodEnd:            end,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		Seats:                sub.Seats(),
	}); err != nil {
		return "", fmt.Errorf("sync subscription %s: %w", sub.ID, err)
	}

	result, err := d.billing.ApplySubscriptionLimits(ctx, userID, false)
	if err != nil {
		return "", fmt.Errorf("apply subscription limits: %w", err)
	}
	log.Infof("[Payment] Subscription %s for user %s: %s (limit %d)", sub.ID, userID, result.Action, result.Limit)
	return userID, nil
}

func (d *Dispatcher) resolveUser(ctx context.Context, sub *payment.Subscription, hint string) (string, error) {
	if id := strings.TrimSpace(sub.Metadata[payment.MetaUserID]); id != "" {
		return id, nil
	}
	if id := strings.TrimSpace(hint); id != "" {
		return id, nil
	}
	if sub.Customer == "" {
		return "", ErrUnknownUser
	}
	u, err := d.users.GetByStripeCustomerID(ctx, sub.Customer)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: customer %s", ErrUnknownUser, sub.Customer)
		}
		return "", err
	}
	return u.ID, nil
}
