// Package advertising runs the pending, active and expired lifecycle of
// paid tool advertisements.
package advertising

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment"
)

// ToolSource provides the tool an advertisement runs for.
type ToolSource interface {
	CreateAdvertisementTool(ctx context.Context, userID string, in catalog.ToolInput) (*models.Tool, error)
	DuplicateForBoost(ctx context.Context, userID, originalID string) (*models.Tool, error)
}

// Gateway is the part of the payment gateway used for advertisements.
type Gateway interface {
	CreateAdvertisementCheckout(ctx context.Context, in payment.AdvertisementCheckout) (*payment.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*payment.CheckoutSession, error)
}

type Manager struct {
	tools    repository.ToolRepository
	ads      repository.AdvertisementRepository
	source   ToolSource
	gateway  Gateway
	metrics  *metrics.Metrics
	validate *validator.Validate
	currency string
	now      func() time.Time
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithCurrency(currency string) Option {
	return func(m *Manager) { m.currency = currency }
}

func NewManager(repos *repository.Repositories, source ToolSource, gateway Gateway, opts ...Option) *Manager {
	m := &Manager{
		tools:    repos.Tool,
		ads:      repos.Advertisement,
		source:   source,
		gateway:  gateway,
		metrics:  metrics.Get(),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create prices the booking, resolves its tool and stores a pending
// advertisement linked to a new checkout session.
func (m *Manager) Create(ctx context.Context, user *models.User, req CreateRequest) (*CreateResult, error) {
	if req.sources() != 1 {
		return &CreateResult{Error: "Provide exactly one of tool_id, boost_tool_id or tool_data"}, nil
	}
	if err := m.validate.Struct(req); err != nil {
		return &CreateResult{Error: "Invalid placement or duration"}, nil
	}
	quote, err := entitlements.QuoteAdvertisement(req.Placement, req.Duration)
	if err != nil {
		return &CreateResult{Error: err.Error()}, nil
	}

	now := m.now()
	start := req.StartDate
	if start.IsZero() {
		start = now
	}
	if start.Before(now.Truncate(24 * time.Hour)) {
		return &CreateResult{Error: "Start date cannot be in the past"}, nil
	}

	tool, err := m.resolveTool(ctx, user.ID, req)
	if err != nil {
		if msg, ok := catalog.AsValidation(err); ok {
			return &CreateResult{Error: msg}, nil
		}
		return nil, err
	}

	ad := &models.ToolAdvertisement{
		ID:                 uuid.NewString(),
		ToolID:             tool.ID,
		StartDate:          start,
		EndDate:            start.AddDate(0, 0, req.Duration),
		Placement:          req.Placement,
		Status:             models.AdvertisementPending,
		TotalPrice:         quote.TotalPrice,
		Duration:           quote.Duration,
		DiscountPercentage: quote.DiscountPercentage,
	}
	if err := m.ads.Create(ctx, ad); err != nil {
		return nil, fmt.Errorf("create advertisement: %w", err)
	}

	session, err := m.gateway.CreateAdvertisementCheckout(ctx, payment.AdvertisementCheckout{
		CustomerID:         user.StripeCustomerID,
		AdvertisementID:    ad.ID,
		ToolID:             tool.ID,
		ToolName:           tool.Name,
		LogoURL:            tool.LogoURL,
		Placement:          string(ad.Placement),
		Duration:           ad.Duration,
		DiscountPercentage: ad.DiscountPercentage,
		UnitAmount:         quote.UnitAmount(),
		Currency:           m.currency,
		SuccessURL:         req.SuccessURL,
		CancelURL:          req.CancelURL,
	})
	if err != nil {
		if delErr := m.ads.Delete(ctx, ad.ID); delErr != nil {
			log.Errorf("[Advertising] Failed to drop pending advertisement %s: %v", ad.ID, delErr)
		}
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if err := m.ads.SetStripeSession(ctx, ad.ID, session.ID); err != nil {
		return nil, fmt.Errorf("store checkout session: %w", err)
	}

	log.Infof("[Advertising] Pending advertisement %s for tool %s (%s, %d days, %d cents)",
		ad.ID, tool.ID, ad.Placement, ad.Duration, ad.TotalPrice)
	return &CreateResult{
		Success:         true,
		AdvertisementID: ad.ID,
		ToolID:          tool.ID,
		SessionID:       session.ID,
		URL:             session.URL,
		Quote:           &quote,
	}, nil
}

func (m *Manager) resolveTool(ctx context.Context, userID string, req CreateRequest) (*models.Tool, error) {
	switch {
	case req.BoostToolID != "":
		return m.source.DuplicateForBoost(ctx, userID, req.BoostToolID)
	case req.ToolData != nil:
		return m.source.CreateAdvertisementTool(ctx, userID, *req.ToolData)
	}

	tool, err := m.tools.GetByID(ctx, req.ToolID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &catalog.ValidationError{Message: "Tool not found"}
		}
		return nil, err
	}
	if tool.SubmittedBy != userID {
		return nil, &catalog.ValidationError{Message: "Tool not found"}
	}
	if !tool.IsAdvertisementOrigin() {
		return nil, &catalog.ValidationError{Message: "Subscription tools must be boosted to be advertised"}
	}
	active, err := m.ads.CountActiveForTool(ctx, tool.ID)
	if err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, &catalog.ValidationError{Message: "This tool already has an active advertisement"}
	}
	if _, err := m.ads.DeletePendingForTool(ctx, tool.ID); err != nil {
		return nil, err
	}
	return tool, nil
}

// ConfirmPayment activates the advertisement paid by a checkout session.
// Replays report AlreadyProcessed and write nothing.
func (m *Manager) ConfirmPayment(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	session, err := m.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", sessionID, err)
	}
	if !session.Paid() {
		return nil, ErrPaymentNotConfirmed
	}
	adID := session.Metadata[payment.MetaAdvertisementID]
	if adID == "" {
		return nil, ErrMissingAdvertisementID
	}

	ad, err := m.ads.GetByID(ctx, adID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAdvertisementNotFound, adID)
		}
		return nil, err
	}
	result := &ConfirmResult{Success: true, AdvertisementID: ad.ID, ToolID: ad.ToolID}
	if ad.Status != models.AdvertisementPending {
		result.AlreadyProcessed = true
		return result, nil
	}

	ok, err := m.ads.TransitionStatus(ctx, ad.ID, models.AdvertisementPending, models.AdvertisementActive)
	if err != nil {
		return nil, fmt.Errorf("activate advertisement %s: %w", ad.ID, err)
	}
	if !ok {
		result.AlreadyProcessed = true
		return result, nil
	}
	m.metrics.RecordAdvertisementTransition(string(models.AdvertisementActive))

	if ad.Tool != nil && !ad.Tool.IsAdvertisementOrigin() {
		log.Warnf("[Advertising] Advertisement %s targets subscription tool %s, featured flag left alone", ad.ID, ad.ToolID)
		return result, nil
	}
	if err := m.tools.SetAdvertisementFeatured(ctx, ad.ToolID, true); err != nil {
		return nil, fmt.Errorf("feature tool %s: %w", ad.ToolID, err)
	}
	log.Infof("[Advertising] Advertisement %s active, tool %s featured", ad.ID, ad.ToolID)
	return result, nil
}

// ActiveAdvertisements lists live campaigns for a placement, newest start
// first. PlacementHomepage includes campaigns booked for all pages.
func (m *Manager) ActiveAdvertisements(ctx context.Context, placement models.Placement) ([]models.ToolAdvertisement, error) {
	ads, err := m.ads.ListLive(ctx, placement)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ads, func(i, j int) bool { return ads[i].StartDate.After(ads[j].StartDate) })
	if ads == nil {
		ads = []models.ToolAdvertisement{}
	}
	return ads, nil
}

// UserAdvertisements lists a user's paid campaigns with the original tool
// name for boosts.
func (m *Manager) UserAdvertisements(ctx context.Context, userID string) ([]UserAdvertisement, error) {
	ads, err := m.ads.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]UserAdvertisement, 0, len(ads))
	for _, ad := range ads {
		item := UserAdvertisement{ToolAdvertisement: ad}
		if ad.Tool != nil {
			item.ToolName = ad.Tool.Name
			if ad.Tool.IsBoostDuplicate() {
				item.IsBoost = true
				orig, err := m.tools.GetByID(ctx, *ad.Tool.BoostedFromID)
				if err == nil {
					item.OriginalToolName = orig.Name
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, err
				}
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// DeletePending removes an abandoned checkout. Paid campaigns are kept.
func (m *Manager) DeletePending(ctx context.Context, adID string) error {
	ad, err := m.ads.GetByID(ctx, adID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAdvertisementNotFound
		}
		return err
	}
	if ad.Status != models.AdvertisementPending {
		return ErrAdvertisementNotPending
	}
	if err := m.ads.Delete(ctx, adID); err != nil {
		return err
	}
	log.Infof("[Advertising] Deleted pending advertisement %s", adID)
	return nil
}
