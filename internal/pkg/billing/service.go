package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ToolFox/internal/pkg/quota"
)

var (
	ErrUserRequired = errors.New("user_id is required")
	ErrUnknownPrice = errors.New("price id is not mapped to a plan")
	ErrUnknownPlan  = errors.New("unknown plan")
)

// Service keeps subscription rows in sync with Stripe and applies plan
// limits to the featured flag of subscription tools.
type Service struct {
	repo    Repository
	tools   repository.ToolRepository
	users   repository.UserRepository
	prices  map[string]string
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

// WithPrices sets the plan to Stripe price id table used when no mapping row matches.
func WithPrices(byPlan map[string]string) Option {
	return func(s *Service) {
		s.prices = byPlan
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a billing service from injected repositories.
func NewService(repo Repository, repos *repository.Repositories, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		tools:   repos.Tool,
		users:   repos.User,
		prices:  map[string]string{},
		metrics: metrics.Get(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolvePlan maps a Stripe price id to a plan identifier. Mapping rows win
// over the configured price table.
func (s *Service) ResolvePlan(ctx context.Context, priceID string) (string, error) {
	ref := strings.TrimSpace(priceID)
	if ref == "" {
		return "", ErrUnknownPrice
	}

	m, err := s.repo.FindActivePlanMapping(ctx, ProviderStripe, ref)
	if err == nil {
		return entitlements.Normalize(m.Plan), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	for plan, id := range s.prices {
		if id == ref {
			return plan, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownPrice, ref)
}

// MapPrice stores a price id to plan mapping that overrides the configured
// price table.
func (s *Service) MapPrice(ctx context.Context, priceID, plan string) error {
	ref := strings.TrimSpace(priceID)
	p := entitlements.Normalize(plan)
	if ref == "" {
		return ErrUnknownPrice
	}
	if !entitlements.IsKnown(p) {
		return fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	return s.repo.UpsertPlanMapping(ctx, &models.BillingPlanMapping{
		Provider:        ProviderStripe,
		ProviderPriceID: ref,
		Plan:            p,
		IsActive:        true,
	})
}

// PriceIDFor returns the configured Stripe price id of a plan.
func (s *Service) PriceIDFor(plan string) (string, error) {
	p := entitlements.Normalize(plan)
	if !entitlements.IsKnown(p) {
		return "", fmt.Errorf("%w: %s", ErrUnknownPlan, plan)
	}
	id, ok := s.prices[p]
	if !ok || id == "" {
		return "", fmt.Errorf("no stripe price configured for plan %s", p)
	}
	return id, nil
}

// SyncSubscription upserts a subscription row from provider data. Rows are
// matched by Stripe subscription id first, then by the user's pending
// checkout row.
func (s *Service) SyncSubscription(ctx context.Context, in NormalizedSubscription) (*models.Subscription, error) {
	userID := strings.TrimSpace(in.UserID)
	subID := strings.TrimSpace(in.StripeSubscriptionID)
	if userID == "" || subID == "" {
		return nil, errors.New("user_id and stripe_subscription_id are required")
	}

	sub, err := s.repo.GetSubscriptionByStripeID(ctx, subID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	isNew := false
	if sub == nil {
		sub, err = s.repo.FindLatestIncomplete(ctx, userID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if sub == nil {
		isNew = true
		sub = &models.Subscription{ID: uuid.NewString(), ReferenceID: userID}
	}

	plan := entitlements.Normalize(in.Plan)
	if !entitlements.IsKnown(plan) {
		plan, err = s.ResolvePlan(ctx, in.PriceID)
		if err != nil {
			if !errors.Is(err, ErrUnknownPrice) || !entitlements.IsKnown(sub.Plan) {
				return nil, err
			}
			log.Warnf("[Billing] Unknown price %s for subscription %s, keeping plan %s", in.PriceID, subID, sub.Plan)
			plan = sub.Plan
		}
	}

	cancel := in.CancelAtPeriodEnd
	sub.ReferenceID = userID
	sub.Plan = plan
	sub.StripeSubscriptionID = &subID
	sub.StripePriceID = strings.TrimSpace(in.PriceID)
	sub.Status = normalizeStatus(in.Status)
	sub.PeriodStart = in.PeriodStart
	sub.PeriodEnd = in.PeriodEnd
	sub.CancelAtPeriodEnd = &cancel
	sub.Seats = in.Seats
	if in.StripeCustomerID != "" {
		sub.StripeCustomerID = in.StripeCustomerID
	}

	if isNew {
		err = s.repo.CreateSubscription(ctx, sub)
	} else {
		err = s.repo.SaveSubscription(ctx, sub)
	}
	if err != nil {
		return nil, err
	}
	log.Infof("[Billing] Synced subscription %s for user %s: plan=%s status=%s cancel_at_period_end=%t",
		subID, userID, sub.Plan, sub.Status, cancel)
	return sub, nil
}

// EffectiveSubscription returns the subscription limits are read from, or nil.
func (s *Service) EffectiveSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}
	active, err := s.repo.ListSubscriptionsByUser(ctx, userID, models.BillingStatusActive)
	if err != nil {
		return nil, err
	}
	return pickEffective(active, s.now()), nil
}

// EffectivePlan returns the plan identifier and tool limit of a user.
// Users without an effective subscription get ("", 0).
func (s *Service) EffectivePlan(ctx context.Context, userID string) (string, int, error) {
	sub, err := s.EffectiveSubscription(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	if sub == nil {
		return "", 0, nil
	}
	return sub.Plan, entitlements.LimitFor(sub.Plan), nil
}

// CleanupIncomplete removes abandoned checkout rows of a user.
func (s *Service) CleanupIncomplete(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.DeleteIncompleteSubscriptions(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Infof("[Billing] Removed %d incomplete subscription(s) for user %s", n, userID)
	}
	return n, nil
}

// ApplySubscriptionLimits re-reads the user's effective subscription and
// reconciles the featured flags of their subscription tools. With force false
// a downgrade leaves everything in place until the period ends. A forced
// downgrade that removes tools also reopens the manual selection window.
func (s *Service) ApplySubscriptionLimits(ctx context.Context, userID string, force bool) (*LimitsResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserRequired
	}

	sub, err := s.EffectiveSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load effective subscription: %w", err)
	}

	info := PlanInfo{}
	limit := 0
	if sub != nil {
		if _, err := s.CleanupIncomplete(ctx, userID); err != nil {
			log.Warnf("[Billing] Failed to clean incomplete subscriptions for user %s: %v", userID, err)
		}
		limit = entitlements.LimitFor(sub.Plan)
		info = PlanInfo{Name: sub.Plan, Limit: limit, IsActive: true}
	}

	tools, err := s.tools.ListByOwnerAndOrigin(ctx, userID, models.OriginSubscription)
	if err != nil {
		return nil, fmt.Errorf("load subscription tools: %w", err)
	}
	states := make([]quota.ToolState, 0, len(tools))
	current := 0
	for _, t := range tools {
		states = append(states, quota.ToolState{ID: t.ID, Featured: t.Featured, CreatedAt: t.CreatedAt})
		if t.Featured {
			current++
		}
	}

	plan := quota.Reconcile(states, current, limit, force)

	if len(plan.Deactivate) > 0 {
		if _, err := s.tools.SetSubscriptionFeatured(ctx, userID, plan.Deactivate, false); err != nil {
			return nil, fmt.Errorf("deactivate tools: %w", err)
		}
	}
	if len(plan.Activate) > 0 {
		if _, err := s.tools.SetSubscriptionFeatured(ctx, userID, plan.Activate, true); err != nil {
			return nil, fmt.Errorf("activate tools: %w", err)
		}
	}

	result := &LimitsResult{
		Success:          true,
		Action:           plan.Action,
		Limit:            limit,
		AffectedTools:    plan.AffectedTools(),
		ActivatedCount:   plan.FinalActive,
		DeactivatedCount: plan.NetDeactivated,
		PlanInfo:         info,
	}
	if force && plan.NetDeactivated > 0 {
		if err := s.users.SetLastToolSelectionAt(ctx, userID, nil); err != nil {
			return nil, fmt.Errorf("reset tool selection: %w", err)
		}
		result.SelectionReset = true
	}

	if plan.Deferred {
		log.Infof("[Billing] Downgrade detected for user %s (%d active, limit %d), deferred to period end", userID, current, limit)
	} else {
		log.Infof("[Billing] Applied limits for user %s: action=%s limit=%d activated=%d deactivated=%d",
			userID, plan.Action, limit, len(plan.Activate), len(plan.Deactivate))
	}
	s.metrics.RecordReconciliation(string(plan.Action), force, len(plan.Activate), len(plan.Deactivate))
	return result, nil
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := strings.ToLower(strings.TrimSpace(in.Provider))
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		ObjectID:        strings.TrimSpace(in.ObjectID),
		PayloadJSON:     in.PayloadJSON,
	}
	return s.repo.CreateWebhookEventIfNotExists(ctx, event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo.MarkWebhookProcessed(ctx, webhookEventID, errMsg)
}
