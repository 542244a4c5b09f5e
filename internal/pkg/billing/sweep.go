package billing

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
)

// CheckExpiredSubscriptions ends canceled subscriptions whose period is over
// and enforces pending downgrades. Item failures are reported, not returned.
func (s *Service) CheckExpiredSubscriptions(ctx context.Context) (*ExpiryReport, error) {
	now := s.now()
	report := &ExpiryReport{Results: []SweepItem{}}

	canceling, err := s.repo.ListCancelingEnded(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list expired subscriptions: %w", err)
	}
	for _, sub := range canceling {
		item := s.expireSubscription(ctx, sub)
		report.add(item)
		s.metrics.RecordSweepItem("subscriptions", item.Type)
	}

	ended, err := s.repo.ListActiveEnded(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list ended subscriptions: %w", err)
	}
	for _, sub := range ended {
		item, ok := s.enforceDowngrade(ctx, sub)
		if !ok {
			continue
		}
		report.add(item)
		s.metrics.RecordSweepItem("subscriptions", item.Type)
	}

	log.Infof("[Billing] Expiry sweep: %d expired, %d downgrades, %d errors", report.Expired, report.Downgrades, report.Errors)
	return report, nil
}

func (s *Service) expireSubscription(ctx context.Context, sub models.Subscription) SweepItem {
	item := SweepItem{
		UserID:         sub.ReferenceID,
		SubscriptionID: sub.ID,
		Plan:           sub.Plan,
		Type:           SweepItemExpired,
	}

	n, err := s.tools.SetAllSubscriptionFeatured(ctx, sub.ReferenceID, false)
	if err != nil {
		log.Errorf("[Billing] Failed to deactivate tools of user %s: %v", sub.ReferenceID, err)
		item.Type = SweepItemError
		item.Error = err.Error()
		return item
	}
	if err := s.repo.UpdateSubscriptionStatus(ctx, sub.ID, models.BillingStatusCanceled); err != nil {
		log.Errorf("[Billing] Failed to cancel subscription %s: %v", sub.ID, err)
		item.Type = SweepItemError
		item.Error = err.Error()
		return item
	}

	item.Success = true
	item.DeactivatedTools = int(n)
	log.Infof("[Billing] Subscription %s of user %s expired, %d tool(s) deactivated", sub.ID, sub.ReferenceID, n)
	return item
}

// enforceDowngrade forces the plan limit once a period is over. ok is false
// when nothing needed to be done.
func (s *Service) enforceDowngrade(ctx context.Context, sub models.Subscription) (SweepItem, bool) {
	item := SweepItem{
		UserID:         sub.ReferenceID,
		SubscriptionID: sub.ID,
		Plan:           sub.Plan,
		Type:           SweepItemDowngrade,
	}

	limit := entitlements.LimitFor(sub.Plan)
	if sub.Plan == "" || limit == 0 {
		log.Warnf("[Billing] Skipping subscription %s with unknown plan %q", sub.ID, sub.Plan)
		return item, false
	}

	active, err := s.tools.CountFeatured(ctx, sub.ReferenceID, models.OriginSubscription)
	if err != nil {
		item.Type = SweepItemError
		item.Error = err.Error()
		return item, true
	}
	if int(active) <= limit {
		return item, false
	}

	res, err := s.ApplySubscriptionLimits(ctx, sub.ReferenceID, true)
	if err != nil {
		log.Errorf("[Billing] Forced downgrade failed for user %s: %v", sub.ReferenceID, err)
		item.Type = SweepItemError
		item.Error = err.Error()
		return item, true
	}

	item.Success = true
	item.Action = res.Action
	item.DeactivatedTools = res.DeactivatedCount
	return item, true
}
