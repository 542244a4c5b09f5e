package advertising

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/ToolFox/app/models"
)

// ExpireSweep expires advertisements whose end date has passed. Only
// advertisement-origin tools lose their featured flag; subscription tools
// are left to the quota. Abandoned pending checkouts are closed without
// touching the tool. A failing item is reported and the sweep continues.
func (m *Manager) ExpireSweep(ctx context.Context) (*ExpiryReport, error) {
	now := m.now()
	due, err := m.ads.ListDueForExpiry(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list due advertisements: %w", err)
	}

	report := &ExpiryReport{Processed: len(due), Results: []SweepItem{}}
	for _, ad := range due {
		item, err := m.expire(ctx, ad)
		if err != nil {
			log.Errorf("[Advertising] Failed to expire advertisement %s: %v", ad.ID, err)
			item = SweepItem{AdvertisementID: ad.ID, ToolID: ad.ToolID, Type: ItemError, Error: err.Error()}
		}
		report.add(item)
		m.metrics.RecordSweepItem("advertisements", string(item.Type))
	}

	log.Infof("[Advertising] Expiry sweep: %d due, %d disabled, %d skipped, %d already disabled, %d errors",
		report.Processed, report.Disabled, report.Skipped, report.AlreadyDisabled, report.Errors)
	return report, nil
}

func (m *Manager) expire(ctx context.Context, ad models.ToolAdvertisement) (SweepItem, error) {
	item := SweepItem{AdvertisementID: ad.ID, ToolID: ad.ToolID}

	tool := ad.Tool
	if tool == nil {
		t, err := m.tools.GetByID(ctx, ad.ToolID)
		if err != nil {
			return item, fmt.Errorf("load tool %s: %w", ad.ToolID, err)
		}
		tool = t
	}
	if tool.IsSubscriptionOrigin() {
		item.Type = ItemSkipped
		return item, nil
	}
	if ad.Status == models.AdvertisementPending {
		if _, err := m.ads.TransitionStatus(ctx, ad.ID, models.AdvertisementPending, models.AdvertisementExpired); err != nil {
			return item, err
		}
		item.Type = ItemAlreadyDisabled
		return item, nil
	}

	ok, err := m.ads.TransitionStatus(ctx, ad.ID, models.AdvertisementActive, models.AdvertisementExpired)
	if err != nil {
		return item, err
	}
	if !ok || !tool.Featured {
		item.Type = ItemAlreadyDisabled
		return item, nil
	}
	m.metrics.RecordAdvertisementTransition(string(models.AdvertisementExpired))

	live, err := m.ads.CountLiveForTool(ctx, tool.ID, m.now())
	if err != nil {
		return item, err
	}
	if live == 0 {
		if err := m.tools.SetAdvertisementFeatured(ctx, tool.ID, false); err != nil {
			return item, err
		}
	}
	item.Type = ItemDisabled
	return item, nil
}
