package billing

import (
	"strings"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
)

func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case models.BillingStatusActive,
		models.BillingStatusTrialing,
		models.BillingStatusPastDue,
		models.BillingStatusCanceled,
		models.BillingStatusIncomplete,
		models.BillingStatusIncompleteExpired,
		models.BillingStatusUnpaid,
		models.BillingStatusPaused:
		return s
	case "":
		return models.BillingStatusActive
	default:
		return models.BillingStatusIncomplete
	}
}

// pickEffective chooses the row entitlements are read from among active rows,
// most recently updated first. A row not flagged to cancel wins. A row flagged
// to cancel still counts until its paid period ends.
func pickEffective(active []models.Subscription, now time.Time) *models.Subscription {
	for i := range active {
		if active[i].IsEffective() {
			return &active[i]
		}
	}
	for i := range active {
		s := &active[i]
		if s.Status == models.BillingStatusActive && s.CancelsAtPeriodEnd() && !s.PeriodEnded(now) {
			return s
		}
	}
	return nil
}
