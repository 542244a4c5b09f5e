package billing

import (
	"time"

	"github.com/ManuelReschke/ToolFox/internal/pkg/quota"
)

const ProviderStripe = "stripe"

// NormalizedSubscription is the provider-agnostic shape used by the billing
// service when syncing external subscription state into local tables.
type NormalizedSubscription struct {
	UserID               string
	StripeCustomerID     string
	StripeSubscriptionID string
	PriceID              string
	// Plan is used when set and known, otherwise PriceID is resolved.
	Plan              string
	Status            string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	Seats             *int
}

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	Provider        string
	ProviderEventID string
	EventType       string
	ObjectID        string
	PayloadJSON     string
}

// PlanInfo describes the plan a reconciliation ran against.
type PlanInfo struct {
	Name     string `json:"name"`
	Limit    int    `json:"limit"`
	IsActive bool   `json:"is_active"`
}

// LimitsResult is returned by ApplySubscriptionLimits.
type LimitsResult struct {
	Success          bool         `json:"success"`
	Action           quota.Action `json:"action"`
	Limit            int          `json:"limit"`
	AffectedTools    int          `json:"affected_tools"`
	ActivatedCount   int          `json:"activated_count"`
	DeactivatedCount int          `json:"deactivated_count"`
	SelectionReset   bool         `json:"selection_reset"`
	PlanInfo         PlanInfo     `json:"plan_info"`
}

const (
	SweepItemExpired   = "expired"
	SweepItemDowngrade = "downgrade"
	SweepItemError     = "error"
)

// SweepItem reports the outcome for one subscription row in the expiry sweep.
type SweepItem struct {
	UserID           string       `json:"user_id"`
	SubscriptionID   string       `json:"subscription_id"`
	Plan             string       `json:"plan"`
	Type             string       `json:"type"`
	Success          bool         `json:"success"`
	Action           quota.Action `json:"action,omitempty"`
	DeactivatedTools int          `json:"deactivated_tools"`
	Error            string       `json:"error,omitempty"`
}

// ExpiryReport summarizes one run of CheckExpiredSubscriptions.
type ExpiryReport struct {
	Expired    int         `json:"expired"`
	Downgrades int         `json:"downgrades"`
	Errors     int         `json:"errors"`
	Results    []SweepItem `json:"results"`
}

func (r *ExpiryReport) add(item SweepItem) {
	r.Results = append(r.Results, item)
	if !item.Success {
		r.Errors++
		return
	}
	switch item.Type {
	case SweepItemExpired:
		r.Expired++
	case SweepItemDowngrade:
		r.Downgrades++
	}
}
