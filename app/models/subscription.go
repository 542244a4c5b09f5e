package models

import "time"

const (
	BillingIntervalMonth   = "month"
	BillingIntervalYear    = "year"
	BillingIntervalUnknown = "unknown"
)

const (
	BillingStatusActive            = "active"
	BillingStatusTrialing          = "trialing"
	BillingStatusPastDue           = "past_due"
	BillingStatusCanceled          = "canceled"
	BillingStatusIncomplete        = "incomplete"
	BillingStatusIncompleteExpired = "incomplete_expired"
	BillingStatusUnpaid            = "unpaid"
	BillingStatusPaused            = "paused"
)

// Subscription mirrors a Stripe subscription for one user (ReferenceID).
type Subscription struct {
	ID                   string     `gorm:"primaryKey;type:varchar(191)" json:"id"`
	Plan                 string     `gorm:"type:varchar(50);not null;index" json:"plan"`
	ReferenceID          string     `gorm:"type:varchar(191);not null;index:idx_subscriptions_reference_status,priority:1" json:"reference_id"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:null;index" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string    `gorm:"type:varchar(191);default:null;uniqueIndex" json:"stripe_subscription_id,omitempty"`
	StripePriceID        string     `gorm:"type:varchar(191);default:null" json:"stripe_price_id,omitempty"`
	Status               string     `gorm:"type:varchar(32);not null;default:'incomplete';index:idx_subscriptions_reference_status,priority:2;index" json:"status"`
	PeriodStart          *time.Time `gorm:"type:timestamp;default:null" json:"period_start,omitempty"`
	PeriodEnd            *time.Time `gorm:"type:timestamp;default:null;index" json:"period_end,omitempty"`
	CancelAtPeriodEnd    *bool      `gorm:"default:null" json:"cancel_at_period_end,omitempty"`
	Seats                *int       `gorm:"default:null" json:"seats,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// CancelsAtPeriodEnd treats a null flag as false.
func (s *Subscription) CancelsAtPeriodEnd() bool {
	return s.CancelAtPeriodEnd != nil && *s.CancelAtPeriodEnd
}

// IsEffective reports whether the row is the one entitlements are read from.
func (s *Subscription) IsEffective() bool {
	return s.Status == BillingStatusActive && !s.CancelsAtPeriodEnd()
}

// PeriodEnded reports whether the current billing period is over at now.
func (s *Subscription) PeriodEnded(now time.Time) bool {
	return s.PeriodEnd != nil && !s.PeriodEnd.After(now)
}
