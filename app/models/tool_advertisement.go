package models

import (
	"errors"
	"time"
)

// AdvertisementStatus is the lifecycle state of a paid placement.
type AdvertisementStatus string

const (
	AdvertisementPending AdvertisementStatus = "pending"
	AdvertisementActive  AdvertisementStatus = "active"
	AdvertisementExpired AdvertisementStatus = "expired"
)

// Placement is where an advertisement is shown.
type Placement string

const (
	PlacementHomepage Placement = "homepage"
	PlacementAll      Placement = "all"
)

func (p Placement) Valid() bool {
	return p == PlacementHomepage || p == PlacementAll
}

// ErrInvalidTransition is returned for a status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid advertisement status transition")

var advertisementTransitions = map[AdvertisementStatus][]AdvertisementStatus{
	AdvertisementPending: {AdvertisementActive, AdvertisementExpired},
	AdvertisementActive:  {AdvertisementExpired},
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// A pending row expires only when its checkout was abandoned past the end date.
func (s AdvertisementStatus) CanTransitionTo(next AdvertisementStatus) bool {
	for _, allowed := range advertisementTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ToolAdvertisement struct {
	ID                 string              `gorm:"primaryKey;type:varchar(191)" json:"id"`
	ToolID             string              `gorm:"type:varchar(191);not null;index" json:"tool_id"`
	Tool               *Tool               `gorm:"foreignKey:ToolID;constraint:OnDelete:CASCADE" json:"tool,omitempty"`
	StartDate          time.Time           `gorm:"not null" json:"start_date"`
	EndDate            time.Time           `gorm:"not null;index" json:"end_date"`
	Placement          Placement           `gorm:"type:varchar(20);not null;default:'all'" json:"placement"`
	Status             AdvertisementStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	StripeSessionID    string              `gorm:"type:varchar(191);default:null;index" json:"-"`
	TotalPrice         int64               `gorm:"not null" json:"total_price"`
	Duration           int                 `gorm:"not null" json:"duration"`
	DiscountPercentage int                 `gorm:"default:0" json:"discount_percentage"`
	CreatedAt          time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsLive reports whether the campaign is running. Status alone decides; the
// booked dates are informational until the expiry sweep acts on them.
func (a *ToolAdvertisement) IsLive() bool {
	return a.Status == AdvertisementActive
}
