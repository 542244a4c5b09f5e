package advertising

import (
	"errors"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
)

var (
	ErrPaymentNotConfirmed     = errors.New("payment not completed")
	ErrMissingAdvertisementID  = errors.New("checkout session has no advertisement id")
	ErrAdvertisementNotFound   = errors.New("advertisement not found")
	ErrAdvertisementNotPending = errors.New("only pending advertisements can be deleted")
)

const maxDuration = 365

// CreateRequest books an advertisement. Exactly one of ToolID, BoostToolID
// and ToolData is set.
type CreateRequest struct {
	ToolID      string             `json:"tool_id"`
	BoostToolID string             `json:"boost_tool_id"`
	ToolData    *catalog.ToolInput `json:"tool_data" validate:"-"`
	Placement   models.Placement   `json:"placement" validate:"required,oneof=homepage all"`
	StartDate   time.Time          `json:"start_date"`
	Duration    int                `json:"duration" validate:"required,min=1,max=365"`
	SuccessURL  string             `json:"-"`
	CancelURL   string             `json:"-"`
}

func (r CreateRequest) sources() int {
	n := 0
	if r.ToolID != "" {
		n++
	}
	if r.BoostToolID != "" {
		n++
	}
	if r.ToolData != nil {
		n++
	}
	return n
}

// CreateResult is returned to the client that starts an advertisement checkout.
type CreateResult struct {
	Success         bool                `json:"success"`
	AdvertisementID string              `json:"advertisement_id,omitempty"`
	ToolID          string              `json:"tool_id,omitempty"`
	SessionID       string              `json:"session_id,omitempty"`
	URL             string              `json:"url,omitempty"`
	Quote           *entitlements.Quote `json:"quote,omitempty"`
	Error           string              `json:"error,omitempty"`
}

// ConfirmResult reports a payment confirmation.
type ConfirmResult struct {
	Success          bool   `json:"success"`
	AdvertisementID  string `json:"advertisement_id"`
	ToolID           string `json:"tool_id"`
	AlreadyProcessed bool   `json:"already_processed"`
}

type SweepItemType string

const (
	ItemDisabled        SweepItemType = "advertisement_disabled"
	ItemSkipped         SweepItemType = "boosted_subscription_skipped"
	ItemAlreadyDisabled SweepItemType = "already_disabled"
	ItemError           SweepItemType = "error"
)

// SweepItem is the outcome for one due advertisement.
type SweepItem struct {
	AdvertisementID string        `json:"advertisement_id"`
	ToolID          string        `json:"tool_id"`
	Type            SweepItemType `json:"type"`
	Error           string        `json:"error,omitempty"`
}

// ExpiryReport summarises one advertisement expiry sweep.
type ExpiryReport struct {
	Processed       int         `json:"processed"`
	Disabled        int         `json:"disabled"`
	Skipped         int         `json:"skipped"`
	AlreadyDisabled int         `json:"already_disabled"`
	Errors          int         `json:"errors"`
	Results         []SweepItem `json:"results"`
}

func (r *ExpiryReport) add(item SweepItem) {
	switch item.Type {
	case ItemDisabled:
		r.Disabled++
	case ItemSkipped:
		r.Skipped++
	case ItemAlreadyDisabled:
		r.AlreadyDisabled++
	case ItemError:
		r.Errors++
	}
	r.Results = append(r.Results, item)
}

// UserAdvertisement is a campaign as shown to its owner.
type UserAdvertisement struct {
	models.ToolAdvertisement
	ToolName         string `json:"tool_name"`
	OriginalToolName string `json:"original_tool_name,omitempty"`
	IsBoost          bool   `json:"is_boost"`
}
