package entitlements

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ManuelReschke/ToolFox/app/models"
)

// Tier groups the monthly and yearly variant of a plan.
type Tier string

const (
	TierStarter Tier = "starter"
	TierPlus    Tier = "plus"
	TierMax     Tier = "max"
)

const (
	PlanStarterMonthly = "starter-monthly"
	PlanStarterYearly  = "starter-yearly"
	PlanPlusMonthly    = "plus-monthly"
	PlanPlusYearly     = "plus-yearly"
	PlanMaxMonthly     = "max-monthly"
	PlanMaxYearly      = "max-yearly"
)

// Entry describes one purchasable plan. Prices are in cents.
type Entry struct {
	Plan         string `json:"plan"`
	Tier         Tier   `json:"tier"`
	Interval     string `json:"interval"`
	Limit        int    `json:"limit"`
	MonthlyPrice int64  `json:"monthly_price"`
	YearlyPrice  int64  `json:"yearly_price"`
}

// Price returns the amount charged per billing interval.
func (e Entry) Price() int64 {
	if e.Interval == models.BillingIntervalYear {
		return e.YearlyPrice
	}
	return e.MonthlyPrice
}

type tierInfo struct {
	name         string
	limit        int
	monthlyPrice int64
	yearlyPrice  int64
}

var tiers = map[Tier]tierInfo{
	TierStarter: {name: "Starter", limit: 1, monthlyPrice: 500, yearlyPrice: 5000},
	TierPlus:    {name: "Plus", limit: 5, monthlyPrice: 900, yearlyPrice: 9000},
	TierMax:     {name: "Max", limit: 10, monthlyPrice: 1500, yearlyPrice: 15000},
}

var registry = buildRegistry()

func buildRegistry() map[string]Entry {
	out := make(map[string]Entry, len(tiers)*2)
	for tier, info := range tiers {
		for _, interval := range []string{models.BillingIntervalMonth, models.BillingIntervalYear} {
			plan := planName(tier, interval)
			out[plan] = Entry{
				Plan:         plan,
				Tier:         tier,
				Interval:     interval,
				Limit:        info.limit,
				MonthlyPrice: info.monthlyPrice,
				YearlyPrice:  info.yearlyPrice,
			}
		}
	}
	return out
}

func planName(tier Tier, interval string) string {
	if interval == models.BillingIntervalYear {
		return string(tier) + "-yearly"
	}
	return string(tier) + "-monthly"
}

// Normalize lowercases and trims a plan identifier.
func Normalize(plan string) string {
	return strings.ToLower(strings.TrimSpace(plan))
}

// Lookup returns the registry entry for a plan identifier.
func Lookup(plan string) (Entry, bool) {
	e, ok := registry[Normalize(plan)]
	return e, ok
}

// IsKnown reports whether the plan identifier exists in the registry.
func IsKnown(plan string) bool {
	_, ok := Lookup(plan)
	return ok
}

// LimitFor returns the tool-slot limit of a plan. Unknown plans get 0.
func LimitFor(plan string) int {
	e, ok := Lookup(plan)
	if !ok {
		return 0
	}
	return e.Limit
}

// PriceFor returns the price in cents charged per interval, 0 when unknown.
func PriceFor(plan string) int64 {
	e, ok := Lookup(plan)
	if !ok {
		return 0
	}
	return e.Price()
}

// Plans lists every registry entry ordered by limit and interval.
func Plans() []Entry {
	out := make([]Entry, 0, len(registry))
	for _, e := range registry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Limit != out[j].Limit {
			return out[i].Limit < out[j].Limit
		}
		return out[i].Interval < out[j].Interval
	})
	return out
}

// DisplayName returns the human tier name ("Plus") for a plan identifier.
func DisplayName(plan string) string {
	if e, ok := Lookup(plan); ok {
		return tiers[e.Tier].name
	}
	p := Normalize(plan)
	if p == "" {
		return "Free"
	}
	tier := p
	if idx := strings.Index(p, "-"); idx > 0 {
		tier = p[:idx]
	}
	return strings.ToUpper(tier[:1]) + tier[1:]
}

// UpgradeMessage suggests the next tier for a given limit.
func UpgradeMessage(limit int) string {
	switch {
	case limit <= tiers[TierStarter].limit:
		return fmt.Sprintf("Upgrade to Plus (%d tools).", tiers[TierPlus].limit)
	case limit <= tiers[TierPlus].limit:
		return fmt.Sprintf("Upgrade to Max (%d tools).", tiers[TierMax].limit)
	default:
		return "Contact us for Enterprise plan."
	}
}

// LimitReachedMessage is shown when a user cannot add another featured tool.
func LimitReachedMessage(plan string, count, limit int) string {
	return fmt.Sprintf("%s plan limit reached (%d/%d tools). %s", DisplayName(plan), count, limit, UpgradeMessage(limit))
}

const maxAdvertisementDiscount = 30

var dailyRates = map[models.Placement]int64{
	models.PlacementAll:      500,
	models.PlacementHomepage: 400,
}

// DailyRate returns the per-day advertisement price in cents.
func DailyRate(placement models.Placement) int64 {
	return dailyRates[placement]
}

// AdvertisementDiscount is 1% per day beyond the first, capped at 30%.
func AdvertisementDiscount(days int) int {
	d := days - 1
	if d < 0 {
		d = 0
	}
	if d > maxAdvertisementDiscount {
		d = maxAdvertisementDiscount
	}
	return d
}

// Quote is the server-side price of an advertisement booking.
type Quote struct {
	Placement          models.Placement `json:"placement"`
	Duration           int              `json:"duration"`
	DailyRate          int64            `json:"daily_rate"`
	Subtotal           int64            `json:"subtotal"`
	DiscountPercentage int              `json:"discount_percentage"`
	TotalPrice         int64            `json:"total_price"`
}

// UnitAmount is the per-day line item amount sent to checkout.
func (q Quote) UnitAmount() int64 {
	if q.Duration <= 0 {
		return 0
	}
	return int64(math.Round(float64(q.TotalPrice) / float64(q.Duration)))
}

// QuoteAdvertisement prices a booking of days for a placement.
func QuoteAdvertisement(placement models.Placement, days int) (Quote, error) {
	if !placement.Valid() {
		return Quote{}, fmt.Errorf("unknown placement %q", placement)
	}
	if days < 1 {
		return Quote{}, fmt.Errorf("duration must be at least one day")
	}
	rate := DailyRate(placement)
	subtotal := rate * int64(days)
	discount := AdvertisementDiscount(days)
	total := int64(math.Round(float64(subtotal) * float64(100-discount) / 100))
	return Quote{
		Placement:          placement,
		Duration:           days,
		DailyRate:          rate,
		Subtotal:           subtotal,
		DiscountPercentage: discount,
		TotalPrice:         total,
	}, nil
}
