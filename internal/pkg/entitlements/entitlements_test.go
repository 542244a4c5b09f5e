package entitlements

import (
	"testing"

	"github.com/ManuelReschke/ToolFox/app/models"
)

func TestLimitFor(t *testing.T) {
	tests := []struct {
		plan string
		want int
	}{
		{plan: "starter-monthly", want: 1},
		{plan: "starter-yearly", want: 1},
		{plan: "plus-monthly", want: 5},
		{plan: "plus-yearly", want: 5},
		{plan: "max-monthly", want: 10},
		{plan: "MAX-YEARLY", want: 10},
		{plan: " plus-monthly ", want: 5},
		{plan: "enterprise", want: 0},
		{plan: "", want: 0},
	}

	for _, tt := range tests {
		if got := LimitFor(tt.plan); got != tt.want {
			t.Fatalf("LimitFor(%q) = %d, want %d", tt.plan, got, tt.want)
		}
	}
}

func TestPriceFor(t *testing.T) {
	tests := []struct {
		plan string
		want int64
	}{
		{plan: PlanStarterMonthly, want: 500},
		{plan: PlanStarterYearly, want: 5000},
		{plan: PlanPlusMonthly, want: 900},
		{plan: PlanPlusYearly, want: 9000},
		{plan: PlanMaxMonthly, want: 1500},
		{plan: PlanMaxYearly, want: 15000},
		{plan: "gold", want: 0},
	}

	for _, tt := range tests {
		if got := PriceFor(tt.plan); got != tt.want {
			t.Fatalf("PriceFor(%q) = %d, want %d", tt.plan, got, tt.want)
		}
	}
}

func TestPlansOrdered(t *testing.T) {
	plans := Plans()
	if len(plans) != 6 {
		t.Fatalf("expected 6 plans, got %d", len(plans))
	}
	for i := 1; i < len(plans); i++ {
		if plans[i-1].Limit > plans[i].Limit {
			t.Fatalf("plans not ordered by limit: %+v", plans)
		}
	}
}

func TestUpgradeMessage(t *testing.T) {
	if got := UpgradeMessage(1); got != "Upgrade to Plus (5 tools)." {
		t.Fatalf("unexpected message for starter: %q", got)
	}
	if got := UpgradeMessage(5); got != "Upgrade to Max (10 tools)." {
		t.Fatalf("unexpected message for plus: %q", got)
	}
	if got := UpgradeMessage(10); got != "Contact us for Enterprise plan." {
		t.Fatalf("unexpected message for max: %q", got)
	}
}

func TestLimitReachedMessage(t *testing.T) {
	want := "Starter plan limit reached (1/1 tools). Upgrade to Plus (5 tools)."
	if got := LimitReachedMessage(PlanStarterMonthly, 1, 1); got != want {
		t.Fatalf("LimitReachedMessage = %q, want %q", got, want)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("plus-yearly"); got != "Plus" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := DisplayName("gold-monthly"); got != "Gold" {
		t.Fatalf("DisplayName for unknown = %q", got)
	}
	if got := DisplayName(""); got != "Free" {
		t.Fatalf("DisplayName for empty = %q", got)
	}
}

func TestAdvertisementDiscount(t *testing.T) {
	tests := []struct {
		days int
		want int
	}{
		{days: 0, want: 0},
		{days: 1, want: 0},
		{days: 2, want: 1},
		{days: 7, want: 6},
		{days: 31, want: 30},
		{days: 90, want: 30},
	}

	for _, tt := range tests {
		if got := AdvertisementDiscount(tt.days); got != tt.want {
			t.Fatalf("AdvertisementDiscount(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

func TestQuoteAdvertisement(t *testing.T) {
	q, err := QuoteAdvertisement(models.PlacementAll, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Subtotal != 3500 || q.DiscountPercentage != 6 || q.TotalPrice != 3290 {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if q.UnitAmount() != 470 {
		t.Fatalf("unexpected unit amount: %d", q.UnitAmount())
	}

	q, err = QuoteAdvertisement(models.PlacementHomepage, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.TotalPrice != 400 {
		t.Fatalf("unexpected homepage total: %d", q.TotalPrice)
	}

	if _, err := QuoteAdvertisement("sidebar", 3); err == nil {
		t.Fatalf("expected error for unknown placement")
	}
	if _, err := QuoteAdvertisement(models.PlacementAll, 0); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}
