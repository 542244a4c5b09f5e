package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdvertisementStatusTransitions(t *testing.T) {
	tests := []struct {
		from AdvertisementStatus
		to   AdvertisementStatus
		ok   bool
	}{
		{AdvertisementPending, AdvertisementActive, true},
		{AdvertisementActive, AdvertisementExpired, true},
		{AdvertisementPending, AdvertisementExpired, true},
		{AdvertisementExpired, AdvertisementPending, false},
		{AdvertisementExpired, AdvertisementActive, false},
		{AdvertisementActive, AdvertisementPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestAdvertisementIsLiveFollowsStatus(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	ad := &ToolAdvertisement{
		Status:    AdvertisementActive,
		StartDate: now.AddDate(0, 0, 1),
		EndDate:   now.AddDate(0, 0, 8),
	}
	assert.True(t, ad.IsLive(), "paid campaign starting tomorrow")

	ad.StartDate, ad.EndDate = now.AddDate(0, 0, -8), now.AddDate(0, 0, -1)
	assert.True(t, ad.IsLive(), "overdue campaign stays live until swept")

	ad.Status = AdvertisementPending
	assert.False(t, ad.IsLive())
	ad.Status = AdvertisementExpired
	assert.False(t, ad.IsLive())
}

func TestSubscriptionIsEffective(t *testing.T) {
	yes, no := true, false

	assert.True(t, (&Subscription{Status: BillingStatusActive}).IsEffective())
	assert.True(t, (&Subscription{Status: BillingStatusActive, CancelAtPeriodEnd: &no}).IsEffective())
	assert.False(t, (&Subscription{Status: BillingStatusActive, CancelAtPeriodEnd: &yes}).IsEffective())
	assert.False(t, (&Subscription{Status: BillingStatusIncomplete}).IsEffective())
}

func TestSubscriptionPeriodEnded(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.False(t, (&Subscription{}).PeriodEnded(now))
	assert.True(t, (&Subscription{PeriodEnd: &past}).PeriodEnded(now))
	assert.True(t, (&Subscription{PeriodEnd: &now}).PeriodEnded(now))
	assert.False(t, (&Subscription{PeriodEnd: &future}).PeriodEnded(now))
}

func TestBoostToolIdentity(t *testing.T) {
	assert.Equal(t, "tool_1_ad", BoostToolID("tool_1"))
	assert.Equal(t, "my-tool-ad", BoostToolSlug("my-tool"))
}

func TestUserIsBanned(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&User{}).IsBanned(now))
	assert.True(t, (&User{Banned: true}).IsBanned(now))
	assert.True(t, (&User{Banned: true, BanExpires: &future}).IsBanned(now))
	assert.False(t, (&User{Banned: true, BanExpires: &past}).IsBanned(now))
}
