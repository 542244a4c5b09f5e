package advertising

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository/memory"
	"github.com/ManuelReschke/ToolFox/internal/pkg/catalog"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment/paymenttest"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type noPlan struct{}

func (noPlan) EffectivePlan(context.Context, string) (string, int, error) { return "", 0, nil }

type fixture struct {
	store   *memory.Store
	gateway *paymenttest.Gateway
	manager *Manager
	user    *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	clock := func() time.Time { return testNow }
	cat := catalog.NewService(repos, noPlan{}).WithClock(clock)
	gw := paymenttest.New()
	user := &models.User{ID: "u1", StripeCustomerID: "cus_1"}
	store.PutUser(*user)
	return &fixture{
		store:   store,
		gateway: gw,
		manager: NewManager(repos, cat, gw, WithClock(clock), WithMetrics(metrics.New()), WithCurrency("usd")),
		user:    user,
	}
}

func (f *fixture) activeAd(id, toolID string, placement models.Placement, start, end time.Time) {
	f.store.PutAdvertisement(models.ToolAdvertisement{
		ID: id, ToolID: toolID, Placement: placement, Status: models.AdvertisementActive,
		StartDate: start, EndDate: end, Duration: 1,
	})
}

func TestCreateWithNewToolData(t *testing.T) {
	f := newFixture(t)

	res, err := f.manager.Create(context.Background(), f.user, CreateRequest{
		ToolData:  &catalog.ToolInput{Name: "Fox Ads", URL: "https://foxads.io", LogoURL: "https://foxads.io/logo.png"},
		Placement: models.PlacementAll,
		Duration:  7,
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	ad, ok := f.store.Advertisement(res.AdvertisementID)
	require.True(t, ok)
	assert.Equal(t, models.AdvertisementPending, ad.Status)
	assert.Equal(t, int64(3290), ad.TotalPrice)
	assert.Equal(t, 6, ad.DiscountPercentage)
	assert.Equal(t, testNow.AddDate(0, 0, 7), ad.EndDate)
	assert.Equal(t, res.SessionID, ad.StripeSessionID)

	tool, ok := f.store.Tool(res.ToolID)
	require.True(t, ok)
	assert.Equal(t, models.OriginAdvertisement, tool.Origin)
	assert.False(t, tool.Featured)

	require.Len(t, f.gateway.AdCheckouts, 1)
	checkout := f.gateway.AdCheckouts[0]
	assert.Equal(t, int64(470), checkout.UnitAmount)
	assert.Equal(t, "cus_1", checkout.CustomerID)
	assert.Equal(t, res.AdvertisementID, checkout.Metadata()[payment.MetaAdvertisementID])
}

func TestCreateRejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	f.store.PutTool(models.Tool{ID: "sub", Slug: "sub", SubmittedBy: "u1"})

	tests := []struct {
		name string
		req  CreateRequest
		want string
	}{
		{"no source", CreateRequest{Placement: models.PlacementAll, Duration: 3}, "Provide exactly one of tool_id, boost_tool_id or tool_data"},
		{"two sources", CreateRequest{ToolID: "a", BoostToolID: "b", Placement: models.PlacementAll, Duration: 3}, "Provide exactly one of tool_id, boost_tool_id or tool_data"},
		{"bad placement", CreateRequest{ToolID: "sub", Placement: "sidebar", Duration: 3}, "Invalid placement or duration"},
		{"zero duration", CreateRequest{ToolID: "sub", Placement: models.PlacementAll}, "Invalid placement or duration"},
		{"past start", CreateRequest{ToolID: "sub", Placement: models.PlacementAll, Duration: 3, StartDate: testNow.AddDate(0, 0, -2)}, "Start date cannot be in the past"},
		{"subscription tool", CreateRequest{ToolID: "sub", Placement: models.PlacementAll, Duration: 3}, "Subscription tools must be boosted to be advertised"},
		{"foreign tool", CreateRequest{ToolID: "missing", Placement: models.PlacementAll, Duration: 3}, "Tool not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.manager.Create(context.Background(), f.user, tt.req)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Error)
		})
	}
	assert.Empty(t, f.gateway.AdCheckouts)
}

func TestCreateBoostLeavesOriginalUntouched(t *testing.T) {
	f := newFixture(t)
	f.store.PutTool(models.Tool{ID: "c", Name: "Fox", Slug: "fox", SubmittedBy: "u1", Featured: true})

	res, err := f.manager.Create(context.Background(), f.user, CreateRequest{
		BoostToolID: "c", Placement: models.PlacementHomepage, Duration: 1,
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "c_ad", res.ToolID)
	assert.Equal(t, int64(400), res.Quote.TotalPrice)

	f.gateway.MarkPaid(res.SessionID)
	confirm, err := f.manager.ConfirmPayment(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.False(t, confirm.AlreadyProcessed)

	dup, _ := f.store.Tool("c_ad")
	assert.True(t, dup.Featured)
	orig, _ := f.store.Tool("c")
	assert.True(t, orig.Featured)
}

func TestCreateBoostRefusedWhileActive(t *testing.T) {
	f := newFixture(t)
	orig := "c"
	f.store.PutTool(models.Tool{ID: "c", Slug: "fox", SubmittedBy: "u1"})
	f.store.PutTool(models.Tool{ID: "c_ad", Slug: "fox-ad", SubmittedBy: "u1", Origin: models.OriginAdvertisement, BoostedFromID: &orig})
	f.activeAd("a1", "c_ad", models.PlacementAll, testNow.Add(-time.Hour), testNow.Add(time.Hour))

	res, err := f.manager.Create(context.Background(), f.user, CreateRequest{BoostToolID: "c", Placement: models.PlacementAll, Duration: 2})
	require.NoError(t, err)
	assert.Equal(t, "This tool already has an active advertisement", res.Error)
}

func TestCreateDropsPendingRowWhenCheckoutFails(t *testing.T) {
	f := newFixture(t)
	f.store.PutTool(models.Tool{ID: "ad", Slug: "ad", SubmittedBy: "u1", Origin: models.OriginAdvertisement})
	f.gateway.Err = errors.New("stripe unavailable")

	_, err := f.manager.Create(context.Background(), f.user, CreateRequest{ToolID: "ad", Placement: models.PlacementAll, Duration: 2})
	require.Error(t, err)

	ads, err := f.store.Repositories().Advertisement.CountActiveForTool(context.Background(), "ad")
	require.NoError(t, err)
	assert.Zero(t, ads)
	n, err := f.store.Repositories().Advertisement.DeletePendingForTool(context.Background(), "ad")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.PutTool(models.Tool{ID: "ad", Slug: "ad", SubmittedBy: "u1", Origin: models.OriginAdvertisement})
	res, err := f.manager.Create(context.Background(), f.user, CreateRequest{ToolID: "ad", Placement: models.PlacementAll, Duration: 3})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	f.gateway.MarkPaid(res.SessionID)
	first, err := f.manager.ConfirmPayment(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)

	ad, _ := f.store.Advertisement(res.AdvertisementID)
	assert.Equal(t, models.AdvertisementActive, ad.Status)
	tool, _ := f.store.Tool("ad")
	assert.True(t, tool.Featured)

	// an admin hides the tool between deliveries; a replay must not re-feature it
	require.NoError(t, f.store.Repositories().Tool.SetAdvertisementFeatured(context.Background(), "ad", false))

	second, err := f.manager.ConfirmPayment(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	tool, _ = f.store.Tool("ad")
	assert.False(t, tool.Featured)
}

func TestConfirmPaymentFailures(t *testing.T) {
	f := newFixture(t)
	f.gateway.Sessions["cs_unpaid"] = &payment.CheckoutSession{ID: "cs_unpaid", Metadata: map[string]string{payment.MetaAdvertisementID: "x"}}
	f.gateway.Sessions["cs_nometa"] = &payment.CheckoutSession{ID: "cs_nometa", PaymentStatus: payment.PaymentStatusPaid}
	f.gateway.Sessions["cs_gone"] = &payment.CheckoutSession{ID: "cs_gone", PaymentStatus: payment.PaymentStatusPaid, Metadata: map[string]string{payment.MetaAdvertisementID: "gone"}}

	_, err := f.manager.ConfirmPayment(context.Background(), "cs_unpaid")
	assert.ErrorIs(t, err, ErrPaymentNotConfirmed)
	_, err = f.manager.ConfirmPayment(context.Background(), "cs_nometa")
	assert.ErrorIs(t, err, ErrMissingAdvertisementID)
	_, err = f.manager.ConfirmPayment(context.Background(), "cs_gone")
	assert.ErrorIs(t, err, ErrAdvertisementNotFound)
	_, err = f.manager.ConfirmPayment(context.Background(), "cs_unknown")
	assert.Error(t, err)
}

func TestActiveAdvertisements(t *testing.T) {
	f := newFixture(t)
	f.store.PutTool(models.Tool{ID: "t1", Slug: "t1", Origin: models.OriginAdvertisement})
	f.store.PutTool(models.Tool{ID: "t2", Slug: "t2", Origin: models.OriginAdvertisement})
	f.activeAd("a-home", "t1", models.PlacementHomepage, testNow.Add(-2*time.Hour), testNow.Add(time.Hour))
	f.activeAd("a-all", "t2", models.PlacementAll, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	// paid and active, the booked window starts later
	f.activeAd("a-future", "t2", models.PlacementAll, testNow.Add(time.Hour), testNow.Add(48*time.Hour))
	f.store.PutAdvertisement(models.ToolAdvertisement{ID: "p-all", ToolID: "t2", Placement: models.PlacementAll,
		Status: models.AdvertisementPending, StartDate: testNow, EndDate: testNow.Add(time.Hour)})
	f.store.PutAdvertisement(models.ToolAdvertisement{ID: "x-all", ToolID: "t2", Placement: models.PlacementAll,
		Status: models.AdvertisementExpired, StartDate: testNow, EndDate: testNow.Add(time.Hour)})

	home, err := f.manager.ActiveAdvertisements(context.Background(), models.PlacementHomepage)
	require.NoError(t, err)
	require.Len(t, home, 3)
	assert.Equal(t, "a-future", home[0].ID)
	assert.Equal(t, "a-all", home[1].ID)
	assert.Equal(t, "a-home", home[2].ID)

	all, err := f.manager.ActiveAdvertisements(context.Background(), models.PlacementAll)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a-future", all[0].ID)
	assert.Equal(t, "a-all", all[1].ID)
}

func TestUserAdvertisementsNamesBoostOriginal(t *testing.T) {
	f := newFixture(t)
	orig := "c"
	f.store.PutTool(models.Tool{ID: "c", Name: "Fox", Slug: "fox", SubmittedBy: "u1"})
	f.store.PutTool(models.Tool{ID: "c_ad", Name: "Fox", Slug: "fox-ad", SubmittedBy: "u1", Origin: models.OriginAdvertisement, BoostedFromID: &orig})
	f.activeAd("a1", "c_ad", models.PlacementAll, testNow, testNow.Add(time.Hour))
	f.store.PutAdvertisement(models.ToolAdvertisement{ID: "p1", ToolID: "c_ad", Status: models.AdvertisementPending})

	ads, err := f.manager.UserAdvertisements(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, ads, 1)
	assert.True(t, ads[0].IsBoost)
	assert.Equal(t, "Fox", ads[0].OriginalToolName)
}

func TestDeletePending(t *testing.T) {
	f := newFixture(t)
	f.store.PutTool(models.Tool{ID: "t1", Slug: "t1", Origin: models.OriginAdvertisement})
	f.store.PutAdvertisement(models.ToolAdvertisement{ID: "p1", ToolID: "t1", Status: models.AdvertisementPending})
	f.activeAd("a1", "t1", models.PlacementAll, testNow, testNow.Add(time.Hour))

	require.NoError(t, f.manager.DeletePending(context.Background(), "p1"))
	_, ok := f.store.Advertisement("p1")
	assert.False(t, ok)

	assert.ErrorIs(t, f.manager.DeletePending(context.Background(), "a1"), ErrAdvertisementNotPending)
	assert.ErrorIs(t, f.manager.DeletePending(context.Background(), "p1"), ErrAdvertisementNotFound)
}

func TestTransitionStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	f.store.PutTool(models.Tool{ID: "t1", Slug: "t1", Origin: models.OriginAdvertisement})
	f.store.PutAdvertisement(models.ToolAdvertisement{ID: "x1", ToolID: "t1", Status: models.AdvertisementExpired})
	ads := f.store.Repositories().Advertisement

	ok, err := ads.TransitionStatus(context.Background(), "x1", models.AdvertisementExpired, models.AdvertisementActive)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.False(t, ok)
	ad, _ := f.store.Advertisement("x1")
	assert.Equal(t, models.AdvertisementExpired, ad.Status)

	ok, err = ads.TransitionStatus(context.Background(), "x1", models.AdvertisementPending, models.AdvertisementActive)
	require.NoError(t, err)
	assert.False(t, ok, "row is not pending")
}
