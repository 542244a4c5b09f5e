package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/internal/pkg/payment/paymenttest"
)

func TestStartSubscriptionCheckoutCreatesCustomerAndPendingRow(t *testing.T) {
	f := newFixture(t)
	gw := paymenttest.New()
	user, _ := f.store.User("u1")

	res, err := f.svc.StartSubscriptionCheckout(context.Background(), gw, &user, "plus-monthly", "https://ok", "https://cancel")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEmpty(t, res.URL)

	stored, _ := f.store.User("u1")
	assert.NotEmpty(t, stored.StripeCustomerID)

	require.Len(t, gw.SubscriptionCheckouts, 1)
	assert.Equal(t, "price_plus_m", gw.SubscriptionCheckouts[0].PriceID)

	pending, err := f.repo.FindLatestIncomplete(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "plus-monthly", pending.Plan)
	assert.Equal(t, models.BillingStatusIncomplete, pending.Status)
}

func TestStartSubscriptionCheckoutRejectsUnknownPlan(t *testing.T) {
	f := newFixture(t)
	user, _ := f.store.User("u1")

	res, err := f.svc.StartSubscriptionCheckout(context.Background(), paymenttest.New(), &user, "gold", "", "")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown plan", res.Error)

	_, err = f.svc.StartSubscriptionCheckout(context.Background(), paymenttest.New(), &user, "max-yearly", "", "")
	assert.Error(t, err)
}
