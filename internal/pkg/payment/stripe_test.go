package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripelib "github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

const testWebhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, secret, payload string) ([]byte, string) {
	t.Helper()

	signed := stripewebhook.GenerateTestSignedPayload(&stripewebhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Payload, signed.Header
}

func TestConstructEventVerifiesSignature(t *testing.T) {
	g := NewStripeGateway("sk_test_123", testWebhookSecret, "")
	payload := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","mode":"payment","payment_status":"paid","metadata":{"advertisementId":"ad_1"}}}}`

	body, header := signedPayload(t, testWebhookSecret, payload)
	event, err := g.ConstructEvent(body, header)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventCheckoutCompleted, event.Type)
	assert.Equal(t, "cs_1", event.ObjectID)

	session, err := event.DecodeCheckoutSession()
	require.NoError(t, err)
	assert.True(t, session.Paid())
	assert.Equal(t, "ad_1", session.Metadata[MetaAdvertisementID])
}

func TestConstructEventRejectsWrongSecret(t *testing.T) {
	g := NewStripeGateway("sk_test_123", testWebhookSecret, "")
	body, header := signedPayload(t, "whsec_other", `{"id":"evt_2","object":"event","type":"x","data":{"object":{}}}`)

	_, err := g.ConstructEvent(body, header)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestConstructEventWithoutSecret(t *testing.T) {
	g := NewStripeGateway("sk_test_123", "", "")
	_, err := g.ConstructEvent([]byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSubscriptionPeriodPrefersItem(t *testing.T) {
	event := &Event{Raw: []byte(`{
		"id":"sub_1","customer":"cus_1","status":"active","cancel_at_period_end":true,
		"current_period_start":100,"current_period_end":200,
		"items":{"data":[{"quantity":2,"current_period_start":1700000000,"current_period_end":1702592000,"price":{"id":"price_plus"}}]}
	}`)}

	sub, err := event.DecodeSubscription()
	require.NoError(t, err)

	start, end := sub.Period()
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, int64(1700000000), start.Unix())
	assert.Equal(t, int64(1702592000), end.Unix())
	assert.Equal(t, "price_plus", sub.FirstPriceID())
	assert.True(t, sub.CancelAtPeriodEnd)
	require.NotNil(t, sub.Seats())
	assert.Equal(t, 2, *sub.Seats())
}

func TestCreateAdvertisementCheckoutParams(t *testing.T) {
	g := NewStripeGateway("sk_test_123", testWebhookSecret, "usd")

	var captured *stripelib.CheckoutSessionParams
	g.createCheckoutSession = func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error) {
		captured = params
		return &stripelib.CheckoutSession{
			ID:  "cs_test",
			URL: "https://checkout.stripe.test/cs_test",
			Customer: &stripelib.Customer{
				ID: "cus_1",
			},
		}, nil
	}

	session, err := g.CreateAdvertisementCheckout(context.Background(), AdvertisementCheckout{
		CustomerID:         "cus_1",
		AdvertisementID:    "ad_1",
		ToolID:             "tool_1",
		ToolName:           "Tool One",
		Placement:          "all",
		Duration:           7,
		DiscountPercentage: 6,
		UnitAmount:         470,
		SuccessURL:         "https://example.test/ok",
		CancelURL:          "https://example.test/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test", session.ID)
	assert.Equal(t, "cus_1", session.Customer)

	require.NotNil(t, captured)
	assert.Equal(t, "payment", *captured.Mode)
	require.Len(t, captured.LineItems, 1)
	assert.Equal(t, int64(470), *captured.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, int64(7), *captured.LineItems[0].Quantity)
	assert.Equal(t, "usd", *captured.LineItems[0].PriceData.Currency)
	assert.Equal(t, "ad_1", captured.Metadata[MetaAdvertisementID])
	assert.Equal(t, "7", captured.Metadata[MetaDuration])
	assert.Equal(t, "6", captured.Metadata[MetaDiscountPercentage])
}
