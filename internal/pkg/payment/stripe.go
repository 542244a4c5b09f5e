package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	stripelib "github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeGateway implements Gateway with the stripe-go resource packages.
type StripeGateway struct {
	webhookSecret string
	currency      string

	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	getCheckoutSession    func(id string, params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	getSubscription       func(id string, params *stripelib.SubscriptionParams) (*stripelib.Subscription, error)
	createCustomer        func(params *stripelib.CustomerParams) (*stripelib.Customer, error)
	createPortalSession   func(params *stripelib.BillingPortalSessionParams) (*stripelib.BillingPortalSession, error)
}

// NewStripeGateway sets the global API key and returns a gateway.
func NewStripeGateway(secretKey, webhookSecret, currency string) *StripeGateway {
	stripelib.Key = strings.TrimSpace(secretKey)
	if currency == "" {
		currency = string(stripelib.CurrencyUSD)
	}
	return &StripeGateway{
		webhookSecret:         strings.TrimSpace(webhookSecret),
		currency:              strings.ToLower(currency),
		createCheckoutSession: checkoutsession.New,
		getCheckoutSession:    checkoutsession.Get,
		getSubscription:       subscription.Get,
		createCustomer:        customer.New,
		createPortalSession:   portalsession.New,
	}
}

func (g *StripeGateway) configured() error {
	if stripelib.Key == "" {
		return ErrNotConfigured
	}
	return nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, userID, email, name string) (string, error) {
	if err := g.configured(); err != nil {
		return "", err
	}
	params := &stripelib.CustomerParams{
		Email: stripelib.String(email),
		Name:  stripelib.String(name),
	}
	params.Context = ctx
	params.AddMetadata(MetaUserID, userID)
	c, err := g.createCustomer(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

// CreateAdvertisementCheckout opens a payment-mode session with one line item
// per booked day.
func (g *StripeGateway) CreateAdvertisementCheckout(ctx context.Context, in AdvertisementCheckout) (*CheckoutSession, error) {
	if err := g.configured(); err != nil {
		return nil, err
	}
	currency := in.Currency
	if currency == "" {
		currency = g.currency
	}
	product := &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
		Name:        stripelib.String(fmt.Sprintf("Advertisement: %s", in.ToolName)),
		Description: stripelib.String(fmt.Sprintf("%d days on %s placement (%d%% discount)", in.Duration, in.Placement, in.DiscountPercentage)),
	}
	if in.LogoURL != "" {
		product.Images = []*string{stripelib.String(in.LogoURL)}
	}
	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		Customer:   stripelib.String(in.CustomerID),
		SuccessURL: stripelib.String(in.SuccessURL),
		CancelURL:  stripelib.String(in.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripelib.String(currency),
					ProductData: product,
					UnitAmount:  stripelib.Int64(in.UnitAmount),
				},
				Quantity: stripelib.Int64(int64(in.Duration)),
			},
		},
		InvoiceCreation: &stripelib.CheckoutSessionInvoiceCreationParams{
			Enabled: stripelib.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range in.Metadata() {
		params.AddMetadata(k, v)
	}

	s, err := g.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create advertisement checkout: %w", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) CreateSubscriptionCheckout(ctx context.Context, in SubscriptionCheckout) (*CheckoutSession, error) {
	if err := g.configured(); err != nil {
		return nil, err
	}
	params := &stripelib.CheckoutSessionParams{
		Mode:       stripelib.String(string(stripelib.CheckoutSessionModeSubscription)),
		Customer:   stripelib.String(in.CustomerID),
		SuccessURL: stripelib.String(in.SuccessURL),
		CancelURL:  stripelib.String(in.CancelURL),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				Price:    stripelib.String(in.PriceID),
				Quantity: stripelib.Int64(1),
			},
		},
		AllowPromotionCodes: stripelib.Bool(true),
		SubscriptionData: &stripelib.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetaUserID: in.UserID,
				MetaPlan:   in.Plan,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(MetaUserID, in.UserID)
	params.AddMetadata(MetaPlan, in.Plan)

	s, err := g.createCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create subscription checkout: %w", err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if err := g.configured(); err != nil {
		return nil, err
	}
	params := &stripelib.CheckoutSessionParams{}
	params.Context = ctx
	s, err := g.getCheckoutSession(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}
	return fromStripeSession(s), nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	if err := g.configured(); err != nil {
		return nil, err
	}
	params := &stripelib.SubscriptionParams{}
	params.Context = ctx
	s, err := g.getSubscription(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", id, err)
	}
	return fromStripeSubscription(s), nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	if err := g.configured(); err != nil {
		return "", err
	}
	params := &stripelib.BillingPortalSessionParams{
		Customer:  stripelib.String(customerID),
		ReturnURL: stripelib.String(returnURL),
	}
	params.Context = ctx
	s, err := g.createPortalSession(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return s.URL, nil
}

// ConstructEvent verifies the Stripe-Signature header and extracts the data object.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		log.Warnf("[Payment] Webhook signature verification failed: %v", err)
		return nil, ErrInvalidSignature
	}

	out := &Event{
		ID:      event.ID,
		Type:    string(event.Type),
		Payload: payload,
	}
	if event.Data != nil {
		out.Raw = event.Data.Raw
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err == nil {
			out.ObjectID = obj.ID
		}
	}
	return out, nil
}

func fromStripeSession(s *stripelib.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		Mode:          string(s.Mode),
		PaymentStatus: string(s.PaymentStatus),
		Currency:      string(s.Currency),
		AmountTotal:   s.AmountTotal,
		Metadata:      s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = s.Customer.ID
	}
	if s.Subscription != nil {
		out.Subscription = s.Subscription.ID
	}
	return out
}

func fromStripeSubscription(s *stripelib.Subscription) *Subscription {
	out := &Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.Customer = s.Customer.ID
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			si := subscriptionItem{
				Quantity:           item.Quantity,
				CurrentPeriodStart: item.CurrentPeriodStart,
				CurrentPeriodEnd:   item.CurrentPeriodEnd,
			}
			if item.Price != nil {
				si.Price.ID = item.Price.ID
			}
			out.Items.Data = append(out.Items.Data, si)
		}
	}
	return out
}
