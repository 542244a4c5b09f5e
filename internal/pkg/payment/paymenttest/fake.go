// Package paymenttest provides an in-memory payment.Gateway for tests.
package paymenttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ManuelReschke/ToolFox/internal/pkg/payment"
)

// Gateway records calls and serves canned sessions and subscriptions.
type Gateway struct {
	mu sync.Mutex

	Sessions      map[string]*payment.CheckoutSession
	Subscriptions map[string]*payment.Subscription

	AdCheckouts           []payment.AdvertisementCheckout
	SubscriptionCheckouts []payment.SubscriptionCheckout
	CreatedCustomers      []string

	// Err is returned by every call when set.
	Err error

	next int
}

func New() *Gateway {
	return &Gateway{
		Sessions:      make(map[string]*payment.CheckoutSession),
		Subscriptions: make(map[string]*payment.Subscription),
	}
}

func (g *Gateway) nextID(prefix string) string {
	g.next++
	return fmt.Sprintf("%s_test_%d", prefix, g.next)
}

func (g *Gateway) CreateCustomer(_ context.Context, userID, _, _ string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return "", g.Err
	}
	id := g.nextID("cus")
	g.CreatedCustomers = append(g.CreatedCustomers, userID)
	return id, nil
}

func (g *Gateway) CreateAdvertisementCheckout(_ context.Context, in payment.AdvertisementCheckout) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.AdCheckouts = append(g.AdCheckouts, in)
	id := g.nextID("cs")
	s := &payment.CheckoutSession{
		ID:          id,
		URL:         "https://checkout.stripe.test/" + id,
		Mode:        payment.ModePayment,
		Customer:    in.CustomerID,
		AmountTotal: in.UnitAmount * int64(in.Duration),
		Metadata:    in.Metadata(),
	}
	g.Sessions[id] = s
	return s, nil
}

func (g *Gateway) CreateSubscriptionCheckout(_ context.Context, in payment.SubscriptionCheckout) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.SubscriptionCheckouts = append(g.SubscriptionCheckouts, in)
	id := g.nextID("cs")
	s := &payment.CheckoutSession{
		ID:       id,
		URL:      "https://checkout.stripe.test/" + id,
		Mode:     payment.ModeSubscription,
		Customer: in.CustomerID,
		Metadata: map[string]string{payment.MetaUserID: in.UserID, payment.MetaPlan: in.Plan},
	}
	g.Sessions[id] = s
	return s, nil
}

// MarkPaid flips a recorded session to paid.
func (g *Gateway) MarkPaid(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.Sessions[id]; ok {
		s.PaymentStatus = payment.PaymentStatusPaid
	}
}

func (g *Gateway) GetCheckoutSession(_ context.Context, id string) (*payment.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	s, ok := g.Sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", id)
	}
	cp := *s
	return &cp, nil
}

func (g *Gateway) GetSubscription(_ context.Context, id string) (*payment.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	s, ok := g.Subscriptions[id]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", id)
	}
	cp := *s
	return &cp, nil
}

func (g *Gateway) CreatePortalSession(_ context.Context, customerID, _ string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	return "https://billing.stripe.test/" + customerID, nil
}

// ConstructEvent accepts any payload whose signature equals "valid".
func (g *Gateway) ConstructEvent(payload []byte, signature string) (*payment.Event, error) {
	if signature != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	var env struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}
	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data.Object, &obj)
	return &payment.Event{ID: env.ID, Type: env.Type, ObjectID: obj.ID, Raw: env.Data.Object, Payload: payload}, nil
}
