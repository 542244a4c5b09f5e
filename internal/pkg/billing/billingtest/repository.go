// Package billingtest provides an in-memory billing.Repository for tests.
package billingtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
)

// Repository keeps subscriptions, plan mappings and webhook events in maps.
type Repository struct {
	mu       sync.Mutex
	subs     map[string]models.Subscription
	mappings []models.BillingPlanMapping
	events   []models.BillingWebhookEvent
	// FailList is returned by ListSubscriptionsByUser when set.
	FailList error
}

func NewRepository() *Repository {
	return &Repository{subs: make(map[string]models.Subscription)}
}

// Put inserts or replaces a subscription row.
func (f *Repository) Put(sub models.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = time.Now()
	}
	f.subs[sub.ID] = sub
}

// Get returns a copy of a subscription row.
func (f *Repository) Get(id string) models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[id]
}

func (f *Repository) FindActivePlanMapping(_ context.Context, provider, priceID string) (*models.BillingPlanMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mappings {
		if m.Provider == provider && m.ProviderPriceID == priceID && m.IsActive {
			m := m
			return &m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *Repository) UpsertPlanMapping(_ context.Context, m *models.BillingPlanMapping) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.mappings {
		if existing.Provider == m.Provider && existing.ProviderPriceID == m.ProviderPriceID {
			f.mappings[i].Plan = m.Plan
			f.mappings[i].IsActive = m.IsActive
			return nil
		}
	}
	f.mappings = append(f.mappings, *m)
	return nil
}

func (f *Repository) GetSubscriptionByStripeID(_ context.Context, id string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.subs {
		if s.StripeSubscriptionID != nil && *s.StripeSubscriptionID == id {
			s := s
			return &s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *Repository) FindLatestIncomplete(_ context.Context, userID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *models.Subscription
	for _, s := range f.subs {
		if s.ReferenceID == userID && s.Status == models.BillingStatusIncomplete {
			s := s
			if found == nil || s.CreatedAt.After(found.CreatedAt) {
				found = &s
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return found, nil
}

func (f *Repository) CreateSubscription(_ context.Context, sub *models.Subscription) error {
	f.Put(*sub)
	return nil
}

func (f *Repository) SaveSubscription(_ context.Context, sub *models.Subscription) error {
	f.Put(*sub)
	return nil
}

func (f *Repository) ListSubscriptionsByUser(_ context.Context, userID, status string) ([]models.Subscription, error) {
	if f.FailList != nil {
		return nil, f.FailList
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.ReferenceID == userID && (status == "" || s.Status == status) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (f *Repository) DeleteIncompleteSubscriptions(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.subs {
		if s.ReferenceID == userID && s.Status == models.BillingStatusIncomplete {
			delete(f.subs, id)
			n++
		}
	}
	return n, nil
}

func (f *Repository) listEnded(now time.Time, cancelingOnly bool) []models.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Subscription
	for _, s := range f.subs {
		if s.Status != models.BillingStatusActive || !s.PeriodEnded(now) {
			continue
		}
		if cancelingOnly && !s.CancelsAtPeriodEnd() {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Repository) ListCancelingEnded(_ context.Context, now time.Time) ([]models.Subscription, error) {
	return f.listEnded(now, true), nil
}

func (f *Repository) ListActiveEnded(_ context.Context, now time.Time) ([]models.Subscription, error) {
	return f.listEnded(now, false), nil
}

func (f *Repository) UpdateSubscriptionStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	f.subs[id] = s
	return nil
}

func (f *Repository) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].Provider == event.Provider && f.events[i].ProviderEventID == event.ProviderEventID {
			stored := f.events[i]
			return false, &stored, nil
		}
	}
	event.ID = uint(len(f.events) + 1)
	f.events = append(f.events, *event)
	stored := *event
	return true, &stored, nil
}

func (f *Repository) MarkWebhookProcessed(_ context.Context, id uint, processingError string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			now := time.Now()
			f.events[i].ProcessedAt = &now
			f.events[i].ProcessingError = processingError
			f.events[i].Attempts++
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

// Events returns a copy of the recorded webhook events.
func (f *Repository) Events() []models.BillingWebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BillingWebhookEvent(nil), f.events...)
}
