// Package memory provides map-backed repositories for unit tests and local tooling.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"gorm.io/gorm"
)

// Store holds users, tools and advertisements behind one lock.
type Store struct {
	mu    sync.RWMutex
	users map[string]models.User
	tools map[string]models.Tool
	ads   map[string]models.ToolAdvertisement
}

func NewStore() *Store {
	return &Store{
		users: make(map[string]models.User),
		tools: make(map[string]models.Tool),
		ads:   make(map[string]models.ToolAdvertisement),
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		User:          Users{s},
		Tool:          Tools{s},
		Advertisement: Advertisements{s},
	}
}

// PutUser inserts or replaces a user.
func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutTool inserts or replaces a tool.
func (s *Store) PutTool(t models.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Origin == "" {
		t.Origin = models.OriginSubscription
	}
	s.tools[t.ID] = t
}

// PutAdvertisement inserts or replaces an advertisement.
func (s *Store) PutAdvertisement(a models.ToolAdvertisement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Tool = nil
	s.ads[a.ID] = a
}

// Tool returns a copy of a stored tool.
func (s *Store) Tool(id string) (models.Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[id]
	return t, ok
}

// Advertisement returns a copy of a stored advertisement.
func (s *Store) Advertisement(id string) (models.ToolAdvertisement, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.ads[id]
	return a, ok
}

// User returns a copy of a stored user.
func (s *Store) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	return u, ok
}

// FeaturedIDs lists featured tool ids of a user, sorted.
func (s *Store) FeaturedIDs(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, t := range s.tools {
		if t.SubmittedBy == userID && t.Featured {
			ids = append(ids, t.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Users implements repository.UserRepository.
type Users struct{ s *Store }

func (r Users) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r Users) GetByStripeCustomerID(_ context.Context, customerID string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if customerID != "" && u.StripeCustomerID == customerID {
			u := u
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r Users) SetStripeCustomerID(_ context.Context, id, customerID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.StripeCustomerID = customerID
	r.s.users[id] = u
	return nil
}

func (r Users) SetLastToolSelectionAt(_ context.Context, id string, at *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.LastToolSelectionAt = at
	r.s.users[id] = u
	return nil
}

func (r Users) SetBan(_ context.Context, id string, ban *models.Ban) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Banned, u.BanReason, u.BanExpires = false, "", nil
	if ban != nil {
		u.Banned, u.BanReason, u.BanExpires = true, ban.Reason, ban.Expires
	}
	r.s.users[id] = u
	return nil
}

func (r Users) List(_ context.Context, offset, limit int) ([]models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, offset, limit), nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
