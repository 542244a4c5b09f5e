package memory

import (
	"context"
	"sort"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"gorm.io/gorm"
)

// Tools implements repository.ToolRepository.
type Tools struct{ s *Store }

func (r Tools) Create(_ context.Context, tool *models.Tool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tools[tool.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	for _, t := range r.s.tools {
		if t.Slug == tool.Slug {
			return gorm.ErrDuplicatedKey
		}
	}
	r.s.tools[tool.ID] = *tool
	return nil
}

func (r Tools) GetByID(_ context.Context, id string) (*models.Tool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tools[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &t, nil
}

func (r Tools) GetBySlug(_ context.Context, slug string) (*models.Tool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tools {
		if t.Slug == slug {
			t := t
			return &t, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r Tools) Update(_ context.Context, tool *models.Tool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tools[tool.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.s.tools[tool.ID] = *tool
	return nil
}

func (r Tools) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.tools, id)
	for adID, a := range r.s.ads {
		if a.ToolID == id {
			delete(r.s.ads, adID)
		}
	}
	return nil
}

func (r Tools) SlugExists(ctx context.Context, slug string) (bool, error) {
	return r.SlugExistsExceptID(ctx, slug, "")
}

func (r Tools) SlugExistsExceptID(_ context.Context, slug, id string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tools {
		if t.Slug == slug && t.ID != id {
			return true, nil
		}
	}
	return false, nil
}

func (r Tools) DomainExists(_ context.Context, domain string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, t := range r.s.tools {
		if t.Domain == domain && !t.IsBoostDuplicate() {
			return true, nil
		}
	}
	return false, nil
}

func (r Tools) filter(keep func(models.Tool) bool) []models.Tool {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Tool
	for _, t := range r.s.tools {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func oldestFirst(tools []models.Tool) {
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].CreatedAt.Equal(tools[j].CreatedAt) {
			return tools[i].ID < tools[j].ID
		}
		return tools[i].CreatedAt.Before(tools[j].CreatedAt)
	})
}

func newestFirst(tools []models.Tool) {
	sort.SliceStable(tools, func(i, j int) bool {
		if tools[i].CreatedAt.Equal(tools[j].CreatedAt) {
			return tools[i].ID > tools[j].ID
		}
		return tools[i].CreatedAt.After(tools[j].CreatedAt)
	})
}

func (r Tools) ListByOwner(_ context.Context, userID string) ([]models.Tool, error) {
	out := r.filter(func(t models.Tool) bool { return t.SubmittedBy == userID })
	newestFirst(out)
	return out, nil
}

func (r Tools) ListByOwnerAndOrigin(_ context.Context, userID string, origin models.ToolOrigin) ([]models.Tool, error) {
	out := r.filter(func(t models.Tool) bool { return t.SubmittedBy == userID && t.Origin == origin })
	oldestFirst(out)
	return out, nil
}

func (r Tools) CountByOwnerAndOrigin(_ context.Context, userID string, origin models.ToolOrigin) (int64, error) {
	return int64(len(r.filter(func(t models.Tool) bool { return t.SubmittedBy == userID && t.Origin == origin }))), nil
}

func (r Tools) CountFeatured(_ context.Context, userID string, origin models.ToolOrigin) (int64, error) {
	return int64(len(r.filter(func(t models.Tool) bool {
		return t.SubmittedBy == userID && t.Origin == origin && t.Featured
	}))), nil
}

func (r Tools) SetSubscriptionFeatured(_ context.Context, userID string, ids []string, featured bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, id := range ids {
		t, ok := r.s.tools[id]
		if !ok || t.SubmittedBy != userID || t.Origin != models.OriginSubscription {
			continue
		}
		if t.Featured != featured {
			n++
		}
		t.Featured = featured
		r.s.tools[id] = t
	}
	return n, nil
}

func (r Tools) SetAllSubscriptionFeatured(_ context.Context, userID string, featured bool) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tools {
		if t.SubmittedBy != userID || t.Origin != models.OriginSubscription || t.Featured == featured {
			continue
		}
		t.Featured = featured
		r.s.tools[id] = t
		n++
	}
	return n, nil
}

func (r Tools) SetAdvertisementFeatured(_ context.Context, id string, featured bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tools[id]
	if !ok || t.Origin != models.OriginAdvertisement {
		return gorm.ErrRecordNotFound
	}
	t.Featured = featured
	r.s.tools[id] = t
	return nil
}

func (r Tools) ListFeatured(_ context.Context, q repository.ToolQuery) ([]models.Tool, int64, error) {
	excluded := make(map[string]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}
	out := r.filter(func(t models.Tool) bool {
		return t.Featured && t.Origin == models.OriginSubscription && !excluded[t.ID] &&
			(q.Category == "" || t.Category == q.Category)
	})
	newestFirst(out)
	return page(out, q.Offset, q.Limit), int64(len(out)), nil
}

func (r Tools) ListRelated(_ context.Context, category, excludeID string, limit int) ([]models.Tool, error) {
	out := r.filter(func(t models.Tool) bool {
		return t.Featured && t.Category == category && t.ID != excludeID
	})
	newestFirst(out)
	return page(out, 0, limit), nil
}
