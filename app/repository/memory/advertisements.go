package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ManuelReschke/ToolFox/app/models"
	"gorm.io/gorm"
)

// Advertisements implements repository.AdvertisementRepository.
type Advertisements struct{ s *Store }

// withTool attaches a copy of the advertised tool. Callers hold the lock.
func (r Advertisements) withTool(a models.ToolAdvertisement) models.ToolAdvertisement {
	if t, ok := r.s.tools[a.ToolID]; ok {
		a.Tool = &t
	}
	return a
}

func (r Advertisements) list(keep func(models.ToolAdvertisement) bool) []models.ToolAdvertisement {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.ToolAdvertisement
	for _, a := range r.s.ads {
		if keep(a) {
			out = append(out, r.withTool(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r Advertisements) Create(_ context.Context, ad *models.ToolAdvertisement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.ads[ad.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	if ad.Status == "" {
		ad.Status = models.AdvertisementPending
	}
	stored := *ad
	stored.Tool = nil
	r.s.ads[ad.ID] = stored
	return nil
}

func (r Advertisements) GetByID(_ context.Context, id string) (*models.ToolAdvertisement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.ads[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	a = r.withTool(a)
	return &a, nil
}

func (r Advertisements) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.ads, id)
	return nil
}

func (r Advertisements) SetStripeSession(_ context.Context, id, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.ads[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	a.StripeSessionID = sessionID
	r.s.ads[id] = a
	return nil
}

func (r Advertisements) TransitionStatus(_ context.Context, id string, from, to models.AdvertisementStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	a, ok := r.s.ads[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	r.s.ads[id] = a
	return true, nil
}

func (r Advertisements) ListDueForExpiry(_ context.Context, now time.Time) ([]models.ToolAdvertisement, error) {
	return r.list(func(a models.ToolAdvertisement) bool {
		return a.Status != models.AdvertisementExpired && !a.EndDate.After(now)
	}), nil
}

func (r Advertisements) ListLive(_ context.Context, placement models.Placement) ([]models.ToolAdvertisement, error) {
	return r.list(func(a models.ToolAdvertisement) bool {
		if placement != models.PlacementHomepage && a.Placement != models.PlacementAll {
			return false
		}
		return a.IsLive()
	}), nil
}

func (r Advertisements) ListByOwner(_ context.Context, userID string) ([]models.ToolAdvertisement, error) {
	return r.list(func(a models.ToolAdvertisement) bool {
		t, ok := r.s.tools[a.ToolID]
		return ok && t.SubmittedBy == userID && a.Status != models.AdvertisementPending
	}), nil
}

func (r Advertisements) CountActiveForTool(_ context.Context, toolID string) (int64, error) {
	return int64(len(r.list(func(a models.ToolAdvertisement) bool {
		return a.ToolID == toolID && a.Status == models.AdvertisementActive
	}))), nil
}

func (r Advertisements) CountLiveForTool(_ context.Context, toolID string, now time.Time) (int64, error) {
	return int64(len(r.list(func(a models.ToolAdvertisement) bool {
		return a.ToolID == toolID && a.Status == models.AdvertisementActive && a.EndDate.After(now)
	}))), nil
}

func (r Advertisements) DeletePendingForTool(_ context.Context, toolID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, a := range r.s.ads {
		if a.ToolID == toolID && a.Status == models.AdvertisementPending {
			delete(r.s.ads, id)
			n++
		}
	}
	return n, nil
}

func (r Advertisements) BoostedOriginalIDs(ctx context.Context, placement models.Placement) ([]string, error) {
	live, _ := r.ListLive(ctx, placement)
	seen := make(map[string]bool)
	var ids []string
	for _, a := range live {
		if a.Tool == nil || !a.Tool.IsBoostDuplicate() {
			continue
		}
		orig := *a.Tool.BoostedFromID
		if !seen[orig] {
			seen[orig] = true
			ids = append(ids, orig)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
