package selection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository/memory"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

type stubPlans struct {
	plan  string
	limit int
}

func (s stubPlans) EffectivePlan(context.Context, string) (string, int, error) {
	return s.plan, s.limit, nil
}

func newGate(plans stubPlans) (*Gate, *memory.Store) {
	store := memory.NewStore()
	g := NewGate(store.Repositories(), plans,
		WithClock(func() time.Time { return testNow }),
		WithMetrics(metrics.New()))
	return g, store
}

func seedTools(store *memory.Store, featured ...bool) {
	ids := []string{"a", "b", "c", "d"}
	for i, f := range featured {
		store.PutTool(models.Tool{
			ID: ids[i], Slug: ids[i], SubmittedBy: "u1", Featured: f,
			CreatedAt: testNow.Add(time.Duration(i) * time.Hour),
		})
	}
}

func TestNeedsSelection(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name                 string
		total, active, limit int
		want                 bool
	}{
		{"more tools than slots, trimmed", 3, 1, 1, true},
		{"not yet trimmed", 3, 3, 1, false},
		{"fits", 2, 2, 5, false},
		{"no plan", 3, 0, 0, false},
		{"equal to limit", 1, 1, 1, false},
		{"trimmed below limit", 6, 4, 5, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedsSelection(tt.total, tt.active, tt.limit), tt.name)
	}
}

func TestNextEligibleAddsCalendarMonth(t *testing.T) {
	t.Parallel()
	last := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC), NextEligible(last))
}

func TestEligibility(t *testing.T) {
	g, store := newGate(stubPlans{})
	recent := testNow.AddDate(0, 0, -10)
	old := testNow.AddDate(0, -1, 0)
	store.PutUser(models.User{ID: "fresh"})
	store.PutUser(models.User{ID: "recent", LastToolSelectionAt: &recent})
	store.PutUser(models.User{ID: "old", LastToolSelectionAt: &old})

	e, err := g.Eligibility(context.Background(), "fresh")
	require.NoError(t, err)
	assert.True(t, e.Eligible)

	e, err = g.Eligibility(context.Background(), "recent")
	require.NoError(t, err)
	assert.False(t, e.Eligible)
	require.NotNil(t, e.NextEligibleAt)
	assert.Equal(t, recent.AddDate(0, 1, 0), *e.NextEligibleAt)

	e, err = g.Eligibility(context.Background(), "old")
	require.NoError(t, err)
	assert.True(t, e.Eligible)

	_, err = g.Eligibility(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStateReportsNeedsSelection(t *testing.T) {
	g, store := newGate(stubPlans{plan: "starter-monthly", limit: 1})
	store.PutUser(models.User{ID: "u1"})
	seedTools(store, true, false, false)

	st, err := g.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, st.NeedsSelection)
	assert.Equal(t, 3, st.TotalTools)
	assert.Equal(t, 1, st.ActiveTools)
	assert.Equal(t, "Starter", st.PlanName)
	require.Len(t, st.Tools, 3)
	assert.Equal(t, "a", st.Tools[0].ID)

	// every tool still featured: the forced sweep has not trimmed yet
	store.PutTool(models.Tool{ID: "b", Slug: "b", SubmittedBy: "u1", Featured: true})
	store.PutTool(models.Tool{ID: "c", Slug: "c", SubmittedBy: "u1", Featured: true})
	st, err = g.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, st.NeedsSelection)
}

func TestSaveSelection(t *testing.T) {
	g, store := newGate(stubPlans{plan: "plus-monthly", limit: 2})
	store.PutUser(models.User{ID: "u1"})
	seedTools(store, true, true, false, false)
	store.PutTool(models.Tool{ID: "ad", Slug: "ad", SubmittedBy: "u1", Featured: true, Origin: models.OriginAdvertisement})

	res, err := g.Save(context.Background(), "u1", []string{"c", "d", "c"})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"c", "d"}, res.Active)

	assert.Equal(t, []string{"ad", "c", "d"}, store.FeaturedIDs("u1"))
	u, _ := store.User("u1")
	require.NotNil(t, u.LastToolSelectionAt)
	assert.Equal(t, testNow, *u.LastToolSelectionAt)

	res, err = g.Save(context.Background(), "u1", []string{"a"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "You can modify your selection on July 15, 2026", res.Error)
}

func TestSaveSelectionRejections(t *testing.T) {
	tests := []struct {
		name     string
		plans    stubPlans
		selected []string
		want     string
	}{
		{"foreign tool", stubPlans{plan: "plus-monthly", limit: 5}, []string{"a", "zzz"}, "Invalid selection detected"},
		{"advertisement tool", stubPlans{plan: "plus-monthly", limit: 5}, []string{"ad"}, "Invalid selection detected"},
		{"too many", stubPlans{plan: "starter-monthly", limit: 1}, []string{"a", "b"}, "Your Starter plan allows only 1 active tool"},
		{"plural", stubPlans{plan: "plus-monthly", limit: 2}, []string{"a", "b", "c"}, "Your Plus plan allows only 2 active tools"},
		{"empty", stubPlans{plan: "plus-monthly", limit: 5}, nil, "Please select at least one tool"},
		{"no plan", stubPlans{}, []string{"a"}, "An active subscription is required to select tools"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, store := newGate(tt.plans)
			store.PutUser(models.User{ID: "u1"})
			seedTools(store, true, false, false)
			store.PutTool(models.Tool{ID: "ad", Slug: "ad", SubmittedBy: "u1", Origin: models.OriginAdvertisement})

			res, err := g.Save(context.Background(), "u1", tt.selected)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tt.want, res.Error)
			assert.Equal(t, []string{"a"}, store.FeaturedIDs("u1"))

			u, _ := store.User("u1")
			assert.Nil(t, u.LastToolSelectionAt)
		})
	}
}
