// Package selection lets users choose which subscription tools stay
// featured when they own more tools than their plan allows. A choice can
// be changed once per month.
package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/ToolFox/app/models"
	"github.com/ManuelReschke/ToolFox/app/repository"
	"github.com/ManuelReschke/ToolFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/ToolFox/internal/pkg/metrics"
)

var ErrUserNotFound = errors.New("user not found")

// PlanLookup resolves the effective plan of a user.
type PlanLookup interface {
	EffectivePlan(ctx context.Context, userID string) (string, int, error)
}

// Eligibility tells whether a user may change the selection now.
type Eligibility struct {
	Eligible        bool       `json:"eligible"`
	LastSelectionAt *time.Time `json:"last_selection_at,omitempty"`
	NextEligibleAt  *time.Time `json:"next_eligible_at,omitempty"`
}

// State is everything a client needs to render the selection dialog.
type State struct {
	Eligibility
	NeedsSelection bool          `json:"needs_selection"`
	Plan           string        `json:"plan"`
	PlanName       string        `json:"plan_name"`
	Limit          int           `json:"limit"`
	TotalTools     int           `json:"total_tools"`
	ActiveTools    int           `json:"active_tools"`
	Tools          []models.Tool `json:"tools"`
}

// SaveResult is the outcome of a selection change.
type SaveResult struct {
	Success bool     `json:"success"`
	Active  []string `json:"active,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type Gate struct {
	users   repository.UserRepository
	tools   repository.ToolRepository
	plans   PlanLookup
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func NewGate(repos *repository.Repositories, plans PlanLookup, opts ...Option) *Gate {
	g := &Gate{
		users:   repos.User,
		tools:   repos.Tool,
		plans:   plans,
		metrics: metrics.Get(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NextEligible is one calendar month after the last selection.
func NextEligible(last time.Time) time.Time {
	return last.AddDate(0, 1, 0)
}

// NeedsSelection is true when the user owns more tools than slots, the
// featured set already fits the limit and another subset can be chosen.
func NeedsSelection(total, active, limit int) bool {
	return limit > 0 && total > limit && active <= limit && total > active
}

func (g *Gate) loadUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := g.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (g *Gate) eligibility(u *models.User) Eligibility {
	if u.LastToolSelectionAt == nil {
		return Eligibility{Eligible: true}
	}
	last := *u.LastToolSelectionAt
	next := NextEligible(last)
	e := Eligibility{LastSelectionAt: &last, Eligible: !g.now().Before(next)}
	if !e.Eligible {
		e.NextEligibleAt = &next
	}
	return e
}

// Eligibility reports whether userID may change the selection now.
func (g *Gate) Eligibility(ctx context.Context, userID string) (*Eligibility, error) {
	u, err := g.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	e := g.eligibility(u)
	return &e, nil
}

// State loads plan, tools and eligibility of a user.
func (g *Gate) State(ctx context.Context, userID string) (*State, error) {
	u, err := g.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, limit, err := g.plans.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	tools, err := g.tools.ListByOwnerAndOrigin(ctx, userID, models.OriginSubscription)
	if err != nil {
		return nil, err
	}
	if tools == nil {
		tools = []models.Tool{}
	}
	active := 0
	for _, t := range tools {
		if t.Featured {
			active++
		}
	}
	return &State{
		Eligibility:    g.eligibility(u),
		NeedsSelection: NeedsSelection(len(tools), active, limit),
		Plan:           plan,
		PlanName:       entitlements.DisplayName(plan),
		Limit:          limit,
		TotalTools:     len(tools),
		ActiveTools:    active,
		Tools:          tools,
	}, nil
}

// Save features exactly the selected subscription tools and starts a new
// monthly cooldown.
func (g *Gate) Save(ctx context.Context, userID string, selected []string) (*SaveResult, error) {
	res, err := g.save(ctx, userID, selected)
	if err != nil {
		g.metrics.RecordSelection("error")
		return nil, err
	}
	if res.Success {
		g.metrics.RecordSelection("saved")
	} else {
		g.metrics.RecordSelection("rejected")
	}
	return res, nil
}

func (g *Gate) save(ctx context.Context, userID string, selected []string) (*SaveResult, error) {
	u, err := g.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if e := g.eligibility(u); !e.Eligible {
		return &SaveResult{Error: fmt.Sprintf("You can modify your selection on %s", e.NextEligibleAt.Format("January 2, 2006"))}, nil
	}

	plan, limit, err := g.plans.EffectivePlan(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		return &SaveResult{Error: "An active subscription is required to select tools"}, nil
	}

	tools, err := g.tools.ListByOwnerAndOrigin(ctx, userID, models.OriginSubscription)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]bool, len(tools))
	for _, t := range tools {
		owned[t.ID] = true
	}

	ids := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if !owned[id] {
			return &SaveResult{Error: "Invalid selection detected"}, nil
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return &SaveResult{Error: "Please select at least one tool"}, nil
	}
	if len(ids) > limit {
		noun := "tools"
		if limit == 1 {
			noun = "tool"
		}
		return &SaveResult{Error: fmt.Sprintf("Your %s plan allows only %d active %s", entitlements.DisplayName(plan), limit, noun)}, nil
	}

	if _, err := g.tools.SetAllSubscriptionFeatured(ctx, userID, false); err != nil {
		return nil, fmt.Errorf("deactivate tools: %w", err)
	}
	if _, err := g.tools.SetSubscriptionFeatured(ctx, userID, ids, true); err != nil {
		return nil, fmt.Errorf("activate selected tools: %w", err)
	}
	now := g.now()
	if err := g.users.SetLastToolSelectionAt(ctx, userID, &now); err != nil {
		return nil, fmt.Errorf("store selection time: %w", err)
	}

	log.Infof("[Selection] User %s selected %d of %d tools (%s)", userID, len(ids), len(tools), plan)
	return &SaveResult{Success: true, Active: ids}, nil
}
