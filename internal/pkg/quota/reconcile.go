// Package quota decides which subscription tools stay featured for a plan limit.
package quota

import (
	"sort"
	"time"
)

// Action classifies a reconciliation outcome.
type Action string

const (
	ActionActivated   Action = "activated"
	ActionUpgraded    Action = "upgraded"
	ActionDowngraded  Action = "downgraded"
	ActionRebalanced  Action = "rebalanced"
	ActionMaintained  Action = "maintained"
	ActionDeactivated Action = "deactivated"
)

// ToolState is the part of a subscription tool the reconciler looks at.
type ToolState struct {
	ID        string
	Featured  bool
	CreatedAt time.Time
}

// Plan is the result of Reconcile. Activate and Deactivate only hold tools
// whose featured flag actually changes.
type Plan struct {
	Action         Action
	Limit          int
	Activate       []string
	Deactivate     []string
	PreviousActive int
	FinalActive    int
	NetActivated   int
	NetDeactivated int
	// Deferred is set when a downgrade was detected without force and
	// nothing was changed.
	Deferred bool
}

// AffectedTools counts the tools whose featured flag changes.
func (p Plan) AffectedTools() int {
	return len(p.Activate) + len(p.Deactivate)
}

// Reconcile computes the featured set for limit. tools is expected oldest
// first; it is sorted stably by CreatedAt again so ties keep input order.
func Reconcile(tools []ToolState, currentActive, limit int, force bool) Plan {
	if limit <= 0 {
		p := Plan{Action: ActionDeactivated, Limit: 0, PreviousActive: currentActive}
		for _, t := range tools {
			if t.Featured {
				p.Deactivate = append(p.Deactivate, t.ID)
			}
		}
		p.NetDeactivated = currentActive
		return p
	}

	if currentActive > limit && !force {
		return Plan{
			Action:         ActionDowngraded,
			Limit:          limit,
			PreviousActive: currentActive,
			FinalActive:    currentActive,
			Deferred:       true,
		}
	}

	ordered := make([]ToolState, len(tools))
	copy(ordered, tools)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	keep := limit
	if keep > len(ordered) {
		keep = len(ordered)
	}

	p := Plan{Limit: limit, PreviousActive: currentActive, FinalActive: keep}
	for i, t := range ordered {
		want := i < keep
		switch {
		case want && !t.Featured:
			p.Activate = append(p.Activate, t.ID)
		case !want && t.Featured:
			p.Deactivate = append(p.Deactivate, t.ID)
		}
	}

	if keep > currentActive {
		p.NetActivated = keep - currentActive
	}
	if currentActive > keep {
		p.NetDeactivated = currentActive - keep
	}
	p.Action = determineAction(p)
	return p
}

// determineAction tags a plan by its net change. Swapping tools at an
// unchanged count is the only rebalance.
func determineAction(p Plan) Action {
	switch {
	case p.PreviousActive == 0 && p.NetActivated > 0:
		return ActionActivated
	case p.NetActivated > 0:
		return ActionUpgraded
	case p.NetDeactivated > 0:
		return ActionDowngraded
	case len(p.Activate) > 0 && len(p.Deactivate) > 0:
		return ActionRebalanced
	default:
		return ActionMaintained
	}
}
