// Package chat runs a conversation turn: it composes prompts, consults the
// models, routes directives, and persists both memory tiers.
package chat

import (
	"context"
	"slices"
	"time"

	"github.com/rcliao/tai/internal/memory"
	"github.com/rcliao/tai/internal/model"
)

// State is the session's view of memory. A turn takes a State and returns
// the next one; nothing else holds session memory.
type State struct {
	Global     []model.Entry
	Restricted []model.Entry
	// Day selects the restricted key the session writes to.
	Day time.Time
	// GlobalRewritten is set once the historian has replaced Global. From
	// then on Global is written wholesale instead of merged, so entries it
	// dropped are removed from the store too.
	GlobalRewritten bool
}

// Clone returns a copy that shares no slices with s.
func (s State) Clone() State {
	return State{
		Global:          slices.Clone(s.Global),
		Restricted:      slices.Clone(s.Restricted),
		Day:             s.Day,
		GlobalRewritten: s.GlobalRewritten,
	}
}

// LoadState reads both tiers for the manager's current day.
func LoadState(ctx context.Context, mem *memory.Manager) (State, error) {
	day := mem.Now()
	global, err := mem.Load(ctx, model.TierGlobal, day)
	if err != nil {
		return State{}, err
	}
	restricted, err := mem.Load(ctx, model.TierRestricted, day)
	if err != nil {
		return State{}, err
	}
	return State{Global: global, Restricted: restricted, Day: day}, nil
}

// sameDay reports whether a and b fall on the same calendar day in a's
// location.
func sameDay(a, b time.Time) bool {
	return a.Format(model.DayLayout) == b.In(a.Location()).Format(model.DayLayout)
}
