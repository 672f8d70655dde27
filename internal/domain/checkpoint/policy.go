package checkpoint

import (
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
)

// PolicyKind names an emission cadence.
type PolicyKind string

const (
	// PolicyEveryEvent freezes a checkpoint after every folded event.
	PolicyEveryEvent PolicyKind = "every_event"
	// PolicyEveryN freezes a checkpoint after every N folded events.
	PolicyEveryN PolicyKind = "every_n"
	// PolicyPerGame freezes a checkpoint at each game boundary.
	PolicyPerGame PolicyKind = "per_game"
	// PolicyInterval freezes a checkpoint at fixed event-time spacing.
	PolicyInterval PolicyKind = "interval"
)

// DefaultEveryN is the documented default checkpoint spacing.
const DefaultEveryN = 25

// DefaultInterval is the documented default event-time spacing.
const DefaultInterval = 5 * time.Minute

// Policy is the checkpoint cadence configuration.
type Policy struct {
	Kind     PolicyKind
	EveryN   int
	Interval time.Duration
}

// DefaultPolicy returns the documented default cadence.
func DefaultPolicy() Policy {
	return Policy{Kind: PolicyEveryN, EveryN: DefaultEveryN}
}

// ParsePolicy builds a policy from configuration values, applying defaults
// for unset knobs.
func ParsePolicy(kind string, everyN int, interval time.Duration) (Policy, error) {
	k := PolicyKind(strings.TrimSpace(strings.ToLower(kind)))
	if k == "" {
		k = PolicyEveryN
	}
	switch k {
	case PolicyEveryEvent, PolicyPerGame:
		return Policy{Kind: k}, nil
	case PolicyEveryN:
		if everyN <= 0 {
			everyN = DefaultEveryN
		}
		return Policy{Kind: k, EveryN: everyN}, nil
	case PolicyInterval:
		if interval <= 0 {
			interval = DefaultInterval
		}
		return Policy{Kind: k, Interval: interval}, nil
	default:
		return Policy{}, fmt.Errorf("unknown checkpoint policy %q", kind)
	}
}

// Emitter tracks a walked stream and decides where checkpoints freeze.
// Walkers call BoundaryBeforeFold before folding each event and
// EmitAfterFold after; MarkEmitted resets the cadence counters.
type Emitter struct {
	policy     Policy
	sinceEmit  int
	lastEmit   time.Time
	lastGameID string
}

// NewEmitter returns an emitter for the policy.
func NewEmitter(policy Policy) *Emitter {
	return &Emitter{policy: policy}
}

// BoundaryBeforeFold reports whether the stream crossed a game boundary, so
// the walker freezes the prior state before folding evt. Only the per_game
// cadence emits here.
func (e *Emitter) BoundaryBeforeFold(evt event.Event) bool {
	crossed := e.policy.Kind == PolicyPerGame &&
		e.lastGameID != "" && evt.GameID != e.lastGameID
	e.lastGameID = evt.GameID
	return crossed
}

// EmitAfterFold reports whether a checkpoint freezes at evt after folding it.
func (e *Emitter) EmitAfterFold(evt event.Event) bool {
	e.sinceEmit++
	switch e.policy.Kind {
	case PolicyEveryEvent:
		return true
	case PolicyEveryN:
		return e.sinceEmit >= e.policy.EveryN
	case PolicyInterval:
		if e.lastEmit.IsZero() {
			e.lastEmit = evt.Timestamp
			return false
		}
		return evt.Timestamp.Sub(e.lastEmit) >= e.policy.Interval
	case PolicyPerGame:
		return evt.Type == event.TypeGameEnd
	default:
		return false
	}
}

// MarkEmitted resets the cadence counters after a checkpoint freezes.
func (e *Emitter) MarkEmitted(asOf time.Time) {
	e.sinceEmit = 0
	e.lastEmit = asOf
}
