package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
)

// State carries the running fold for one player's stream.
type State struct {
	// Cumulative holds the closed counters folded so far.
	Cumulative Cumulative
	// OnFloorSince marks the open floor interval (zero when off the floor).
	OnFloorSince time.Time
	// LastSeq is the sequence of the last folded event within its game.
	LastSeq uint64
	// LastGameID is the game the last folded event belongs to.
	LastGameID string
	// LastTimestamp is the timestamp of the last folded event.
	LastTimestamp time.Time
}

// FoldHandledTypes returns the event types handled by the player fold function.
func FoldHandledTypes() []event.Type {
	return []event.Type{
		event.TypeShotMade,
		event.TypeShotMissed,
		event.TypeFreeThrowMade,
		event.TypeFreeThrowMissed,
		event.TypeRebound,
		event.TypeAssist,
		event.TypeSteal,
		event.TypeBlock,
		event.TypeTurnover,
		event.TypeFoul,
		event.TypeSubIn,
		event.TypeSubOut,
	}
}

// Fold applies one player-scoped event to the running counters. It returns an
// error if a recognized event carries a payload that cannot be unmarshalled.
//
// Floor time accrues between substitution.in and substitution.out; upstream
// segmentation emits boundary substitutions at period breaks, so the fold
// never needs game-scoped clock events.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case event.TypeShotMade:
		var payload event.ShotPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("player fold %s: %w", evt.Type, err)
		}
		state.Cumulative.Points += int64(payload.Points)
		state.Cumulative.FieldGoalsMade++
		state.Cumulative.FieldGoalsAttempted++
		if payload.Points == 3 {
			state.Cumulative.ThreePointersMade++
			state.Cumulative.ThreePointersAttempted++
		}
	case event.TypeShotMissed:
		var payload event.ShotPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("player fold %s: %w", evt.Type, err)
		}
		state.Cumulative.FieldGoalsAttempted++
		if payload.Points == 3 {
			state.Cumulative.ThreePointersAttempted++
		}
	case event.TypeFreeThrowMade:
		state.Cumulative.Points++
		state.Cumulative.FreeThrowsMade++
		state.Cumulative.FreeThrowsAttempted++
	case event.TypeFreeThrowMissed:
		state.Cumulative.FreeThrowsAttempted++
	case event.TypeRebound:
		var payload event.ReboundPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("player fold %s: %w", evt.Type, err)
		}
		if payload.Offensive {
			state.Cumulative.OffensiveRebounds++
		} else {
			state.Cumulative.DefensiveRebounds++
		}
	case event.TypeAssist:
		state.Cumulative.Assists++
	case event.TypeSteal:
		state.Cumulative.Steals++
	case event.TypeBlock:
		state.Cumulative.Blocks++
	case event.TypeTurnover:
		state.Cumulative.Turnovers++
	case event.TypeFoul:
		state.Cumulative.Fouls++
	case event.TypeSubIn:
		if state.OnFloorSince.IsZero() {
			state.OnFloorSince = evt.Timestamp
		}
	case event.TypeSubOut:
		if !state.OnFloorSince.IsZero() {
			state.Cumulative.PlayedMillis += evt.Timestamp.Sub(state.OnFloorSince).Milliseconds()
			state.OnFloorSince = time.Time{}
		}
	}

	state.LastSeq = evt.Seq
	state.LastGameID = evt.GameID
	state.LastTimestamp = evt.Timestamp
	return state, nil
}

// SnapshotAt closes the counters as of an instant without mutating the fold:
// an open floor interval contributes its elapsed time up to asOf.
func SnapshotAt(state State, asOf time.Time) Cumulative {
	cum := state.Cumulative
	if !state.OnFloorSince.IsZero() && asOf.After(state.OnFloorSince) {
		cum.PlayedMillis += asOf.Sub(state.OnFloorSince).Milliseconds()
	}
	return cum
}
