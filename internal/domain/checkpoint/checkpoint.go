package checkpoint

import (
	"time"
)

// Checkpoint is a frozen cumulative snapshot of one player as of an instant.
// Rows are unique per (player, as_of, generation); writes of a duplicate key
// fail at the storage layer.
type Checkpoint struct {
	// PlayerID identifies the player.
	PlayerID string
	// AsOf is the instant the counters are valid at.
	AsOf time.Time
	// Generation is the regeneration epoch the checkpoint belongs to.
	Generation uint64
	// LastSeq is the sequence of the last folded event within LastGameID.
	LastSeq uint64
	// LastGameID scopes LastSeq to one game's sequence space.
	LastGameID string
	// OnFloor records whether the player had an open floor interval at AsOf.
	OnFloor bool
	// Cumulative holds the counters closed at AsOf.
	Cumulative Cumulative
	// Ratios holds snapshot-time derived rates.
	Ratios Ratios
}

// New freezes the fold state into a checkpoint at asOf.
func New(playerID string, asOf time.Time, generation uint64, state State) Checkpoint {
	cum := SnapshotAt(state, asOf)
	return Checkpoint{
		PlayerID:   playerID,
		AsOf:       asOf,
		Generation: generation,
		LastSeq:    state.LastSeq,
		LastGameID: state.LastGameID,
		OnFloor:    !state.OnFloorSince.IsZero(),
		Cumulative: cum,
		Ratios:     DeriveRatios(cum),
	}
}

// ResumeState reopens the fold from a stored checkpoint. The open floor
// interval, if any, restarts at AsOf because the checkpoint already banked
// the time before it.
func (c Checkpoint) ResumeState() State {
	state := State{
		Cumulative:    c.Cumulative,
		LastSeq:       c.LastSeq,
		LastGameID:    c.LastGameID,
		LastTimestamp: c.AsOf,
	}
	if c.OnFloor {
		state.OnFloorSince = c.AsOf
	}
	return state
}
