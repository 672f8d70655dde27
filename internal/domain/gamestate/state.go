// Package gamestate folds a game's event stream into its composite live
// state: period, score, the two on-floor lineups, possession, and per-side
// scoring runs.
package gamestate

import (
	"sort"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/platform/errors"
)

// MaxOnFloor is the hard cap on concurrent players per side.
const MaxOnFloor = 5

// Possession identifies the possession in effect, if any. Seq and Side
// survive the possession ending so panel rows can reference the last unit.
type Possession struct {
	Side   event.Side `json:"side,omitempty"`
	Seq    uint64     `json:"seq,omitempty"`
	Active bool       `json:"active"`
}

// SideState is one team's half of the composite state.
type SideState struct {
	TeamID string `json:"team_id,omitempty"`
	// OnFloor is the current lineup, sorted, at most MaxOnFloor entries.
	OnFloor []string `json:"on_floor,omitempty"`
	Score   int64    `json:"score"`
	// Run is the side's current scoring run. It resets to zero whenever
	// the opposing side scores.
	Run int64 `json:"run"`
}

// State is the composite game state as of the last folded event.
type State struct {
	GameID     string     `json:"game_id,omitempty"`
	Venue      string     `json:"venue,omitempty"`
	Period     int        `json:"period,omitempty"`
	Final      bool       `json:"final,omitempty"`
	Home       SideState  `json:"home"`
	Away       SideState  `json:"away"`
	Possession Possession `json:"possession"`

	// LastSeq and LastTimestamp mark the event the fold has advanced to.
	LastSeq       uint64    `json:"last_seq,omitempty"`
	LastTimestamp time.Time `json:"last_timestamp"`
}

// Differential returns the home score minus the away score.
func (s State) Differential() int64 {
	return s.Home.Score - s.Away.Score
}

// Side returns the state for one side.
func (s State) Side(side event.Side) SideState {
	if side == event.SideAway {
		return s.Away
	}
	return s.Home
}

func sideOf(s *State, side event.Side) *SideState {
	if side == event.SideAway {
		return &s.Away
	}
	return &s.Home
}

// withPlayer returns a fresh sorted lineup with the player added. Lineups
// are copied before mutation so frozen snapshots of earlier states stay
// intact.
func withPlayer(onFloor []string, gameID, playerID string) ([]string, error) {
	meta := map[string]string{"game_id": gameID, "player_id": playerID}
	for _, id := range onFloor {
		if id == playerID {
			return nil, errors.WithMetadata(errors.CodeLineupPlayerOnFloor, "player is already on the floor", meta)
		}
	}
	if len(onFloor) >= MaxOnFloor {
		return nil, errors.WithMetadata(errors.CodeLineupFull, "lineup already has five players", meta)
	}
	next := make([]string, 0, len(onFloor)+1)
	next = append(next, onFloor...)
	next = append(next, playerID)
	sort.Strings(next)
	return next, nil
}

// withoutPlayer returns a fresh lineup with the player removed.
func withoutPlayer(onFloor []string, gameID, playerID string) ([]string, error) {
	for i, id := range onFloor {
		if id != playerID {
			continue
		}
		next := make([]string, 0, len(onFloor)-1)
		next = append(next, onFloor[:i]...)
		next = append(next, onFloor[i+1:]...)
		return next, nil
	}
	meta := map[string]string{"game_id": gameID, "player_id": playerID}
	return nil, errors.WithMetadata(errors.CodeLineupPlayerAbsent, "player is not on the floor", meta)
}
