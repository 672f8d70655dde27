package event

import (
	"strings"
	"time"
)

// Type identifies the type of a play-by-play event.
type Type string

// Scoring events.
const (
	// TypeShotMade records a made field goal.
	TypeShotMade Type = "shot.made"
	// TypeShotMissed records a missed field goal.
	TypeShotMissed Type = "shot.missed"
	// TypeFreeThrowMade records a made free throw.
	TypeFreeThrowMade Type = "free_throw.made"
	// TypeFreeThrowMissed records a missed free throw.
	TypeFreeThrowMissed Type = "free_throw.missed"
)

// Possession events.
const (
	// TypeRebound records a rebound.
	TypeRebound Type = "rebound.secured"
	// TypeAssist records an assist credited on a made shot.
	TypeAssist Type = "assist.credited"
	// TypeSteal records a steal.
	TypeSteal Type = "steal.taken"
	// TypeBlock records a blocked shot.
	TypeBlock Type = "block.made"
	// TypeTurnover records a turnover.
	TypeTurnover Type = "turnover.committed"
	// TypePossessionStart records the start of a possession.
	TypePossessionStart Type = "possession.start"
	// TypePossessionEnd records the end of a possession.
	TypePossessionEnd Type = "possession.end"
)

// Administrative events.
const (
	// TypeFoul records a personal foul.
	TypeFoul Type = "foul.personal"
	// TypeSubIn records a player entering the floor.
	TypeSubIn Type = "substitution.in"
	// TypeSubOut records a player leaving the floor.
	TypeSubOut Type = "substitution.out"
	// TypePeriodStart records the start of a period.
	TypePeriodStart Type = "period.start"
	// TypePeriodEnd records the end of a period.
	TypePeriodEnd Type = "period.end"
	// TypeGameStart records the opening of a game journal.
	TypeGameStart Type = "game.start"
	// TypeGameEnd records the close of a game journal.
	TypeGameEnd Type = "game.end"
)

// Side identifies which bench an event belongs to.
type Side string

const (
	// SideHome marks events attributed to the home side.
	SideHome Side = "home"
	// SideAway marks events attributed to the away side.
	SideAway Side = "away"
)

// IsValid reports whether the side is usable.
func (s Side) IsValid() bool {
	return s == SideHome || s == SideAway
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SideHome {
		return SideAway
	}
	return SideHome
}

// Event represents an immutable event in the play-by-play journal.
type Event struct {
	// GameID is the game this event belongs to.
	GameID string
	// Seq is the event sequence number within the game (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Hash is the content-addressed identity (SHA-256 truncated to 128-bit).
	// Assigned by storage on append.
	Hash string
	// PrevHash is the previous event's chain hash (empty for the first event).
	// Assigned by storage on append.
	PrevHash string
	// ChainHash links this event to the previous event hash (SHA-256).
	// Assigned by storage on append.
	ChainHash string
	// Timestamp is when the event occurred.
	Timestamp time.Time
	// Type identifies the kind of event.
	Type Type
	// Side attributes the event to the home or away bench, when applicable.
	Side Side
	// PlayerID is the player the event belongs to (empty for game-scoped events).
	PlayerID string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// IsValid reports whether the event type is usable.
func (t Type) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// Family returns the family prefix of the event type (e.g., "shot", "possession").
func (t Type) Family() string {
	for i, c := range t {
		if c == '.' {
			return string(t[:i])
		}
	}
	return string(t)
}
