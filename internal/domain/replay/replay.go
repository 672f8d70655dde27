// Package replay pages an event stream through an applier in order.
//
// A replay walks one stream: all events of a game, or all events of a
// player across games. Streams are ordered by (timestamp, game, sequence)
// and the walk resumes from a composite cursor so a caller holding a
// frozen snapshot only pays for the delta behind it.
package replay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
)

const defaultPageSize = 200

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrApplierRequired indicates a missing applier.
	ErrApplierRequired = errors.New("applier is required")
	// ErrScopeRequired indicates a scope with neither a game nor a player id.
	ErrScopeRequired = errors.New("replay scope requires a game id or a player id")
	// ErrSequenceGap indicates a hole in a stream that must be contiguous.
	ErrSequenceGap = errors.New("event sequence gap")
	// ErrOrderViolation indicates the store returned events out of stream order.
	ErrOrderViolation = errors.New("event stream order violation")
)

// Scope selects the stream to replay. GameID alone walks a whole game,
// PlayerID alone walks a player's events across games, both together walk
// a player's events within one game.
type Scope struct {
	GameID   string
	PlayerID string
}

func (s Scope) normalize() (Scope, error) {
	s.GameID = strings.TrimSpace(s.GameID)
	s.PlayerID = strings.TrimSpace(s.PlayerID)
	if s.GameID == "" && s.PlayerID == "" {
		return Scope{}, ErrScopeRequired
	}
	return s, nil
}

// Cursor marks an exclusive resume position in a stream. The zero value
// starts from the beginning. For player streams all three fields order the
// stream; for single-game streams Seq alone is enough.
type Cursor struct {
	After  time.Time
	GameID string
	Seq    uint64
}

// EventStore lists stream events after a cursor in stream order.
type EventStore interface {
	ListEvents(ctx context.Context, scope Scope, cursor Cursor, limit int) ([]event.Event, error)
}

// Applier applies a stream event to fold state.
type Applier interface {
	Apply(state any, evt event.Event) (any, error)
}

// Options configures replay behavior.
type Options struct {
	// Cursor is the exclusive resume position.
	Cursor Cursor
	// UntilTime, when set, stops before the first event after it. Events
	// stamped exactly at UntilTime are applied.
	UntilTime time.Time
	// UntilSeq, when nonzero, stops before the first event past that
	// game sequence.
	UntilSeq uint64
	// PageSize bounds each store read.
	PageSize int
	// Contiguous requires gap-free game sequences. Only whole-game scopes
	// can ask for this; player streams are sparse in game sequence space.
	Contiguous bool
}

// Result captures replay outcomes.
type Result struct {
	State   any
	Cursor  Cursor
	Applied int
}

// Replay replays scoped events in order, applying each one and advancing
// the cursor. It returns the state and cursor reached, even on error.
func Replay(ctx context.Context, store EventStore, applier Applier, scope Scope, state any, options Options) (Result, error) {
	if store == nil {
		return Result{}, ErrEventStoreRequired
	}
	if applier == nil {
		return Result{}, ErrApplierRequired
	}
	scope, err := scope.normalize()
	if err != nil {
		return Result{}, err
	}

	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	result := Result{State: state, Cursor: options.Cursor}
	for {
		events, err := store.ListEvents(ctx, scope, result.Cursor, pageSize)
		if err != nil {
			return result, err
		}
		if len(events) == 0 {
			return result, nil
		}
		for _, evt := range events {
			if !options.UntilTime.IsZero() && evt.Timestamp.After(options.UntilTime) {
				return result, nil
			}
			if options.UntilSeq > 0 && evt.Seq > options.UntilSeq {
				return result, nil
			}
			if err := checkOrder(result.Cursor, evt, options.Contiguous); err != nil {
				return result, err
			}
			nextState, err := applier.Apply(result.State, evt)
			if err != nil {
				return result, err
			}
			result.State = nextState
			result.Cursor = Cursor{After: evt.Timestamp, GameID: evt.GameID, Seq: evt.Seq}
			result.Applied++
		}
	}
}

// checkOrder rejects events that move the cursor backwards, and holes when
// the stream must be contiguous.
func checkOrder(cursor Cursor, evt event.Event, contiguous bool) error {
	if contiguous {
		expected := cursor.Seq + 1
		if evt.Seq != expected {
			return fmt.Errorf("%w: expected %d got %d", ErrSequenceGap, expected, evt.Seq)
		}
		return nil
	}
	if evt.Timestamp.Before(cursor.After) {
		return fmt.Errorf("%w: timestamp %s before cursor %s", ErrOrderViolation, evt.Timestamp.Format(time.RFC3339Nano), cursor.After.Format(time.RFC3339Nano))
	}
	if evt.Timestamp.Equal(cursor.After) && evt.GameID == cursor.GameID && evt.Seq <= cursor.Seq {
		return fmt.Errorf("%w: sequence %d at or before cursor %d", ErrOrderViolation, evt.Seq, cursor.Seq)
	}
	return nil
}
