// Package resolve answers temporal queries. A resolution finds the nearest
// checkpoint at or before the requested instant and folds the journal delta
// on top, so answers are exact while replay work stays bounded by
// checkpoint cadence.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
	"github.com/louisbranch/rewind/internal/domain/checkpoint"
	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/gamestate"
	"github.com/louisbranch/rewind/internal/domain/replay"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/storage"
)

// Resolver reads checkpoints and the journal to answer as-of queries.
type Resolver struct {
	// Events reads the journal for delta replays.
	Events storage.EventStore
	// Checkpoints resolves the nearest frozen snapshot per generation.
	Checkpoints storage.CheckpointStore
	// Bios resolves reference data for duration queries.
	Bios storage.BioStore
	// Marks resolves the active generation readers should observe.
	Marks storage.MarkStore
	// Cache short-circuits repeated resolutions when set.
	Cache *Cache
}

// PlayerSnapshot is a player's cumulative state as of an instant.
type PlayerSnapshot struct {
	PlayerID   string                `json:"player_id"`
	At         time.Time             `json:"at"`
	Generation uint64                `json:"generation"`
	Cumulative checkpoint.Cumulative `json:"cumulative"`
	Ratios     checkpoint.Ratios     `json:"ratios"`
	// CheckpointAsOf is the base checkpoint instant. Zero when the whole
	// window replayed cold from genesis.
	CheckpointAsOf time.Time `json:"checkpoint_as_of,omitempty"`
	// EventsApplied counts the delta events folded on top of the base.
	EventsApplied int `json:"events_applied"`
}

// GameState is a game's composite state as of an instant.
type GameState struct {
	GameID         string          `json:"game_id"`
	At             time.Time       `json:"at"`
	Generation     uint64          `json:"generation"`
	State          gamestate.State `json:"state"`
	CheckpointAsOf time.Time       `json:"checkpoint_as_of,omitempty"`
	EventsApplied  int             `json:"events_applied"`
}

// PlayerSnapshot resolves a player's cumulative counters as of at.
func (r *Resolver) PlayerSnapshot(ctx context.Context, playerID string, at time.Time) (PlayerSnapshot, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return PlayerSnapshot{}, fmt.Errorf("player id is required")
	}
	if at.IsZero() {
		return PlayerSnapshot{}, fmt.Errorf("instant is required")
	}
	at = at.UTC()

	generation, err := r.activeGeneration(ctx, storage.MarkPlayer, playerID)
	if err != nil {
		return PlayerSnapshot{}, err
	}

	key := cacheKey("player", playerID, generation, at)
	if cached, ok := r.Cache.get(key); ok {
		if snapshot, ok := cached.(PlayerSnapshot); ok {
			return snapshot, nil
		}
	}

	state := checkpoint.State{}
	cursor := replay.Cursor{}
	var checkpointAsOf time.Time
	base, err := r.Checkpoints.LatestPlayerCheckpointAt(ctx, playerID, generation, at)
	switch {
	case err == nil:
		state = base.ResumeState()
		cursor = replay.Cursor{After: base.AsOf, GameID: base.LastGameID, Seq: base.LastSeq}
		checkpointAsOf = base.AsOf
	case errors.Is(err, storage.ErrNotFound):
		// Cold resolution replays the whole window.
	default:
		return PlayerSnapshot{}, fmt.Errorf("resolve player checkpoint: %w", err)
	}

	scope := replay.Scope{PlayerID: playerID}
	result, err := replay.Replay(ctx, r.Events, playerApplier{}, scope, state, replay.Options{
		Cursor:    cursor,
		UntilTime: at,
	})
	if err != nil {
		return PlayerSnapshot{}, fmt.Errorf("replay player delta: %w", err)
	}
	folded, ok := result.State.(checkpoint.State)
	if !ok {
		return PlayerSnapshot{}, fmt.Errorf("player replay returned %T", result.State)
	}

	if checkpointAsOf.IsZero() && result.Applied == 0 {
		return PlayerSnapshot{}, r.beforeGenesis(ctx, scope, "player_id", playerID, at)
	}

	cumulative := checkpoint.SnapshotAt(folded, at)
	snapshot := PlayerSnapshot{
		PlayerID:       playerID,
		At:             at,
		Generation:     generation,
		Cumulative:     cumulative,
		Ratios:         checkpoint.DeriveRatios(cumulative),
		CheckpointAsOf: checkpointAsOf,
		EventsApplied:  result.Applied,
	}
	r.Cache.set(key, snapshot)
	return snapshot, nil
}

// GameState resolves a game's composite state as of at.
func (r *Resolver) GameState(ctx context.Context, gameID string, at time.Time) (GameState, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return GameState{}, fmt.Errorf("game id is required")
	}
	if at.IsZero() {
		return GameState{}, fmt.Errorf("instant is required")
	}
	at = at.UTC()

	generation, err := r.activeGeneration(ctx, storage.MarkGame, gameID)
	if err != nil {
		return GameState{}, err
	}

	key := cacheKey("game", gameID, generation, at)
	if cached, ok := r.Cache.get(key); ok {
		if state, ok := cached.(GameState); ok {
			return state, nil
		}
	}

	state := gamestate.State{}
	cursor := replay.Cursor{}
	var checkpointAsOf time.Time
	base, err := r.Checkpoints.LatestGameCheckpointAt(ctx, gameID, generation, at)
	switch {
	case err == nil:
		state = base.State
		cursor = replay.Cursor{After: base.AsOf, GameID: gameID, Seq: base.LastSeq}
		checkpointAsOf = base.AsOf
	case errors.Is(err, storage.ErrNotFound):
	default:
		return GameState{}, fmt.Errorf("resolve game checkpoint: %w", err)
	}

	scope := replay.Scope{GameID: gameID}
	result, err := replay.Replay(ctx, r.Events, gameApplier{}, scope, state, replay.Options{
		Cursor:    cursor,
		UntilTime: at,
	})
	if err != nil {
		return GameState{}, fmt.Errorf("replay game delta: %w", err)
	}
	folded, ok := result.State.(gamestate.State)
	if !ok {
		return GameState{}, fmt.Errorf("game replay returned %T", result.State)
	}

	if checkpointAsOf.IsZero() && result.Applied == 0 {
		return GameState{}, r.beforeGenesis(ctx, scope, "game_id", gameID, at)
	}

	resolved := GameState{
		GameID:         gameID,
		At:             at,
		Generation:     generation,
		State:          folded,
		CheckpointAsOf: checkpointAsOf,
		EventsApplied:  result.Applied,
	}
	r.Cache.set(key, resolved)
	return resolved, nil
}

// PlayerAge resolves a player's age at an instant in the requested unit.
// The answer is a range when the recorded birth precision leaves the
// distance ambiguous at that unit.
func (r *Resolver) PlayerAge(ctx context.Context, playerID string, at time.Time, unit age.Unit) (age.Span, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return age.Span{}, fmt.Errorf("player id is required")
	}
	bio, err := r.Bios.GetBio(ctx, playerID)
	if err != nil {
		return age.Span{}, fmt.Errorf("resolve player bio: %w", err)
	}
	return age.Between(bio.BirthInstant(), at, unit)
}

// activeGeneration reads the generation queries should observe. Entities
// that never had a mark read from the first generation.
func (r *Resolver) activeGeneration(ctx context.Context, kind storage.MarkKind, entityID string) (uint64, error) {
	mark, err := r.Marks.GetEntityMark(ctx, kind, entityID)
	if errors.Is(err, storage.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolve active generation: %w", err)
	}
	if mark.ActiveGeneration == 0 {
		return 1, nil
	}
	return mark.ActiveGeneration, nil
}

// beforeGenesis builds the not-found error for instants preceding a
// stream's first event, or for streams that do not exist at all.
func (r *Resolver) beforeGenesis(ctx context.Context, scope replay.Scope, idField, id string, at time.Time) error {
	meta := map[string]string{idField: id, "at": at.Format(time.RFC3339Nano)}
	genesis, err := r.Events.GetStreamGenesis(ctx, scope)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.WrapWithMetadata(
			apperrors.CodeNotFound,
			"no events recorded",
			meta,
			storage.ErrNotFound,
		)
	}
	if err != nil {
		return fmt.Errorf("resolve stream genesis: %w", err)
	}
	meta["genesis"] = genesis.Format(time.RFC3339Nano)
	return apperrors.WrapWithMetadata(
		apperrors.CodeNotFound,
		"instant precedes the first recorded event",
		meta,
		storage.ErrNotFound,
	)
}

func cacheKey(kind, id string, generation uint64, at time.Time) string {
	return kind + "|" + id + "|" + strconv.FormatUint(generation, 10) + "|" + strconv.FormatInt(at.UnixMilli(), 10)
}

// playerApplier folds journal events into cumulative player state.
type playerApplier struct{}

func (playerApplier) Apply(state any, evt event.Event) (any, error) {
	s, ok := state.(checkpoint.State)
	if !ok {
		return nil, fmt.Errorf("player replay state is %T", state)
	}
	return checkpoint.Fold(s, evt)
}

// gameApplier folds journal events into composite game state.
type gameApplier struct{}

func (gameApplier) Apply(state any, evt event.Event) (any, error) {
	s, ok := state.(gamestate.State)
	if !ok {
		return nil, fmt.Errorf("game replay state is %T", state)
	}
	return gamestate.Fold(s, evt)
}
