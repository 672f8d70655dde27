package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/checkpoint"
	"github.com/louisbranch/rewind/internal/domain/gamestate"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/storage"
)

const playerCheckpointColumns = "player_id, generation, as_of, last_game_id, last_seq, on_floor, cumulative_json, ratios_json"

// SavePlayerCheckpoint persists a frozen player snapshot. A second write
// for the same (player, generation, as-of) fails with ErrCheckpointConflict.
func (s *Store) SavePlayerCheckpoint(ctx context.Context, cp checkpoint.Checkpoint) error {
	if strings.TrimSpace(cp.PlayerID) == "" {
		return fmt.Errorf("player id is required")
	}
	if cp.AsOf.IsZero() {
		return fmt.Errorf("checkpoint as-of is required")
	}
	cumulativeJSON, err := json.Marshal(cp.Cumulative)
	if err != nil {
		return fmt.Errorf("marshal cumulative: %w", err)
	}
	ratiosJSON, err := json.Marshal(cp.Ratios)
	if err != nil {
		return fmt.Errorf("marshal ratios: %w", err)
	}

	onFloor := int64(0)
	if cp.OnFloor {
		onFloor = 1
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO player_checkpoints (`+playerCheckpointColumns+`, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cp.PlayerID,
		int64(cp.Generation),
		toMillis(cp.AsOf),
		cp.LastGameID,
		int64(cp.LastSeq),
		onFloor,
		string(cumulativeJSON),
		string(ratiosJSON),
		toMillis(time.Now()),
	)
	if isConstraintError(err) {
		return apperrors.WrapWithMetadata(
			apperrors.CodeCheckpointConflict,
			"player checkpoint already exists for that instant",
			map[string]string{"player_id": cp.PlayerID},
			storage.ErrCheckpointConflict,
		)
	}
	if err != nil {
		return fmt.Errorf("save player checkpoint: %w", err)
	}
	return nil
}

// LatestPlayerCheckpointAt returns the player checkpoint with the greatest
// as-of at or before the instant within a generation.
func (s *Store) LatestPlayerCheckpointAt(ctx context.Context, playerID string, generation uint64, at time.Time) (checkpoint.Checkpoint, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return checkpoint.Checkpoint{}, fmt.Errorf("player id is required")
	}
	cp, err := scanPlayerCheckpoint(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+playerCheckpointColumns+` FROM player_checkpoints
		 WHERE player_id = ? AND generation = ? AND as_of <= ?
		 ORDER BY as_of DESC LIMIT 1`,
		playerID, int64(generation), toMillis(at),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return checkpoint.Checkpoint{}, storage.ErrNotFound
	}
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("latest player checkpoint: %w", err)
	}
	return cp, nil
}

// ListPlayerCheckpoints returns a player's checkpoints within a generation
// in as-of order.
func (s *Store) ListPlayerCheckpoints(ctx context.Context, playerID string, generation uint64, limit int) ([]checkpoint.Checkpoint, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+playerCheckpointColumns+` FROM player_checkpoints
		 WHERE player_id = ? AND generation = ?
		 ORDER BY as_of LIMIT ?`,
		playerID, int64(generation), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list player checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []checkpoint.Checkpoint
	for rows.Next() {
		cp, err := scanPlayerCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	return checkpoints, rows.Err()
}

func scanPlayerCheckpoint(scanner rowScanner) (checkpoint.Checkpoint, error) {
	var cp checkpoint.Checkpoint
	var generation, asOfMillis, lastSeq, onFloor int64
	var cumulativeJSON, ratiosJSON string
	if err := scanner.Scan(
		&cp.PlayerID,
		&generation,
		&asOfMillis,
		&cp.LastGameID,
		&lastSeq,
		&onFloor,
		&cumulativeJSON,
		&ratiosJSON,
	); err != nil {
		return checkpoint.Checkpoint{}, err
	}
	cp.Generation = uint64(generation)
	cp.AsOf = fromMillis(asOfMillis)
	cp.LastSeq = uint64(lastSeq)
	cp.OnFloor = onFloor != 0
	if err := json.Unmarshal([]byte(cumulativeJSON), &cp.Cumulative); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("unmarshal cumulative: %w", err)
	}
	if err := json.Unmarshal([]byte(ratiosJSON), &cp.Ratios); err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("unmarshal ratios: %w", err)
	}
	return cp, nil
}

// SaveGameCheckpoint persists a frozen composite game snapshot. A second
// write for the same (game, generation, as-of) fails with
// ErrCheckpointConflict.
func (s *Store) SaveGameCheckpoint(ctx context.Context, cp storage.GameCheckpoint) error {
	if strings.TrimSpace(cp.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	if cp.AsOf.IsZero() {
		return fmt.Errorf("checkpoint as-of is required")
	}
	stateJSON, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO game_checkpoints (game_id, generation, as_of, last_seq, state_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cp.GameID,
		int64(cp.Generation),
		toMillis(cp.AsOf),
		int64(cp.LastSeq),
		string(stateJSON),
		toMillis(time.Now()),
	)
	if isConstraintError(err) {
		return apperrors.WrapWithMetadata(
			apperrors.CodeCheckpointConflict,
			"game checkpoint already exists for that instant",
			map[string]string{"game_id": cp.GameID},
			storage.ErrCheckpointConflict,
		)
	}
	if err != nil {
		return fmt.Errorf("save game checkpoint: %w", err)
	}
	return nil
}

// LatestGameCheckpointAt returns the game checkpoint with the greatest
// as-of at or before the instant within a generation.
func (s *Store) LatestGameCheckpointAt(ctx context.Context, gameID string, generation uint64, at time.Time) (storage.GameCheckpoint, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return storage.GameCheckpoint{}, fmt.Errorf("game id is required")
	}
	var cp storage.GameCheckpoint
	var generationOut, asOfMillis, lastSeq int64
	var stateJSON string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT game_id, generation, as_of, last_seq, state_json FROM game_checkpoints
		 WHERE game_id = ? AND generation = ? AND as_of <= ?
		 ORDER BY as_of DESC LIMIT 1`,
		gameID, int64(generation), toMillis(at),
	).Scan(&cp.GameID, &generationOut, &asOfMillis, &lastSeq, &stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.GameCheckpoint{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.GameCheckpoint{}, fmt.Errorf("latest game checkpoint: %w", err)
	}
	cp.Generation = uint64(generationOut)
	cp.AsOf = fromMillis(asOfMillis)
	cp.LastSeq = uint64(lastSeq)
	var state gamestate.State
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return storage.GameCheckpoint{}, fmt.Errorf("unmarshal game state: %w", err)
	}
	cp.State = state
	return cp, nil
}

// PruneCheckpoints drops an entity's checkpoints from generations older
// than the given one. Regeneration flips call this after readers move to
// the new generation.
func (s *Store) PruneCheckpoints(ctx context.Context, kind storage.MarkKind, entityID string, beforeGeneration uint64) error {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}
	var query string
	switch kind {
	case storage.MarkPlayer:
		query = `DELETE FROM player_checkpoints WHERE player_id = ? AND generation < ?`
	case storage.MarkGame:
		query = `DELETE FROM game_checkpoints WHERE game_id = ? AND generation < ?`
	default:
		return fmt.Errorf("unknown mark kind %q", kind)
	}
	if _, err := s.sqlDB.ExecContext(ctx, query, entityID, int64(beforeGeneration)); err != nil {
		return fmt.Errorf("prune checkpoints: %w", err)
	}
	return nil
}
