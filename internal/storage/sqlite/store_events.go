package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/replay"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/storage"
	"github.com/louisbranch/rewind/internal/storage/cursor"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const eventColumns = "game_id, seq, event_hash, prev_event_hash, chain_hash, timestamp, event_type, side, player_id, payload_json"

// AppendEvent atomically appends an event and returns it with sequence and
// chain hashes assigned. A content-identical duplicate returns the stored
// event instead of a new one, so at-least-once delivery lands exactly once.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if s.eventRegistry == nil {
		return event.Event{}, fmt.Errorf("event registry is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return event.Event{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stored, err := appendEventTx(ctx, tx, s.eventRegistry, evt)
	if err != nil {
		if isConstraintError(err) && stored.Hash != "" {
			duplicate, lookupErr := s.GetEventByHash(ctx, stored.Hash)
			if lookupErr == nil {
				return duplicate, nil
			}
		}
		return event.Event{}, err
	}

	if err := tx.Commit(); err != nil {
		return event.Event{}, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

// AppendEvents appends a batch with partial-failure semantics. Offending
// events are rejected individually; the rest of the batch lands.
func (s *Store) AppendEvents(ctx context.Context, events []event.Event) ([]storage.AppendOutcome, error) {
	outcomes := make([]storage.AppendOutcome, 0, len(events))
	for _, evt := range events {
		stored, err := s.AppendEvent(ctx, evt)
		if err != nil {
			outcomes = append(outcomes, storage.AppendOutcome{Event: evt, Err: err})
			continue
		}
		outcomes = append(outcomes, storage.AppendOutcome{Event: stored})
	}
	return outcomes, nil
}

// appendEventTx runs the whole append protocol inside one transaction:
// normalize, validate, order check against the stream head, sequence
// assignment, and chain hashing. On an insert conflict the returned event
// carries the content hash so the caller can resolve the duplicate.
func appendEventTx(ctx context.Context, tx *sql.Tx, registry *event.Registry, evt event.Event) (event.Event, error) {
	normalized, err := event.NormalizeForAppend(evt)
	if err != nil {
		return event.Event{}, err
	}
	evt = normalized
	if _, err := registry.ValidateForAppend(evt); err != nil {
		return event.Event{}, err
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	hash, err := event.EventHash(evt)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	evt.Hash = hash

	// Content-identical re-delivery returns the stored event, even when
	// newer events have landed since.
	existing, err := scanEvent(tx.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_hash = ?`,
		evt.Hash,
	))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, fmt.Errorf("check duplicate event: %w", err)
	}

	head := tx.QueryRowContext(ctx,
		`SELECT timestamp, chain_hash FROM events WHERE game_id = ? ORDER BY seq DESC LIMIT 1`,
		evt.GameID,
	)
	var headMillis int64
	var prevHash string
	switch err := head.Scan(&headMillis, &prevHash); {
	case errors.Is(err, sql.ErrNoRows):
		// First event of the game.
	case err != nil:
		return event.Event{}, fmt.Errorf("load stream head: %w", err)
	default:
		if toMillis(evt.Timestamp) < headMillis {
			return event.Event{}, apperrors.WrapWithMetadata(
				apperrors.CodeEventOutOfOrder,
				"event timestamp precedes the stream head",
				map[string]string{"game_id": evt.GameID, "event_type": string(evt.Type)},
				storage.ErrOutOfOrder,
			)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO event_seqs (game_id, next_seq) VALUES (?, 1)`,
		evt.GameID,
	); err != nil {
		return event.Event{}, fmt.Errorf("init event seq: %w", err)
	}
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT next_seq FROM event_seqs WHERE game_id = ?`,
		evt.GameID,
	).Scan(&seq); err != nil {
		return event.Event{}, fmt.Errorf("get event seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE event_seqs SET next_seq = next_seq + 1 WHERE game_id = ?`,
		evt.GameID,
	); err != nil {
		return event.Event{}, fmt.Errorf("increment event seq: %w", err)
	}
	if seq <= 0 {
		return event.Event{}, fmt.Errorf("event seq is required")
	}
	evt.Seq = uint64(seq)

	chainHash, err := event.ChainHash(evt, prevHash)
	if err != nil {
		return event.Event{}, fmt.Errorf("compute chain hash: %w", err)
	}
	evt.PrevHash = prevHash
	evt.ChainHash = chainHash

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.GameID,
		seq,
		evt.Hash,
		evt.PrevHash,
		evt.ChainHash,
		toMillis(evt.Timestamp),
		string(evt.Type),
		string(evt.Side),
		evt.PlayerID,
		string(evt.PayloadJSON),
	); err != nil {
		return evt, fmt.Errorf("append event: %w", err)
	}

	return evt, nil
}

// GetEventByHash retrieves an event by its content hash.
func (s *Store) GetEventByHash(ctx context.Context, hash string) (event.Event, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return event.Event{}, fmt.Errorf("event hash is required")
	}
	evt, err := scanEvent(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE event_hash = ?`,
		hash,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, storage.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event by hash: %w", err)
	}
	return evt, nil
}

// GetEventBySeq retrieves a specific event by game sequence.
func (s *Store) GetEventBySeq(ctx context.Context, gameID string, seq uint64) (event.Event, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return event.Event{}, fmt.Errorf("game id is required")
	}
	evt, err := scanEvent(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE game_id = ? AND seq = ?`,
		gameID, int64(seq),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, storage.ErrNotFound
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("get event by seq: %w", err)
	}
	return evt, nil
}

// ListEvents returns a stream slice in (timestamp, game, seq) order after
// the cursor. It satisfies replay.EventStore.
func (s *Store) ListEvents(ctx context.Context, scope replay.Scope, cur replay.Cursor, limit int) ([]event.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	var conds []string
	var args []any
	if gameID := strings.TrimSpace(scope.GameID); gameID != "" {
		conds = append(conds, "game_id = ?")
		args = append(args, gameID)
	}
	if playerID := strings.TrimSpace(scope.PlayerID); playerID != "" {
		conds = append(conds, "player_id = ?")
		args = append(args, playerID)
	}
	if len(conds) == 0 {
		return nil, replay.ErrScopeRequired
	}

	afterMillis := int64(0)
	if !cur.After.IsZero() {
		afterMillis = toMillis(cur.After)
	}
	conds = append(conds, "(timestamp > ? OR (timestamp = ? AND (game_id > ? OR (game_id = ? AND seq > ?))))")
	args = append(args, afterMillis, afterMillis, cur.GameID, cur.GameID, int64(cur.Seq))

	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY timestamp, game_id, seq LIMIT ?`
	args = append(args, limit)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsPage returns a filtered, restartable, time-ordered page.
func (s *Store) ListEventsPage(ctx context.Context, req storage.ListEventsPageRequest) (storage.ListEventsPageResult, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	filterKey := eventsFilterKey(req)

	var conds []string
	var args []any
	if gameID := strings.TrimSpace(req.GameID); gameID != "" {
		conds = append(conds, "game_id = ?")
		args = append(args, gameID)
	}
	if playerID := strings.TrimSpace(req.PlayerID); playerID != "" {
		conds = append(conds, "player_id = ?")
		args = append(args, playerID)
	}
	if len(req.Types) > 0 {
		placeholders := make([]string, len(req.Types))
		for i, typ := range req.Types {
			placeholders[i] = "?"
			args = append(args, string(typ))
		}
		conds = append(conds, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if !req.From.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, toMillis(req.From))
	}
	if !req.To.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, toMillis(req.To))
	}

	if req.PageToken != "" {
		cur, err := cursor.Decode(req.PageToken)
		if err != nil {
			return storage.ListEventsPageResult{}, fmt.Errorf("decode page token: %w", err)
		}
		if err := cursor.ValidateFilterHash(cur, filterKey); err != nil {
			return storage.ListEventsPageResult{}, fmt.Errorf("page token: %w", err)
		}
		conds = append(conds, "(timestamp > ? OR (timestamp = ? AND (game_id > ? OR (game_id = ? AND seq > ?))))")
		args = append(args, cur.AfterMillis, cur.AfterMillis, cur.GameID, cur.GameID, int64(cur.Seq))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY timestamp, game_id, seq LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.ListEventsPageResult{}, fmt.Errorf("list events page: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return storage.ListEventsPageResult{}, err
	}

	result := storage.ListEventsPageResult{Events: events}
	if len(events) > pageSize {
		result.Events = events[:pageSize]
		last := result.Events[len(result.Events)-1]
		token, err := cursor.Encode(cursor.Cursor{
			AfterMillis: toMillis(last.Timestamp),
			GameID:      last.GameID,
			Seq:         last.Seq,
			FilterHash:  cursor.HashFilter(filterKey),
		})
		if err != nil {
			return storage.ListEventsPageResult{}, fmt.Errorf("encode page token: %w", err)
		}
		result.NextPageToken = token
	}
	return result, nil
}

// eventsFilterKey canonicalizes the listing filter so page tokens go stale
// when the filter changes.
func eventsFilterKey(req storage.ListEventsPageRequest) string {
	types := make([]string, len(req.Types))
	for i, typ := range req.Types {
		types[i] = string(typ)
	}
	parts := []string{
		strings.TrimSpace(req.GameID),
		strings.TrimSpace(req.PlayerID),
		strings.Join(types, ","),
	}
	if !req.From.IsZero() {
		parts = append(parts, req.From.UTC().Format(time.RFC3339Nano))
	}
	if !req.To.IsZero() {
		parts = append(parts, req.To.UTC().Format(time.RFC3339Nano))
	}
	return strings.Join(parts, "|")
}

// GetLatestEventSeq returns the latest sequence for a game, 0 when the
// game has no events.
func (s *Store) GetLatestEventSeq(ctx context.Context, gameID string) (uint64, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return 0, fmt.Errorf("game id is required")
	}
	var seq sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT MAX(seq) FROM events WHERE game_id = ?`,
		gameID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get latest event seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

// GetStreamGenesis returns the timestamp of a stream's first event.
func (s *Store) GetStreamGenesis(ctx context.Context, scope replay.Scope) (time.Time, error) {
	var conds []string
	var args []any
	if gameID := strings.TrimSpace(scope.GameID); gameID != "" {
		conds = append(conds, "game_id = ?")
		args = append(args, gameID)
	}
	if playerID := strings.TrimSpace(scope.PlayerID); playerID != "" {
		conds = append(conds, "player_id = ?")
		args = append(args, playerID)
	}
	if len(conds) == 0 {
		return time.Time{}, replay.ErrScopeRequired
	}

	var millis sql.NullInt64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT MIN(timestamp) FROM events WHERE `+strings.Join(conds, " AND "),
		args...,
	).Scan(&millis)
	if err != nil {
		return time.Time{}, fmt.Errorf("get stream genesis: %w", err)
	}
	if !millis.Valid {
		return time.Time{}, storage.ErrNotFound
	}
	return fromMillis(millis.Int64), nil
}

// VerifyGameChain walks a game's chain hashes in sequence order and
// returns the number of verified events.
func (s *Store) VerifyGameChain(ctx context.Context, gameID string) (uint64, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return 0, fmt.Errorf("game id is required")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE game_id = ? ORDER BY seq`,
		gameID,
	)
	if err != nil {
		return 0, fmt.Errorf("verify game chain: %w", err)
	}
	defer rows.Close()

	var verified uint64
	prevHash := ""
	expectedSeq := uint64(1)
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return verified, err
		}
		if evt.Seq != expectedSeq {
			return verified, fmt.Errorf("chain gap at seq %d: expected %d", evt.Seq, expectedSeq)
		}
		hash, err := event.EventHash(evt)
		if err != nil {
			return verified, fmt.Errorf("rehash seq %d: %w", evt.Seq, err)
		}
		if hash != evt.Hash {
			return verified, fmt.Errorf("event hash mismatch at seq %d", evt.Seq)
		}
		chainHash, err := event.ChainHash(evt, prevHash)
		if err != nil {
			return verified, fmt.Errorf("rechain seq %d: %w", evt.Seq, err)
		}
		if chainHash != evt.ChainHash || evt.PrevHash != prevHash {
			return verified, fmt.Errorf("chain hash mismatch at seq %d", evt.Seq)
		}
		prevHash = evt.ChainHash
		expectedSeq++
		verified++
	}
	return verified, rows.Err()
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(scanner rowScanner) (event.Event, error) {
	var evt event.Event
	var seq int64
	var millis int64
	var eventType, side, payload string
	if err := scanner.Scan(
		&evt.GameID,
		&seq,
		&evt.Hash,
		&evt.PrevHash,
		&evt.ChainHash,
		&millis,
		&eventType,
		&side,
		&evt.PlayerID,
		&payload,
	); err != nil {
		return event.Event{}, err
	}
	evt.Seq = uint64(seq)
	evt.Timestamp = fromMillis(millis)
	evt.Type = event.Type(eventType)
	evt.Side = event.Side(side)
	evt.PayloadJSON = []byte(payload)
	return evt, nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}
