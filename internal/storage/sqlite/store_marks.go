package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/storage"
)

const entityMarkColumns = "kind, entity_id, active_generation, last_event_at, built_through, built_game_id, built_seq, attempts, next_retry_at, lease_owner, lease_until, updated_at"

// GetEntityMark retrieves one entity's build ledger row.
func (s *Store) GetEntityMark(ctx context.Context, kind storage.MarkKind, entityID string) (storage.EntityMark, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return storage.EntityMark{}, fmt.Errorf("entity id is required")
	}
	mark, err := scanEntityMark(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+entityMarkColumns+` FROM entity_marks WHERE kind = ? AND entity_id = ?`,
		string(kind), entityID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.EntityMark{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.EntityMark{}, fmt.Errorf("get entity mark: %w", err)
	}
	return mark, nil
}

// SaveEntityMark upserts an entity's build ledger row. Every field writes
// wholesale except LastEventAt, which is an ingest watermark and never
// regresses: a builder releasing a mark it claimed before fresh ingest must
// not hide the work that landed while it built.
func (s *Store) SaveEntityMark(ctx context.Context, mark storage.EntityMark) error {
	mark.EntityID = strings.TrimSpace(mark.EntityID)
	if mark.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if mark.Kind != storage.MarkPlayer && mark.Kind != storage.MarkGame {
		return fmt.Errorf("unknown mark kind %q", mark.Kind)
	}
	generation := mark.ActiveGeneration
	if generation == 0 {
		generation = 1
	}
	updatedAt := mark.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO entity_marks (`+entityMarkColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, entity_id) DO UPDATE SET
		   active_generation = excluded.active_generation,
		   last_event_at = MAX(last_event_at, excluded.last_event_at),
		   built_through = excluded.built_through,
		   built_game_id = excluded.built_game_id,
		   built_seq = excluded.built_seq,
		   attempts = excluded.attempts,
		   next_retry_at = excluded.next_retry_at,
		   lease_owner = excluded.lease_owner,
		   lease_until = excluded.lease_until,
		   updated_at = excluded.updated_at`,
		string(mark.Kind),
		mark.EntityID,
		int64(generation),
		millisOrZero(mark.LastEventAt),
		millisOrZero(mark.BuiltThrough),
		mark.BuiltGameID,
		int64(mark.BuiltSeq),
		int64(mark.Attempts),
		millisOrZero(mark.NextRetryAt),
		mark.LeaseOwner,
		millisOrZero(mark.LeaseUntil),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("save entity mark: %w", err)
	}
	return nil
}

// TouchEntityMark records fresh ingest for an entity, creating the mark on
// first sight and advancing LastEventAt. It never moves LastEventAt
// backwards, so replayed deliveries cannot hide newer work.
func (s *Store) TouchEntityMark(ctx context.Context, kind storage.MarkKind, entityID string, eventAt time.Time) error {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if kind != storage.MarkPlayer && kind != storage.MarkGame {
		return fmt.Errorf("unknown mark kind %q", kind)
	}
	if eventAt.IsZero() {
		return fmt.Errorf("event time is required")
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO entity_marks (kind, entity_id, last_event_at, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(kind, entity_id) DO UPDATE SET
		   last_event_at = MAX(last_event_at, excluded.last_event_at),
		   updated_at = excluded.updated_at`,
		string(kind),
		entityID,
		toMillis(eventAt),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("touch entity mark: %w", err)
	}
	return nil
}

// ListDueEntityMarks returns marks with unbuilt events whose retry and
// lease windows have passed, oldest retry first.
func (s *Store) ListDueEntityMarks(ctx context.Context, kind storage.MarkKind, now time.Time, limit int) ([]storage.EntityMark, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+entityMarkColumns+` FROM entity_marks
		 WHERE kind = ?
		   AND last_event_at > built_through
		   AND next_retry_at <= ?
		   AND lease_until <= ?
		 ORDER BY next_retry_at, last_event_at
		 LIMIT ?`,
		string(kind), toMillis(now), toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list due entity marks: %w", err)
	}
	defer rows.Close()

	var marks []storage.EntityMark
	for rows.Next() {
		mark, err := scanEntityMark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity mark: %w", err)
		}
		marks = append(marks, mark)
	}
	return marks, rows.Err()
}

// ClaimEntityMark takes the build lease when it is free. The conditional
// update loses cleanly when another builder holds the lease; losers see
// ErrNotFound and move on.
func (s *Store) ClaimEntityMark(ctx context.Context, kind storage.MarkKind, entityID, owner string, now time.Time, leaseFor time.Duration) (storage.EntityMark, error) {
	entityID = strings.TrimSpace(entityID)
	if entityID == "" {
		return storage.EntityMark{}, fmt.Errorf("entity id is required")
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return storage.EntityMark{}, fmt.Errorf("lease owner is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if leaseFor <= 0 {
		return storage.EntityMark{}, fmt.Errorf("lease duration is required")
	}

	result, err := s.sqlDB.ExecContext(ctx,
		`UPDATE entity_marks
		 SET lease_owner = ?, lease_until = ?, updated_at = ?
		 WHERE kind = ? AND entity_id = ? AND lease_until <= ?`,
		owner,
		toMillis(now.Add(leaseFor)),
		toMillis(now),
		string(kind),
		entityID,
		toMillis(now),
	)
	if err != nil {
		return storage.EntityMark{}, fmt.Errorf("claim entity mark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.EntityMark{}, fmt.Errorf("claim entity mark rows affected: %w", err)
	}
	if affected == 0 {
		return storage.EntityMark{}, storage.ErrNotFound
	}
	return s.GetEntityMark(ctx, kind, entityID)
}

func scanEntityMark(scanner rowScanner) (storage.EntityMark, error) {
	var mark storage.EntityMark
	var kind string
	var generation, builtSeq, attempts int64
	var lastEventAt, builtThrough, nextRetryAt, leaseUntil, updatedAt int64
	if err := scanner.Scan(
		&kind,
		&mark.EntityID,
		&generation,
		&lastEventAt,
		&builtThrough,
		&mark.BuiltGameID,
		&builtSeq,
		&attempts,
		&nextRetryAt,
		&mark.LeaseOwner,
		&leaseUntil,
		&updatedAt,
	); err != nil {
		return storage.EntityMark{}, err
	}
	mark.Kind = storage.MarkKind(kind)
	mark.ActiveGeneration = uint64(generation)
	mark.LastEventAt = timeOrZero(lastEventAt)
	mark.BuiltThrough = timeOrZero(builtThrough)
	mark.BuiltSeq = uint64(builtSeq)
	mark.Attempts = int(attempts)
	mark.NextRetryAt = timeOrZero(nextRetryAt)
	mark.LeaseUntil = timeOrZero(leaseUntil)
	mark.UpdatedAt = fromMillis(updatedAt)
	return mark, nil
}
