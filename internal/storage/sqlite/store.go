package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/rewind/internal/storage/sqlite/migrations"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis reverses toMillis for persisted millisecond timestamps.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// toNullMillis maps optional domain times to sql.NullInt64 for nullable DB columns.
func toNullMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(value), Valid: true}
}

// fromNullMillis maps nullable SQL timestamps back into domain time values.
func fromNullMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return fromMillis(value.Int64)
}

// millisOrZero maps optional times onto NOT NULL columns where 0 means
// "never". A zero time must not become a negative epoch offset.
func millisOrZero(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return toMillis(value)
}

// timeOrZero reverses millisOrZero.
func timeOrZero(millis int64) time.Time {
	if millis == 0 {
		return time.Time{}
	}
	return fromMillis(millis)
}

func toNullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}

func fromNullInt64(value sql.NullInt64) *int64 {
	if !value.Valid {
		return nil
	}
	v := value.Int64
	return &v
}

func toNullFloat64(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func fromNullFloat64(value sql.NullFloat64) *float64 {
	if !value.Valid {
		return nil
	}
	v := value.Float64
	return &v
}

// Store provides a SQLite-backed store implementing all storage interfaces.
//
// Both migration sets apply to one database file: generation flips in
// entity_marks and the checkpoint prunes they authorize must share a
// transaction.
type Store struct {
	sqlDB         *sql.DB
	eventRegistry *event.Registry
}

// Open opens a SQLite store at the provided path and applies embedded
// migrations. The registry validates every appended event.
func Open(ctx context.Context, path string, registry *event.Registry) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("event registry is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.EventsFS, "events"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run events migrations: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.DerivedFS, "derived"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run derived migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB, eventRegistry: registry}, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup
// paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
