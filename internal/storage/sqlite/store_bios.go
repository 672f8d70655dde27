package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
	"github.com/louisbranch/rewind/internal/storage"
)

// SaveBio upserts a player's reference record. Unknown optional fields stay
// NULL rather than zero so duration math can tell the two apart.
func (s *Store) SaveBio(ctx context.Context, bio storage.Bio) error {
	bio.PlayerID = strings.TrimSpace(bio.PlayerID)
	if bio.PlayerID == "" {
		return fmt.Errorf("player id is required")
	}
	if bio.BirthPrecision == "" {
		bio.BirthPrecision = age.PrecisionUnknown
	}
	precision, err := age.ParsePrecision(string(bio.BirthPrecision))
	if err != nil {
		return err
	}
	if precision != age.PrecisionUnknown && bio.BirthDate.IsZero() {
		return fmt.Errorf("birth date is required for precision %q", precision)
	}

	birthDate := sql.NullInt64{}
	if precision != age.PrecisionUnknown {
		birthDate = sql.NullInt64{Int64: toMillis(bio.BirthDate), Valid: true}
	}
	updatedAt := bio.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO bios (player_id, full_name, birth_date, birth_precision, country, position, height_cm, weight_kg, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(player_id) DO UPDATE SET
		   full_name = excluded.full_name,
		   birth_date = excluded.birth_date,
		   birth_precision = excluded.birth_precision,
		   country = excluded.country,
		   position = excluded.position,
		   height_cm = excluded.height_cm,
		   weight_kg = excluded.weight_kg,
		   updated_at = excluded.updated_at`,
		bio.PlayerID,
		bio.FullName,
		birthDate,
		string(precision),
		bio.Country,
		bio.Position,
		toNullInt64(bio.HeightCM),
		toNullInt64(bio.WeightKG),
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("save bio: %w", err)
	}
	return nil
}

// GetBio retrieves a player's reference record.
func (s *Store) GetBio(ctx context.Context, playerID string) (storage.Bio, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return storage.Bio{}, fmt.Errorf("player id is required")
	}
	var bio storage.Bio
	var birthDate sql.NullInt64
	var precision string
	var heightCM, weightKG sql.NullInt64
	var updatedAtMillis int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT player_id, full_name, birth_date, birth_precision, country, position, height_cm, weight_kg, updated_at
		 FROM bios WHERE player_id = ?`,
		playerID,
	).Scan(
		&bio.PlayerID,
		&bio.FullName,
		&birthDate,
		&precision,
		&bio.Country,
		&bio.Position,
		&heightCM,
		&weightKG,
		&updatedAtMillis,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Bio{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Bio{}, fmt.Errorf("get bio: %w", err)
	}
	if birthDate.Valid {
		bio.BirthDate = fromMillis(birthDate.Int64)
	}
	bio.BirthPrecision = age.Precision(precision)
	bio.HeightCM = fromNullInt64(heightCM)
	bio.WeightKG = fromNullInt64(weightKG)
	bio.UpdatedAt = fromMillis(updatedAtMillis)
	return bio, nil
}
