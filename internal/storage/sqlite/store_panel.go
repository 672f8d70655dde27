package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/panel"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/storage"
)

const panelRowColumns = "game_id, possession_seq, period, start_time, end_time, offense_side, offense_team_id, defense_team_id, offense_lineup_key, defense_lineup_key, score_diff_before, offense_run_before, result, points, offense_synergy, defense_synergy, pace_factor, offense_mean_age_years"

// InsertPanelRow creates a possession row, failing with ErrPanelRowConflict
// when the possession already has one.
func (s *Store) InsertPanelRow(ctx context.Context, row panel.Row) error {
	if err := validatePanelRow(row); err != nil {
		return err
	}
	err := s.execPanelRow(ctx,
		`INSERT INTO panel_rows (`+panelRowColumns+`, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row,
	)
	if isConstraintError(err) {
		return apperrors.WrapWithMetadata(
			apperrors.CodePanelRowConflict,
			"panel row already exists for that possession",
			map[string]string{"game_id": row.GameID},
			storage.ErrPanelRowConflict,
		)
	}
	if err != nil {
		return fmt.Errorf("insert panel row: %w", err)
	}
	return nil
}

// ReplacePanelRow upserts a possession row wholesale. Rebuilds use this so
// regenerated rows overwrite stale ones without a delete pass.
func (s *Store) ReplacePanelRow(ctx context.Context, row panel.Row) error {
	if err := validatePanelRow(row); err != nil {
		return err
	}
	err := s.execPanelRow(ctx,
		`INSERT INTO panel_rows (`+panelRowColumns+`, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(game_id, possession_seq) DO UPDATE SET
		   period = excluded.period,
		   start_time = excluded.start_time,
		   end_time = excluded.end_time,
		   offense_side = excluded.offense_side,
		   offense_team_id = excluded.offense_team_id,
		   defense_team_id = excluded.defense_team_id,
		   offense_lineup_key = excluded.offense_lineup_key,
		   defense_lineup_key = excluded.defense_lineup_key,
		   score_diff_before = excluded.score_diff_before,
		   offense_run_before = excluded.offense_run_before,
		   result = excluded.result,
		   points = excluded.points,
		   offense_synergy = excluded.offense_synergy,
		   defense_synergy = excluded.defense_synergy,
		   pace_factor = excluded.pace_factor,
		   offense_mean_age_years = excluded.offense_mean_age_years,
		   updated_at = excluded.updated_at`,
		row,
	)
	if err != nil {
		return fmt.Errorf("replace panel row: %w", err)
	}
	return nil
}

func validatePanelRow(row panel.Row) error {
	if strings.TrimSpace(row.GameID) == "" {
		return fmt.Errorf("game id is required")
	}
	if row.PossessionSeq == 0 {
		return fmt.Errorf("possession seq is required")
	}
	return nil
}

func (s *Store) execPanelRow(ctx context.Context, query string, row panel.Row) error {
	_, err := s.sqlDB.ExecContext(ctx, query,
		row.GameID,
		int64(row.PossessionSeq),
		int64(row.Period),
		toMillis(row.StartTime),
		toMillis(row.EndTime),
		string(row.OffenseSide),
		row.OffenseTeamID,
		row.DefenseTeamID,
		row.OffenseLineupKey,
		row.DefenseLineupKey,
		row.ScoreDiffBefore,
		row.OffenseRunBefore,
		row.Result,
		row.Points,
		toNullFloat64(row.OffenseSynergy),
		toNullFloat64(row.DefenseSynergy),
		toNullFloat64(row.PaceFactor),
		toNullFloat64(row.OffenseMeanAgeYears),
		toMillis(time.Now()),
	)
	return err
}

// GetPanelRow retrieves one possession row.
func (s *Store) GetPanelRow(ctx context.Context, gameID string, possessionSeq uint64) (panel.Row, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return panel.Row{}, fmt.Errorf("game id is required")
	}
	row, err := scanPanelRow(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+panelRowColumns+` FROM panel_rows
		 WHERE game_id = ? AND possession_seq = ?`,
		gameID, int64(possessionSeq),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return panel.Row{}, storage.ErrNotFound
	}
	if err != nil {
		return panel.Row{}, fmt.Errorf("get panel row: %w", err)
	}
	return row, nil
}

// ListPanelRows returns a game's possession rows in possession order.
func (s *Store) ListPanelRows(ctx context.Context, gameID string, limit int) ([]panel.Row, error) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, fmt.Errorf("game id is required")
	}
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+panelRowColumns+` FROM panel_rows
		 WHERE game_id = ? ORDER BY possession_seq LIMIT ?`,
		gameID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list panel rows: %w", err)
	}
	defer rows.Close()

	var result []panel.Row
	for rows.Next() {
		row, err := scanPanelRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan panel row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// BackfillPanelColumn updates exactly one covariate column of one row,
// leaving every other column untouched. A nil value resets the column to
// unknown.
func (s *Store) BackfillPanelColumn(ctx context.Context, gameID string, possessionSeq uint64, column string, value *float64) error {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}
	if !panel.IsCovariateColumn(column) {
		return apperrors.WithMetadata(
			apperrors.CodePanelUnknownColumn,
			"column is not a backfillable covariate",
			map[string]string{"column": column},
		)
	}
	// The column name is validated against the fixed covariate set above,
	// never interpolated from caller input.
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE panel_rows SET `+column+` = ?, updated_at = ?
		 WHERE game_id = ? AND possession_seq = ?`,
		toNullFloat64(value),
		toMillis(time.Now()),
		gameID,
		int64(possessionSeq),
	)
	if err != nil {
		return fmt.Errorf("backfill panel column: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("backfill panel column: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanPanelRow(scanner rowScanner) (panel.Row, error) {
	var row panel.Row
	var possessionSeq, period, startMillis, endMillis int64
	var offenseSide string
	var offenseSynergy, defenseSynergy, paceFactor, meanAge sql.NullFloat64
	if err := scanner.Scan(
		&row.GameID,
		&possessionSeq,
		&period,
		&startMillis,
		&endMillis,
		&offenseSide,
		&row.OffenseTeamID,
		&row.DefenseTeamID,
		&row.OffenseLineupKey,
		&row.DefenseLineupKey,
		&row.ScoreDiffBefore,
		&row.OffenseRunBefore,
		&row.Result,
		&row.Points,
		&offenseSynergy,
		&defenseSynergy,
		&paceFactor,
		&meanAge,
	); err != nil {
		return panel.Row{}, err
	}
	row.PossessionSeq = uint64(possessionSeq)
	row.Period = int(period)
	row.StartTime = fromMillis(startMillis)
	row.EndTime = fromMillis(endMillis)
	row.OffenseSide = event.Side(offenseSide)
	row.OffenseSynergy = fromNullFloat64(offenseSynergy)
	row.DefenseSynergy = fromNullFloat64(defenseSynergy)
	row.PaceFactor = fromNullFloat64(paceFactor)
	row.OffenseMeanAgeYears = fromNullFloat64(meanAge)
	return row, nil
}
