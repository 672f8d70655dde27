// Package panel turns possessions into wide feature rows.
//
// Each row joins a possession's outcome with the game context in effect
// when it started and with slow-changing player covariates. Covariates
// that have not been computed yet stay nil, which storage and transport
// surface as an explicit unknown rather than a zero.
package panel

import (
	"sort"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
)

// Covariate column names accepted by backfill.
const (
	ColumnOffenseSynergy = "offense_synergy"
	ColumnDefenseSynergy = "defense_synergy"
	ColumnPaceFactor     = "pace_factor"
	ColumnOffenseMeanAge = "offense_mean_age_years"
)

// CovariateColumns returns the backfillable column names.
func CovariateColumns() []string {
	return []string{
		ColumnOffenseSynergy,
		ColumnDefenseSynergy,
		ColumnPaceFactor,
		ColumnOffenseMeanAge,
	}
}

// IsCovariateColumn reports whether a column accepts backfill.
func IsCovariateColumn(name string) bool {
	switch name {
	case ColumnOffenseSynergy, ColumnDefenseSynergy, ColumnPaceFactor, ColumnOffenseMeanAge:
		return true
	}
	return false
}

// Row is one possession's feature row, unique per (GameID, PossessionSeq).
type Row struct {
	GameID        string    `json:"game_id"`
	PossessionSeq uint64    `json:"possession_seq"`
	Period        int       `json:"period"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`

	// OffenseSide is the side holding the ball for this possession.
	OffenseSide   event.Side `json:"offense_side"`
	OffenseTeamID string     `json:"offense_team_id,omitempty"`
	DefenseTeamID string     `json:"defense_team_id,omitempty"`

	// Lineup keys canonicalize the five on-floor players of each side,
	// independent of recording order.
	OffenseLineupKey string `json:"offense_lineup_key"`
	DefenseLineupKey string `json:"defense_lineup_key"`

	// ScoreDiffBefore is offense score minus defense score as the
	// possession starts. OffenseRunBefore is the offense's live scoring
	// run at the same instant.
	ScoreDiffBefore  int64 `json:"score_diff_before"`
	OffenseRunBefore int64 `json:"offense_run_before"`

	Result string `json:"result"`
	Points int64  `json:"points"`

	// Covariates. Nil means not yet backfilled.
	OffenseSynergy      *float64 `json:"offense_synergy"`
	DefenseSynergy      *float64 `json:"defense_synergy"`
	PaceFactor          *float64 `json:"pace_factor"`
	OffenseMeanAgeYears *float64 `json:"offense_mean_age_years"`
}

// LineupKey canonicalizes a participant group into an order-independent
// key. Member ids are sorted before joining, so every permutation of the
// same five players maps to the same key.
func LineupKey(members []string) string {
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
