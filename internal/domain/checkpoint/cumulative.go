package checkpoint

// Cumulative captures the running counters for one player. Every field only
// grows as events fold in, which is what keeps checkpoints comparable across
// instants.
type Cumulative struct {
	// PlayedMillis is time on the floor in milliseconds, closed at snapshot time.
	PlayedMillis int64 `json:"played_millis"`
	// Points is total points scored (field goals plus free throws).
	Points                 int64 `json:"points"`
	FieldGoalsMade         int64 `json:"field_goals_made"`
	FieldGoalsAttempted    int64 `json:"field_goals_attempted"`
	ThreePointersMade      int64 `json:"three_pointers_made"`
	ThreePointersAttempted int64 `json:"three_pointers_attempted"`
	FreeThrowsMade         int64 `json:"free_throws_made"`
	FreeThrowsAttempted    int64 `json:"free_throws_attempted"`
	OffensiveRebounds      int64 `json:"offensive_rebounds"`
	DefensiveRebounds      int64 `json:"defensive_rebounds"`
	Assists                int64 `json:"assists"`
	Steals                 int64 `json:"steals"`
	Blocks                 int64 `json:"blocks"`
	Turnovers              int64 `json:"turnovers"`
	Fouls                  int64 `json:"fouls"`
}

// Counters returns every cumulative counter in declaration order. Consumers
// use this to check monotonicity between two snapshots of the same player.
func (c Cumulative) Counters() []int64 {
	return []int64{
		c.PlayedMillis,
		c.Points,
		c.FieldGoalsMade,
		c.FieldGoalsAttempted,
		c.ThreePointersMade,
		c.ThreePointersAttempted,
		c.FreeThrowsMade,
		c.FreeThrowsAttempted,
		c.OffensiveRebounds,
		c.DefensiveRebounds,
		c.Assists,
		c.Steals,
		c.Blocks,
		c.Turnovers,
		c.Fouls,
	}
}

// AtLeast reports whether every counter in c is >= the matching counter in prev.
func (c Cumulative) AtLeast(prev Cumulative) bool {
	current := c.Counters()
	earlier := prev.Counters()
	for i := range current {
		if current[i] < earlier[i] {
			return false
		}
	}
	return true
}

// Ratios holds derived rates computed at snapshot time. A nil field means the
// denominator was zero: the value is unknown, not zero.
type Ratios struct {
	FieldGoalPct  *float64 `json:"field_goal_pct"`
	ThreePointPct *float64 `json:"three_point_pct"`
	FreeThrowPct  *float64 `json:"free_throw_pct"`
	PointsPer36   *float64 `json:"points_per_36"`
}

// DeriveRatios computes snapshot-time rates from the counters.
func DeriveRatios(c Cumulative) Ratios {
	var r Ratios
	if c.FieldGoalsAttempted > 0 {
		v := float64(c.FieldGoalsMade) / float64(c.FieldGoalsAttempted)
		r.FieldGoalPct = &v
	}
	if c.ThreePointersAttempted > 0 {
		v := float64(c.ThreePointersMade) / float64(c.ThreePointersAttempted)
		r.ThreePointPct = &v
	}
	if c.FreeThrowsAttempted > 0 {
		v := float64(c.FreeThrowsMade) / float64(c.FreeThrowsAttempted)
		r.FreeThrowPct = &v
	}
	if c.PlayedMillis > 0 {
		v := float64(c.Points) / (float64(c.PlayedMillis) / float64(36*60*1000))
		r.PointsPer36 = &v
	}
	return r
}
