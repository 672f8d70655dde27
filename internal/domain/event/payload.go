package event

// ShotPayload captures the payload for shot.made and shot.missed events.
type ShotPayload struct {
	// Points is the value of the attempt (2 or 3).
	Points int `json:"points"`
	// AssistPlayerID credits the assisting player on made shots.
	AssistPlayerID string `json:"assist_player_id,omitempty"`
	// Ext carries forward-compatible fields not covered by the core schema.
	Ext map[string]string `json:"ext,omitempty"`
}

// FreeThrowPayload captures the payload for free_throw.made and free_throw.missed events.
type FreeThrowPayload struct {
	// Attempt is the index within the trip to the line (1-based).
	Attempt int `json:"attempt"`
	// Of is the total free throws awarded in the trip.
	Of  int               `json:"of"`
	Ext map[string]string `json:"ext,omitempty"`
}

// ReboundPayload captures the payload for rebound.secured events.
type ReboundPayload struct {
	// Offensive marks an offensive rebound.
	Offensive bool              `json:"offensive"`
	Ext       map[string]string `json:"ext,omitempty"`
}

// PossessionStartPayload captures the payload for possession.start events.
type PossessionStartPayload struct {
	// PossessionSeq numbers the possession within the game (1-based).
	PossessionSeq uint64            `json:"possession_seq"`
	Ext           map[string]string `json:"ext,omitempty"`
}

// PossessionEndPayload captures the payload for possession.end events.
type PossessionEndPayload struct {
	// PossessionSeq numbers the possession within the game (1-based).
	PossessionSeq uint64 `json:"possession_seq"`
	// Result describes how the possession ended (made_shot, turnover,
	// defensive_rebound, end_of_period).
	Result string `json:"result"`
	// Points is the number of points scored during the possession.
	Points int               `json:"points"`
	Ext    map[string]string `json:"ext,omitempty"`
}

// FoulPayload captures the payload for foul.personal events.
type FoulPayload struct {
	// DrawnByPlayerID is the player who drew the foul, when known.
	DrawnByPlayerID string            `json:"drawn_by_player_id,omitempty"`
	Ext             map[string]string `json:"ext,omitempty"`
}

// SubstitutionPayload captures the payload for substitution.in and substitution.out events.
type SubstitutionPayload struct {
	Ext map[string]string `json:"ext,omitempty"`
}

// PeriodPayload captures the payload for period.start and period.end events.
type PeriodPayload struct {
	// Period is the period number (1-4, then overtime periods).
	Period int               `json:"period"`
	Ext    map[string]string `json:"ext,omitempty"`
}

// GameStartPayload captures the payload for game.start events.
type GameStartPayload struct {
	HomeTeamID string            `json:"home_team_id"`
	AwayTeamID string            `json:"away_team_id"`
	Venue      string            `json:"venue,omitempty"`
	Ext        map[string]string `json:"ext,omitempty"`
}

// GameEndPayload captures the payload for game.end events.
type GameEndPayload struct {
	HomeScore int               `json:"home_score"`
	AwayScore int               `json:"away_score"`
	Ext       map[string]string `json:"ext,omitempty"`
}
