package gamestate

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/platform/errors"
)

// FoldHandledTypes returns the event types handled by the game state fold
// function.
func FoldHandledTypes() []event.Type {
	return []event.Type{
		event.TypeGameStart,
		event.TypeGameEnd,
		event.TypePeriodStart,
		event.TypeShotMade,
		event.TypeFreeThrowMade,
		event.TypePossessionStart,
		event.TypePossessionEnd,
		event.TypeSubIn,
		event.TypeSubOut,
	}
}

// Fold applies an event to game state. It returns an error if a recognized
// event carries a payload that cannot be unmarshalled, lacks a side it
// needs, or would violate the lineup bound.
//
// Scoring runs fold alongside the score: a made basket extends its side's
// run and zeroes the opponent's, so resolving any instant replays runs
// through the same deterministic resets as everything else.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case event.TypeGameStart:
		var payload event.GameStartPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("gamestate fold %s: %w", evt.Type, err)
		}
		state.GameID = evt.GameID
		state.Venue = payload.Venue
		state.Home.TeamID = payload.HomeTeamID
		state.Away.TeamID = payload.AwayTeamID
	case event.TypeGameEnd:
		state.Final = true
		state.Possession.Active = false
	case event.TypePeriodStart:
		var payload event.PeriodPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("gamestate fold %s: %w", evt.Type, err)
		}
		state.Period = payload.Period
	case event.TypeShotMade:
		var payload event.ShotPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("gamestate fold %s: %w", evt.Type, err)
		}
		if err := score(&state, evt, int64(payload.Points)); err != nil {
			return state, err
		}
	case event.TypeFreeThrowMade:
		if err := score(&state, evt, 1); err != nil {
			return state, err
		}
	case event.TypePossessionStart:
		var payload event.PossessionStartPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("gamestate fold %s: %w", evt.Type, err)
		}
		if !evt.Side.IsValid() {
			return state, fmt.Errorf("gamestate fold %s: side required", evt.Type)
		}
		state.Possession = Possession{Side: evt.Side, Seq: payload.PossessionSeq, Active: true}
	case event.TypePossessionEnd:
		state.Possession.Active = false
	case event.TypeSubIn:
		side, err := requireSide(evt)
		if err != nil {
			return state, err
		}
		onFloor, err := withPlayer(sideOf(&state, side).OnFloor, evt.GameID, evt.PlayerID)
		if err != nil {
			return state, err
		}
		sideOf(&state, side).OnFloor = onFloor
	case event.TypeSubOut:
		side, err := requireSide(evt)
		if err != nil {
			return state, err
		}
		onFloor, err := withoutPlayer(sideOf(&state, side).OnFloor, evt.GameID, evt.PlayerID)
		if err != nil {
			return state, err
		}
		sideOf(&state, side).OnFloor = onFloor
	}
	state.LastSeq = evt.Seq
	state.LastTimestamp = evt.Timestamp
	return state, nil
}

// score credits points to the event's side and resets the opponent's run.
func score(state *State, evt event.Event, points int64) error {
	if !evt.Side.IsValid() {
		return fmt.Errorf("gamestate fold %s: side required", evt.Type)
	}
	own := sideOf(state, evt.Side)
	own.Score += points
	own.Run += points
	sideOf(state, evt.Side.Opponent()).Run = 0
	return nil
}

func requireSide(evt event.Event) (event.Side, error) {
	if !evt.Side.IsValid() {
		return "", fmt.Errorf("gamestate fold %s: side required", evt.Type)
	}
	if evt.PlayerID == "" {
		return "", errors.WithMetadata(errors.CodeLineupPlayerAbsent, "substitution requires a player id", map[string]string{"game_id": evt.GameID})
	}
	return evt.Side, nil
}
