package panel

import (
	"encoding/json"
	"fmt"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/gamestate"
	"github.com/louisbranch/rewind/internal/platform/errors"
)

// Builder walks one game's event stream and emits a feature row per
// possession. Context columns freeze at possession.start, outcome columns
// fill at possession.end.
type Builder struct {
	state gamestate.State
	open  *Row
	rows  []Row
}

// NewBuilder returns a builder for one game.
func NewBuilder() *Builder {
	return &Builder{}
}

// Apply feeds the next event in stream order.
func (b *Builder) Apply(evt event.Event) error {
	if evt.Type == event.TypePossessionStart {
		if b.open != nil {
			return errors.WithMetadata(errors.CodePanelMissingBounds, "possession started while another is open", map[string]string{
				"game_id": evt.GameID,
			})
		}
		var payload event.PossessionStartPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return fmt.Errorf("panel %s: %w", evt.Type, err)
		}
		offense := b.state.Side(evt.Side)
		defense := b.state.Side(evt.Side.Opponent())
		b.open = &Row{
			GameID:           evt.GameID,
			PossessionSeq:    payload.PossessionSeq,
			Period:           b.state.Period,
			StartTime:        evt.Timestamp,
			OffenseSide:      evt.Side,
			OffenseTeamID:    offense.TeamID,
			DefenseTeamID:    defense.TeamID,
			OffenseLineupKey: LineupKey(offense.OnFloor),
			DefenseLineupKey: LineupKey(defense.OnFloor),
			ScoreDiffBefore:  offense.Score - defense.Score,
			OffenseRunBefore: offense.Run,
		}
	}

	next, err := gamestate.Fold(b.state, evt)
	if err != nil {
		return err
	}
	b.state = next

	if evt.Type == event.TypePossessionEnd {
		if b.open == nil {
			return errors.WithMetadata(errors.CodePanelMissingBounds, "possession ended without a start", map[string]string{
				"game_id": evt.GameID,
			})
		}
		var payload event.PossessionEndPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return fmt.Errorf("panel %s: %w", evt.Type, err)
		}
		if payload.PossessionSeq != b.open.PossessionSeq {
			return errors.WithMetadata(errors.CodePanelMissingBounds, "possession end does not match the open possession", map[string]string{
				"game_id": evt.GameID,
			})
		}
		b.open.EndTime = evt.Timestamp
		b.open.Result = payload.Result
		b.open.Points = int64(payload.Points)
		b.rows = append(b.rows, *b.open)
		b.open = nil
	}
	return nil
}

// Rows returns the completed rows in possession order.
func (b *Builder) Rows() []Row {
	return b.rows
}

// State exposes the folded game state the builder has reached.
func (b *Builder) State() gamestate.State {
	return b.state
}
