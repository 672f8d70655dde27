package gamestate

import (
	"fmt"
	"testing"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/platform/errors"
)

var foldBase = time.Date(2024, 3, 1, 19, 0, 0, 0, time.UTC)

func gameEvent(t *testing.T, seq uint64, typ event.Type, side event.Side, playerID, payload string) event.Event {
	t.Helper()
	return event.Event{
		GameID:      "game-1",
		Seq:         seq,
		Timestamp:   foldBase.Add(time.Duration(seq) * time.Second),
		Type:        typ,
		Side:        side,
		PlayerID:    playerID,
		PayloadJSON: []byte(payload),
	}
}

func foldAll(t *testing.T, events []event.Event) State {
	t.Helper()
	var state State
	var err error
	for _, evt := range events {
		state, err = Fold(state, evt)
		if err != nil {
			t.Fatalf("fold %s: %v", evt.Type, err)
		}
	}
	return state
}

func TestFoldGameSetup(t *testing.T) {
	state := foldAll(t, []event.Event{
		gameEvent(t, 1, event.TypeGameStart, "", "", `{"home_team_id":"team-h","away_team_id":"team-a","venue":"arena"}`),
		gameEvent(t, 2, event.TypePeriodStart, "", "", `{"period":1}`),
	})

	if state.GameID != "game-1" || state.Venue != "arena" {
		t.Fatalf("game = %q venue = %q", state.GameID, state.Venue)
	}
	if state.Home.TeamID != "team-h" || state.Away.TeamID != "team-a" {
		t.Fatalf("teams = %q/%q", state.Home.TeamID, state.Away.TeamID)
	}
	if state.Period != 1 {
		t.Fatalf("Period = %d, want 1", state.Period)
	}
	if state.LastSeq != 2 {
		t.Fatalf("LastSeq = %d, want 2", state.LastSeq)
	}
}

func TestFoldScoreAndRuns(t *testing.T) {
	state := foldAll(t, []event.Event{
		gameEvent(t, 1, event.TypeShotMade, event.SideHome, "player-1", `{"points":2}`),
		gameEvent(t, 2, event.TypeShotMade, event.SideHome, "player-2", `{"points":3}`),
		gameEvent(t, 3, event.TypeFreeThrowMade, event.SideHome, "player-1", `{"attempt":1,"of":1}`),
	})

	if state.Home.Score != 6 || state.Away.Score != 0 {
		t.Fatalf("score = %d-%d, want 6-0", state.Home.Score, state.Away.Score)
	}
	if state.Home.Run != 6 {
		t.Fatalf("home run = %d, want 6", state.Home.Run)
	}
	if state.Differential() != 6 {
		t.Fatalf("differential = %d, want 6", state.Differential())
	}

	// An opponent basket ends the run.
	state, err := Fold(state, gameEvent(t, 4, event.TypeShotMade, event.SideAway, "player-9", `{"points":2}`))
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if state.Home.Run != 0 {
		t.Fatalf("home run = %d, want 0 after opponent scores", state.Home.Run)
	}
	if state.Away.Run != 2 {
		t.Fatalf("away run = %d, want 2", state.Away.Run)
	}
	if state.Differential() != 4 {
		t.Fatalf("differential = %d, want 4", state.Differential())
	}
}

func TestFoldPossession(t *testing.T) {
	state := foldAll(t, []event.Event{
		gameEvent(t, 1, event.TypePossessionStart, event.SideHome, "", `{"possession_seq":7}`),
	})
	if !state.Possession.Active || state.Possession.Seq != 7 || state.Possession.Side != event.SideHome {
		t.Fatalf("possession = %+v", state.Possession)
	}

	state, err := Fold(state, gameEvent(t, 2, event.TypePossessionEnd, event.SideHome, "", `{"possession_seq":7,"result":"made_shot","points":2}`))
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if state.Possession.Active {
		t.Fatal("possession must be inactive after possession.end")
	}
	if state.Possession.Seq != 7 {
		t.Fatalf("Seq = %d, want last possession kept", state.Possession.Seq)
	}
}

func TestFoldLineups(t *testing.T) {
	state := foldAll(t, []event.Event{
		gameEvent(t, 1, event.TypeSubIn, event.SideHome, "player-c", `{}`),
		gameEvent(t, 2, event.TypeSubIn, event.SideHome, "player-a", `{}`),
		gameEvent(t, 3, event.TypeSubIn, event.SideAway, "player-z", `{}`),
	})

	if got := state.Home.OnFloor; len(got) != 2 || got[0] != "player-a" || got[1] != "player-c" {
		t.Fatalf("home lineup = %v, want sorted [player-a player-c]", got)
	}
	if got := state.Away.OnFloor; len(got) != 1 || got[0] != "player-z" {
		t.Fatalf("away lineup = %v", got)
	}

	state, err := Fold(state, gameEvent(t, 4, event.TypeSubOut, event.SideHome, "player-c", `{}`))
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if got := state.Home.OnFloor; len(got) != 1 || got[0] != "player-a" {
		t.Fatalf("home lineup = %v, want [player-a]", got)
	}
}

func TestFoldLineupBound(t *testing.T) {
	var events []event.Event
	for i := 0; i < MaxOnFloor; i++ {
		events = append(events, gameEvent(t, uint64(i+1), event.TypeSubIn, event.SideHome, fmt.Sprintf("player-%d", i), `{}`))
	}
	state := foldAll(t, events)

	_, err := Fold(state, gameEvent(t, 6, event.TypeSubIn, event.SideHome, "player-6", `{}`))
	if errors.CodeOf(err) != errors.CodeLineupFull {
		t.Fatalf("err = %v, want lineup full", err)
	}

	// The away lineup is independent of the full home lineup.
	if _, err := Fold(state, gameEvent(t, 6, event.TypeSubIn, event.SideAway, "player-6", `{}`)); err != nil {
		t.Fatalf("away sub: %v", err)
	}
}

func TestFoldLineupMembership(t *testing.T) {
	state := foldAll(t, []event.Event{
		gameEvent(t, 1, event.TypeSubIn, event.SideHome, "player-1", `{}`),
	})

	_, err := Fold(state, gameEvent(t, 2, event.TypeSubIn, event.SideHome, "player-1", `{}`))
	if errors.CodeOf(err) != errors.CodeLineupPlayerOnFloor {
		t.Fatalf("err = %v, want player on floor", err)
	}

	_, err = Fold(state, gameEvent(t, 2, event.TypeSubOut, event.SideHome, "player-2", `{}`))
	if errors.CodeOf(err) != errors.CodeLineupPlayerAbsent {
		t.Fatalf("err = %v, want player absent", err)
	}
}

func TestFoldLineupCopies(t *testing.T) {
	before := foldAll(t, []event.Event{
		gameEvent(t, 1, event.TypeSubIn, event.SideHome, "player-b", `{}`),
	})

	after, err := Fold(before, gameEvent(t, 2, event.TypeSubIn, event.SideHome, "player-a", `{}`))
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if len(before.Home.OnFloor) != 1 || before.Home.OnFloor[0] != "player-b" {
		t.Fatalf("earlier snapshot mutated: %v", before.Home.OnFloor)
	}
	if len(after.Home.OnFloor) != 2 {
		t.Fatalf("after = %v", after.Home.OnFloor)
	}
}

func TestFoldRequiresSides(t *testing.T) {
	tests := []struct {
		name string
		evt  event.Event
	}{
		{name: "shot without side", evt: gameEvent(t, 1, event.TypeShotMade, "", "player-1", `{"points":2}`)},
		{name: "sub without side", evt: gameEvent(t, 1, event.TypeSubIn, "", "player-1", `{}`)},
		{name: "possession without side", evt: gameEvent(t, 1, event.TypePossessionStart, "", "", `{"possession_seq":1}`)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Fold(State{}, tc.evt); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFoldGameEnd(t *testing.T) {
	state := foldAll(t, []event.Event{
		gameEvent(t, 1, event.TypePossessionStart, event.SideHome, "", `{"possession_seq":1}`),
		gameEvent(t, 2, event.TypeGameEnd, "", "", `{"home_score":101,"away_score":96}`),
	})

	if !state.Final {
		t.Fatal("expected final state")
	}
	if state.Possession.Active {
		t.Fatal("game end must close the possession")
	}
}
