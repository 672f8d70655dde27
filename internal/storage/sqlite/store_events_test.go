package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/replay"
	"github.com/louisbranch/rewind/internal/storage"
)

func TestAppendAndGetBySeq(t *testing.T) {
	store := openTestStore(t)

	evt := testEvent("game-append", time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC))
	stored := mustAppend(t, store, evt)

	if stored.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", stored.Seq)
	}
	if stored.Hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if stored.ChainHash == "" {
		t.Fatal("expected non-empty chain hash")
	}

	got, err := store.GetEventBySeq(context.Background(), "game-append", 1)
	if err != nil {
		t.Fatalf("get event by seq: %v", err)
	}
	if got.Hash != stored.Hash {
		t.Fatalf("expected hash to match")
	}
	if got.PlayerID != "player-1" {
		t.Fatalf("expected player id to survive round trip, got %q", got.PlayerID)
	}
	if !got.Timestamp.Equal(stored.Timestamp) {
		t.Fatalf("expected timestamp to match, got %v want %v", got.Timestamp, stored.Timestamp)
	}

	if _, err := store.GetEventBySeq(context.Background(), "game-append", 99); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing seq, got %v", err)
	}
}

func TestAppendChainIntegrity(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-chain"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	var events []event.Event
	for i := 0; i < 3; i++ {
		events = append(events, mustAppend(t, store, testEvent(gameID, base.Add(time.Duration(i)*time.Second))))
	}

	if events[0].Seq != 1 || events[1].Seq != 2 || events[2].Seq != 3 {
		t.Fatalf("expected sequential seq numbers")
	}
	if events[0].PrevHash != "" {
		t.Fatalf("expected first event prev hash to be empty, got %q", events[0].PrevHash)
	}
	if events[1].PrevHash != events[0].ChainHash {
		t.Fatalf("expected event 2 prev hash to equal event 1 chain hash")
	}
	if events[2].PrevHash != events[1].ChainHash {
		t.Fatalf("expected event 3 prev hash to equal event 2 chain hash")
	}

	verified, err := store.VerifyGameChain(context.Background(), gameID)
	if err != nil {
		t.Fatalf("verify game chain: %v", err)
	}
	if verified != 3 {
		t.Fatalf("expected 3 verified events, got %d", verified)
	}
}

func TestAppendIdempotent(t *testing.T) {
	store := openTestStore(t)

	evt := testEvent("game-idem", time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC))
	first := mustAppend(t, store, evt)
	second := mustAppend(t, store, evt)

	if second.Seq != first.Seq {
		t.Fatalf("expected duplicate to return stored seq %d, got %d", first.Seq, second.Seq)
	}
	if second.Hash != first.Hash {
		t.Fatalf("expected duplicate to return stored hash")
	}

	latest, err := store.GetLatestEventSeq(context.Background(), "game-idem")
	if err != nil {
		t.Fatalf("get latest event seq: %v", err)
	}
	if latest != 1 {
		t.Fatalf("expected one stored event, got latest seq %d", latest)
	}
}

func TestAppendIdempotentAfterNewerEvents(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-idem-late"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	early := mustAppend(t, store, testEvent(gameID, base))
	mustAppend(t, store, testEvent(gameID, base.Add(time.Minute)))

	// Re-delivery of the earlier event must dedupe, not trip the order check.
	again, err := store.AppendEvent(context.Background(), testEvent(gameID, base))
	if err != nil {
		t.Fatalf("re-deliver earlier event: %v", err)
	}
	if again.Seq != early.Seq || again.Hash != early.Hash {
		t.Fatalf("expected stored event back, got seq %d hash %q", again.Seq, again.Hash)
	}
}

func TestAppendRejectsOutOfOrder(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-order"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	mustAppend(t, store, testEvent(gameID, base))

	stale := testEvent(gameID, base.Add(-time.Second))
	stale.PlayerID = "player-2"
	if _, err := store.AppendEvent(context.Background(), stale); !errors.Is(err, storage.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}

	// Equal timestamps are allowed; sequence breaks the tie.
	tie := testEvent(gameID, base)
	tie.PlayerID = "player-2"
	stored := mustAppend(t, store, tie)
	if stored.Seq != 2 {
		t.Fatalf("expected tie-timestamp append at seq 2, got %d", stored.Seq)
	}
}

func TestAppendEventsPartialFailure(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-batch"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	good1 := testEvent(gameID, base)
	stale := testEvent(gameID, base.Add(-time.Minute))
	stale.PlayerID = "player-2"
	good2 := testEvent(gameID, base.Add(time.Second))
	good2.PlayerID = "player-3"

	outcomes, err := store.AppendEvents(context.Background(), []event.Event{good1, stale, good2})
	if err != nil {
		t.Fatalf("append events: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil {
		t.Fatalf("expected first event to land, got %v", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, storage.ErrOutOfOrder) {
		t.Fatalf("expected stale event rejected, got %v", outcomes[1].Err)
	}
	if outcomes[2].Err != nil {
		t.Fatalf("expected batch to continue past the rejection, got %v", outcomes[2].Err)
	}

	latest, err := store.GetLatestEventSeq(context.Background(), gameID)
	if err != nil {
		t.Fatalf("get latest event seq: %v", err)
	}
	if latest != 2 {
		t.Fatalf("expected 2 stored events, got latest seq %d", latest)
	}
}

func TestListEventsPlayerScopeAcrossGames(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	evtA := testEvent("game-a", base)
	evtA.PlayerID = "player-x"
	mustAppend(t, store, evtA)

	other := testEvent("game-a", base.Add(time.Second))
	other.PlayerID = "player-y"
	mustAppend(t, store, other)

	evtB := testEvent("game-b", base.Add(2*time.Second))
	evtB.PlayerID = "player-x"
	mustAppend(t, store, evtB)

	events, err := store.ListEvents(context.Background(), replay.Scope{PlayerID: "player-x"}, replay.Cursor{}, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events for player-x, got %d", len(events))
	}
	if events[0].GameID != "game-a" || events[1].GameID != "game-b" {
		t.Fatalf("expected time order across games, got %q then %q", events[0].GameID, events[1].GameID)
	}

	// Resume after the first event.
	cursor := replay.Cursor{After: events[0].Timestamp, GameID: events[0].GameID, Seq: events[0].Seq}
	rest, err := store.ListEvents(context.Background(), replay.Scope{PlayerID: "player-x"}, cursor, 10)
	if err != nil {
		t.Fatalf("list events after cursor: %v", err)
	}
	if len(rest) != 1 || rest[0].GameID != "game-b" {
		t.Fatalf("expected only the game-b event after cursor, got %d events", len(rest))
	}
}

func TestListEventsRequiresScope(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.ListEvents(context.Background(), replay.Scope{}, replay.Cursor{}, 10); !errors.Is(err, replay.ErrScopeRequired) {
		t.Fatalf("expected ErrScopeRequired, got %v", err)
	}
}

func TestListEventsPagePagination(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-page"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		mustAppend(t, store, testEvent(gameID, base.Add(time.Duration(i)*time.Second)))
	}

	first, err := store.ListEventsPage(context.Background(), storage.ListEventsPageRequest{
		GameID:   gameID,
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Events) != 2 {
		t.Fatalf("expected 2 events on first page, got %d", len(first.Events))
	}
	if first.NextPageToken == "" {
		t.Fatal("expected next page token")
	}

	second, err := store.ListEventsPage(context.Background(), storage.ListEventsPageRequest{
		GameID:    gameID,
		PageSize:  2,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(second.Events) != 2 {
		t.Fatalf("expected 2 events on second page, got %d", len(second.Events))
	}
	if second.Events[0].Seq != 3 {
		t.Fatalf("expected second page to start at seq 3, got %d", second.Events[0].Seq)
	}

	third, err := store.ListEventsPage(context.Background(), storage.ListEventsPageRequest{
		GameID:    gameID,
		PageSize:  2,
		PageToken: second.NextPageToken,
	})
	if err != nil {
		t.Fatalf("third page: %v", err)
	}
	if len(third.Events) != 1 {
		t.Fatalf("expected 1 event on final page, got %d", len(third.Events))
	}
	if third.NextPageToken != "" {
		t.Fatalf("expected empty token on final page, got %q", third.NextPageToken)
	}
}

func TestListEventsPageRejectsTokenAfterFilterChange(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-token"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		mustAppend(t, store, testEvent(gameID, base.Add(time.Duration(i)*time.Second)))
	}

	first, err := store.ListEventsPage(context.Background(), storage.ListEventsPageRequest{
		GameID:   gameID,
		PageSize: 1,
	})
	if err != nil {
		t.Fatalf("first page: %v", err)
	}

	_, err = store.ListEventsPage(context.Background(), storage.ListEventsPageRequest{
		GameID:    gameID,
		PlayerID:  "player-1",
		PageSize:  1,
		PageToken: first.NextPageToken,
	})
	if err == nil {
		t.Fatal("expected token rejection after filter change")
	}
}

func TestListEventsPageFilters(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-filter"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	mustAppend(t, store, testEvent(gameID, base))

	sub := testEvent(gameID, base.Add(time.Second))
	sub.Type = event.TypeSubIn
	sub.PlayerID = "player-2"
	mustAppend(t, store, sub)

	mustAppend(t, store, testEvent(gameID, base.Add(2*time.Second)))

	byType, err := store.ListEventsPage(context.Background(), storage.ListEventsPageRequest{
		GameID: gameID,
		Types:  []event.Type{event.TypeSubIn},
	})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(byType.Events) != 1 || byType.Events[0].Type != event.TypeSubIn {
		t.Fatalf("expected only the substitution event, got %d events", len(byType.Events))
	}

	byWindow, err := store.ListEventsPage(context.Background(), storage.ListEventsPageRequest{
		GameID: gameID,
		From:   base.Add(time.Second),
		To:     base.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("list by window: %v", err)
	}
	if len(byWindow.Events) != 1 {
		t.Fatalf("expected inclusive window to match one event, got %d", len(byWindow.Events))
	}
}

func TestGetStreamGenesis(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	if _, err := store.GetStreamGenesis(context.Background(), replay.Scope{GameID: "game-empty"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty stream, got %v", err)
	}

	mustAppend(t, store, testEvent("game-genesis", base.Add(time.Hour)))
	earlier := testEvent("game-genesis2", base)
	earlier.PlayerID = "player-1"
	mustAppend(t, store, earlier)

	genesis, err := store.GetStreamGenesis(context.Background(), replay.Scope{PlayerID: "player-1"})
	if err != nil {
		t.Fatalf("get stream genesis: %v", err)
	}
	if !genesis.Equal(base) {
		t.Fatalf("expected genesis %v, got %v", base, genesis)
	}
}

func TestVerifyGameChainDetectsTampering(t *testing.T) {
	store := openTestStore(t)
	gameID := "game-tamper"
	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		mustAppend(t, store, testEvent(gameID, base.Add(time.Duration(i)*time.Second)))
	}

	if _, err := store.sqlDB.Exec(
		`UPDATE events SET payload_json = '{"tampered":true}' WHERE game_id = ? AND seq = 2`,
		gameID,
	); err != nil {
		t.Fatalf("tamper with event: %v", err)
	}

	verified, err := store.VerifyGameChain(context.Background(), gameID)
	if err == nil {
		t.Fatal("expected verification to fail after tampering")
	}
	if verified != 1 {
		t.Fatalf("expected 1 verified event before the break, got %d", verified)
	}
}
