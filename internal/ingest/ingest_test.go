package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/replay"
	"github.com/louisbranch/rewind/internal/storage"
)

type fakeEventStore struct {
	mu         sync.Mutex
	events     []event.Event
	rejectType event.Type
}

func (s *fakeEventStore) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectType != "" && evt.Type == s.rejectType {
		return event.Event{}, storage.ErrOutOfOrder
	}
	evt.Seq = uint64(len(s.events) + 1)
	s.events = append(s.events, evt)
	return evt, nil
}

func (s *fakeEventStore) AppendEvents(ctx context.Context, events []event.Event) ([]storage.AppendOutcome, error) {
	outcomes := make([]storage.AppendOutcome, 0, len(events))
	for _, evt := range events {
		stored, err := s.AppendEvent(ctx, evt)
		if err != nil {
			outcomes = append(outcomes, storage.AppendOutcome{Event: evt, Err: err})
			continue
		}
		outcomes = append(outcomes, storage.AppendOutcome{Event: stored})
	}
	return outcomes, nil
}

func (s *fakeEventStore) stored() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

func (s *fakeEventStore) GetEventBySeq(context.Context, string, uint64) (event.Event, error) {
	return event.Event{}, storage.ErrNotFound
}

func (s *fakeEventStore) ListEvents(context.Context, replay.Scope, replay.Cursor, int) ([]event.Event, error) {
	return nil, nil
}

func (s *fakeEventStore) ListEventsPage(context.Context, storage.ListEventsPageRequest) (storage.ListEventsPageResult, error) {
	return storage.ListEventsPageResult{}, nil
}

func (s *fakeEventStore) GetLatestEventSeq(context.Context, string) (uint64, error) {
	return 0, nil
}

func (s *fakeEventStore) GetStreamGenesis(context.Context, replay.Scope) (time.Time, error) {
	return time.Time{}, storage.ErrNotFound
}

func (s *fakeEventStore) VerifyGameChain(context.Context, string) (uint64, error) {
	return 0, nil
}

type touch struct {
	at    time.Time
	count int
}

type recordingMarkStore struct {
	mu      sync.Mutex
	touches map[string]touch
}

func (s *recordingMarkStore) TouchEntityMark(_ context.Context, kind storage.MarkKind, entityID string, eventAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touches == nil {
		s.touches = make(map[string]touch)
	}
	key := string(kind) + "|" + entityID
	entry := s.touches[key]
	entry.at = eventAt
	entry.count++
	s.touches[key] = entry
	return nil
}

func (s *recordingMarkStore) touched(kind storage.MarkKind, entityID string) (touch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.touches[string(kind)+"|"+entityID]
	return entry, ok
}

func (s *recordingMarkStore) GetEntityMark(context.Context, storage.MarkKind, string) (storage.EntityMark, error) {
	return storage.EntityMark{}, storage.ErrNotFound
}

func (s *recordingMarkStore) SaveEntityMark(context.Context, storage.EntityMark) error {
	return nil
}

func (s *recordingMarkStore) ListDueEntityMarks(context.Context, storage.MarkKind, time.Time, int) ([]storage.EntityMark, error) {
	return nil, nil
}

func (s *recordingMarkStore) ClaimEntityMark(context.Context, storage.MarkKind, string, string, time.Time, time.Duration) (storage.EntityMark, error) {
	return storage.EntityMark{}, storage.ErrNotFound
}

type fakeBioStore struct {
	mu   sync.Mutex
	bios map[string]storage.Bio
}

func (s *fakeBioStore) SaveBio(_ context.Context, bio storage.Bio) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bios == nil {
		s.bios = make(map[string]storage.Bio)
	}
	s.bios[bio.PlayerID] = bio
	return nil
}

func (s *fakeBioStore) GetBio(_ context.Context, playerID string) (storage.Bio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bio, ok := s.bios[playerID]
	if !ok {
		return storage.Bio{}, storage.ErrNotFound
	}
	return bio, nil
}

func ingestEvent(gameID string, at time.Time, typ event.Type, playerID string) event.Event {
	return event.Event{
		GameID:      gameID,
		Type:        typ,
		Timestamp:   at,
		Side:        event.SideHome,
		PlayerID:    playerID,
		PayloadJSON: []byte(`{}`),
	}
}

func TestAppendEventTouchesMarks(t *testing.T) {
	events := &fakeEventStore{}
	marks := &recordingMarkStore{}
	svc := &Service{Events: events, Bios: &fakeBioStore{}, Marks: marks}

	at := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)
	stored, err := svc.AppendEvent(context.Background(), ingestEvent("game-1", at, event.TypeRebound, "player-1"))
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	if stored.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", stored.Seq)
	}

	game, ok := marks.touched(storage.MarkGame, "game-1")
	if !ok || !game.at.Equal(at) {
		t.Fatalf("expected game mark touched at %v, got %+v", at, game)
	}
	player, ok := marks.touched(storage.MarkPlayer, "player-1")
	if !ok || !player.at.Equal(at) {
		t.Fatalf("expected player mark touched at %v, got %+v", at, player)
	}
}

func TestAppendEventWithoutPlayerTouchesGameOnly(t *testing.T) {
	marks := &recordingMarkStore{}
	svc := &Service{Events: &fakeEventStore{}, Marks: marks}

	at := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)
	evt := ingestEvent("game-1", at, event.TypePeriodStart, "")
	evt.Side = ""
	if _, err := svc.AppendEvent(context.Background(), evt); err != nil {
		t.Fatalf("append event: %v", err)
	}

	if _, ok := marks.touched(storage.MarkGame, "game-1"); !ok {
		t.Fatal("expected game mark touch")
	}
	if len(marks.touches) != 1 {
		t.Fatalf("expected only the game touch, got %d", len(marks.touches))
	}
}

func TestAppendBatchTouchesOnlyLandedEvents(t *testing.T) {
	events := &fakeEventStore{rejectType: event.TypeTurnover}
	marks := &recordingMarkStore{}
	svc := &Service{Events: events, Marks: marks}

	base := time.Date(2026, 6, 19, 19, 0, 0, 0, time.UTC)
	batch := []event.Event{
		ingestEvent("game-1", base, event.TypeRebound, "player-1"),
		ingestEvent("game-1", base.Add(time.Second), event.TypeTurnover, "player-2"),
		ingestEvent("game-1", base.Add(2*time.Second), event.TypeAssist, "player-3"),
	}
	outcomes, err := svc.AppendBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("append batch: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Err != nil || outcomes[2].Err != nil {
		t.Fatalf("expected first and third to land, got %v and %v", outcomes[0].Err, outcomes[2].Err)
	}
	if !errors.Is(outcomes[1].Err, storage.ErrOutOfOrder) {
		t.Fatalf("expected rejection on second event, got %v", outcomes[1].Err)
	}

	// One touch per entity, carrying the newest landed timestamp.
	game, ok := marks.touched(storage.MarkGame, "game-1")
	if !ok {
		t.Fatal("expected game mark touch")
	}
	if game.count != 1 {
		t.Fatalf("expected a single game touch, got %d", game.count)
	}
	if !game.at.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("expected game touch at newest landed event, got %v", game.at)
	}
	if _, ok := marks.touched(storage.MarkPlayer, "player-2"); ok {
		t.Fatal("rejected event must not touch its player mark")
	}
	if _, ok := marks.touched(storage.MarkPlayer, "player-3"); !ok {
		t.Fatal("expected player-3 mark touch")
	}
}

func TestSaveBio(t *testing.T) {
	bios := &fakeBioStore{}
	svc := &Service{Bios: bios}

	bio := storage.Bio{PlayerID: "player-1", FullName: "Test Player"}
	if err := svc.SaveBio(context.Background(), bio); err != nil {
		t.Fatalf("save bio: %v", err)
	}
	saved, err := bios.GetBio(context.Background(), "player-1")
	if err != nil {
		t.Fatalf("get bio: %v", err)
	}
	if saved.FullName != "Test Player" {
		t.Fatalf("expected saved bio, got %+v", saved)
	}
}

func TestServiceRequiresStores(t *testing.T) {
	svc := &Service{}
	if _, err := svc.AppendEvent(context.Background(), event.Event{}); !errors.Is(err, ErrEventStoreRequired) {
		t.Fatalf("expected ErrEventStoreRequired, got %v", err)
	}
	if _, err := svc.AppendBatch(context.Background(), nil); !errors.Is(err, ErrEventStoreRequired) {
		t.Fatalf("expected ErrEventStoreRequired, got %v", err)
	}
	if err := svc.SaveBio(context.Background(), storage.Bio{}); !errors.Is(err, ErrBioStoreRequired) {
		t.Fatalf("expected ErrBioStoreRequired, got %v", err)
	}

	svc.Events = &fakeEventStore{}
	if _, err := svc.AppendEvent(context.Background(), event.Event{}); !errors.Is(err, ErrMarkStoreRequired) {
		t.Fatalf("expected ErrMarkStoreRequired, got %v", err)
	}
}
