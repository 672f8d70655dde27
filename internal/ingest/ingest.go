// Package ingest lands play-by-play events and player bios in storage and
// keeps the per-entity build ledger current.
//
// One core serves both write transports: the HTTP API calls it directly and
// the NATS consumer feeds decoded envelopes into it. Appends are
// content-addressed downstream, so redelivery on either transport lands
// exactly once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/storage"
)

var (
	// ErrEventStoreRequired indicates a missing event store.
	ErrEventStoreRequired = errors.New("event store is required")
	// ErrBioStoreRequired indicates a missing bio store.
	ErrBioStoreRequired = errors.New("bio store is required")
	// ErrMarkStoreRequired indicates a missing mark store.
	ErrMarkStoreRequired = errors.New("mark store is required")
)

// Service is the shared ingest core. Every landed event also touches the
// entity marks of its game and player, which is what makes the checkpoint
// worker notice new work.
type Service struct {
	// Events is the append-only journal.
	Events storage.EventStore
	// Bios persists player reference data.
	Bios storage.BioStore
	// Marks is the per-entity build ledger touched after appends.
	Marks storage.MarkStore
}

// AppendEvent appends one event and records the ingest on the game's and
// player's marks. The returned event carries its assigned sequence and
// hashes even when the mark touch fails; the append itself has landed.
func (s *Service) AppendEvent(ctx context.Context, evt event.Event) (event.Event, error) {
	if s.Events == nil {
		return event.Event{}, ErrEventStoreRequired
	}
	if s.Marks == nil {
		return event.Event{}, ErrMarkStoreRequired
	}
	stored, err := s.Events.AppendEvent(ctx, evt)
	if err != nil {
		return stored, err
	}
	if err := s.touchMarks(ctx, []event.Event{stored}); err != nil {
		return stored, err
	}
	return stored, nil
}

// AppendBatch appends a batch with partial-failure semantics and touches the
// marks of every entity whose events landed. Outcomes are positional:
// outcome i belongs to events[i].
func (s *Service) AppendBatch(ctx context.Context, events []event.Event) ([]storage.AppendOutcome, error) {
	if s.Events == nil {
		return nil, ErrEventStoreRequired
	}
	if s.Marks == nil {
		return nil, ErrMarkStoreRequired
	}
	outcomes, err := s.Events.AppendEvents(ctx, events)
	if err != nil {
		return outcomes, err
	}
	landed := make([]event.Event, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			continue
		}
		landed = append(landed, outcome.Event)
	}
	if err := s.touchMarks(ctx, landed); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// SaveBio upserts a player's reference data. Bio changes do not dirty build
// marks: checkpoints fold events only, and panel enrichment reads bios at
// build time.
func (s *Service) SaveBio(ctx context.Context, bio storage.Bio) error {
	if s.Bios == nil {
		return ErrBioStoreRequired
	}
	return s.Bios.SaveBio(ctx, bio)
}

// touchMarks records one ledger touch per distinct entity, carrying the
// newest event time seen for it in this batch.
func (s *Service) touchMarks(ctx context.Context, events []event.Event) error {
	type entity struct {
		kind storage.MarkKind
		id   string
	}
	latest := make(map[entity]time.Time)
	for _, evt := range events {
		game := entity{kind: storage.MarkGame, id: evt.GameID}
		if evt.Timestamp.After(latest[game]) {
			latest[game] = evt.Timestamp
		}
		if evt.PlayerID == "" {
			continue
		}
		player := entity{kind: storage.MarkPlayer, id: evt.PlayerID}
		if evt.Timestamp.After(latest[player]) {
			latest[player] = evt.Timestamp
		}
	}
	for ent, at := range latest {
		if err := s.Marks.TouchEntityMark(ctx, ent.kind, ent.id, at); err != nil {
			return fmt.Errorf("touch %s mark %s: %w", ent.kind, ent.id, err)
		}
	}
	return nil
}
