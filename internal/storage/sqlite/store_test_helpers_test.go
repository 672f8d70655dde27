package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewind.sqlite")
	store, err := Open(context.Background(), path, event.Default())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func testEvent(gameID string, at time.Time) event.Event {
	return event.Event{
		GameID:      gameID,
		Timestamp:   at,
		Type:        event.TypeRebound,
		Side:        event.SideHome,
		PlayerID:    "player-1",
		PayloadJSON: []byte(`{}`),
	}
}

func mustAppend(t *testing.T, store *Store, evt event.Event) event.Event {
	t.Helper()
	stored, err := store.AppendEvent(context.Background(), evt)
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	return stored
}
