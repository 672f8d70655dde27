// Package export streams panel rows out of storage as JSONL for analysis
// tooling. The first line is a header record carrying the schema version;
// every following line wraps one panel row with a type discriminator.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/louisbranch/rewind/internal/domain/panel"
	"github.com/louisbranch/rewind/internal/storage"
)

// SchemaVersion identifies the JSONL layout. Bump it when the header or
// row record shape changes.
const SchemaVersion = "1"

// listLimit bounds one export read. Possessions per game sit in the low
// hundreds, so a single page always covers a full game.
const listLimit = 10000

// header is the first JSONL record of an export.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	GameID     string    `json:"game_id"`
	ExportedAt time.Time `json:"exported_at"`
	RowCount   int       `json:"row_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string    `json:"type"`
	Data panel.Row `json:"data"`
}

// WriteGameJSONL writes one game's panel rows as JSONL to w, header first,
// rows in possession order.
func WriteGameJSONL(ctx context.Context, store storage.PanelStore, gameID string, w io.Writer) error {
	rows, err := store.ListPanelRows(ctx, gameID, listLimit)
	if err != nil {
		return fmt.Errorf("list panel rows: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:    SchemaVersion,
		Type:       "header",
		GameID:     gameID,
		ExportedAt: time.Now().UTC(),
		RowCount:   len(rows),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, row := range rows {
		if err := enc.Encode(record{Type: "panel_row", Data: row}); err != nil {
			return fmt.Errorf("encode panel row %d: %w", row.PossessionSeq, err)
		}
	}
	return nil
}

// Destination is a sink for one exported JSONL payload.
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// ExportGame renders a game's panel rows and writes them to the destination.
func ExportGame(ctx context.Context, store storage.PanelStore, gameID string, dest Destination) error {
	var buf bytes.Buffer
	if err := WriteGameJSONL(ctx, store, gameID, &buf); err != nil {
		return err
	}
	if err := dest.Write(ctx, buf.Bytes()); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// FileDestination writes the JSONL payload to a local path.
type FileDestination struct {
	Path string
}

func (d *FileDestination) Write(_ context.Context, data []byte) error {
	if err := os.WriteFile(d.Path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", d.Path, err)
	}
	return nil
}
