package event

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NormalizeForAppend validates and normalizes an event before storage assigns
// sequencing and integrity fields.
func NormalizeForAppend(evt Event) (Event, error) {
	evt.GameID = strings.TrimSpace(evt.GameID)
	if evt.GameID == "" {
		return Event{}, fmt.Errorf("game id is required")
	}
	if evt.Seq != 0 {
		return Event{}, fmt.Errorf("event sequence must be assigned by storage")
	}
	if strings.TrimSpace(evt.Hash) != "" {
		return Event{}, fmt.Errorf("event hash must be assigned by storage")
	}
	if strings.TrimSpace(evt.PrevHash) != "" || strings.TrimSpace(evt.ChainHash) != "" {
		return Event{}, fmt.Errorf("event chain hashes must be assigned by storage")
	}

	evt.Type = Type(strings.TrimSpace(string(evt.Type)))
	if !evt.Type.IsValid() {
		return Event{}, fmt.Errorf("event type is required")
	}
	if evt.Timestamp.IsZero() {
		return Event{}, fmt.Errorf("event timestamp is required")
	}

	evt.Side = Side(strings.TrimSpace(string(evt.Side)))
	if evt.Side != "" && !evt.Side.IsValid() {
		return Event{}, fmt.Errorf("side must be home or away")
	}
	evt.PlayerID = strings.TrimSpace(evt.PlayerID)

	if len(evt.PayloadJSON) == 0 {
		evt.PayloadJSON = []byte("{}")
	}
	if !json.Valid(evt.PayloadJSON) {
		return Event{}, fmt.Errorf("payload json must be valid JSON")
	}

	return evt, nil
}
