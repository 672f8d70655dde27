package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
	"github.com/louisbranch/rewind/internal/domain/event"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/storage"
)

// EventEnvelope is the wire form of one play-by-play event. It carries only
// the producer-supplied fields; sequence and hashes are assigned at append
// time and never travel inbound.
type EventEnvelope struct {
	GameID    string          `json:"game_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Side      string          `json:"side,omitempty"`
	PlayerID  string          `json:"player_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEventEnvelope builds the wire form of an event for publishing.
func NewEventEnvelope(evt event.Event) EventEnvelope {
	return EventEnvelope{
		GameID:    evt.GameID,
		Type:      string(evt.Type),
		Timestamp: evt.Timestamp,
		Side:      string(evt.Side),
		PlayerID:  evt.PlayerID,
		Payload:   json.RawMessage(evt.PayloadJSON),
	}
}

// Event converts the envelope to a domain event. Validation happens at
// append time against the event registry, not here.
func (e EventEnvelope) Event() event.Event {
	return event.Event{
		GameID:      e.GameID,
		Type:        event.Type(e.Type),
		Timestamp:   e.Timestamp,
		Side:        event.Side(e.Side),
		PlayerID:    e.PlayerID,
		PayloadJSON: []byte(e.Payload),
	}
}

// DecodeEventEnvelope parses one wire event.
func DecodeEventEnvelope(data []byte) (event.Event, error) {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return event.Event{}, fmt.Errorf("decode event envelope: %w", err)
	}
	return envelope.Event(), nil
}

// bioDateLayout accepts calendar dates without a time of day, which is how
// birth dates at day or coarser precision arrive.
const bioDateLayout = "2006-01-02"

// BioEnvelope is the wire form of a player bio upsert.
type BioEnvelope struct {
	PlayerID       string `json:"player_id"`
	FullName       string `json:"full_name,omitempty"`
	BirthDate      string `json:"birth_date,omitempty"`
	BirthPrecision string `json:"birth_precision,omitempty"`
	Country        string `json:"country,omitempty"`
	Position       string `json:"position,omitempty"`
	HeightCM       *int64 `json:"height_cm,omitempty"`
	WeightKG       *int64 `json:"weight_kg,omitempty"`
}

// Bio converts the envelope to a storage bio. Precision validation happens
// at save time.
func (e BioEnvelope) Bio() (storage.Bio, error) {
	bio := storage.Bio{
		PlayerID:       e.PlayerID,
		FullName:       e.FullName,
		BirthPrecision: age.Precision(e.BirthPrecision),
		Country:        e.Country,
		Position:       e.Position,
		HeightCM:       e.HeightCM,
		WeightKG:       e.WeightKG,
	}
	if e.BirthDate != "" {
		parsed, err := time.Parse(bioDateLayout, e.BirthDate)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, e.BirthDate)
		}
		if err != nil {
			return storage.Bio{}, apperrors.WrapWithMetadata(
				apperrors.CodeBioInvalidBirthDate,
				"birth date must be a calendar date or an RFC 3339 instant",
				map[string]string{"birth_date": e.BirthDate},
				err,
			)
		}
		bio.BirthDate = parsed.UTC()
	}
	return bio, nil
}

// DecodeBioEnvelope parses one wire bio.
func DecodeBioEnvelope(data []byte) (storage.Bio, error) {
	var envelope BioEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return storage.Bio{}, fmt.Errorf("decode bio envelope: %w", err)
	}
	return envelope.Bio()
}
