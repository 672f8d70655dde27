package event

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// EventHash computes the content hash for a single event envelope.
//
// The canonical envelope is built here so field ordering is defined in one
// place and cannot drift between layers. Storage-assigned chain fields are
// excluded: the content hash must be computable before the event is
// sequenced.
func EventHash(evt Event) (string, error) {
	if strings.TrimSpace(evt.GameID) == "" {
		return "", fmt.Errorf("event hash: game id is required")
	}
	if strings.TrimSpace(string(evt.Type)) == "" {
		return "", fmt.Errorf("event hash: type is required")
	}
	if evt.Timestamp.IsZero() {
		return "", fmt.Errorf("event hash: timestamp is required")
	}
	fields := []string{
		"game_id=" + evt.GameID,
		"timestamp=" + strconv.FormatInt(evt.Timestamp.UTC().UnixMilli(), 10),
		"type=" + string(evt.Type),
		"side=" + string(evt.Side),
		"player_id=" + evt.PlayerID,
		"payload=" + string(evt.PayloadJSON),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\n")))
	// Truncate to 128 bits for a compact content-addressed identity.
	return hex.EncodeToString(sum[:16]), nil
}

// ChainHash computes the hash that links an event to its predecessor. The
// event's own content hash must already be set; the first event of a game
// links to an empty predecessor.
func ChainHash(evt Event, prevHash string) (string, error) {
	if strings.TrimSpace(evt.Hash) == "" {
		return "", fmt.Errorf("chain hash: event hash is required")
	}
	fields := []string{
		"seq=" + strconv.FormatUint(evt.Seq, 10),
		"hash=" + evt.Hash,
		"prev=" + prevHash,
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\n")))
	return hex.EncodeToString(sum[:]), nil
}
