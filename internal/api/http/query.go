package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/panel"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/storage"
)

// handlePlayerSnapshot handles GET /v1/players/{id}/snapshot.
func (s *Server) handlePlayerSnapshot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.CodeBioEmptyPlayerID, "player id is required"))
		return
	}
	at, err := s.parseAt(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, err)
		return
	}

	snapshot, err := s.Resolver.PlayerSnapshot(r.Context(), id, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleGameState handles GET /v1/games/{id}/state.
func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.CodeEventEmptyGameID, "game id is required"))
		return
	}
	at, err := s.parseAt(r.URL.Query().Get("at"))
	if err != nil {
		writeError(w, err)
		return
	}

	state, err := s.Resolver.GameState(r.Context(), id, at)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// ageResponse pairs a duration span with the query it answered.
type ageResponse struct {
	PlayerID string    `json:"player_id"`
	At       time.Time `json:"at"`
	age.Span
}

// handlePlayerAge handles GET /v1/players/{id}/age.
func (s *Server) handlePlayerAge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.CodeBioEmptyPlayerID, "player id is required"))
		return
	}
	q := r.URL.Query()
	at, err := s.parseAt(q.Get("at"))
	if err != nil {
		writeError(w, err)
		return
	}
	unit, err := parseUnit(q.Get("unit"))
	if err != nil {
		writeError(w, err)
		return
	}

	span, err := s.Resolver.PlayerAge(r.Context(), id, at, unit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ageResponse{PlayerID: id, At: at.UTC(), Span: span})
}

// eventRecord is the wire form of one stored journal event.
type eventRecord struct {
	GameID    string          `json:"game_id"`
	Seq       uint64          `json:"seq"`
	Hash      string          `json:"hash"`
	PrevHash  string          `json:"prev_hash,omitempty"`
	ChainHash string          `json:"chain_hash"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Side      string          `json:"side,omitempty"`
	PlayerID  string          `json:"player_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func newEventRecord(evt event.Event) eventRecord {
	return eventRecord{
		GameID:    evt.GameID,
		Seq:       evt.Seq,
		Hash:      evt.Hash,
		PrevHash:  evt.PrevHash,
		ChainHash: evt.ChainHash,
		Timestamp: evt.Timestamp,
		Type:      string(evt.Type),
		Side:      string(evt.Side),
		PlayerID:  evt.PlayerID,
		Payload:   json.RawMessage(evt.PayloadJSON),
	}
}

// eventsResponse is one page of the journal listing.
type eventsResponse struct {
	Events        []eventRecord `json:"events"`
	NextPageToken string        `json:"next_page_token,omitempty"`
}

// handleListEvents handles GET /v1/events.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := storage.ListEventsPageRequest{
		GameID:    q.Get("game_id"),
		PlayerID:  q.Get("player_id"),
		PageToken: q.Get("page_token"),
	}
	if v := q.Get("type"); v != "" {
		for _, t := range strings.Split(v, ",") {
			req.Types = append(req.Types, event.Type(t))
		}
	}
	if v := q.Get("from"); v != "" {
		from, err := parseInstant(v, "from")
		if err != nil {
			writeError(w, err)
			return
		}
		req.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := parseInstant(v, "to")
		if err != nil {
			writeError(w, err)
			return
		}
		req.To = to
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.PageSize = n
		}
	}

	result, err := s.Events.ListEventsPage(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	// Events is never null in JSON output.
	records := make([]eventRecord, 0, len(result.Events))
	for _, evt := range result.Events {
		records = append(records, newEventRecord(evt))
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: records, NextPageToken: result.NextPageToken})
}

// handleGetPanelRow handles GET /v1/games/{id}/possessions/{seq}.
func (s *Server) handleGetPanelRow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.CodePanelEmptyGameID, "game id is required"))
		return
	}
	seq, err := parsePossessionSeq(r.PathValue("seq"))
	if err != nil {
		writeError(w, err)
		return
	}

	row, err := s.Panel.GetPanelRow(r.Context(), id, seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// panelRowsResponse is a game's possession rows in possession order.
type panelRowsResponse struct {
	Rows []panel.Row `json:"rows"`
}

// handleListPanelRows handles GET /v1/games/{id}/possessions.
func (s *Server) handleListPanelRows(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.CodePanelEmptyGameID, "game id is required"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	rows, err := s.Panel.ListPanelRows(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []panel.Row{}
	}
	writeJSON(w, http.StatusOK, panelRowsResponse{Rows: rows})
}

// chainResponse reports a hash chain audit.
type chainResponse struct {
	GameID         string `json:"game_id"`
	VerifiedEvents uint64 `json:"verified_events"`
}

// handleVerifyChain handles GET /v1/games/{id}/chain.
func (s *Server) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.CodeEventEmptyGameID, "game id is required"))
		return
	}

	verified, err := s.Events.VerifyGameChain(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chainResponse{GameID: id, VerifiedEvents: verified})
}

// parseAt reads an RFC 3339 query instant, defaulting to the current time
// when absent.
func (s *Server) parseAt(raw string) (time.Time, error) {
	if raw == "" {
		return s.now(), nil
	}
	return parseInstant(raw, "at")
}

func parseInstant(raw, field string) (time.Time, error) {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.WithMetadata(
			apperrors.CodeResolveInvalidAt,
			field+" must be an RFC 3339 instant",
			map[string]string{field: raw},
		)
	}
	return at, nil
}

// parseUnit accepts singular and plural unit labels, defaulting to years.
func parseUnit(raw string) (age.Unit, error) {
	if raw == "" {
		return age.UnitYears, nil
	}
	unit, err := age.ParseUnit(raw)
	if err == nil {
		return unit, nil
	}
	if unit, perr := age.ParseUnit(raw + "s"); perr == nil {
		return unit, nil
	}
	return "", err
}

// parsePossessionSeq reads the {seq} path segment.
func parsePossessionSeq(raw string) (uint64, error) {
	seq, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || seq == 0 {
		return 0, apperrors.WithMetadata(
			apperrors.CodePanelInvalidSeq,
			"possession seq must be a positive integer",
			map[string]string{"seq": raw},
		)
	}
	return seq, nil
}
