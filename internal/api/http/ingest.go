package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/ingest"
	apperrors "github.com/louisbranch/rewind/internal/platform/errors"
	"github.com/louisbranch/rewind/internal/platform/requestctx"
)

// appendEventsInput is the request body of POST /v1/events.
type appendEventsInput struct {
	Events []ingest.EventEnvelope `json:"events"`
}

// appendResult is one event's outcome in a batch append. Rejected events
// carry the error; landed ones carry their assigned identity.
type appendResult struct {
	Seq   uint64 `json:"seq,omitempty"`
	Hash  string `json:"hash,omitempty"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// appendEventsResponse reports a batch append. Results are positional:
// result i belongs to events[i].
type appendEventsResponse struct {
	Results  []appendResult `json:"results"`
	Landed   int            `json:"landed"`
	Rejected int            `json:"rejected"`
}

// handleAppendEvents handles POST /v1/events. The batch has partial-failure
// semantics: offending events are rejected individually and the rest land.
func (s *Server) handleAppendEvents(w http.ResponseWriter, r *http.Request) {
	var in appendEventsInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "invalid JSON body"))
		return
	}
	if len(in.Events) == 0 {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "events list is required"))
		return
	}

	events := make([]event.Event, 0, len(in.Events))
	for _, envelope := range in.Events {
		events = append(events, envelope.Event())
	}
	outcomes, err := s.Ingest.AppendBatch(r.Context(), events)
	if err != nil {
		writeError(w, err)
		return
	}

	out := appendEventsResponse{Results: make([]appendResult, 0, len(outcomes))}
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			out.Rejected++
			out.Results = append(out.Results, appendResult{
				Code:  string(apperrors.CodeOf(outcome.Err)),
				Error: outcome.Err.Error(),
			})
			continue
		}
		out.Landed++
		out.Results = append(out.Results, appendResult{
			Seq:  outcome.Event.Seq,
			Hash: outcome.Event.Hash,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSaveBio handles PUT /v1/players/{id}/bio. The path identifies the
// player; a player id in the body is ignored.
func (s *Server) handleSaveBio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, apperrors.New(apperrors.CodeBioEmptyPlayerID, "player id is required"))
		return
	}
	var in ingest.BioEnvelope
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "invalid JSON body"))
		return
	}
	in.PlayerID = id

	bio, err := in.Bio()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.Ingest.SaveBio(r.Context(), bio); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// backfillInput is the request body of the covariate backfill. A null value
// resets the column to unknown.
type backfillInput struct {
	Column string   `json:"column"`
	Value  *float64 `json:"value"`
}

// handleBackfillCovariate handles
// POST /v1/games/{id}/possessions/{seq}/covariates. Exactly one covariate
// column changes; the response carries the updated row.
func (s *Server) handleBackfillCovariate(w http.ResponseWriter, r *http.Request) {
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
	var in backfillInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, apperrors.New(apperrors.CodeInvalidRequest, "invalid JSON body"))
		return
	}

	if err := s.Panel.BackfillPanelColumn(r.Context(), id, seq, in.Column, in.Value); err != nil {
		writeError(w, err)
		return
	}
	if actor := requestctx.SubjectFromContext(r.Context()); actor != "" {
		log.Printf("panel backfill game=%s seq=%d column=%s by=%s", id, seq, in.Column, actor)
	}
	row, err := s.Panel.GetPanelRow(r.Context(), id, seq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
