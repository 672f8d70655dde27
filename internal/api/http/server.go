// Package http serves the engine's query and ingest surfaces as a JSON
// API. Read routes are open; write routes pass through ingest grant
// verification when a grant config is wired.
package http

import (
	"net/http"
	"time"

	"github.com/louisbranch/rewind/internal/ingest"
	"github.com/louisbranch/rewind/internal/resolve"
	"github.com/louisbranch/rewind/internal/storage"
)

// Server wires resolution, ingest, and panel reads into one HTTP API.
type Server struct {
	// Resolver answers as-of snapshot, state, and age queries.
	Resolver *resolve.Resolver
	// Ingest lands events and bios arriving over HTTP.
	Ingest *ingest.Service
	// Events serves the filtered journal listing and chain audits.
	Events storage.EventStore
	// Panel serves possession feature rows.
	Panel storage.PanelStore
	// Grant verifies write-surface bearer tokens. Nil leaves the write
	// surfaces open, which is how local runs operate.
	Grant *ingest.GrantConfig
	// Now injects the clock for queries that default to the present.
	Now func() time.Time
}

// NewHandler returns an http.Handler with all routes registered.
func (s *Server) NewHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /v1/players/{id}/snapshot", s.handlePlayerSnapshot)
	mux.HandleFunc("GET /v1/players/{id}/age", s.handlePlayerAge)
	mux.HandleFunc("GET /v1/games/{id}/state", s.handleGameState)
	mux.HandleFunc("GET /v1/games/{id}/chain", s.handleVerifyChain)
	mux.HandleFunc("GET /v1/games/{id}/possessions", s.handleListPanelRows)
	mux.HandleFunc("GET /v1/games/{id}/possessions/{seq}", s.handleGetPanelRow)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)

	mux.HandleFunc("POST /v1/events", s.requireGrant(s.handleAppendEvents))
	mux.HandleFunc("PUT /v1/players/{id}/bio", s.requireGrant(s.handleSaveBio))
	mux.HandleFunc("POST /v1/games/{id}/possessions/{seq}/covariates", s.requireGrant(s.handleBackfillCovariate))

	return mux
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
