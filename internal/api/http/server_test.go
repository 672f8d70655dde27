package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/rewind/internal/domain/event"
	"github.com/louisbranch/rewind/internal/domain/panel"
	"github.com/louisbranch/rewind/internal/ingest"
	"github.com/louisbranch/rewind/internal/resolve"
	"github.com/louisbranch/rewind/internal/storage"
	"github.com/louisbranch/rewind/internal/storage/sqlite"
)

func newTestServer(t *testing.T) (*Server, *sqlite.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rewind.sqlite")
	store, err := sqlite.Open(context.Background(), path, event.Default())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	srv := &Server{
		Resolver: &resolve.Resolver{Events: store, Checkpoints: store, Bios: store, Marks: store},
		Ingest:   &ingest.Service{Events: store, Bios: store, Marks: store},
		Events:   store,
		Panel:    store,
	}
	return srv, store
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func mustStoreEvent(t *testing.T, store *sqlite.Store, evt event.Event) event.Event {
	t.Helper()
	stored, err := store.AppendEvent(context.Background(), evt)
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	return stored
}

func playerEvent(gameID string, typ event.Type, playerID string, at time.Time, payload string) event.Event {
	if payload == "" {
		payload = "{}"
	}
	return event.Event{
		GameID:      gameID,
		Type:        typ,
		Timestamp:   at,
		Side:        event.SideHome,
		PlayerID:    playerID,
		PayloadJSON: []byte(payload),
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHandler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestPlayerSnapshotOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)

	rec := doJSON(t, handler, http.MethodPost, "/v1/events", appendEventsInput{Events: []ingest.EventEnvelope{
		{GameID: "game-1", Type: "substitution.in", Timestamp: base, Side: "home", PlayerID: "player-1"},
		{GameID: "game-1", Type: "shot.made", Timestamp: base.Add(10 * time.Second), Side: "home", PlayerID: "player-1", Payload: json.RawMessage(`{"points":2}`)},
		{GameID: "game-1", Type: "shot.made", Timestamp: base.Add(40 * time.Second), Side: "home", PlayerID: "player-1", Payload: json.RawMessage(`{"points":3}`)},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for append, got %d: %s", rec.Code, rec.Body.String())
	}
	var appended appendEventsResponse
	decodeBody(t, rec, &appended)
	if appended.Landed != 3 || appended.Rejected != 0 {
		t.Fatalf("expected 3 landed, got %+v", appended)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/players/player-1/snapshot?at=2024-01-05T19:00:20Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var mid resolve.PlayerSnapshot
	decodeBody(t, rec, &mid)
	if mid.Cumulative.Points != 2 {
		t.Fatalf("expected 2 points at t+20s, got %d", mid.Cumulative.Points)
	}
	if mid.Cumulative.PlayedMillis != 20_000 {
		t.Fatalf("expected 20000 played millis, got %d", mid.Cumulative.PlayedMillis)
	}
	if mid.EventsApplied != 2 {
		t.Fatalf("expected 2 events applied, got %d", mid.EventsApplied)
	}
	if mid.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", mid.Generation)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/players/player-1/snapshot?at=2024-01-05T19:01:00Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var late resolve.PlayerSnapshot
	decodeBody(t, rec, &late)
	if late.Cumulative.Points != 5 {
		t.Fatalf("expected 5 points at t+60s, got %d", late.Cumulative.Points)
	}
	if late.Cumulative.ThreePointersMade != 1 {
		t.Fatalf("expected 1 three made, got %d", late.Cumulative.ThreePointersMade)
	}
	if !late.Cumulative.AtLeast(mid.Cumulative) {
		t.Fatal("expected later snapshot counters to dominate the earlier ones")
	}
}

func TestPlayerSnapshotBeforeGenesis(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)
	mustStoreEvent(t, store, playerEvent("game-1", event.TypeRebound, "player-1", base, ""))

	rec := doJSON(t, handler, http.MethodGet, "/v1/players/player-1/snapshot?at=2024-01-05T18:00:00Z", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before genesis, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND code, got %s", body.Code)
	}
	if body.Metadata["genesis"] == "" {
		t.Fatal("expected genesis metadata for an existing stream")
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/players/ghost/snapshot?at=2024-01-05T19:00:00Z", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown player, got %d", rec.Code)
	}
}

func TestPlayerSnapshotInvalidAt(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHandler()

	rec := doJSON(t, handler, http.MethodGet, "/v1/players/player-1/snapshot?at=yesterday", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Code != "RESOLVE_INVALID_AT" {
		t.Fatalf("expected RESOLVE_INVALID_AT code, got %s", body.Code)
	}
}

func TestGameStateOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)

	rec := doJSON(t, handler, http.MethodPost, "/v1/events", appendEventsInput{Events: []ingest.EventEnvelope{
		{GameID: "game-7", Type: "game.start", Timestamp: base, Payload: json.RawMessage(`{"home_team_id":"bulls","away_team_id":"knicks","venue":"united-center"}`)},
		{GameID: "game-7", Type: "period.start", Timestamp: base.Add(time.Second), Payload: json.RawMessage(`{"period":1}`)},
		{GameID: "game-7", Type: "substitution.in", Timestamp: base.Add(2 * time.Second), Side: "home", PlayerID: "player-1"},
		{GameID: "game-7", Type: "shot.made", Timestamp: base.Add(10 * time.Second), Side: "home", PlayerID: "player-1", Payload: json.RawMessage(`{"points":2}`)},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for append, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/games/game-7/state?at=2024-01-05T19:00:10Z", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var state resolve.GameState
	decodeBody(t, rec, &state)
	if state.State.Home.TeamID != "bulls" || state.State.Away.TeamID != "knicks" {
		t.Fatalf("expected team ids from game.start, got %+v", state.State)
	}
	if state.State.Period != 1 {
		t.Fatalf("expected period 1, got %d", state.State.Period)
	}
	if state.State.Home.Score != 2 {
		t.Fatalf("expected home score 2, got %d", state.State.Home.Score)
	}
	if len(state.State.Home.OnFloor) != 1 || state.State.Home.OnFloor[0] != "player-1" {
		t.Fatalf("expected player-1 on floor, got %v", state.State.Home.OnFloor)
	}
	if state.EventsApplied != 4 {
		t.Fatalf("expected 4 events applied, got %d", state.EventsApplied)
	}
}

func TestPlayerAgeOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHandler()

	rec := doJSON(t, handler, http.MethodPut, "/v1/players/player-9/bio", ingest.BioEnvelope{
		FullName:       "Kobe Bryant",
		BirthDate:      "1978-08-23",
		BirthPrecision: "day",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for bio save, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/players/player-9/age?at=2016-06-19T19:02:34Z&unit=seconds", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var seconds ageResponse
	decodeBody(t, rec, &seconds)
	if seconds.Unit != "seconds" {
		t.Fatalf("expected seconds unit, got %s", seconds.Unit)
	}
	if seconds.Max-seconds.Min != 86_400 {
		t.Fatalf("expected a 24h span at day precision, got [%d, %d]", seconds.Min, seconds.Max)
	}

	// Singular labels are accepted.
	rec = doJSON(t, handler, http.MethodGet, "/v1/players/player-9/age?at=2016-06-19T19:02:34Z&unit=year", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for singular unit, got %d", rec.Code)
	}
	var years ageResponse
	decodeBody(t, rec, &years)
	if years.Min != 37 || years.Max != 37 {
		t.Fatalf("expected exact 37 years, got [%d, %d]", years.Min, years.Max)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/players/player-9/age?unit=decades", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad unit, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Code != "DURATION_BAD_UNIT" {
		t.Fatalf("expected DURATION_BAD_UNIT code, got %s", body.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/players/nobody/age", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing bio, got %d", rec.Code)
	}
}

func TestListEventsOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)

	mustStoreEvent(t, store, playerEvent("game-1", event.TypeRebound, "player-1", base, ""))
	mustStoreEvent(t, store, playerEvent("game-1", event.TypeRebound, "player-2", base.Add(time.Second), ""))
	mustStoreEvent(t, store, playerEvent("game-1", event.TypeTurnover, "player-1", base.Add(2*time.Second), ""))
	mustStoreEvent(t, store, playerEvent("game-2", event.TypeRebound, "player-1", base, ""))

	rec := doJSON(t, handler, http.MethodGet, "/v1/events?game_id=game-1&page_size=2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var first eventsResponse
	decodeBody(t, rec, &first)
	if len(first.Events) != 2 {
		t.Fatalf("expected 2 events on the first page, got %d", len(first.Events))
	}
	if first.NextPageToken == "" {
		t.Fatal("expected a next page token")
	}
	if first.Events[0].Seq != 1 || first.Events[1].Seq != 2 {
		t.Fatalf("expected seqs 1,2 in order, got %d,%d", first.Events[0].Seq, first.Events[1].Seq)
	}

	query := url.Values{"game_id": {"game-1"}, "page_size": {"2"}, "page_token": {first.NextPageToken}}
	rec = doJSON(t, handler, http.MethodGet, "/v1/events?"+query.Encode(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for second page, got %d: %s", rec.Code, rec.Body.String())
	}
	var second eventsResponse
	decodeBody(t, rec, &second)
	if len(second.Events) != 1 || second.Events[0].Type != "turnover.committed" {
		t.Fatalf("expected the turnover on the second page, got %+v", second.Events)
	}
	if second.NextPageToken != "" {
		t.Fatal("expected no token on the final page")
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/events?game_id=game-1&type=turnover.committed", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for type filter, got %d", rec.Code)
	}
	var filtered eventsResponse
	decodeBody(t, rec, &filtered)
	if len(filtered.Events) != 1 || filtered.Events[0].PlayerID != "player-1" {
		t.Fatalf("expected one turnover by player-1, got %+v", filtered.Events)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/events?from=not-a-time", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad from instant, got %d", rec.Code)
	}
}

func TestAppendEventsPartialFailure(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)

	rec := doJSON(t, handler, http.MethodPost, "/v1/events", appendEventsInput{Events: []ingest.EventEnvelope{
		{GameID: "game-2", Type: "rebound.secured", Timestamp: base.Add(10 * time.Second), Side: "home", PlayerID: "player-1"},
		{GameID: "game-2", Type: "rebound.secured", Timestamp: base, Side: "home", PlayerID: "player-2"},
		{GameID: "game-2", Type: "rebound.secured", Timestamp: base.Add(20 * time.Second), Side: "home", PlayerID: "player-3"},
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out appendEventsResponse
	decodeBody(t, rec, &out)
	if out.Landed != 2 || out.Rejected != 1 {
		t.Fatalf("expected 2 landed and 1 rejected, got %+v", out)
	}
	if out.Results[1].Code != "EVENT_OUT_OF_ORDER" {
		t.Fatalf("expected out of order code for the stale event, got %s", out.Results[1].Code)
	}
	if out.Results[0].Seq != 1 || out.Results[2].Seq != 2 {
		t.Fatalf("expected seqs 1 and 2 for landed events, got %+v", out.Results)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/events", appendEventsInput{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty batch, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	handler.ServeHTTP(raw, req)
	if raw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", raw.Code)
	}
}

func TestPanelRowsOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)

	pace := 0.97
	row := panel.Row{
		GameID:           "game-9",
		PossessionSeq:    7,
		Period:           1,
		StartTime:        base,
		EndTime:          base.Add(24 * time.Second),
		OffenseSide:      event.SideHome,
		OffenseLineupKey: panel.LineupKey([]string{"b", "a", "c", "e", "d"}),
		DefenseLineupKey: panel.LineupKey([]string{"f", "g", "h", "i", "j"}),
		Result:           "made_shot",
		Points:           2,
		PaceFactor:       &pace,
	}
	if err := store.InsertPanelRow(context.Background(), row); err != nil {
		t.Fatalf("insert panel row: %v", err)
	}

	rec := doJSON(t, handler, http.MethodGet, "/v1/games/game-9/possessions/7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"offense_synergy":null`) {
		t.Fatalf("expected un-backfilled covariate to serve as null, got %s", rec.Body.String())
	}
	var got panel.Row
	decodeBody(t, rec, &got)
	if got.PossessionSeq != 7 || got.PaceFactor == nil || *got.PaceFactor != 0.97 {
		t.Fatalf("unexpected row %+v", got)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/games/game-9/possessions/8", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing possession, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/games/game-9/possessions/abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad seq, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/v1/games/game-9/possessions", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for the listing, got %d", rec.Code)
	}
	var listed panelRowsResponse
	decodeBody(t, rec, &listed)
	if len(listed.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(listed.Rows))
	}
}

func TestBackfillCovariateOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)

	pace := 0.97
	row := panel.Row{
		GameID:           "game-9",
		PossessionSeq:    7,
		Period:           1,
		StartTime:        base,
		EndTime:          base.Add(24 * time.Second),
		OffenseSide:      event.SideHome,
		OffenseLineupKey: panel.LineupKey([]string{"a", "b", "c", "d", "e"}),
		DefenseLineupKey: panel.LineupKey([]string{"f", "g", "h", "i", "j"}),
		Result:           "made_shot",
		Points:           2,
		PaceFactor:       &pace,
	}
	if err := store.InsertPanelRow(context.Background(), row); err != nil {
		t.Fatalf("insert panel row: %v", err)
	}

	value := 0.42
	rec := doJSON(t, handler, http.MethodPost, "/v1/games/game-9/possessions/7/covariates", backfillInput{
		Column: panel.ColumnOffenseSynergy,
		Value:  &value,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated panel.Row
	decodeBody(t, rec, &updated)
	if updated.OffenseSynergy == nil || *updated.OffenseSynergy != 0.42 {
		t.Fatalf("expected offense synergy 0.42, got %+v", updated.OffenseSynergy)
	}
	if updated.PaceFactor == nil || *updated.PaceFactor != 0.97 {
		t.Fatal("expected pace factor to survive the backfill untouched")
	}

	// A null value resets the column to unknown.
	rec = doJSON(t, handler, http.MethodPost, "/v1/games/game-9/possessions/7/covariates", backfillInput{
		Column: panel.ColumnPaceFactor,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a reset, got %d", rec.Code)
	}
	var reset panel.Row
	decodeBody(t, rec, &reset)
	if reset.PaceFactor != nil {
		t.Fatalf("expected pace factor reset to null, got %v", *reset.PaceFactor)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/games/game-9/possessions/7/covariates", backfillInput{
		Column: "result",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for a non-covariate column, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Code != "PANEL_UNKNOWN_COLUMN" {
		t.Fatalf("expected PANEL_UNKNOWN_COLUMN code, got %s", body.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/v1/games/game-9/possessions/99/covariates", backfillInput{
		Column: panel.ColumnPaceFactor,
		Value:  &value,
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing row, got %d", rec.Code)
	}
}

func TestSaveBioValidationOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.NewHandler()

	rec := doJSON(t, handler, http.MethodPut, "/v1/players/player-9/bio", ingest.BioEnvelope{
		BirthDate:      "23/08/1978",
		BirthPrecision: "day",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad birth date, got %d", rec.Code)
	}
	var body errorBody
	decodeBody(t, rec, &body)
	if body.Code != "BIO_INVALID_BIRTH_DATE" {
		t.Fatalf("expected BIO_INVALID_BIRTH_DATE code, got %s", body.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/v1/players/player-9/bio", ingest.BioEnvelope{
		BirthDate:      "1978-08-23",
		BirthPrecision: "approximately",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad precision, got %d", rec.Code)
	}
	decodeBody(t, rec, &body)
	if body.Code != "BIO_INVALID_PRECISION" {
		t.Fatalf("expected BIO_INVALID_PRECISION code, got %s", body.Code)
	}

	// The path id wins over any id in the body.
	rec = doJSON(t, handler, http.MethodPut, "/v1/players/player-9/bio", ingest.BioEnvelope{
		PlayerID:       "someone-else",
		FullName:       "Kobe Bryant",
		BirthDate:      "1978-08-23",
		BirthPrecision: "day",
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	bio, err := store.GetBio(context.Background(), "player-9")
	if err != nil {
		t.Fatalf("get bio: %v", err)
	}
	if bio.FullName != "Kobe Bryant" {
		t.Fatalf("expected bio saved under the path id, got %+v", bio)
	}
	if _, err := store.GetBio(context.Background(), "someone-else"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no bio under the body id, got %v", err)
	}
}

func TestVerifyChainOverHTTP(t *testing.T) {
	srv, store := newTestServer(t)
	handler := srv.NewHandler()
	base := time.Date(2024, 1, 5, 19, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		mustStoreEvent(t, store, playerEvent("game-3", event.TypeRebound, "player-1", base.Add(time.Duration(i)*time.Second), ""))
	}

	rec := doJSON(t, handler, http.MethodGet, "/v1/games/game-3/chain", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out chainResponse
	decodeBody(t, rec, &out)
	if out.VerifiedEvents != 3 {
		t.Fatalf("expected 3 verified events, got %d", out.VerifiedEvents)
	}
}
