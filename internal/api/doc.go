// Package api contains the engine's transport-facing service implementations.
//
// The http subpackage serves the JSON API: open read routes for snapshots,
// game state, age, journal listings, chain audits, and panel rows, plus
// grant-guarded write routes for event appends, bio upserts, and covariate
// backfills. Handlers stay thin; resolution lives in internal/resolve and
// write semantics in internal/ingest.
package api
