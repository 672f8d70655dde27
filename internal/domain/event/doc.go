// Package event defines the canonical event envelope and event-type registry used by
// the ingestion write path.
//
// Events are immutable play-by-play facts. The registry enforces addressing
// requirements (game-, side-, or player-scoped) and payload validity before
// persistence assigns sequence and integrity fields.
//
// A stable event contract is the foundation for replay, checkpoint correctness,
// and downstream consumers that depend on the same semantic names.
package event
