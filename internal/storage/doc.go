// Package storage defines the persistence interfaces for the rewind
// engine.
//
// The event journal is the source of truth; checkpoints, panel rows, and
// entity marks are derived and regenerable. Implementations (SQLite) live
// in subpackages.
//
// # Error Types
//
// The package defines sentinel errors shared across implementations:
//   - ErrNotFound: a requested record is missing.
//   - ErrOutOfOrder: an append would break per-game time ordering.
//   - ErrCheckpointConflict: a duplicate (entity, as-of) checkpoint write.
//   - ErrPanelRowConflict: a duplicate possession row insert.
package storage
