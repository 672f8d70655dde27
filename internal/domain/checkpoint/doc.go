// Package checkpoint derives cumulative per-player snapshots from the
// play-by-play journal.
//
// The fold is a pure function of the event-log prefix: walking the same
// events twice yields identical checkpoints, which is what makes full
// regeneration safe and restartable. Emission cadence is a Policy, the
// latency/storage trade-off: denser checkpoints cost storage but shrink the
// replay window the resolver pays per query.
package checkpoint
