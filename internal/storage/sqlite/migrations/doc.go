// Package migrations embeds SQL migration scripts used by SQLite backends.
//
// The events set owns the append-only journal schema. The derived set owns
// everything regenerable from it: checkpoints, panel rows, bios, and the
// entity marks that coordinate rebuilds.
package migrations
