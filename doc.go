/*
Package deltalog implements the transactional metadata layer of a columnar
table format: an append-only log of typed actions, replayed into immutable
table snapshots, with an optimistic-concurrency commit protocol that lets
uncoordinated writers publish new versions safely.

The log is a sequence of numbered commit files, each holding one JSON action
per line. A snapshot at version V is the fold of all actions in versions
0..V: the live data-file set, current schema and configuration, protocol
requirements, and per-application transaction versions. Checkpoints compact
a prefix of that history into a dense file so replay cost stays bounded.

# Usage

Open a table, read its state, and commit a change:

	table, err := deltalog.Open("/data/events", nil)
	if err != nil { ... }
	snap, err := table.Snapshot(ctx)
	if err != nil { ... }
	snap, err = table.Commit(ctx, snap, deltalog.Operation{Name: "WRITE", BlindAppend: true},
		&action.Add{Path: "part-00042.parquet", Size: 1024, DataChange: true})

# Concurrency

A Table is safe for concurrent use by multiple goroutines, and the log
itself is safe for concurrent use by multiple uncoordinated processes: all
coordination reduces to the log store's atomic write-if-absent primitive.
Snapshots are immutable; readers holding an older Snapshot are unaffected
by newer commits.

# Compatibility

Commit files and the _last_checkpoint pointer follow the Delta transaction
log protocol and are intended to interoperate with other implementations.
Checkpoint parts use a framed, optionally compressed JSON encoding; see the
checkpoint documentation for the interoperability seam.
*/
package deltalog
