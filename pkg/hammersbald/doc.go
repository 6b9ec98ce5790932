/*
Package hammersbald implements an embedded, crash-safe, append-only
key/value engine: a persistent linear-hash index over one append-only
data store (keyed and referenced values interleaved) and one
append-only link store, backed by a bounded page cache, an
async writer, and a redo/undo log that makes every batch atomic.

It deliberately does not implement ordered iteration, range scans,
per-key delete, or any query language — a keyed lookup costs at most
one seek, and superseding a key is an insert, never a mutation.

# Architecture

	┌─────────────────────────── Database ───────────────────────────┐
	│                                                                  │
	│  PutKeyed/Put/GetKeyed/Get/MayHaveKey ──────┐                    │
	│                                              ▼                   │
	│                                         ┌─────────┐              │
	│                              ┌──────────│  index  │ (.tb)        │
	│                              │          └────┬────┘              │
	│                              │               │ slot chain walk   │
	│                              ▼               ▼                   │
	│                        ┌──────────┐    ┌───────────┐             │
	│                        │ pageCache│    │ linkStore │ (.bl)       │
	│                        └────┬─────┘    └─────┬─────┘             │
	│                             │                 │                  │
	│                             ▼                 ▼                  │
	│                        ┌──────────────────────────┐              │
	│                        │          writer          │              │
	│                        │  bounded channel, async   │              │
	│                        │  drain, sync PRef alloc   │              │
	│                        └─────────────┬────────────┘              │
	│                                      ▼                           │
	│                        ┌──────────────────────────┐              │
	│                        │     dataStore (.bc)       │              │
	│                        └──────────────────────────┘              │
	│                                                                  │
	│  journal (.lg) records slot pre-images and store lengths before  │
	│  they are overwritten; Batch() fsyncs data+link, flushes dirty   │
	│  slot pages, fsyncs the index, then truncates the log — that     │
	│  truncation is the atomic commit point.                          │
	└──────────────────────────────────────────────────────────────────┘

On Open, a non-empty log means a batch was interrupted mid-flight;
recovery (recovery.go) replays it before the database is usable.

Exactly one process may hold a database open at a time, enforced by an
OS-level advisory lock on the table file (lock.go). Within a process,
one writer and any number of concurrent readers are supported; there
are no user-facing transaction objects, the batch is process-global.

# Core Components

Database (db.go):
  - Public entry point: Create/Open, PutKeyed/Put/GetKeyed/Get/
    MayHaveKey, Batch, Shutdown, Stats
  - Owns the terminal error state machine (stateOpen -> stateTerminal
    -> stateClosed) and the per-open logger/instance id

index (index.go, header.go):
  - Persistent linear-hash table: S = 2^level + split slots, each a
    PRef to a bucket chain head
  - maybeSplit grows the table by at most one bucket per insert once
    entries exceeds fillTarget * S

pageCache (cache.go):
  - Bounded LRU over table-segment pages only (slots + header); dirty
    pages are pinned until flushDirty

writer (writer.go):
  - Single-consumer message loop over a bounded channel; PRef
    allocation happens synchronously on the caller's goroutine so a
    link can reference data that hasn't reached disk yet

journal (journal.go), recovery (recovery.go):
  - Redo/undo log of slot pre-images and pre-batch store lengths;
    replayed on Open when the log is non-empty

segment (segment.go), store.go, envelope.go, link.go, siphash.go,
pref.go, lock.go, errors.go:
  - Lower-level primitives: multi-file paged storage, envelope framing,
    link-node codec, the keyed siphash, the PRef pointer type, the
    process-exclusive file lock, and the closed error-kind taxonomy

# Usage

Creating and writing:

	db, err := hammersbald.Create(dir, hammersbald.CreateOptions{})
	if err != nil { ... }
	defer db.Shutdown()

	if _, err := db.PutKeyed([]byte("height"), []byte("874213")); err != nil { ... }
	if err := db.Batch(); err != nil { ... }

Reading:

	value, found, err := db.GetKeyed([]byte("height"))
	if err != nil { ... }
	if !found { ... }

Reopening after a process restart (recovery runs automatically):

	db, err := hammersbald.Open(dir, hammersbald.CreateOptions{})

Checking engine health:

	stats, err := db.Stats()
	if stats.TerminalError { ... }

# Concurrency and Error Handling

  - Exactly one *Database per directory per process (enforced by an
    OS advisory lock); within that process, reads may run concurrently
    with the single in-flight batch.
  - Every error is a *hammersbald.Error with a closed Kind taxonomy
    (errors.go); use IsKind(err, hammersbald.KindIo) rather than string
    matching.
  - KindIo and KindCorrupt on a write path are terminal: the database
    stops accepting writes until it is reopened (and recovered).
    KindKeyTooLong, KindValueTooLarge, and KindSlotSpaceExhausted are
    surfaced to the caller but leave the engine healthy.

# Performance Characteristics

  - A keyed lookup costs one slot read plus a short, typically
    single-entry, link-chain walk — O(1) amortized, independent of
    database size.
  - Writes are durable only at Batch()/Shutdown() boundaries; values
    written since the last batch are visible in-process immediately
    (read-your-writes) but are not crash-durable until committed.
  - CachePages bounds resident table pages, not data/link store bytes;
    a larger cache mainly helps workloads with a hot subset of keys.

# Troubleshooting

Open Fails with KindCorrupt on a fresh directory:
  - Cause: Open was called on a directory that was never Create'd
  - Solution: call Create first, or check the directory path

Create Fails with KindAlreadyOpen:
  - Cause: the directory already holds a database (Create never
    overwrites one), or another open handle already holds the advisory
    lock (the OS releases an flock automatically on process exit, so a
    crashed process leaves no stale lock behind)
  - Solution: use Open for an existing database, and ensure only one
    process targets this directory

Operations Start Failing with KindIo After Running Fine:
  - Cause: the engine has entered the terminal error state following a
    write-path I/O or corruption error; check db.Stats().TerminalError
    or the hammersbald_terminal_error metric
  - Solution: Shutdown and reopen the database; Open replays the
    journal and recovers to the last committed batch

# Security

  - Hammersbald stores whatever bytes a caller gives it; it does not
    encrypt, sign, or redact values. Encrypt sensitive payloads before
    PutKeyed/Put if the threat model requires it at rest.
  - The file lock and file permissions are the only access control;
    anything with filesystem access to the directory can read it.

# See Also

  - pkg/log, pkg/metrics: the ambient logging and metrics this package
    calls into directly
  - cmd/hammersbald-cli, cmd/hammersbald-migrate: operational tooling
    built on this package's public API
*/
package hammersbald
