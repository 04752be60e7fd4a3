/*
Package storage provides the persistence backends for background jobs.

Two interchangeable implementations sit behind the JobStore interface: a
single JSON document rewritten atomically on every transition, and a
BoltDB bucket with one JSON row per job. Both rewrite orphaned records —
jobs still marked running or pending from a previous process — to failed
at load time, and both persist that rewrite immediately so a crash
between load and first save cannot resurrect orphans. The package also
exports the atomic JSON file helpers the repository managers use for
their metadata documents.

# Architecture

	┌──────────────────── JOB PERSISTENCE ──────────────────────┐
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │           JobStore interface                │           │
	│  │  SaveAll(map[jobID]*types.Job) error       │           │
	│  │  Load() (jobs, orphanCount, error)         │           │
	│  │  Close() error                             │           │
	│  └──────┬──────────────────────────┬──────────┘           │
	│         │                          │                       │
	│  ┌──────▼───────────┐   ┌──────────▼─────────┐            │
	│  │    FileStore     │   │     BoltStore      │            │
	│  │  jobs.json       │   │  jobs.db           │            │
	│  │  one document    │   │  bucket "jobs"     │            │
	│  │  {id → record}   │   │  one row per id    │            │
	│  │  temp + rename   │   │  JSON values       │            │
	│  └──────────────────┘   │  stale rows pruned │            │
	│                         │  on SaveAll        │            │
	│                         └────────────────────┘            │
	│                                                             │
	│  Load():  read all → rewrite running/pending               │
	│           (and resolving_prerequisites) → failed           │
	│           with the fixed orphan reason → persist           │
	└──────────────────────────────────────────────────────────┘

# Backends

FileStore:
  - The whole table as one indented JSON document
  - SaveAll rewrites it atomically: temp file in the same directory,
    fsync, rename
  - A missing file on Load is an empty table, not an error

BoltStore:
  - Bucket "jobs", key = job id, value = JSON-marshalled record
  - SaveAll mirrors the in-memory table in one transaction: upserts
    every record and deletes rows whose job no longer exists, so
    pruned jobs cannot reappear on the next load
  - Close closes the underlying database file

# Orphan Recovery

A job recorded as running or pending when the process starts is an
orphan: the worker that owned it is gone. Load rewrites such records to
failed with the fixed OrphanReason, zeroes their progress, stamps
completed_at, persists the rewrite, and reports the count. After a
restart no job in the table is ever in a non-terminal state it cannot
actually be in.

# Atomic JSON Helpers

WriteJSONFile writes any value as indented JSON through a temp file in
the target directory followed by a rename, creating parent directories
as needed; ReadJSONFile is its counterpart. The golden repository
metadata document and every activation sidecar go through these
helpers.

# Usage

	// JSON-document backend
	store := storage.NewFileStore(cfg.JobStoragePath())

	// BoltDB backend
	store, err := storage.NewBoltStore(cfg.JobStoragePath())
	defer store.Close()

	jobs, orphans, err := store.Load()
	// orphans were rewritten to failed and persisted

	err = store.SaveAll(jobs)

	// Shared helpers
	err = storage.WriteJSONFile(metadataPath, records)
	err = storage.ReadJSONFile(metadataPath, &records)

# Integration Points

This package integrates with:

  - pkg/jobs: the only writer; SaveAll runs under the job table lock
  - pkg/golden: metadata.json via the JSON helpers
  - pkg/activated: sidecar metadata via the JSON helpers
  - pkg/config: backend selection (json or bolt) and paths
  - pkg/types: the Job record and status constants

# Design Patterns

Whole-table writes:
  - Both backends persist the complete table per transition; the
    in-memory map is authoritative and the store is a mirror, which
    keeps deletion (prune) and the two backends semantically identical

Temp-and-rename everywhere:
  - Every JSON document this package writes is replaced atomically;
    readers never observe a torn file

Rewrite-then-report:
  - Orphan recovery happens inside Load, before any caller sees the
    records, and is durable before Load returns

# Choosing a Backend

FileStore (job_backend: json):
  - Zero dependencies beyond the filesystem; the document is
    human-readable and trivially backed up
  - Whole-document rewrite per transition: fine for the
    retention-bounded table sizes this server sees

BoltStore (job_backend: bolt):
  - Single-writer B+tree with ACID transactions and fsync on commit
  - Per-row storage keeps individual records addressable and scales
    more gracefully if retention is raised substantially

Both present identical semantics through JobStore; switching backends
is a configuration change plus, if history matters, a one-off copy.

# Performance Characteristics

FileStore:
  - SaveAll: marshal the table + temp write + fsync + rename;
    single-digit milliseconds for hundreds of records
  - Load: one read + unmarshal

BoltStore:
  - SaveAll: one write transaction covering upserts and stale-row
    deletes; fsync on commit dominates (1-5 ms on ordinary disks)
  - Load: one read transaction cursor over the bucket
  - Reads and writes never block each other (MVCC), though this
    package only ever writes under the job lock anyway

# Troubleshooting

"failed to persist jobs" in logs:
  - Effect: the in-memory table is ahead of disk until a later save
    succeeds
  - Check: disk space, permissions on the data directory, and for
    bolt a possible second process holding the database file

Bolt open hangs at startup:
  - Cause: another process has the database file locked (bolt takes
    an exclusive file lock)
  - Solution: ensure one server instance per data directory

Orphan count nonzero on every start:
  - Symptom: the startup log reports rewritten orphans after clean
    shutdowns
  - Cause: shutdown is not draining jobs before exit (budget too
    small, or the process is killed hard)
  - Check: shutdown logs for skipped cleanup callbacks

# Data Integrity

  - Atomicity: FileStore via rename; BoltStore via transactions
  - Durability: fsync before rename / on commit
  - Consistency: one writer (the job engine under its lock) by
    construction; the stores add no locking of their own
  - Backup: copy jobs.json anytime (it is replaced atomically); copy
    jobs.db while the server is stopped

# See Also

  - pkg/jobs for the locking discipline around SaveAll
  - pkg/types for the persisted record shape
*/
package storage
