/*
Package types defines the core data structures used throughout Quarry.

The types package holds the domain records — golden repositories,
activated repositories, background jobs — and the typed error kinds
that every manager raises at its boundary. It has no dependencies on
other Quarry packages, so every component can share these definitions
without import cycles.

# Architecture

	┌────────────────────── CORE TYPES ─────────────────────────┐
	│                                                             │
	│  ┌────────────────┐   ┌──────────────────┐                │
	│  │  GoldenRepo    │   │  ActivatedRepo   │                │
	│  │  alias         │   │  user_alias      │                │
	│  │  repo_url      │   │  golden_repo_    │                │
	│  │  default_branch│◄──┤    alias (by     │                │
	│  │  clone_path    │   │    value)        │                │
	│  │  created_at    │   │  current_branch  │                │
	│  │  temporal knobs│   │  activated_at    │                │
	│  └────────────────┘   │  last_accessed   │                │
	│                       └──────────────────┘                │
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │                  Job                        │           │
	│  │  job_id, operation_type, status,           │           │
	│  │  created/started/completed_at, progress,   │           │
	│  │  result, error, username, is_admin,        │           │
	│  │  cancelled, repo_alias                     │           │
	│  │  + self-healing: resolution_attempts,      │           │
	│  │    claude_actions, failure_reason,         │           │
	│  │    extended_error,                         │           │
	│  │    language_resolution_status              │           │
	│  └────────────────────────────────────────────┘           │
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │              Error Kinds                    │           │
	│  │  NotFound  Conflict  Validation  Sandbox   │           │
	│  │  HashMismatch  ConfirmationInvalid         │           │
	│  │  GitCommand  Cleanup  Maintenance          │           │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Core Types

GoldenRepo:
  - Admin-registered canonical repository
  - Alias is unique process-wide; clone_path is a direct child of the
    golden-repos root
  - EnableTemporal and TemporalOptions are opaque indexing knobs,
    persisted round-trip

ActivatedRepo:
  - The sidecar metadata record of one user's working copy
  - References its golden by alias value, not by pointer
  - Serialized as the <alias>_metadata.json file on disk

Job / JobStatus:
  - The persisted record of one background operation
  - Statuses: pending, running, completed, failed, cancelled, plus
    resolving_prerequisites while automated remediation is in flight
  - JobStatus.Terminal reports the final states
  - Job.Clone produces a hand-out copy safe to return across the
    job-table lock boundary
  - Self-healing fields are always present in API responses,
    zero-valued when no worker touched them

JobList / JobStats:
  - Pagination envelope and windowed completed/failed counts

BranchInfo / BranchList:
  - Branch detail views (type, current flag, last commit hash,
    message and date) returned by branch listing

# Job State Machine

	pending ──► running ──► completed
	   │            │
	   │            ├─────► failed
	   └────────────┴─────► cancelled

Terminal statuses imply completed_at is set; progress 100 occurs only
on completed; username is immutable; terminal jobs never transition
back. These invariants are enforced by pkg/jobs, documented here with
the data they constrain.

# Error Kinds

Each kind is a struct implementing error, matched with errors.As and
mapped to an HTTP status by pkg/api:

	NotFoundError{Resource, Name}         entity absent          404
	ConflictError{Msg}                    duplicate / quota      409
	ValidationError{Msg}                  malformed input        400
	SandboxError{Msg}                     path escapes repo      403
	HashMismatchError{Path, Expected,     optimistic lock lost   409
	                  Actual}
	ConfirmationInvalidError{Operation}   bad/expired token      400
	GitCommandError{Msg, Command, Dir,    subprocess failure     500/503
	                ExitCode, Stderr}
	CleanupError{Msg, Err}                teardown failure       500
	MaintenanceError{}                    server in maintenance  503

GitCommandError renders its full context (argv, dir, exit code,
stderr) and its RemoteUnreachable method classifies stderr for the
503 mapping. CleanupError unwraps its cause so errors.Is keeps
working through it.

# Usage

	var notFound *types.NotFoundError
	if errors.As(err, &notFound) {
		// 404 path
	}

	job := &types.Job{ ... }
	if job.Status.Terminal() {
		// completed_at is guaranteed non-nil
	}
	copy := job.Clone() // safe to hand out

# Serialization

Every record serializes to JSON with snake_case field names matching
the on-disk documents and the API payloads:

  - time.Time fields render as RFC 3339 UTC instants
  - Job pointer timestamps (started_at, completed_at) render as null
    until set, which is itself meaningful: terminal statuses guarantee
    completed_at is non-null
  - The temporal knobs on GoldenRepo carry omitempty so registrations
    that never set them round-trip without noise
  - Self-healing fields serialize even when zero-valued, keeping the
    job API shape stable for clients

The same structs are used for persistence (pkg/storage, sidecar
metadata) and API responses; there are no separate DTOs to drift.

# Validation

This package defines the shapes; the grammars that guard them live
with their owners and are shared from there:

  - repository aliases: pkg/golden.ValidateAlias
    ([A-Za-z0-9._-]+, no "..", "/" or "\")
  - branch names: pkg/activated.ValidateBranchName
    ([A-Za-z0-9/_.-]+, no leading "-", no ".lock" suffix, no "..")
  - author email and name: validated inside pkg/gitops before commits
  - file paths: pkg/files.ValidatePath sandbox rules

Keeping validators next to the operations that enforce them avoids a
grab-bag validation package while this package stays dependency-free.

# Thread Safety

These are plain data types; synchronization belongs to their owners.
The one concession is Job.Clone, which exists precisely so pkg/jobs can
return records without exposing its table to mutation. Clone deep-copies
the timestamp pointers, the result map and the actions slice — the
fields a holder could plausibly mutate — and shares the rest.

# See Also

  - pkg/jobs for the engine enforcing the job invariants
  - pkg/api for the HTTP mapping of the error kinds
  - pkg/storage for how these records are persisted
*/
package types
