/*
Package golden manages the admin-registered golden repositories.

Golden repositories are the canonical, globally named source trees that
users activate per-user working copies from. This package owns the
golden-repos directory and its metadata document, and implements
registration with quota enforcement and a post-clone indexing workflow,
refresh, and transactional removal. Long operations run as background
jobs on pkg/jobs.

# Architecture

	┌──────────────────── GOLDEN REPOSITORIES ──────────────────┐
	│                                                             │
	│  <data>/golden-repos/                                       │
	│      ├── metadata.json        ← alias → record, rewritten   │
	│      │                          atomically under the lock   │
	│      ├── <alias>/             ← full working tree           │
	│      │    └── .code-indexer/  ← indexes built by cidx       │
	│      └── ...                                                │
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │                Manager                      │           │
	│  │  - in-memory map[alias]*GoldenRepo         │           │
	│  │  - one mutex; metadata writes inside it    │           │
	│  │  - pending-alias reservations for racing  │           │
	│  │    registrations                           │           │
	│  └──────┬─────────────┬──────────────┬────────┘           │
	│         │             │              │                      │
	│  ┌──────▼──────┐ ┌────▼─────┐ ┌──────▼───────┐            │
	│  │  pkg/jobs   │ │ pkg/cidx │ │   Cleaner    │            │
	│  │  Add/Refresh│ │ workflow │ │ teardown of  │            │
	│  │  /Remove    │ │ steps    │ │ aux services │            │
	│  │  bodies     │ │          │ │ on removal   │            │
	│  └─────────────┘ └──────────┘ └──────────────┘            │
	└──────────────────────────────────────────────────────────┘

# Registration

Add validates the alias format and the count quota synchronously and
submits the registration job. Alias uniqueness is enforced inside the
job — with a pending-alias reservation so concurrent registrations
cannot both win — which means a duplicate surfaces as a failed job whose
error says "already exists" rather than a rejected submission. The job
body, in order:

 1. reachability probe: git ls-remote with a 30 second deadline
 2. clone: remote URLs get a shallow single-branch git clone
    (5 minute deadline); local paths always get a regular recursive
    copy — never copy-on-write at this layer, to avoid cross-device
    failures
 3. size check against max_repo_size_bytes (default 1 GiB)
 4. the post-clone workflow (below)
 5. append the record and rewrite metadata.json atomically

The clone directory rides on a resource scope as a temp path for the
whole body: any failure removes it; success releases it just before the
record is committed.

Alias grammar: [A-Za-z0-9._-]+ with explicit rejection of "..", "/"
and "\". The quota (default 20) is enforced before any subprocess runs.

# Post-Clone Workflow

The ordered cidx invocations after a clone or refresh, each bounded by
a 5 minute deadline:

	init --embedding-provider <name> [--force]   (force on refresh)
	start
	status
	index        ← nonzero exit tolerated only when the combined
	               output contains "No files found to index"
	stop

Any other nonzero exit fails the job. Progress is reported at coarse
step boundaries.

# Refresh

Refresh validates existence synchronously and submits a job that, for a
remote origin, runs git pull origin <default_branch> and re-runs the
workflow with init --force; for a local origin it skips the pull and
re-runs the workflow with init --force.

# Removal

Remove validates existence synchronously and submits a job that:

 1. invokes the Cleaner — orchestrated teardown of auxiliary indexing
    services attached to the repository (may operate on container-like
    resources)
 2. recursively deletes the clone path
 3. removes the in-memory record and rewrites metadata.json

A cleanup failure fails the job, and nothing is removed: the record and
the on-disk tree both survive. There is deliberately no
success-with-warnings path.

The Cleaner is an interface; the default IndexCleaner stops the
indexing services for repositories carrying a .code-indexer directory
and is a no-op for repositories that were never indexed.

# Usage

Construction (nil cleaner selects the default IndexCleaner):

	m, err := golden.NewManager(cfg, jobManager, runner, nil, broker)

Registration, with and without temporal indexing knobs:

	jobID, err := m.Add("https://github.com/example/repo.git", "hello", "main",
		"admin", golden.AddOptions{})

	jobID, err = m.Add("/srv/mirrors/legacy.git", "legacy", "master",
		"admin", golden.AddOptions{
			EnableTemporal: true,
			TemporalOptions: map[string]string{
				"window": "90d",
			},
		})

The knobs are opaque to the core: they are persisted on the record and
round-tripped to clients, nothing more.

Refresh and removal:

	jobID, err = m.Refresh("hello", "admin")
	jobID, err = m.Remove("hello", "admin")

Reads:

	repos := m.List()
	repo, err := m.Get("hello")
	ok := m.Exists("hello")

	// Shared validation used by pkg/activated for user aliases too
	err = golden.ValidateAlias("my-repo_v1.2")

A custom Cleaner (tests use this to force teardown failures):

	type noopCleaner struct{}

	func (noopCleaner) Cleanup(ctx context.Context, clonePath string) error {
		return nil
	}

	m, err := golden.NewManager(cfg, jobManager, runner, noopCleaner{}, broker)

Every job records the actual submitter username for the audit trail;
the caller passes it explicitly on Add, Refresh and Remove.

# Concurrency

One mutex serializes the in-memory map, the pending-alias set and
every metadata rewrite. Subprocesses (probe, clone, pull, workflow
steps) always run outside the lock, so a slow clone never blocks
listings or other registrations. The pending set exists because two
registration bodies for the same alias can otherwise interleave
between the existence check and the record insert.

# Metadata

metadata.json maps alias to the full record (alias, repo_url,
default_branch, clone_path, created_at, optional temporal knobs). It is
loaded at startup — a corrupted document starts the table fresh with a
warning — and rewritten atomically (temp file + rename) on every change,
always under the manager lock.

# Integration Points

This package integrates with:

  - pkg/jobs: registration, refresh and removal bodies
  - pkg/cidx: the post-clone workflow steps
  - pkg/gitcmd: probe, clone, pull and copy subprocesses
  - pkg/resources: temp-path scope around the registration clone
  - pkg/storage: atomic JSON document read/write helpers
  - pkg/activated: golden lookups during activation and migration
  - pkg/events: golden.registered/refreshed/removed

# Design Patterns

Validate cheap things synchronously:
  - Alias format and the count quota fail the call; everything that
    needs subprocess work fails the job

Reserve before you build:
  - The pending-alias set closes the check-then-insert window between
    racing registration bodies

Transactional removal:
  - Cleanup failure aborts before anything is deleted; the job fails
    and state is exactly as before

# Error Semantics

  - bad alias: types.ValidationError
  - quota reached or alias exists: types.ConflictError
  - unknown alias on refresh/remove: types.NotFoundError
  - unreachable or failing git: types.GitCommandError
  - teardown or tree-removal failure: types.CleanupError (fails the job)

# Progress Milestones

Registration reports coarse progress through the job callback:

	20   reachability probe passed
	40   clone finished
	50   size quota passed
	55-85  workflow steps (init, start, status, index, stop)
	90   workflow complete, record about to be committed
	100  set by the engine on completion

Refresh reports 30 after the pull and the same workflow band. There is
deliberately no weighted sub-progress inside workflow steps.

# Performance Characteristics

Registration:
  - Remote: network-bound shallow clone (5 minute ceiling) plus the
    indexing workflow, which dominates for non-trivial repositories
  - Local: a recursive copy bounded at 5 minutes, then the workflow
  - The size walk is one pass over the cloned tree

Listing and lookups:
  - Served from the in-memory map under the mutex; O(n) copy for
    List, O(1) for Get/Exists
  - metadata.json is only read at startup and rewritten on change

# Troubleshooting

Registration fails with "inaccessible git repository":
  - Symptom: the job fails during the probe
  - Check: the URL is reachable from the server and credentials (if
    any) are available to git

Registration fails with "exceeds limit":
  - Symptom: the job fails after the clone; no record is created and
    the clone directory is gone
  - Solution: raise max_repo_size_bytes or shrink the repository

Index step "No files found to index" in logs:
  - Expected: an empty or non-indexable repository registers fine;
    the warning is informational

Removal job failed, repository still listed:
  - Expected: transactional removal; the cleanup or deletion failed
    and nothing was committed
  - Check: the job error for the underlying cause (often permissions
    on files created by auxiliary services), fix it, remove again

Metadata warning "starting fresh" at startup:
  - Symptom: the golden table is empty though clones exist on disk
  - Cause: metadata.json was corrupted
  - Solution: restore the document from backup or re-register; the
    trees under golden-repos/ are untouched

# Monitoring

  - quarry_golden_repos_total: registered count against the quota
  - quarry_job_duration_seconds{operation="add_golden_repo"}: end to
    end registration time; growth usually means indexing slowed
  - golden.registered/refreshed/removed events for audit

# See Also

  - pkg/activated for the working copies cloned from these repositories
  - pkg/cidx for the workflow step contract
  - pkg/listing for the derived admin views over this data
*/
package golden
