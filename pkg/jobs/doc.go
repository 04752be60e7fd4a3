/*
Package jobs implements Quarry's background job engine.

The jobs package turns long-running repository operations (registration,
activation, refresh, reindex, deletion) into tracked background jobs with
durable state, progress reporting, cooperative cancellation, owner-scoped
visibility, and priority dispatch. Every manager that needs asynchronous
work submits a closure here and hands the returned job id back to the
caller.

# Architecture

The engine is a job table guarded by one lock, a two-class priority
queue, and a fixed pool of workers:

	┌───────────────────── JOB ENGINE ─────────────────────────┐
	│                                                            │
	│  Submit(op, body, opts)                                    │
	│       │                                                    │
	│       ▼                                                    │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Job Table                      │          │
	│  │  - map[jobID]*types.Job under one mutex    │          │
	│  │  - every transition persists via JobStore  │          │
	│  │  - owner-only visibility on reads          │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │ pending record written              │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Priority Queue                    │          │
	│  │  - admin class drains before user class    │          │
	│  │  - FIFO by sequence within each class      │          │
	│  │  - container/heap + sync.Cond              │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │ pop                                  │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Worker Pool                      │          │
	│  │  - N goroutines (config job_workers)       │          │
	│  │  - pending → running, stamp started_at     │          │
	│  │  - body(ctx, progress) with job context    │          │
	│  │  - running → completed/failed/cancelled    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Persistence (pkg/storage)          │          │
	│  │  - SaveAll under the job lock              │          │
	│  │  - orphan rewrite on load                  │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Job Lifecycle

Status transitions are totally ordered under the job table lock:

	pending ──► running ──► completed   (progress == 100)
	   │            │
	   │            ├─────► failed      (error recorded, progress 0)
	   │            │
	   └────────────┴─────► cancelled   (cooperative, completed_at set)

Terminal statuses are final: a completed, failed or cancelled job never
transitions again, and every terminal job carries a completed_at stamp.
On process restart the store rewrites any record still marked running or
pending to failed with a fixed orphan reason before the engine sees it.

# Core Components

Manager:
  - Owns the job table, the queue, the workers and the store
  - All mutation happens under one mutex; persistence inside the lock
  - Optional event broker publishes job lifecycle events

Body:
  - The unit of work: func(ctx, progress) (result map, error)
  - ctx is cancelled on job cancellation and engine shutdown
  - progress reports 0-100; writes are clamped and monotonic

Priority queue:
  - Two classes: admin-flagged jobs strictly before user jobs
  - FIFO within a class via submission sequence numbers
  - Closing the queue drains remaining items, then stops workers

# Submission

Submit validates the operation type and submitter, records a pending job,
persists it, and enqueues the body. It never blocks on execution:

	jobID, err := manager.Submit("activate_repository", body, jobs.SubmitOptions{
		Submitter: "alice",
		RepoAlias: "hello",
	})

A missing repo alias is accepted with a warning; the literal alias
"unknown" is also warned about since it usually means lost repository
context. Submissions are rejected outright while maintenance mode is on.

# Execution and Cancellation

Workers claim jobs from the queue. A claimed job that was cancelled while
pending terminates immediately; otherwise the worker stamps started_at,
sets the initial progress, and invokes the body with a per-job context.

Cancellation is cooperative. Cancel marks the flag, and:

  - pending jobs transition to cancelled on the spot
  - running jobs have their context cancelled; the body observes it at
    its next Checkpoint call or blocking boundary

Bodies running subprocesses call Checkpoint between steps:

	if err := jobs.Checkpoint(ctx); err != nil {
		return nil, err // ErrCancelled
	}

A body that is blocked inside a non-cancellable subprocess keeps running
until that subprocess finishes or times out; no attempt is made to kill
it mid-flight.

# Queries

All read paths enforce owner-only visibility: a job either belongs to
the requester or does not exist as far as they can tell.

	// Single job
	job, err := manager.Status(jobID, "alice")

	// Paginated listing, newest first, optional status filter
	page := manager.List("alice", types.JobStatusFailed, 10, 0)

	// Counters and windows
	n := manager.ActiveJobCount()
	stats := manager.StatsWindow(24 * time.Hour)
	recent := manager.RecentJobs(7*24*time.Hour, 20)

	// Cross-user lookup by operation type (deletion flows)
	jobs := manager.JobsByOperation("reindex")

Responses always include the extended self-healing fields, zero-valued
when no worker ever touched them, so the API shape is stable.

# Self-Healing Fields

Indexing workers annotate their own job through the context-carried id:

	id := jobs.JobIDFromContext(ctx)
	manager.RecordResolution(id, "go indexing failed", 1, actions)
	manager.SetLanguageResolutionStatus(id, "backend", status)

Both calls are no-ops on unknown or terminal jobs.

# Cleanup and Shutdown

Prune removes terminal jobs older than the retention period in one pass
under the lock, persisting once:

	removed := manager.Prune(24 * time.Hour)

Shutdown marks every running job cancelled, persists the final state,
cancels the shared base context, closes the queue and waits for workers
up to the given timeout:

	manager.Shutdown(10 * time.Second)

# Integration Points

This package integrates with:

  - pkg/storage: JobStore persistence and orphan recovery
  - pkg/golden: registration, refresh and removal bodies
  - pkg/activated: activation, deactivation and reindex bodies
  - pkg/events: job.submitted/completed/failed/cancelled events
  - pkg/metrics: submission counters, active/pending gauges, durations
  - pkg/api: job status, listing and cancellation endpoints

# Design Patterns

Persist inside the lock:
  - Every state transition calls SaveAll while holding the table mutex
  - Observers can never read a state that was not durably recorded
  - Persistence failures are logged, never raised; jobs keep working
    in memory

Clone on hand-out:
  - Status, List, RecentJobs and JobsByOperation return copies
  - Callers cannot mutate the table through returned pointers

Context-scoped identity:
  - The job id rides on the body's context rather than a parameter
  - Helpers deep in a body can annotate the job without plumbing

Cooperative cancellation:
  - No goroutine killing; the flag plus context cancellation compose
    with subprocess timeouts at every suspension point

# Concurrency

The job table mutex serializes every transition; subprocess work happens
strictly outside it. The queue has its own lock and condition variable.
Within one job, progress writes are monotonic: a stale lower value never
overwrites a later higher one.

# Writing a Body

A well-behaved body reports progress at coarse milestones, checkpoints
before every blocking step, and returns a result map on success:

	body := func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		if err := jobs.Checkpoint(ctx); err != nil {
			return nil, err
		}
		if err := probe(ctx); err != nil {
			return nil, err
		}
		progress(20)

		if err := jobs.Checkpoint(ctx); err != nil {
			return nil, err
		}
		if err := clone(ctx); err != nil {
			return nil, err
		}
		progress(60)

		return map[string]any{
			"success": true,
			"message": "repository cloned",
		}, nil
	}

Rules of thumb:

  - Return the error, do not log-and-swallow; the engine records it as
    the job's error string and the status becomes failed, never
    completed-with-warnings
  - Do not set progress to 100; the engine does that on completion,
    preserving the progress==100 ⇔ completed invariant
  - Treat ctx as the only cancellation signal; never poll the table
  - Long subprocesses belong behind per-call timeouts so cancellation
    has a bounded observation delay

# Performance Characteristics

Submission:
  - O(1) map insert plus one persistence write; the body never runs
    inline, so Submit latency is dominated by the store (file rewrite
    or bolt transaction, single-digit milliseconds at rest)

Dispatch:
  - Queue push/pop are O(log n) heap operations under their own lock
  - Worker count bounds concurrency; queued jobs wait, they are never
    dropped

Persistence:
  - Every transition rewrites the full table; with the default
    24 h retention and hourly pruning the table stays small (hundreds
    of records), keeping SaveAll cheap
  - Progress writes persist too, so bodies should report coarse
    milestones (a handful per job), not per-file ticks

Queries:
  - Status is O(1); List is O(n) over the requester's jobs plus a
    sort, fine at retention-bounded sizes

# Troubleshooting

Job stuck in pending:
  - Symptom: pending count grows, nothing starts
  - Cause: all workers busy with long jobs, or worker count too low
  - Check: quarry_jobs_active vs configured job_workers
  - Solution: raise job_workers, or cancel stuck jobs

Job stuck in running after cancel:
  - Symptom: cancelled flag set but status stays running
  - Cause: the body is inside a non-cancellable subprocess
  - Expected: the worker observes cancellation at the next checkpoint
    or when the subprocess deadline fires; no mid-flight kill is
    attempted by design

Jobs reappear as failed after restart:
  - Symptom: previously running jobs show failed with the orphan
    reason
  - Expected: orphan recovery; the process died while they ran and
    nothing can resume them

Persistence errors in logs:
  - Symptom: "Failed to persist jobs" with an underlying error
  - Effect: jobs continue in memory; durability is degraded until the
    store recovers
  - Check: disk space and permissions on the data directory

# Monitoring

Key metrics (see pkg/metrics):

  - quarry_jobs_submitted_total: submissions by operation type
  - quarry_jobs_completed_total: terminal outcomes by operation/status
  - quarry_jobs_active, quarry_jobs_pending: live gauges
  - quarry_job_duration_seconds: execution time histogram

Useful signals:

  - failed/completed ratio per operation over 1 h windows
  - pending gauge sustained above zero: worker starvation
  - p95 duration per operation: regressions in clone or indexing time

# See Also

  - pkg/storage for the persistence backends
  - pkg/types for the Job record and status constants
  - pkg/golden and pkg/activated for the job bodies this engine runs
*/
package jobs
