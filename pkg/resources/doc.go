/*
Package resources provides scoped resource tracking with guaranteed
ordered disposal, heap growth monitoring, and the process shutdown
handler.

A Scope is opened at the start of an operation; everything the operation
acquires — file handles, named connections, temporary paths, background
tasks — is tracked against it, and Close disposes of the lot in reverse
dependency order on every exit path: normal return, error, cancellation,
or process signal. The scope never suppresses the error that caused an
early exit; it only guarantees cleanup.

# Architecture

	┌──────────────────── RESOURCE SCOPE ───────────────────────┐
	│                                                             │
	│  NewScope(WithMemoryMonitoring(threshold))                  │
	│       │                                                     │
	│       ▼                                                     │
	│  ┌────────────────────────────────────────────┐           │
	│  │           Tracked Resources                 │           │
	│  │  TrackTask(name, cancel, done)             │           │
	│  │  TrackFile(name, closer)                   │           │
	│  │  TrackConnection(name, closer)             │           │
	│  │  TrackTempPath(path) / UntrackTempPath     │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │ Close()                              │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          Disposal Order                     │           │
	│  │  1. cancel tasks (2 s grace each;          │           │
	│  │     timeout logs and proceeds)             │           │
	│  │  2. close file handles (already-closed     │           │
	│  │     is not an error)                       │           │
	│  │  3. close named connections                │           │
	│  │  4. remove temp paths (recursive)          │           │
	│  │  5. GC + memory-growth check               │           │
	│  └────────────────────────────────────────────┘           │
	│                                                             │
	│  Every step is independent: a failure is logged and        │
	│  counted, and the next step still runs.                    │
	└──────────────────────────────────────────────────────────┘

Tasks go first because they may hold any of the other resources;
temporary paths go last so nothing still running has its working files
pulled out from under it.

# Usage

	scope := resources.NewScope(resources.WithMemoryMonitoring(50))
	defer scope.Close()

	scope.TrackTempPath(clonePath)   // removed on any failure path
	// ... build the clone ...
	scope.UntrackTempPath(clonePath) // committed: survives Close

	f, _ := os.Open(logPath)
	scope.TrackFile("audit-log", f)

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() { defer close(done); watch(taskCtx) }()
	scope.TrackTask("watcher", cancel, done)

Close is idempotent and returns the collected errors for callers that
want them; most callers defer it and rely on the logs.

# Memory Monitoring

WithMemoryMonitoring captures a heap baseline (runtime.ReadMemStats
heap-allocated MB) at scope entry. At exit the scope runs a GC pass and
emits a structured MemoryLeakWarning when growth exceeds the threshold:

	growth ≤ 1.5× threshold   moderate
	growth ≤ 3× threshold     high
	growth >  3× threshold    severe

Warnings carry growth/current/baseline/threshold figures and
remediation recommendations (severe adds restart and optimization
hints). They are informational, never fatal, and are counted by
severity in pkg/metrics.

# Shutdown Handler

ShutdownHandler runs registered cleanup callbacks when the process
receives SIGINT or SIGTERM:

	handler := resources.NewShutdownHandler(30 * time.Second)
	handler.Register("http", stopHTTP)
	handler.Register("jobs", drainJobs)
	handler.Listen() // blocks until a signal arrives and cleanup ran

Callbacks run in registration order under one total budget (default
30 s via configuration): a callback that would start past the budget is
skipped with a warning, a callback that overruns the remainder is
abandoned (its goroutine is reaped by process exit), and a panicking
callback never stops the rest. Trigger runs the same sequence exactly
once; later callers block until the first run completes, so tests and
error paths can share it with the signal path.

# Integration Points

This package integrates with:

  - pkg/golden: temp-path scope around the registration clone
  - pkg/activated: temp-path scopes around activation and reindex
  - pkg/server: the process-wide shutdown handler and its budget
  - pkg/metrics: cleanup error counter, leak warnings by severity
  - pkg/log: structured disposal and warning logs

# Design Patterns

Reverse dependency order:
  - Registration order encodes acquisition order; disposal inverts
    the dependency direction rather than the literal order, with
    tasks first and paths last

Track, then commit:
  - A destination directory is tracked as temporary while being
    built and released only once the operation's record exists, so
    half-built state can never survive a failure

Independent steps:
  - One failed close never blocks the remaining disposals; errors
    are aggregated, logged and counted instead

# Failure Semantics

The scope guarantees cleanup, never outcomes:

  - Close collects errors instead of returning on the first one;
    callers that defer it get logs and metrics, callers that invoke
    it directly get the slice
  - The error that caused an early exit from the guarded operation is
    never replaced or suppressed by cleanup errors
  - A task that ignores its cancellation beyond the 2 s grace is
    logged and left behind; disposal of everything else proceeds
  - Memory warnings are advisory: an operation that leaked never
    fails because of the leak report

# Performance Characteristics

  - Tracking calls are O(1) appends/inserts under the scope mutex
  - Close is linear in the tracked resource count plus up to 2 s per
    unresponsive task
  - The memory check costs one GC pass plus one ReadMemStats; it runs
    only on scopes that opted in, so hot paths without monitoring pay
    nothing

# Troubleshooting

"Task did not stop within cancellation grace":
  - Symptom: the warning appears during Close
  - Cause: a tracked task ignores its context for more than 2 s
  - Effect: remaining disposal proceeds; the goroutine leaks until it
    notices the cancellation
  - Solution: make the task observe ctx at its blocking points

"Cleanup budget exceeded, skipping remaining callbacks":
  - Symptom: shutdown log shows skipped callbacks
  - Cause: earlier callbacks consumed the whole budget
  - Check: which callback overran (each overrun is logged by name)
  - Solution: raise shutdown_timeout or make the slow callback bound
    its own work

Memory leak warnings on every operation:
  - Symptom: moderate warnings with small growth figures
  - Cause: threshold set near the workload's natural allocation
  - Solution: raise memory_leak_limit_mb; the tiers exist precisely
    so noise stays at moderate

# Monitoring

  - quarry_resource_cleanup_errors_total: any failed disposal step
  - quarry_memory_leak_warnings_total{severity}: growth events;
    watch for high and severe, expect occasional moderate

# See Also

  - pkg/jobs for the job bodies that open scopes
  - pkg/server for shutdown wiring and the cleanup budget
*/
package resources
