/*
Package server assembles the Quarry components into one running process.

The server package is the composition root: it builds the job store, the
event broker, the job engine, the repository managers, the file and git
services, the listing views and the REST adaptor from one validated
configuration, then runs the HTTP server until a shutdown signal drains
everything within the configured budget.

# Architecture

	┌──────────────────── PROCESS WIRING ───────────────────────┐
	│                                                             │
	│  config.Config                                              │
	│       │                                                     │
	│       ▼                                                     │
	│  ┌────────────────────────────────────────────┐           │
	│  │                 New(cfg)                    │           │
	│  │                                              │           │
	│  │  storage (json|bolt) ──► jobs.Manager       │           │
	│  │  events.Broker (started)                    │           │
	│  │  gitcmd.ExecRunner                          │           │
	│  │       │                                      │           │
	│  │       ├──► golden.Manager                   │           │
	│  │       ├──► activated.Manager                │           │
	│  │       ├──► files.Service                    │           │
	│  │       ├──► gitops.Service                   │           │
	│  │       ├──► listing.Service                  │           │
	│  │       └──► api.Server                       │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │ Run()                                │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │  http.Server on cfg.ListenAddr             │           │
	│  │  hourly prune loop (job retention)         │           │
	│  │  resources.ShutdownHandler:                │           │
	│  │    1. stop HTTP intake                     │           │
	│  │    2. stop the prune loop                  │           │
	│  │    3. jobs.Shutdown (cancel + drain)       │           │
	│  │    4. broker.Stop                          │           │
	│  │    5. store.Close                          │           │
	│  │  — all within cfg.ShutdownTimeout          │           │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Lifecycle

New creates the data directory, selects the job backend from
configuration, loads persisted jobs (orphans are failed by the store
before anything sees them), applies maintenance mode, and wires every
component with explicit pointers — there are no process-wide singletons
beyond the logging and metrics packages.

Run starts the API listener and the hourly prune loop, registers the
ordered cleanup callbacks on a ShutdownHandler with the configured
budget, and blocks. It returns when a SIGINT/SIGTERM has been handled
or the listener fails; either way cleanup runs exactly once.

# Usage

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	return srv.Run() // blocks until shutdown

# Design Patterns

Explicit composition root:
  - Construction order mirrors the dependency graph; every component
    receives its collaborators as arguments, which is also exactly
    how the tests build partial stacks

Shutdown as registered order:
  - Intake stops before workers, workers before the broker, the
    broker before the store, so nothing publishes to or persists
    through a closed dependency

# Background Loops

Run owns one periodic loop: hourly pruning of terminal jobs older than
job_retention_period. The loop stops through its own shutdown callback
before the job engine drains, so a prune can never race a closing
store. Everything else that looks periodic in the system (cancellation
polling, token expiry) is event-driven or lazy and needs no loop here.

# Troubleshooting

Startup fails with "failed to create data directory":
  - Check: permissions on the configured data_dir parent

Startup fails opening the bolt store:
  - Cause: another server instance holds the database file lock
  - Solution: one instance per data directory

Shutdown takes the full budget:
  - Symptom: "Workers did not complete before shutdown timeout" or
    skipped-callback warnings
  - Cause: running jobs blocked in subprocesses longer than the jobs
    drain window
  - Effect: orphan recovery will fail those jobs on the next start;
    state stays consistent

Port already in use:
  - Run returns the listener error after triggering cleanup, so a
    failed bind still closes the store cleanly

# See Also

  - cmd/quarry for the CLI that drives this package
  - pkg/resources for the shutdown handler semantics
  - pkg/config for everything New consumes
*/
package server
