/*
Package log provides structured logging for Quarry using zerolog.

The log package wraps zerolog with a globally configured logger,
component-scoped child loggers, domain field helpers, and correlation-id
propagation over context. Every Quarry component takes a child logger at
construction and emits structured events with consistent field names.

# Architecture

	┌────────────────────── LOGGING ────────────────────────────┐
	│                                                             │
	│  Init(Config{Level, JSONOutput, Output})                    │
	│       │                                                     │
	│       ▼                                                     │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Global Logger                    │           │
	│  │  - zerolog.Logger, timestamped             │           │
	│  │  - console writer (dev) or JSON (prod)     │           │
	│  │  - global level filter                     │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Child Loggers                     │           │
	│  │  WithComponent("jobs")    component=jobs   │           │
	│  │  WithJobID(id)            job_id=…         │           │
	│  │  WithUsername(name)       username=…       │           │
	│  │  WithRepo(alias)          repo_alias=…     │           │
	│  │  FromContext(ctx, comp)   + correlation_id │           │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Log Levels

	debug   strategy attempts, tracked resources, cache internals
	info    lifecycle events: job started/finished, repo activated,
	        workflow steps, server listening
	warn    degraded-but-continuing: fetch failed with local fallback,
	        cleanup step errors, skipped metadata files
	error   operation failures: job failed, persistence failed

The level comes from configuration (log_level) or the --log-level flag
and applies globally via zerolog's level filter.

# Correlation IDs

Request correlation ids ride on the context. The API middleware stores
the inbound (or generated) id with WithCorrelationID; any component
holding the request context can emit correlated logs:

	logger := log.FromContext(ctx, "gitops")
	logger.Info().Str("repo_alias", alias).Msg("Pull completed")
	// {"component":"gitops","correlation_id":"…","repo_alias":…}

CorrelationID extracts the raw id for response headers and hand-offs.

# Usage

Initialization (once, at process start):

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Component loggers (at construction):

	type Manager struct {
		logger zerolog.Logger
	}

	m := &Manager{logger: log.WithComponent("golden")}

	m.logger.Info().
		Str("alias", alias).
		Str("repo_url", repoURL).
		Msg("Golden repository registered")

Package-level helpers for simple messages:

	log.Info("Scheduler started")
	log.Warn("No runners available")

# Field Conventions

	component        emitting subsystem (jobs, golden, activated, …)
	job_id           background job identifier
	username         acting user
	repo_alias       golden or activated repository alias
	user_alias       activation alias where both appear
	correlation_id   request correlation id
	error            attached via .Err(err)

Consistent names keep downstream aggregation queries stable.

# Output Examples

Console (development):

	2026-08-01T10:12:41Z INF Background job submitted component=jobs job_id=… operation=activate_repository

JSON (production):

	{"level":"info","component":"jobs","job_id":"…","operation":"activate_repository","time":"…","message":"Background job submitted"}

# Integration Points

This package integrates with:

  - every pkg/* component: child loggers at construction
  - pkg/api: correlation middleware storing ids on the context
  - cmd/quarry: Init from the --log-level / --log-json flags

# Design Patterns

Configure once, derive everywhere:
  - Init runs a single time in main; components never reconfigure,
    they only derive children with bound fields

Fields over formatting:
  - Values go in typed fields, not interpolated strings, so logs are
    queryable without parsing

Context as the carrier:
  - Correlation flows through context.Context, never through globals
    or parameters added to every signature

# Performance Characteristics

  - zerolog writes zero-allocation JSON on the happy path; disabled
    levels short-circuit before any field is evaluated
  - Child loggers are value copies with bound fields; creating one at
    construction costs nothing per log call afterwards
  - The console writer is for humans and is markedly slower than JSON
    output; production runs with --log-json

# Troubleshooting

No output at all:
  - Cause: Init was never called (tests call it in TestMain) or the
    level filters everything
  - Check: the --log-level flag and the configured log_level

Debug lines missing:
  - Cause: the global level is info or higher
  - Solution: --log-level debug; the change is process-wide

Correlation id absent from a line:
  - Cause: the emitting site used WithComponent directly instead of
    FromContext, or the context predates the API middleware
  - Solution: pass the request context down and use FromContext at
    sites that serve requests

# Best Practices

  - One child logger per component, created at construction, stored
    on the struct
  - Bind identifying fields (job_id, repo_alias) once with a child
    logger when emitting several lines about the same entity
  - Messages are sentence fragments in present tense describing what
    happened ("Golden repository registered"), with the variability
    in fields, not the message text
  - Err(err) for errors, never fmt.Sprintf into the message

# See Also

  - pkg/api for where correlation ids enter the process
  - zerolog documentation: https://github.com/rs/zerolog
*/
package log
