/*
Package metrics defines the Prometheus instrumentation for Quarry.

All metrics are package-level collectors registered once in init and
shared across components. The package also provides the HTTP exposition
handler and a small Timer helper for observing durations.

# Architecture

	┌──────────────────── METRICS ──────────────────────────────┐
	│                                                             │
	│  pkg/jobs ──► JobsSubmitted / JobsCompleted /               │
	│               JobsActive / JobsPending / JobDuration        │
	│                                                             │
	│  pkg/golden ──► GoldenReposTotal                            │
	│  pkg/activated ──► ActivatedReposTotal                      │
	│                                                             │
	│  pkg/gitops ──► GitOperationsTotal / GitOperationDuration   │
	│                 TokensIssued / TokensConsumed /             │
	│                 TokensRejected                              │
	│                                                             │
	│  pkg/files ──► FileOperationsTotal                          │
	│                                                             │
	│  pkg/api ──► APIRequestsTotal / APIRequestDuration          │
	│                                                             │
	│  pkg/resources ──► MemoryLeakWarnings /                     │
	│                    ResourceCleanupErrors                    │
	│                                                             │
	│       all ──► prometheus default registry ──► /metrics      │
	└──────────────────────────────────────────────────────────┘

# Metric Catalog

Job engine:

	quarry_jobs_submitted_total{operation}          counter
	quarry_jobs_completed_total{operation,status}   counter
	quarry_jobs_active                              gauge
	quarry_jobs_pending                             gauge
	quarry_job_duration_seconds{operation}          histogram
	                                                (1s … 30min buckets)

Repositories:

	quarry_golden_repos_total                       gauge
	quarry_activated_repos_total                    gauge

Git operations:

	quarry_git_operations_total{operation,outcome}  counter
	quarry_git_operation_duration_seconds{operation} histogram

Confirmation tokens:

	quarry_confirmation_tokens_issued_total         counter
	quarry_confirmation_tokens_consumed_total       counter
	quarry_confirmation_tokens_rejected_total       counter

File CRUD:

	quarry_file_operations_total{operation,outcome} counter

API:

	quarry_api_requests_total{method,status}        counter
	quarry_api_request_duration_seconds{method}     histogram

Resource discipline:

	quarry_memory_leak_warnings_total{severity}     counter
	quarry_resource_cleanup_errors_total            counter

# Usage

Counting and observing:

	metrics.JobsSubmitted.WithLabelValues(operationType).Inc()
	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	timer := metrics.NewTimer()
	// ... do the work ...
	timer.ObserveDurationVec(metrics.JobDuration, operationType)

Exposition:

	mux.Handle("/metrics", metrics.Handler())

# Timer

Timer wraps a start instant with helpers for plain histograms and
labelled histogram vecs:

	timer := metrics.NewTimer()
	timer.ObserveDuration(someHistogram)
	timer.ObserveDurationVec(someVec, "label")
	elapsed := timer.Duration()

# Useful Queries

	// Job failure ratio over the last hour
	sum(rate(quarry_jobs_completed_total{status="failed"}[1h]))
	  / sum(rate(quarry_jobs_completed_total[1h]))

	// p95 activation time
	histogram_quantile(0.95,
	  rate(quarry_job_duration_seconds_bucket{operation="activate_repository"}[10m]))

	// Token abuse signal
	rate(quarry_confirmation_tokens_rejected_total[5m])

# Alerting Suggestions

	// Sustained worker starvation
	quarry_jobs_pending > 0 for 15m

	// Registration pipeline broken
	rate(quarry_jobs_completed_total{operation="add_golden_repo",status="failed"}[30m]) > 0
	  and rate(quarry_jobs_completed_total{operation="add_golden_repo",status="completed"}[30m]) == 0

	// Severe memory growth during operations
	increase(quarry_memory_leak_warnings_total{severity="severe"}[1h]) > 0

	// API error budget
	sum(rate(quarry_api_requests_total{status=~"5.."}[5m]))
	  / sum(rate(quarry_api_requests_total[5m])) > 0.05

# Cardinality Notes

  - operation labels come from a fixed, small set of operation names;
    no user input ever becomes a label value
  - status labels are HTTP status codes and job statuses, both
    bounded sets
  - Aliases and usernames deliberately never appear as labels; they
    belong in logs and events, where cardinality is free

# Design Patterns

Register in init:
  - Every collector is created as a package var and MustRegister-ed
    once; double registration is impossible by construction

Outcome labels over error counters:
  - Paired {operation, outcome} labels keep success and failure in
    one series family for ratio queries

Gauges set by owners:
  - Repository gauges are maintained by the managers that own the
    counts (set on load and change), never sampled by a collector
    goroutine

# See Also

  - pkg/api for the /metrics route
  - the emitting packages listed in the diagram above
*/
package metrics
