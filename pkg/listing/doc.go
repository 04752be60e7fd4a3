/*
Package listing builds derived read views over the repository managers
and the job engine for the external read APIs.

Nothing in this package mutates state or runs subprocesses: it composes
what pkg/golden, pkg/activated and pkg/jobs already know into the
shapes the read endpoints return, adding only cheap filesystem
inspection (tree sizes, index presence).

# Architecture

	┌──────────────────── READ VIEWS ───────────────────────────┐
	│                                                             │
	│  pkg/golden ──┐                                             │
	│               │     ┌──────────────────────────┐           │
	│  pkg/activated├────►│        Service           │           │
	│               │     │  GoldenRepos()           │           │
	│  pkg/jobs ────┘     │  GoldenRepo(alias)       │           │
	│                     │  UserRepos(username)     │           │
	│                     │  Stats()                 │           │
	│                     └────────────┬─────────────┘           │
	│                                  │                          │
	│                                  ▼                          │
	│                             pkg/api (GET routes)            │
	└──────────────────────────────────────────────────────────┘

# Views

GoldenDetail (GoldenRepos, GoldenRepo):
  - The registration record plus size on disk (tree walk, unreadable
    entries skipped) and an Indexed flag derived from the presence of
    the .code-indexer directory

ActivatedSummary (UserRepos):
  - The sidecar metadata of each live activation plus a
    GoldenAvailable flag, so clients can spot activations whose
    golden repository has since been removed

ServerStats (Stats):
  - Golden repository count, live active/pending/failed job counts,
    and completed/failed windows over 24h, 7d and 30d, stamped with
    the generation time

# Usage

	svc := listing.NewService(goldenManager, activatedManager, jobManager)

	details := svc.GoldenRepos()
	detail, err := svc.GoldenRepo("hello") // NotFoundError when absent
	mine := svc.UserRepos("alice")
	stats := svc.Stats()

# Integration Points

This package integrates with:

  - pkg/golden: records, existence checks
  - pkg/activated: per-user activation listings
  - pkg/jobs: counters and windowed statistics
  - pkg/api: every GET endpoint that is not a raw manager call

# Design Patterns

Derive, don't own:
  - The managers stay the source of truth; views are computed per
    request and never cached, so they cannot go stale

Tolerant inspection:
  - Size walks skip unreadable entries and missing trees rather than
    failing a whole listing for one bad repository

# Response Shapes

GoldenDetail:

	{"alias": "hello", "repo_url": "…", "default_branch": "master",
	 "clone_path": "…", "created_at": "…",
	 "size_bytes": 1048576, "indexed": true}

ActivatedSummary:

	{"user_alias": "hello", "golden_repo_alias": "hello",
	 "current_branch": "feature-branch",
	 "activated_at": "…", "last_accessed": "…",
	 "golden_available": true}

ServerStats:

	{"golden_repos": 3, "active_jobs": 1, "pending_jobs": 0,
	 "failed_jobs": 2,
	 "jobs_last_24h": {"completed": 10, "failed": 1},
	 "jobs_last_7d":  {"completed": 52, "failed": 4},
	 "jobs_last_30d": {"completed": 200, "failed": 9},
	 "generated_at": "…"}

# Performance Characteristics

  - GoldenRepos walks each clone tree for its size; cost scales with
    repository sizes and count, which the quotas bound
  - UserRepos is one directory scan plus a metadata read and an
    existence check per activation
  - Stats is a handful of O(jobs) passes over the retention-bounded
    job table

Views are computed per request. If golden size walks ever show up in
profiles, the detail view is the place to add caching — not the
managers.

# See Also

  - pkg/api for the routes serving these views
  - pkg/jobs for the statistics windows
*/
package listing
