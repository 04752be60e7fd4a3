/*
Package api is the REST adaptor over the Quarry managers.

The api package carries no business logic: handlers decode requests,
delegate to the repository managers, the job engine, the file service
and the git operations service, and map results and typed error kinds
onto HTTP statuses. Authentication happens in front of this layer; the
authenticated username and admin flag arrive as request headers set by
the fronting auth proxy.

# Architecture

	┌─────────────────────── REST ADAPTOR ──────────────────────┐
	│                                                             │
	│  Request                                                    │
	│     │                                                       │
	│     ▼                                                       │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Middleware Chain                 │           │
	│  │  correlation id → metrics → requireUser    │           │
	│  │  (admin routes add requireAdmin)           │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              chi Router                     │           │
	│  │  /healthz /readyz /metrics                 │           │
	│  │  /api/admin/golden-repos/…                 │           │
	│  │  /api/repos/…                              │           │
	│  │  /api/jobs/…                               │           │
	│  │  /api/stats                                │           │
	│  └──────┬──────┬───────┬───────┬──────┬───────┘           │
	│         │      │       │       │      │                    │
	│     pkg/golden │  pkg/jobs pkg/files  │                    │
	│          pkg/activated          pkg/gitops                 │
	│                 (reads via pkg/listing)                    │
	└──────────────────────────────────────────────────────────┘

# Route Catalog

Health and telemetry (no authentication):

	GET  /healthz                 status, uptime, live job counts
	GET  /readyz                  readiness probe
	GET  /metrics                 Prometheus exposition

Golden repositories (admin only):

	GET    /api/admin/golden-repos/            detail list
	POST   /api/admin/golden-repos/            register   → 202
	GET    /api/admin/golden-repos/{alias}     detail view
	POST   /api/admin/golden-repos/{alias}/refresh        → 202
	DELETE /api/admin/golden-repos/{alias}     remove     → 202

Activated repositories:

	GET    /api/repos/                         user's activations
	POST   /api/repos/activate                 activate   → 202
	DELETE /api/repos/{alias}                  deactivate → 202
	PUT    /api/repos/{alias}/branch           switch branch
	POST   /api/repos/{alias}/sync             sync with golden
	POST   /api/repos/{alias}/reindex          reindex    → 202
	GET    /api/repos/{alias}/branches         branch details

Files (hash-locked CRUD):

	GET    /api/repos/{alias}/files?path=…     read + hash
	POST   /api/repos/{alias}/files            create     → 201
	PUT    /api/repos/{alias}/files            edit (optimistic lock)
	DELETE /api/repos/{alias}/files?path=…     delete     → 204

Git operations:

	GET    /api/repos/{alias}/git/status
	GET    /api/repos/{alias}/git/diff
	GET    /api/repos/{alias}/git/log
	POST   /api/repos/{alias}/git/stage
	POST   /api/repos/{alias}/git/unstage
	POST   /api/repos/{alias}/git/commit
	POST   /api/repos/{alias}/git/push
	POST   /api/repos/{alias}/git/pull
	POST   /api/repos/{alias}/git/fetch
	POST   /api/repos/{alias}/git/reset        (hard mode gated)
	POST   /api/repos/{alias}/git/clean        (gated)
	POST   /api/repos/{alias}/git/merge-abort
	POST   /api/repos/{alias}/git/checkout-file
	GET    /api/repos/{alias}/git/branches
	POST   /api/repos/{alias}/git/branches     create     → 201
	PUT    /api/repos/{alias}/git/branches     switch
	DELETE /api/repos/{alias}/git/branches     delete (gated)

Jobs:

	GET    /api/jobs/                          owner's jobs, paginated
	GET    /api/jobs/{jobID}                   status
	DELETE /api/jobs/{jobID}                   cancel

Stats:

	GET    /api/stats                          server-wide read view

# Status Mapping

Async submissions return 202 with {job_id, message}. Confirmed
destructive operations (hard reset, clean, branch delete, file delete)
return 204 with an empty body. Error kinds map as:

	types.NotFoundError             404
	types.ConflictError             409
	types.ValidationError           400
	types.SandboxError              403
	types.HashMismatchError         409
	types.ConfirmationInvalidError  400
	types.GitCommandError           500 (503 when stderr indicates the
	                                     remote is unreachable)
	types.CleanupError              500
	types.MaintenanceError          503
	anything else                   500

A destructive operation arriving without a token is not an error: the
handler returns 400 with {requires_confirmation: true, token} so the
client can replay. Every error body is a single {"detail": …} string.

# Request Identity

The fronting auth layer sets:

	X-Quarry-User        authenticated username (required under /api)
	X-Quarry-Admin       "true" for administrators
	X-Correlation-ID     request correlation id (generated when absent)

Requests without a user get 401; non-admins on admin routes get 403.
The correlation id is echoed on the response and attached to the
request context for pkg/log.FromContext.

# Usage

	server := api.NewServer(goldenManager, activatedManager, jobManager,
		fileService, gitService, listingService)

	http.ListenAndServe(":8090", server.Router())

# Integration Points

This package integrates with:

  - pkg/golden, pkg/activated, pkg/jobs, pkg/files, pkg/gitops: the
    delegated business operations
  - pkg/listing: every read view (lists, details, stats)
  - pkg/metrics: request counters and duration histograms per method
  - pkg/log: correlation ids on the request context
  - pkg/server: construction and lifecycle

# Design Patterns

Thin adaptor:
  - Handlers are decode → delegate → encode; all invariants live in
    the managers, so transports can be swapped without touching them

Errors as types:
  - statusFor inspects the error chain with errors.As; wrapping at
    manager boundaries never breaks the mapping

Challenge pass-through:
  - The confirmation token flow is data, not control flow: the
    handler forwards the service's challenge result verbatim

# Request and Response Examples

Register a golden repository (admin):

	POST /api/admin/golden-repos/
	X-Quarry-User: root
	X-Quarry-Admin: true

	{"repo_url": "https://github.com/example/repo.git",
	 "alias": "hello", "default_branch": "main"}

	202 {"job_id": "7f3c…", "message": "Golden repository registration submitted"}

Hash-locked edit:

	PUT /api/repos/hello/files
	X-Quarry-User: alice

	{"file_path": "app.py", "old_string": "hi", "new_string": "ok",
	 "content_hash": "b94d27…", "replace_all": false}

	200 {"success": true, "file_path": "app.py", "content_hash": "5c2a…",
	     "modified_at": "…", "changes_made": 1}

	// replayed with the stale hash:
	409 {"detail": "content hash mismatch for 'app.py': …"}

Destructive confirmation roundtrip:

	POST /api/repos/hello/git/reset   {"mode": "hard"}
	400 {"requires_confirmation": true, "token": "K7MPQ2"}

	POST /api/repos/hello/git/reset   {"mode": "hard", "confirmation_token": "K7MPQ2"}
	204 (empty body)

	// same token a third time:
	400 {"detail": "invalid or expired confirmation token for git_reset_hard"}

Error payloads are always one object with a single detail string:

	404 {"detail": "activated repository 'ghost' not found"}

# Troubleshooting

401 on every /api route:
  - Cause: the fronting auth layer is not setting X-Quarry-User
  - Check: proxy configuration; the adaptor never authenticates

403 on admin routes for a real admin:
  - Cause: X-Quarry-Admin must be exactly "true"

202 accepted but the operation "did nothing":
  - Expected: the work runs in a background job; poll
    GET /api/jobs/{job_id} for status, progress and error

503 with a git detail:
  - Cause: stderr indicated an unreachable remote; the mapping
    distinguishes upstream outages from server faults

# Monitoring

  - quarry_api_requests_total{method,status}: traffic and error mix
  - quarry_api_request_duration_seconds{method}: latency per method
  - Correlate slow requests with job submissions via the echoed
    X-Correlation-ID in logs

# See Also

  - pkg/gitops for the confirmation token protocol
  - pkg/types for the error kinds this package maps
  - pkg/server for how the router is wired into the process
*/
package api
