/*
Package activated manages per-user working copies of golden repositories.

An activated repository is a copy-on-write clone of an admin-registered
golden repository, owned by one user under one alias, with its own
current branch and sidecar metadata. This package performs the clone,
maintains the dual-remote topology, migrates legacy repositories just in
time, syncs against the golden, switches branches with graceful remote
fallback, rebuilds indexes, and tears activations down again.

# Architecture

	┌────────────────── ACTIVATED REPOSITORIES ─────────────────┐
	│                                                             │
	│  <data>/activated-repos/                                    │
	│      └── <username>/                                        │
	│          ├── <user_alias>/            ← working tree        │
	│          │    ├── .git/                                     │
	│          │    ├── .code-indexer/      ← copied indexes      │
	│          │    └── ...                                       │
	│          └── <user_alias>_metadata.json   ← source of truth │
	│                                                             │
	│  ┌────────────────────────────────────────────┐           │
	│  │                Manager                      │           │
	│  │  Activate ──► background job: CoW clone    │           │
	│  │  Deactivate ► background job: remove both  │           │
	│  │  Reindex ───► background job: cidx rebuild │           │
	│  │  SwitchBranch / SyncWithGolden / List /    │           │
	│  │  ListBranches: synchronous                 │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│       ┌─────────────┼───────────────┐                      │
	│       ▼             ▼               ▼                      │
	│  pkg/golden     pkg/jobs        pkg/gitcmd                 │
	│  (golden        (job bodies,    (git / cp / cidx           │
	│   lookups)       progress)       subprocesses)             │
	└─────────────────────────────────────────────────────────┘

An activation is live only when BOTH the working tree directory and the
sidecar metadata file exist. A directory without metadata (or the
reverse) is a stale leftover and is treated as not activated.

# Copy-on-Write Clone

Activation copies the golden clone with a reflink-aware recursive cp
rather than a git clone: a local git clone would skip the gitignored
.code-indexer/ subtree, and carrying the prebuilt indexes across is the
whole point. The procedure, in order:

 1. cp --reflink=auto -r <golden> <dest> (2 minute deadline)
 2. git update-index --refresh, then git restore . — resets timestamps
    so copied files do not show as modified; untracked .code-indexer/
    content remaining in status is expected
 3. cidx fix-config --force — rewrites internal paths in the copied
    index configuration
 4. configure the dual-remote topology (below)
 5. best-effort fetch from whichever remote is origin; failure is
    logged, not fatal
 6. git status must succeed; failure here is fatal

A requested branch that differs from the golden's default goes through
the branch-switch strategy chain; on failure the destination is removed
and the job fails. The destination is tracked as a temp path on a
resource scope for the whole procedure, so every failure path removes
the half-built tree.

# Dual-Remote Topology

A freshly activated repository has exactly two remotes:

	origin ──► the upstream URL (propagated from the golden's own
	           origin; never a local path)
	golden ──► the local golden clone path

When the golden has no usable upstream, origin is dropped rather than
left pointing at a local path.

Legacy repositories predate this shape: their single origin points at
the local golden. MigrateLegacyRemotes upgrades them just in time,
invoked by every operation that consults remotes (branch switch, sync,
and push/pull/fetch via pkg/gitops):

 1. rename origin to golden (its URL already points at the golden)
 2. add origin with the upstream URL read from the golden's origin

Migration is idempotent and returns true only on the run that actually
migrated. There is deliberately no upgrade-on-startup pass.

# Branch Switching

SwitchBranch validates the branch name (letters, digits, '/', '_', '.'
and '-'; no leading '-', no '.lock' suffix, no '..'), decides whether a
fetch makes sense (origin must resolve to a real remote URL; local paths
are skipped), runs a best-effort git fetch origin, and then tries
strategies in priority order:

 1. remote-tracking: git checkout -B <branch> origin/<branch>
    (only when the fetch succeeded)
 2. direct local: git checkout <branch>
 3. create-from-remote-ref: git checkout -b <branch> origin/<branch>
    when refs/remotes/origin/<branch> already exists locally
 4. force local reuse: git checkout -B <branch> when git show-ref
    finds the name anywhere

The first success wins and updates current_branch and last_accessed in
the metadata. When all fail the error names the branch and whether a
fetch was attempted; metadata is untouched.

# Sync

SyncWithGolden fast-forwards the working copy from the golden remote:

	fetch golden  →  diff HEAD..golden/<branch>  →  merge golden/<branch>

A fetch failure is reported as success with changes_applied=false and a
clear message. A merge conflict is fatal and user-actionable. On applied
changes the result carries the changed-file count and the first ten
paths.

# Reindex

Reindex submits a background job rebuilding one or more index types over
the working tree:

	semantic  cidx index            (clear removes .code-indexer/index first)
	fts       cidx index --fts      [--clear]
	temporal  cidx index --index-commits [--clear]
	scip      cidx scip generate --project <path> [--clear]

Only one reindex job per user may be in flight. A failing step records
the self-healing failure_reason on the job before failing it.

# Usage

	m, err := activated.NewManager(cfg, goldenManager, jobManager, runner, broker)

	// Async operations return job ids
	jobID, err := m.Activate("alice", "hello", "", "")
	jobID, err = m.Deactivate("alice", "hello")
	jobID, err = m.Reindex("alice", "hello", []string{"semantic", "fts"}, false)

	// Synchronous operations return structured results
	result, err := m.SwitchBranch(ctx, "alice", "hello", "feature-branch")
	sync, err := m.SyncWithGolden(ctx, "alice", "hello")
	branches, err := m.ListBranches(ctx, "alice", "hello")
	repos := m.List("alice")

	// Path resolution for the file and git services
	dir := m.RepoPath("alice", "hello")

# Metadata

The sidecar file is the single source of truth for current_branch and
last_accessed; writers take no cross-repository locks. List scans the
user directory for *_metadata.json files whose working tree still
exists, skipping corrupted files with a warning. Touch bumps
last_accessed; GoldenPathFor resolves the golden clone path an
activation references.

# Integration Points

This package integrates with:

  - pkg/golden: golden lookups, alias validation, upstream URLs
  - pkg/jobs: activation/deactivation/reindex bodies and progress
  - pkg/gitcmd: every git, cp and cidx subprocess
  - pkg/cidx: fix-config during the clone procedure
  - pkg/resources: temp-path scopes around the clone and reindex
  - pkg/files, pkg/gitops: consume RepoPath and MigrateLegacyRemotes
  - pkg/events: repo.activated/deactivated/synced, branch.switched

# Design Patterns

Both-or-neither activation:
  - Directory and metadata are created together and removed together
  - The resource scope removes a half-built tree on any failure path

Graceful remote fallback:
  - Remote strategies are preferred but never required
  - Every remote failure degrades to a local strategy with an honest
    message instead of failing the operation

Just-in-time migration:
  - Migration lives inside the operations that need remotes
  - Quiet repositories are never touched until someone uses them

# Error Semantics

  - unknown golden or activation: types.NotFoundError
  - duplicate activation, sync merge conflict, concurrent reindex:
    types.ConflictError
  - bad alias, branch name or index type: types.ValidationError
  - subprocess failures: types.GitCommandError with argv, dir, exit
    code and stderr

# Invariants

The package maintains, and its tests assert:

  - Directory and sidecar metadata are both present or both absent
    after any successful operation; there are no half-states
  - A repository that has survived one operation requiring remotes has
    exactly two remotes: origin (never a local path) and golden
    (always the local golden clone path)
  - A failed branch switch leaves current_branch and last_accessed
    untouched
  - current_branch in the metadata always names the branch the working
    tree is actually on after a successful switch

# Performance Characteristics

Activation:
  - Dominated by the recursive copy; --reflink=auto makes it O(metadata)
    on CoW filesystems (btrfs, xfs) and a full data copy elsewhere,
    bounded by the 2 minute deadline either way
  - The remaining steps are constant-count subprocess calls

Branch switch:
  - Worst case one fetch (60 s bound) plus up to four local git
    invocations; typical case is a single checkout

Listing:
  - One directory scan plus one metadata read per activation; branch
    listing adds one git log -1 per branch for commit detail

Sync:
  - One fetch, one diff, one merge; fast-forward merges are near
    instant, so cost tracks the golden's delta size

# Troubleshooting

Activation fails with "already activated":
  - Symptom: conflict on Activate
  - Cause: both the directory and the metadata file exist
  - Check: a directory alone (or metadata alone) is a stale leftover
    and does NOT block activation; remove whichever half remains

Branch switch reports "not found … fetch from remote failed":
  - Symptom: switch fails naming the branch and the fetch failure
  - Cause: the branch exists only upstream and origin is unreachable
  - Solution: restore connectivity, or create the branch locally

Sync says "up to date (fetch failed, no changes applied)":
  - Symptom: success with changes_applied=false
  - Cause: the golden remote could not be fetched; local state is
    untouched by design
  - Check: the golden clone path still exists and is readable

git status shows .code-indexer as untracked:
  - Expected: the index subtree is gitignored in the golden and is
    carried across deliberately; only modified tracked files would
    indicate a problem

Reindex rejected with "another reindex job":
  - Expected: one reindex per user at a time; wait for the named job
    or cancel it

# Monitoring

  - quarry_activated_repos_total: live activation gauge
  - quarry_job_duration_seconds{operation="activate_repository"}:
    activation latency including copy and fetch
  - repo.activated / repo.deactivated / repo.synced / branch.switched
    events on the broker for audit trails

# See Also

  - pkg/golden for the repositories activations are cloned from
  - pkg/gitops for the git operation surface over activated repos
  - pkg/files for sandboxed file CRUD inside activated repos
*/
package activated
