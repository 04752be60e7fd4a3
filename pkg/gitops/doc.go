/*
Package gitops exposes the git operation surface over activated repositories.

The gitops package implements seventeen git operations in five families —
status/inspection, staging/commit, remote, recovery, and branch
management — every one resolving a user's repository alias to its
working tree, running git through the shared subprocess runner, and
translating outcomes into typed errors and structured results.
Destructive operations are gated by single-use confirmation tokens, and
commits carry dual attribution.

# Architecture

	┌──────────────────── GIT OPERATIONS ───────────────────────┐
	│                                                             │
	│  (repoAlias, username, …)                                   │
	│       │                                                     │
	│       ▼                                                     │
	│  ┌────────────────────────────────────────────┐           │
	│  │              Service                        │           │
	│  │  - RepoResolver: alias → working tree      │           │
	│  │  - migration before remote operations      │           │
	│  │  - per-operation metrics                   │           │
	│  └──────┬──────────────────────┬──────────────┘           │
	│         │                      │                            │
	│  ┌──────▼───────┐      ┌───────▼────────────┐             │
	│  │ TokenCache   │      │  pkg/gitcmd Runner │             │
	│  │ 6-char codes │      │  git … (cwd, env,  │             │
	│  │ TTL 5 min    │      │  deadline)         │             │
	│  │ single use   │      └────────────────────┘             │
	│  └──────────────┘                                          │
	│                                                             │
	│  Families:                                                  │
	│    inspection: Status, Diff, Log                            │
	│    staging:    Stage, Unstage, Commit                       │
	│    remote:     Push, Pull, Fetch                            │
	│    recovery:   Reset, Clean, MergeAbort, CheckoutFile       │
	│    branch:     BranchList, BranchCreate, BranchSwitch,      │
	│                BranchDelete                                 │
	└──────────────────────────────────────────────────────────┘

# Common Contract

  - Local operations run with a 30 second deadline, remote operations
    (push, pull, fetch) with 5 minutes
  - Every failure produces a *types.GitCommandError carrying the argv,
    working directory, exit code and stderr
  - Push, Pull and Fetch trigger the just-in-time dual-remote migration
    (pkg/activated) before touching remotes; migration problems never
    fail the operation itself
  - Branch names are validated against the shared grammar before any
    subprocess runs

# Operation Catalog

Status:
  - git status --porcelain=v1 parsed into staged, unstaged and
    untracked file lists

Diff:
  - Supports -U<n> context width, --stat, a single revision or an
    A..B range, and a trailing path limiter after --
  - Returns the diff text and a files_changed count

Log:
  - Emits one JSON object per commit via --format and parses each
    line; unparseable lines are skipped
  - Optional filters: --since, --until, --author, branch selector,
    trailing path limiter; bounded by a commit limit

Stage / Unstage:
  - git add <paths> and git reset HEAD <paths>

Commit:
  - Dual attribution; see the section below

Push:
  - Classifies stderr into authentication, network, or generic
    failure messages

Pull:
  - Parses "CONFLICT … Merge conflict in <path>" lines into a
    structured conflicts list; success is false when conflicts are
    present
  - Counts updated files from the merge summary

Fetch:
  - Collects fetched ref lines from the combined output

Reset:
  - soft and mixed modes run directly; hard mode requires the
    confirmation token protocol

Clean:
  - git clean -fd behind a confirmation token; parses "Removing …"
    lines into the removed-file list

MergeAbort / CheckoutFile:
  - git merge --abort and git checkout HEAD -- <path>

BranchList / BranchCreate / BranchSwitch / BranchDelete:
  - git branch -a parsed into current, local and remote names
  - creation at HEAD, switch reporting the previous branch, deletion
    behind a confirmation token

# Confirmation Tokens

The operations reset --hard, clean -fd and branch -d are destructive
and follow a two-step protocol:

	caller                     service
	 ── op, no token ─────────▶ [no token present]
	                            generate T, store (T, op)
	 ◀──── {needs T, T} ────────
	 ── op, token=T ──────────▶ [consume T if (T, op) valid; single use]
	                            run git; return result

Tokens are six characters from ABCDEFGHJKLMNPQRSTUVWXYZ23456789 (the
ambiguous 0/O/1/I are excluded), live five minutes, are bound to one
operation name, and are consumed atomically with validation under the
cache lock. A token for reset never authorizes clean; a consumed or
expired token is rejected; the cache holds at most 10,000 entries,
evicting the entry closest to expiry when full.

# Dual-Attribution Commits

Commit records who really authored a change while the service identity
signs as committer:

 1. The author email is validated against a basic RFC-5322 expression;
    the author name is derived from the local part when omitted and
    must contain only letters, digits, spaces, hyphens, underscores
 2. Pre-existing Actual-Author: / Committed-Via: lines are stripped
    from the message so clients cannot forge trailers
 3. Two trailers are appended: Actual-Author: <email> and
    Committed-Via: CIDX API
 4. git commit runs with GIT_AUTHOR_NAME/EMAIL set to the user and
    GIT_COMMITTER_NAME/EMAIL set to the configured service identity
 5. The full hash is read back with git rev-parse HEAD

# Usage

	svc := gitops.NewService(cfg, activatedManager, runner)

Inspection:

	status, err := svc.Status(ctx, "hello", "alice")
	// status.Staged, status.Unstaged, status.Untracked

	three := 3
	diff, err := svc.Diff(ctx, "hello", "alice", gitops.DiffOptions{
		ContextLines: &three,
		FromRevision: "v1.0",
		ToRevision:   "v2.0",
		Path:         "src/",
	})

	log, err := svc.Log(ctx, "hello", "alice", gitops.LogOptions{
		Limit:  20,
		Since:  "2026-01-01",
		Author: "alice",
	})

Staging and commit:

	_, err = svc.Stage(ctx, "hello", "alice", []string{"src/app.go"})
	commit, err := svc.Commit(ctx, "hello", "alice",
		"Fix parser", "alice@example.com", "")
	// commit.CommitHash is the full hash from rev-parse

Remote operations (each migrates legacy remotes first):

	push, err := svc.Push(ctx, "hello", "alice", "origin", "feature")
	pull, err := svc.Pull(ctx, "hello", "alice", "", "")
	if !pull.Success {
		// pull.Conflicts names the conflicted paths
	}
	fetch, err := svc.Fetch(ctx, "hello", "alice", "")

Recovery and branches:

	_, err = svc.CheckoutFile(ctx, "hello", "alice", "src/app.go")
	_, err = svc.MergeAbort(ctx, "hello", "alice")
	branches, err := svc.BranchList(ctx, "hello", "alice")
	_, err = svc.BranchCreate(ctx, "hello", "alice", "feature")

Destructive roundtrip:

	first, _ := svc.Reset(ctx, "hello", "alice", "hard", "", "")
	// first.RequiresConfirmation == true, first.Token is the challenge
	second, err := svc.Reset(ctx, "hello", "alice", "hard", "", first.Token)

# Integration Points

This package integrates with:

  - pkg/activated: alias resolution and legacy remote migration
    (via the RepoResolver interface)
  - pkg/gitcmd: every subprocess invocation
  - pkg/types: GitCommandError, ConfirmationInvalidError, validation
  - pkg/metrics: per-operation counters, token issue/consume/reject
  - pkg/api: the REST handlers for every operation

# Design Patterns

Resolve, then run:
  - Every operation resolves the alias and checks the tree exists
    before any subprocess; unknown aliases are NotFound, never a git
    error

Parse at the boundary:
  - Raw subprocess output never escapes this package; each operation
    returns a typed result struct

Challenge as data:
  - A required confirmation is not an error: the result carries
    RequiresConfirmation and the token, and the adaptor maps it to a
    400 with the challenge body

# Security

Input validation:
  - Branch names pass the shared grammar before reaching argv; the
    grammar rejects leading '-', so a name can never be parsed as a
    git flag
  - Author emails and names are validated before the commit runs;
    names admit only letters, digits, spaces, hyphens and underscores

Trailer forgery defense:
  - User messages are stripped of any pre-existing Actual-Author: or
    Committed-Via: lines, so the appended trailers are always the
    only ones and always truthful

Capability tokens:
  - Tokens are generated from crypto/rand over a 32-character
    alphabet (about 30 bits); combined with the five-minute TTL and
    single use, brute force through the API is impractical
  - Validation and consumption are one atomic step under the cache
    lock, so a token can never authorize two operations

# Performance Characteristics

  - Inspection operations are one subprocess each, bounded at 30 s;
    typical latency is the git fork/exec cost (tens of milliseconds)
  - Remote operations are network-bound with a 5 minute ceiling
  - The token cache is O(1) per generate/consume; the purge and
    eviction scans run only when the cache is at its 10,000 cap
  - Log parsing is linear in the line count and bounded by the commit
    limit

# Troubleshooting

"invalid or expired confirmation token":
  - Symptom: 400 on the second call of a destructive operation
  - Causes: more than five minutes elapsed, the token was already
    used, or it was issued for a different operation
  - Solution: repeat the first call to obtain a fresh token

Pull returns success=false with conflicts:
  - Expected: the merge left conflict markers; the conflicts list
    names the files
  - Solution: resolve manually, or MergeAbort to back out

Push fails with an authentication message:
  - Symptom: error mentions authentication
  - Cause: the upstream rejects the service's credentials
  - Check: deploy key or credential helper for the origin URL

Operations fail with "activated repository … not found":
  - Cause: the alias does not resolve to a live working tree for this
    user
  - Check: the activation exists and belongs to the requesting user

# Monitoring

  - quarry_git_operations_total{operation,outcome}: success/error per
    operation; a rising error rate on one operation localizes the
    problem
  - quarry_confirmation_tokens_rejected_total: sustained rejections
    suggest clients replaying stale tokens, or probing
  - quarry_git_operation_duration_seconds: remote operation latency
    reflects upstream health

# See Also

  - pkg/activated for activation, sync and the migration this package
    triggers
  - pkg/gitcmd for the subprocess primitive and timeout tiers
  - pkg/api for the HTTP mapping of results and challenges
*/
package gitops
