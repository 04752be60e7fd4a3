/*
Package files implements hash-locked file CRUD over activated repositories.

Every operation is parametrized by (repoAlias, relativePath, username),
resolves the repository working tree through the activated repository
manager, validates the path against the sandbox rules before any
filesystem call, and performs writes atomically. Concurrent edits are
fenced with SHA-256 optimistic locking.

# Architecture

	┌──────────────────── FILE CRUD ────────────────────────────┐
	│                                                             │
	│  (repoAlias, path, username)                                │
	│       │                                                     │
	│       ▼                                                     │
	│  ┌────────────────────────────────────────────┐           │
	│  │           Path Sandbox                      │           │
	│  │  - reject absolute paths                   │           │
	│  │  - reject ".." components                  │           │
	│  │  - reject ".git" components                │           │
	│  │    (.gitignore and .github/ are fine)      │           │
	│  │  - resolve symlinks through the deepest    │           │
	│  │    existing ancestor; the result must stay │           │
	│  │    strictly under the repository root      │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │         Optimistic Locking                  │           │
	│  │  - content hash = lowercase hex SHA-256    │           │
	│  │    of the bytes on disk                    │           │
	│  │  - edit requires the expected hash;        │           │
	│  │    delete validates it when supplied       │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                       │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Atomic Write                      │           │
	│  │  - temp file in the target's directory     │           │
	│  │    (same filesystem)                       │           │
	│  │  - write, fsync, close, rename into place  │           │
	│  │  - temp removed on any error               │           │
	│  └────────────────────────────────────────────┘           │
	└──────────────────────────────────────────────────────────┘

# Operations

Create:
  - Fails with a conflict when the target exists
  - Creates missing parent directories
  - Returns the new hash, size and creation instant

Read:
  - Returns content, hash and size; absent files are NotFound

Edit:
  - Validates the expected hash against the current bytes first;
    a mismatch is a HashMismatchError carrying both hashes
  - With replaceAll false the old string must occur exactly once;
    zero or multiple occurrences are validation errors naming the
    count
  - With replaceAll true every occurrence is replaced and the count
    is reported
  - Returns the new hash and the number of changes

Delete:
  - Optionally validates the hash before unlinking
  - Returns the deletion instant

# Usage

	svc := files.NewService(activatedManager)

	created, err := svc.Create("hello", "app.py", "print('hi')\n", "alice")

	read, err := svc.Read("hello", "app.py", "alice")

	edited, err := svc.Edit("hello", "app.py", "hi", "ok",
		created.ContentHash, false, "alice")

	_, err = svc.Delete("hello", "app.py", edited.ContentHash, "alice")

The read-then-edit law holds: editing with the hash Read returned
succeeds exactly when nobody else wrote in between, and the returned
hash always equals the hash of the new content.

# Integration Points

This package integrates with:

  - pkg/activated: the RepoResolver that maps aliases to working trees
  - pkg/types: SandboxError, HashMismatchError, ValidationError,
    NotFoundError, ConflictError
  - pkg/metrics: operation counters by outcome
  - pkg/api: the file endpoints

# Design Patterns

Validate before touching disk:
  - The sandbox check runs on the relative path before resolution;
    the symlink check runs after; no filesystem mutation happens
    until both pass

Same-directory temp files:
  - The temp file lives next to the target so the final rename is a
    same-filesystem atomic replace, never a copy

Hash as a fence, not a lock:
  - No file locks are taken; the hash comparison detects concurrent
    modification and pushes the retry to the caller

# Security

The sandbox is layered, and every layer must pass:

  - Lexical: absolute paths, ".." components and ".git" components
    are rejected before the path is even joined to the root, so no
    filesystem state can influence the verdict
  - Physical: after joining, symlinks are expanded through the
    deepest existing ancestor and the result must remain strictly
    under the (equally resolved) repository root — a symlinked
    directory inside the tree cannot smuggle writes outside it
  - The .git rule matches components, not substrings: .gitignore and
    .github/workflows pass, .git/config and src/.git/hooks do not

Rejections are types.SandboxError, which the API maps to 403; they
name the offending path but never echo resolved absolute paths back to
the client.

# Error Semantics

  - sandbox violation: types.SandboxError (403)
  - target exists on create: types.ConflictError (409)
  - absent file or repository: types.NotFoundError (404)
  - stale hash on edit/delete: types.HashMismatchError (409), carrying
    expected and actual hashes for the client's retry logic
  - non-unique or missing old string: types.ValidationError naming
    the occurrence count (400)

# Performance Characteristics

  - Every operation is one full read (hash) plus, for writes, one
    full write with fsync and rename; costs scale with file size
  - The symlink walk is bounded by path depth; directories are only
    created on the create path
  - No caching anywhere: the hash is always computed from the bytes
    on disk, which is what makes the optimistic lock sound

# Troubleshooting

Edit keeps failing with hash mismatch:
  - Cause: something else writes the file between read and edit —
    another client, or a git operation (pull, reset) on the same tree
  - Solution: re-read, recompute, retry; this is the optimistic lock
    doing its job

"string appears N times … not unique":
  - Cause: the old string is ambiguous in the file
  - Solution: widen the old string with surrounding context, or pass
    replace_all when every occurrence should change

Create fails with "file already exists" after a crash:
  - Check: a previous create may have committed before the response
    was lost; read the file and compare hashes instead of recreating

# See Also

  - pkg/activated for alias resolution
  - pkg/gitops for git-level operations over the same trees
*/
package files
