/*
Package cidx shells out to the external cidx indexing CLI.

The indexing tool is opaque to the server: this package knows only the
subcommand surface, the per-step deadline, and the one tolerated
non-error outcome of the index step. Everything runs through the shared
subprocess runner with the repository path as the working directory.

# Architecture

	┌──────────────────── CIDX SHIM ────────────────────────────┐
	│                                                             │
	│  Client (over gitcmd.Runner)                                │
	│                                                             │
	│    Init(dir, provider, force)  cidx init                    │
	│                                  --embedding-provider <p>   │
	│                                  [--force]                  │
	│    Start(dir)                  cidx start                   │
	│    Status(dir)                 cidx status                  │
	│    Index(dir)                  cidx index                   │
	│    Stop(dir)                   cidx stop                    │
	│    FixConfig(dir)              cidx fix-config --force      │
	│                                                             │
	│  every step: 5 minute deadline, cwd = repository            │
	└──────────────────────────────────────────────────────────┘

# The No-Files Sentinel

Index tolerates exactly one nonzero exit: when the combined stdout and
stderr contain

	No files found to index

the repository simply has nothing indexable, which is acceptable for
registration, and Index returns nil after logging a warning. Every
other nonzero exit — from any step — is an error carrying the step name,
exit code and trimmed output.

# Callers

The golden post-clone workflow runs init → start → status → index →
stop after registration and refresh (pkg/golden). Activation runs
FixConfig to rewrite internal paths in the copied .code-indexer
configuration (pkg/activated). Reindex drives the index subcommand
variants directly through the runner because its flags (--fts,
--index-commits, scip generate) are per-index-type.

# Usage

	client := cidx.NewClient(runner)

	if err := client.Init(ctx, clonePath, "voyage-ai", false); err != nil {
		return err
	}
	if err := client.Start(ctx, clonePath); err != nil {
		return err
	}
	if err := client.Index(ctx, clonePath); err != nil {
		return err // sentinel already tolerated inside
	}
	if err := client.Stop(ctx, clonePath); err != nil {
		return err
	}

# Error Reporting

A failing step surfaces as an error naming the subcommand, the exit
code and the trimmed combined output:

	cidx start failed with code 1: daemon not running

Callers (job bodies) pass these through unchanged, so the job's error
string tells an operator which step of which workflow broke without
reading logs.

# Troubleshooting

Workflow fails at init:
  - Check: the embedding provider name in configuration matches what
    the installed cidx accepts

Workflow fails at start or status:
  - Cause: the indexing services could not come up or report healthy
  - Check: the cidx daemon's own logs in the repository's
    .code-indexer directory

Index step warns "Repository has no indexable files":
  - Expected: the sentinel case; registration continues

Steps time out at exactly five minutes:
  - Cause: the step is genuinely slow (very large repositories) or
    hung
  - Note: the deadline is a package constant; extremely large
    repositories may need the size quota reconsidered instead

# Design Patterns

Contract-only dependency:
  - No cidx output is parsed beyond the sentinel; upgrades to the
    tool cannot silently change server semantics

Per-step deadlines:
  - Each invocation is independently bounded; a hung step fails that
    step rather than wedging the job forever

# See Also

  - pkg/golden for the post-clone workflow ordering
  - pkg/activated for fix-config and the reindex variants
  - pkg/gitcmd for the underlying runner
*/
package cidx
