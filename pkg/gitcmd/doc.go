/*
Package gitcmd provides the single subprocess primitive used for all
git, cidx and filesystem tool invocations.

Rather than scattering exec calls across the codebase, every caller
builds a Command — argv, explicit working directory, optional extra
environment, deadline — and runs it through a Runner, getting back exit
code, stdout and stderr. Callers translate outcomes into typed errors at
their own boundary; this package never interprets tool output.

# Architecture

	┌──────────────────── SUBPROCESS PRIMITIVE ─────────────────┐
	│                                                             │
	│  Command{Args, Dir, Env, Timeout}                           │
	│       │                                                     │
	│       ▼                                                     │
	│  ┌────────────────────────────────────────────┐           │
	│  │           Runner interface                  │           │
	│  │  Run(ctx, Command) (Result, error)         │           │
	│  └──────┬──────────────────────────┬──────────┘           │
	│         │                          │                       │
	│  ┌──────▼───────────┐   ┌──────────▼─────────┐            │
	│  │   ExecRunner     │   │   test fakes       │            │
	│  │  os/exec with    │   │  scripted results, │            │
	│  │  context deadline│   │  recorded argv     │            │
	│  └──────────────────┘   └────────────────────┘            │
	│                                                             │
	│  Result{ExitCode, Stdout, Stderr} (+ Combined())            │
	└──────────────────────────────────────────────────────────┘

Every invocation passes the working directory explicitly on the
Command; nothing in Quarry ever changes the process-wide current
directory.

# Exit Semantics

A nonzero exit is data, not an error, at this layer: Run returns the
Result and a nil error so callers can inspect output (pull conflicts,
the cidx no-files sentinel) before deciding. Only two things are errors
from Run itself, both surfaced as *types.GitCommandError:

  - the deadline expired (the message names the timeout)
  - the process could not be started at all

# Timeout Tiers

	LocalTimeout    30s     status, diff, log, checkout, remote config
	RemoteTimeout   5min    push, pull, fetch against real remotes
	CloneTimeout    5min    golden registration clones
	CopyTimeout     2min    reflink copy during activation

A Command with no timeout gets LocalTimeout.

# Helpers

	// git in dir with the local timeout
	result, err := gitcmd.Git(ctx, runner, dir, "status", "--porcelain=v1")

	// git with the remote timeout
	result, err := gitcmd.GitRemote(ctx, runner, dir, "fetch", "origin")

	// nonzero exit converted into *types.GitCommandError carrying
	// argv, dir, exit code and stderr
	result, err := gitcmd.CheckGit(ctx, runner, dir, "rev-parse", "HEAD")

CheckGit is for call sites where any failure is terminal; Git and
GitRemote are for call sites that inspect the exit themselves.

# Usage

	runner := gitcmd.NewExecRunner()

	result, err := runner.Run(ctx, gitcmd.Command{
		Args:    []string{"cp", "--reflink=auto", "-r", src, dest},
		Timeout: gitcmd.CopyTimeout,
	})
	if err != nil {
		return err // timeout or spawn failure
	}
	if result.ExitCode != 0 {
		return &types.GitCommandError{ ... }
	}

# Integration Points

This package integrates with:

  - pkg/golden: probe, clone, pull, recursive copy
  - pkg/activated: the CoW procedure, remotes, branch strategies
  - pkg/gitops: all seventeen git operations
  - pkg/cidx: the indexing CLI invocations
  - pkg/types: GitCommandError produced on timeout/spawn failure

# Design Patterns

Interface as the test seam:
  - Services hold a Runner, never *ExecRunner; package tests use
    scripted fakes that record argv and replay canned results,
    so no test ever spawns a real subprocess

One primitive, many boundaries:
  - Process mechanics (deadline, capture, environment) live here
    once; interpretation (sentinels, conflict parsing, error
    classification) lives with each caller

# Environment Handling

Command.Env entries are appended to the inherited process environment,
never replacing it — git still sees PATH, HOME and credential helpers.
The only caller that uses it is the dual-attribution commit, which
overrides GIT_AUTHOR_* and GIT_COMMITTER_*; overriding a variable later
in the environment wins, which is exactly the append semantics.

# Performance Characteristics

  - Each Run is one fork/exec plus pipe capture; tens of milliseconds
    of fixed cost before the tool does anything
  - Output is buffered fully in memory; the tools invoked here emit
    bounded output (status lines, ref lists, diffs capped by caller
    limits), so streaming is not needed
  - Timeouts piggyback on exec.CommandContext: expiry kills the
    process group and Run returns the deadline error

# Troubleshooting

Timeout errors naming the tier:
  - Symptom: "command timed out after 30s" (or 2m/5m)
  - Cause: the tool exceeded its tier; remote tiers usually mean a
    hung network peer
  - Check: whether the caller picked the right tier for the call
    (a clone through Git instead of a clone helper would get 30 s)

"failed to start command":
  - Cause: the binary is missing from PATH or not executable
  - Check: git, cidx and cp availability in the server's environment

Zero exit but empty stdout:
  - Not an error at this layer; the caller decides whether empty
    output is meaningful (for example, an empty diff)

# See Also

  - pkg/cidx for the indexing CLI built on this runner
  - pkg/gitops and pkg/activated for the heaviest call sites
*/
package gitcmd
