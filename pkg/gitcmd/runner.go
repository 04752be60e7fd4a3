package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/quarryhq/quarry/pkg/types"
)

// Timeout tiers for git subprocess calls
const (
	LocalTimeout  = 30 * time.Second
	RemoteTimeout = 5 * time.Minute
	CloneTimeout  = 5 * time.Minute
	CopyTimeout   = 2 * time.Minute
)

// Command describes a single subprocess invocation. Dir is always set
// explicitly; the server never relies on process-wide working directory.
type Command struct {
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Timeout time.Duration
}

// Result holds the outcome of a subprocess invocation
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Combined returns stdout and stderr concatenated
func (r Result) Combined() string {
	return r.Stdout + r.Stderr
}

// Runner executes subprocess commands. Services depend on this interface
// so tests can substitute a recording fake.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// NewExecRunner creates the production runner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command, bounded by its timeout. A nonzero exit is not
// an error at this layer; callers translate exit codes at the boundary.
// A timeout or spawn failure returns a *types.GitCommandError.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = LocalTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(runCtx, cmd.Args[0], cmd.Args[1:]...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return result, &types.GitCommandError{
				Msg:     "command timed out after " + timeout.String(),
				Command: cmd.Args,
				Dir:     cmd.Dir,
				Stderr:  result.Stderr,
			}
		}
		return result, &types.GitCommandError{
			Msg:     "failed to start command: " + err.Error(),
			Command: cmd.Args,
			Dir:     cmd.Dir,
		}
	}

	return result, nil
}

// Git runs a git subcommand in dir with the local timeout
func Git(ctx context.Context, runner Runner, dir string, args ...string) (Result, error) {
	return runner.Run(ctx, Command{
		Args:    append([]string{"git"}, args...),
		Dir:     dir,
		Timeout: LocalTimeout,
	})
}

// GitRemote runs a git subcommand that talks to a remote, with the remote timeout
func GitRemote(ctx context.Context, runner Runner, dir string, args ...string) (Result, error) {
	return runner.Run(ctx, Command{
		Args:    append([]string{"git"}, args...),
		Dir:     dir,
		Timeout: RemoteTimeout,
	})
}

// CheckGit runs a git subcommand and converts a nonzero exit into a
// *types.GitCommandError.
func CheckGit(ctx context.Context, runner Runner, dir string, args ...string) (Result, error) {
	result, err := Git(ctx, runner, dir, args...)
	if err != nil {
		return result, err
	}
	if result.ExitCode != 0 {
		return result, &types.GitCommandError{
			Msg:      "git " + args[0] + " failed",
			Command:  append([]string{"git"}, args...),
			Dir:      dir,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}
	return result, nil
}
