package gitcmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/types"
)

// fakeRunner replays a single scripted result
type fakeRunner struct {
	last   Command
	result Result
}

func (r *fakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	r.last = cmd
	return r.result, nil
}

func TestGitHelpersSetTimeouts(t *testing.T) {
	runner := &fakeRunner{}

	_, err := Git(context.Background(), runner, "/repo", "status")
	require.NoError(t, err)
	assert.Equal(t, []string{"git", "status"}, runner.last.Args)
	assert.Equal(t, "/repo", runner.last.Dir)
	assert.Equal(t, LocalTimeout, runner.last.Timeout)

	_, err = GitRemote(context.Background(), runner, "/repo", "fetch", "origin")
	require.NoError(t, err)
	assert.Equal(t, []string{"git", "fetch", "origin"}, runner.last.Args)
	assert.Equal(t, RemoteTimeout, runner.last.Timeout)
}

func TestCheckGitConvertsNonzeroExit(t *testing.T) {
	runner := &fakeRunner{result: Result{ExitCode: 128, Stderr: "fatal: not a git repository"}}

	_, err := CheckGit(context.Background(), runner, "/repo", "status")
	require.Error(t, err)

	var gitErr *types.GitCommandError
	require.ErrorAs(t, err, &gitErr)
	assert.Equal(t, 128, gitErr.ExitCode)
	assert.Equal(t, "/repo", gitErr.Dir)
	assert.Equal(t, []string{"git", "status"}, gitErr.Command)
	assert.Contains(t, gitErr.Stderr, "not a git repository")
}

func TestCheckGitPassesThroughSuccess(t *testing.T) {
	runner := &fakeRunner{result: Result{Stdout: "on branch main"}}

	result, err := CheckGit(context.Background(), runner, "/repo", "status")
	require.NoError(t, err)
	assert.Equal(t, "on branch main", result.Stdout)
}

func TestResultCombined(t *testing.T) {
	r := Result{Stdout: "out", Stderr: "err"}
	assert.Equal(t, "outerr", r.Combined())
}

func TestRemoteUnreachableClassification(t *testing.T) {
	tests := []struct {
		stderr      string
		unreachable bool
	}{
		{"ssh: Could not resolve host github.com", true},
		{"connection refused", true},
		{"Connection timed out", true},
		{"fatal: not a git repository", false},
		{"", false},
	}

	for _, tt := range tests {
		err := &types.GitCommandError{Stderr: tt.stderr}
		assert.Equal(t, tt.unreachable, err.RemoteUnreachable(), "stderr: %q", tt.stderr)
	}
}
