package activated

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/types"
)

func TestValidateBranchName(t *testing.T) {
	tests := []struct {
		name    string
		branch  string
		wantErr bool
	}{
		{"simple", "master", false},
		{"with slash", "feature/login", false},
		{"with dots and dashes", "release-1.2", false},
		{"underscore", "my_branch", false},
		{"empty", "", true},
		{"leading dash", "-evil", true},
		{"lock suffix", "branch.lock", true},
		{"double dot", "a..b", true},
		{"shell metacharacters", "x;rm -rf", true},
		{"spaces", "my branch", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBranchName(tt.branch)
			if tt.wantErr {
				var validation *types.ValidationError
				assert.ErrorAs(t, err, &validation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// remoteSetup scripts the remote topology answers common to switch tests
func dualRemoteHandler(originURL string, handle func(cmd gitcmd.Command) (gitcmd.Result, bool)) func(cmd gitcmd.Command) (gitcmd.Result, error) {
	return func(cmd gitcmd.Command) (gitcmd.Result, error) {
		argv := strings.Join(cmd.Args, " ")
		if handle != nil {
			if result, ok := handle(cmd); ok {
				return result, nil
			}
		}
		switch {
		case argv == "git remote":
			return gitcmd.Result{Stdout: "origin\ngolden\n"}, nil
		case argv == "git remote get-url origin":
			if originURL == "" {
				return gitcmd.Result{ExitCode: 2, Stderr: "error: No such remote 'origin'"}, nil
			}
			return gitcmd.Result{Stdout: originURL + "\n"}, nil
		}
		return gitcmd.Result{}, nil
	}
}

func TestSwitchBranchLocalOriginSkipsFetch(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	env.runner.handler = dualRemoteHandler("/data/golden-repos/hello", nil)

	result, err := env.activated.SwitchBranch(context.Background(), "alice", "hello", "feature-branch")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "(local branch)")

	for _, argv := range env.runner.argvs() {
		assert.NotEqual(t, "git fetch origin", argv, "local origin must not be fetched")
	}

	meta, err := env.activated.readMetadata("alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "feature-branch", meta.CurrentBranch)
}

func TestSwitchBranchRemoteFetchFailureFallsBackToLocal(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	env.runner.handler = dualRemoteHandler("https://github.com/example/hello.git",
		func(cmd gitcmd.Command) (gitcmd.Result, bool) {
			argv := strings.Join(cmd.Args, " ")
			switch argv {
			case "git fetch origin":
				return gitcmd.Result{ExitCode: 128, Stderr: "fatal: unable to access"}, true
			case "git checkout feature-branch":
				return gitcmd.Result{}, true
			}
			return gitcmd.Result{}, false
		})

	result, err := env.activated.SwitchBranch(context.Background(), "alice", "hello", "feature-branch")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "remote fetch failed")

	meta, err := env.activated.readMetadata("alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "feature-branch", meta.CurrentBranch)
}

func TestSwitchBranchRemoteTrackingPreferred(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	var sawTracking bool
	env.runner.handler = dualRemoteHandler("git@github.com:example/hello.git",
		func(cmd gitcmd.Command) (gitcmd.Result, bool) {
			argv := strings.Join(cmd.Args, " ")
			if argv == "git checkout -B feature origin/feature" {
				sawTracking = true
				return gitcmd.Result{}, true
			}
			return gitcmd.Result{}, false
		})

	result, err := env.activated.SwitchBranch(context.Background(), "alice", "hello", "feature")
	require.NoError(t, err)
	assert.True(t, sawTracking)
	assert.Contains(t, result.Message, "with remote sync")
}

func TestSwitchBranchUnknownBranchFails(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	env.runner.handler = dualRemoteHandler("",
		func(cmd gitcmd.Command) (gitcmd.Result, bool) {
			argv := strings.Join(cmd.Args, " ")
			if argv == "git remote" {
				return gitcmd.Result{Stdout: "golden\n"}, true
			}
			if strings.HasPrefix(argv, "git checkout") || strings.HasPrefix(argv, "git show-ref") {
				return gitcmd.Result{ExitCode: 1, Stderr: "error: pathspec 'ghost' did not match"}, true
			}
			return gitcmd.Result{}, false
		})

	_, err := env.activated.SwitchBranch(context.Background(), "alice", "hello", "ghost")
	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "ghost")

	// Metadata untouched on failure
	meta, readErr := env.activated.readMetadata("alice", "hello")
	require.NoError(t, readErr)
	assert.Equal(t, "master", meta.CurrentBranch)
}

func TestSwitchBranchValidatesName(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	_, err := env.activated.SwitchBranch(context.Background(), "alice", "hello", "-evil")
	var validation *types.ValidationError
	assert.ErrorAs(t, err, &validation)
	assert.Empty(t, env.runner.calls, "no git command may run for an invalid branch name")
}

func TestSwitchBranchMissingRepo(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.activated.SwitchBranch(context.Background(), "alice", "ghost", "master")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestListBranches(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		argv := strings.Join(cmd.Args, " ")
		switch {
		case argv == "git branch --format=%(refname:short)":
			return gitcmd.Result{Stdout: "master\nfeature\n"}, nil
		case argv == "git branch -r --format=%(refname:short)":
			return gitcmd.Result{Stdout: "origin/HEAD\norigin/master\norigin/remote-only\n"}, nil
		case strings.HasPrefix(argv, "git log -1"):
			return gitcmd.Result{Stdout: "0123456789abcdef|initial commit|2025-01-10 10:00:00 +0000\n"}, nil
		}
		return gitcmd.Result{}, nil
	}

	result, err := env.activated.ListBranches(context.Background(), "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "master", result.CurrentBranch)
	assert.Equal(t, 2, result.LocalBranches)
	assert.Equal(t, 1, result.RemoteBranches)
	assert.Equal(t, 3, result.TotalBranches)

	byName := map[string]types.BranchInfo{}
	for _, b := range result.Branches {
		byName[b.Name] = b
	}
	assert.True(t, byName["master"].IsCurrent)
	assert.Equal(t, "local", byName["feature"].Type)
	assert.Equal(t, "remote", byName["remote-only"].Type)
	assert.Equal(t, "origin/remote-only", byName["remote-only"].RemoteRef)
	assert.Equal(t, "01234567", byName["master"].LastCommitHash)
	assert.Equal(t, "initial commit", byName["master"].LastCommitMessage)
}
