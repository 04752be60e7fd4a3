package activated

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/gitcmd"
)

func TestIsLocalURL(t *testing.T) {
	tests := []struct {
		url   string
		local bool
	}{
		{"/home/user/repos/project", true},
		{"file:///home/user/repos/project", true},
		{"../relative/path", true},
		{"", true},
		{"https://github.com/example/project.git", false},
		{"http://internal.example.com/repo.git", false},
		{"git@github.com:example/project.git", false},
		{"ssh://git@example.com/repo.git", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.local, isLocalURL(tt.url), "url: %q", tt.url)
	}
}

func TestMigrateLegacyRemotes(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")
	goldenPath := env.golden.List()[0].ClonePath
	repoDir := env.activated.RepoPath("alice", "hello")

	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		argv := strings.Join(cmd.Args, " ")
		switch {
		case argv == "git remote" && cmd.Dir == repoDir:
			return gitcmd.Result{Stdout: "origin\n"}, nil
		case argv == "git remote get-url origin" && cmd.Dir == repoDir:
			return gitcmd.Result{Stdout: goldenPath + "\n"}, nil
		case argv == "git remote get-url origin" && cmd.Dir == goldenPath:
			return gitcmd.Result{Stdout: "git@github.com:example/hello.git\n"}, nil
		}
		return gitcmd.Result{}, nil
	}

	migrated, err := env.activated.MigrateLegacyRemotes(context.Background(), "alice", "hello")
	require.NoError(t, err)
	assert.True(t, migrated)

	argvs := env.runner.argvs()
	assert.Contains(t, argvs, "git remote rename origin golden")
	assert.Contains(t, argvs, "git remote add origin git@github.com:example/hello.git")
}

func TestMigrationIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	// Already migrated: two remotes present
	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		if strings.Join(cmd.Args, " ") == "git remote" {
			return gitcmd.Result{Stdout: "origin\ngolden\n"}, nil
		}
		return gitcmd.Result{}, nil
	}

	migrated, err := env.activated.MigrateLegacyRemotes(context.Background(), "alice", "hello")
	require.NoError(t, err)
	assert.False(t, migrated)

	for _, argv := range env.runner.argvs() {
		assert.NotContains(t, argv, "rename")
	}
}

func TestMigrationSkipsRemoteOrigin(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	// Single origin, but it already points upstream
	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		argv := strings.Join(cmd.Args, " ")
		switch argv {
		case "git remote":
			return gitcmd.Result{Stdout: "origin\n"}, nil
		case "git remote get-url origin":
			return gitcmd.Result{Stdout: "https://github.com/example/hello.git\n"}, nil
		}
		return gitcmd.Result{}, nil
	}

	migrated, err := env.activated.MigrateLegacyRemotes(context.Background(), "alice", "hello")
	require.NoError(t, err)
	assert.False(t, migrated)
}

func TestConfigureRemotesEstablishesDualTopology(t *testing.T) {
	env := newTestEnv(t)
	goldenRepo, err := env.golden.Get("hello")
	require.NoError(t, err)

	repoDir := t.TempDir()
	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		argv := strings.Join(cmd.Args, " ")
		switch {
		case argv == "git remote" && cmd.Dir == repoDir:
			// Fresh copy carries the golden's remotes: a single origin
			return gitcmd.Result{Stdout: "origin\n"}, nil
		case argv == "git remote get-url origin" && cmd.Dir == goldenRepo.ClonePath:
			return gitcmd.Result{Stdout: "git@github.com:example/hello.git\n"}, nil
		}
		return gitcmd.Result{}, nil
	}

	require.NoError(t, env.activated.configureRemotes(context.Background(), repoDir, goldenRepo))

	argvs := env.runner.argvs()
	assert.Contains(t, argvs, "git remote add golden "+goldenRepo.ClonePath)
	assert.Contains(t, argvs, "git remote set-url origin git@github.com:example/hello.git")
}

func TestConfigureRemotesDropsLocalOriginWithoutUpstream(t *testing.T) {
	env := newTestEnv(t)
	goldenRepo, err := env.golden.Get("hello")
	require.NoError(t, err)

	repoDir := t.TempDir()
	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		argv := strings.Join(cmd.Args, " ")
		switch {
		case argv == "git remote" && cmd.Dir == repoDir:
			return gitcmd.Result{Stdout: "origin\n"}, nil
		case argv == "git remote get-url origin" && cmd.Dir == goldenRepo.ClonePath:
			// Golden registered from a local path: no upstream remote
			return gitcmd.Result{ExitCode: 2, Stderr: "error: No such remote 'origin'"}, nil
		}
		return gitcmd.Result{}, nil
	}

	require.NoError(t, env.activated.configureRemotes(context.Background(), repoDir, goldenRepo))

	argvs := env.runner.argvs()
	assert.Contains(t, argvs, "git remote add golden "+goldenRepo.ClonePath)
	assert.Contains(t, argvs, "git remote remove origin")
}
