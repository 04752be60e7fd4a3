package activated

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/golden"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/storage"
	"github.com/quarryhq/quarry/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

// handlerRunner routes every command through a test-provided handler and
// records all invocations.
type handlerRunner struct {
	calls   []gitcmd.Command
	handler func(cmd gitcmd.Command) (gitcmd.Result, error)
}

func (r *handlerRunner) Run(ctx context.Context, cmd gitcmd.Command) (gitcmd.Result, error) {
	r.calls = append(r.calls, cmd)
	if r.handler == nil {
		return gitcmd.Result{}, nil
	}
	return r.handler(cmd)
}

func (r *handlerRunner) argvs() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

// testEnv bundles the managers over one temp data directory
type testEnv struct {
	cfg       *config.Config
	runner    *handlerRunner
	jobs      *jobs.Manager
	golden    *golden.Manager
	activated *Manager
}

// newTestEnv builds the manager stack with one pre-registered golden
// repository named "hello".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	goldenPath := filepath.Join(cfg.GoldenReposDir(), "hello")
	require.NoError(t, os.MkdirAll(goldenPath, 0o755))
	require.NoError(t, storage.WriteJSONFile(
		filepath.Join(cfg.GoldenReposDir(), "metadata.json"),
		map[string]*types.GoldenRepo{
			"hello": {
				Alias:         "hello",
				RepoURL:       "/tmp/fixture.git",
				DefaultBranch: "master",
				ClonePath:     goldenPath,
				CreatedAt:     time.Now().UTC(),
			},
		}))

	runner := &handlerRunner{}

	jobManager, err := jobs.NewManager(storage.NewFileStore(filepath.Join(cfg.DataDir, "jobs.json")), 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { jobManager.Shutdown(5 * time.Second) })

	goldenManager, err := golden.NewManager(cfg, jobManager, runner, nil, nil)
	require.NoError(t, err)

	activatedManager, err := NewManager(cfg, goldenManager, jobManager, runner, nil)
	require.NoError(t, err)

	return &testEnv{
		cfg:       cfg,
		runner:    runner,
		jobs:      jobManager,
		golden:    goldenManager,
		activated: activatedManager,
	}
}

// activateOnDisk fabricates a live activation without running the clone
// job: working tree directory plus sidecar metadata.
func (e *testEnv) activateOnDisk(t *testing.T, username, userAlias, branch string) {
	t.Helper()
	repoDir := e.activated.RepoPath(username, userAlias)
	require.NoError(t, os.MkdirAll(filepath.Join(repoDir, ".git"), 0o755))

	now := time.Now().UTC()
	require.NoError(t, e.activated.writeMetadata(username, &types.ActivatedRepo{
		UserAlias:       userAlias,
		GoldenRepoAlias: "hello",
		CurrentBranch:   branch,
		ActivatedAt:     now,
		LastAccessed:    now,
	}))
}

// waitRunning polls until the job has been claimed by a worker
func waitRunning(t *testing.T, m *jobs.Manager, jobID, username string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Status(jobID, username)
		require.NoError(t, err)
		if job.Status == types.JobStatusRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never started running", jobID)
}

// waitTerminal polls a job to a terminal status
func waitTerminal(t *testing.T, m *jobs.Manager, jobID, username string) *types.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := m.Status(jobID, username)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}
