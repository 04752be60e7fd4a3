package listing

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/activated"
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

type nopRunner struct{}

func (nopRunner) Run(ctx context.Context, cmd gitcmd.Command) (gitcmd.Result, error) {
	return gitcmd.Result{}, nil
}

func newTestService(t *testing.T) (*Service, *config.Config, *jobs.Manager) {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	goldenPath := filepath.Join(cfg.GoldenReposDir(), "hello")
	require.NoError(t, os.MkdirAll(filepath.Join(goldenPath, ".code-indexer"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(goldenPath, "main.go"), []byte("package main\n"), 0o644))
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

	jobManager, err := jobs.NewManager(storage.NewFileStore(filepath.Join(cfg.DataDir, "jobs.json")), 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { jobManager.Shutdown(time.Second) })

	goldenManager, err := golden.NewManager(cfg, jobManager, nopRunner{}, nil, nil)
	require.NoError(t, err)

	activatedManager, err := activated.NewManager(cfg, goldenManager, jobManager, nopRunner{}, nil)
	require.NoError(t, err)

	return NewService(goldenManager, activatedManager, jobManager), cfg, jobManager
}

func TestGoldenReposDetail(t *testing.T) {
	svc, _, _ := newTestService(t)

	details := svc.GoldenRepos()
	require.Len(t, details, 1)
	assert.Equal(t, "hello", details[0].Alias)
	assert.True(t, details[0].Indexed)
	assert.Greater(t, details[0].SizeBytes, int64(0))
}

func TestGoldenRepoNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GoldenRepo("ghost")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUserReposFlagMissingGolden(t *testing.T) {
	svc, cfg, _ := newTestService(t)

	userDir := filepath.Join(cfg.ActivatedReposDir(), "alice")
	now := time.Now().UTC()
	for alias, goldenAlias := range map[string]string{"mine": "hello", "stale": "removed"} {
		require.NoError(t, os.MkdirAll(filepath.Join(userDir, alias), 0o755))
		require.NoError(t, storage.WriteJSONFile(
			filepath.Join(userDir, alias+"_metadata.json"),
			&types.ActivatedRepo{
				UserAlias:       alias,
				GoldenRepoAlias: goldenAlias,
				CurrentBranch:   "master",
				ActivatedAt:     now,
				LastAccessed:    now,
			}))
	}

	summaries := svc.UserRepos("alice")
	require.Len(t, summaries, 2)

	byAlias := map[string]ActivatedSummary{}
	for _, s := range summaries {
		byAlias[s.UserAlias] = s
	}
	assert.True(t, byAlias["mine"].GoldenAvailable)
	assert.False(t, byAlias["stale"].GoldenAvailable)
}

func TestStats(t *testing.T) {
	svc, _, jobManager := newTestService(t)

	jobID, err := jobManager.Submit("test_op", func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		return nil, nil
	}, jobs.SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, err := jobManager.Status(jobID, "alice"); err == nil && job.Status.Terminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	stats := svc.Stats()
	assert.Equal(t, 1, stats.GoldenRepos)
	assert.Equal(t, 1, stats.JobsLast24h.Completed)
	assert.False(t, stats.GeneratedAt.IsZero())
}
