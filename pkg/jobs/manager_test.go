package jobs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/storage"
	"github.com/quarryhq/quarry/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "jobs.json"))
	manager, err := NewManager(store, 2, nil)
	require.NoError(t, err)
	t.Cleanup(func() { manager.Shutdown(5 * time.Second) })
	return manager
}

// waitTerminal polls until the job reaches a terminal status
func waitTerminal(t *testing.T, m *Manager, jobID, username string) *types.Job {
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
	t.Fatalf("job %s did not reach a terminal status", jobID)
	return nil
}

func TestSubmitAndComplete(t *testing.T) {
	m := newTestManager(t)

	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		progress(50)
		return map[string]any{"answer": 42}, nil
	}, SubmitOptions{Submitter: "alice", RepoAlias: "repo"})
	require.NoError(t, err)

	job := waitTerminal(t, m, jobID, "alice")
	assert.Equal(t, types.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, "alice", job.Username)
	assert.Equal(t, "repo", job.RepoAlias)
	assert.EqualValues(t, 42, job.Result["answer"])
}

func TestSubmitValidation(t *testing.T) {
	m := newTestManager(t)

	noop := func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, nil
	}

	_, err := m.Submit("", noop, SubmitOptions{Submitter: "alice"})
	var validation *types.ValidationError
	assert.ErrorAs(t, err, &validation)

	_, err = m.Submit("test_op", noop, SubmitOptions{})
	assert.ErrorAs(t, err, &validation)
}

func TestFailedJobRecordsError(t *testing.T) {
	m := newTestManager(t)

	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, errors.New("clone exploded")
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)

	job := waitTerminal(t, m, jobID, "alice")
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Equal(t, "clone exploded", job.Error)
	assert.Equal(t, 0, job.Progress)
	assert.NotNil(t, job.CompletedAt)
}

func TestOwnerOnlyVisibility(t *testing.T) {
	m := newTestManager(t)

	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, nil
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)
	waitTerminal(t, m, jobID, "alice")

	_, err = m.Status(jobID, "mallory")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	listing := m.List("mallory", "", 10, 0)
	assert.Empty(t, listing.Jobs)
	assert.Zero(t, listing.Total)
}

func TestListNewestFirstWithPagination(t *testing.T) {
	m := newTestManager(t)

	var ids []string
	for i := 0; i < 5; i++ {
		jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
			return nil, nil
		}, SubmitOptions{Submitter: "alice"})
		require.NoError(t, err)
		ids = append(ids, jobID)
		time.Sleep(2 * time.Millisecond)
	}
	for _, id := range ids {
		waitTerminal(t, m, id, "alice")
	}

	page := m.List("alice", "", 2, 0)
	assert.Equal(t, 5, page.Total)
	require.Len(t, page.Jobs, 2)
	assert.True(t, page.Jobs[0].CreatedAt.After(page.Jobs[1].CreatedAt) ||
		page.Jobs[0].CreatedAt.Equal(page.Jobs[1].CreatedAt))
	assert.Equal(t, ids[4], page.Jobs[0].JobID)

	rest := m.List("alice", "", 10, 4)
	assert.Len(t, rest.Jobs, 1)
	assert.Equal(t, ids[0], rest.Jobs[0].JobID)
}

func TestListStatusFilter(t *testing.T) {
	m := newTestManager(t)

	okID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, nil
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)
	failID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, errors.New("boom")
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)

	waitTerminal(t, m, okID, "alice")
	waitTerminal(t, m, failID, "alice")

	failed := m.List("alice", types.JobStatusFailed, 10, 0)
	require.Len(t, failed.Jobs, 1)
	assert.Equal(t, failID, failed.Jobs[0].JobID)
}

func TestCancelRunningJob(t *testing.T) {
	m := newTestManager(t)

	started := make(chan struct{})
	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, Checkpoint(ctx)
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)

	<-started
	result := m.Cancel(jobID, "alice")
	assert.True(t, result.Success)

	job := waitTerminal(t, m, jobID, "alice")
	assert.Equal(t, types.JobStatusCancelled, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestCancelAuthorization(t *testing.T) {
	m := newTestManager(t)

	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, nil
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)

	result := m.Cancel(jobID, "mallory")
	assert.False(t, result.Success)

	job := waitTerminal(t, m, jobID, "alice")
	result = m.Cancel(jobID, "alice")
	assert.False(t, result.Success, "terminal job %s must not be cancellable", job.JobID)
}

func TestTerminalJobsNeverTransitionBack(t *testing.T) {
	m := newTestManager(t)

	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)
	waitTerminal(t, m, jobID, "alice")

	m.Cancel(jobID, "alice")
	job, err := m.Status(jobID, "alice")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
}

func TestPruneRemovesOldTerminalJobs(t *testing.T) {
	m := newTestManager(t)

	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, nil
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)
	waitTerminal(t, m, jobID, "alice")

	// Zero retention: every terminal job is older than the cutoff
	removed := m.Prune(0)
	assert.Equal(t, 1, removed)

	_, err = m.Status(jobID, "alice")
	var notFound *types.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStatsAndRecentJobs(t *testing.T) {
	m := newTestManager(t)

	okID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, nil
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)
	failID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, errors.New("boom")
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)

	waitTerminal(t, m, okID, "alice")
	waitTerminal(t, m, failID, "alice")

	stats := m.StatsWindow(24 * time.Hour)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)

	recent := m.RecentJobs(24*time.Hour, 20)
	assert.Len(t, recent, 2)
	assert.Equal(t, 1, m.FailedJobCount())
}

func TestJobsByOperation(t *testing.T) {
	m := newTestManager(t)

	var ids []string
	for _, op := range []string{"reindex", "add_golden_repo", "reindex"} {
		jobID, err := m.Submit(op, func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
			return nil, nil
		}, SubmitOptions{Submitter: "alice"})
		require.NoError(t, err)
		ids = append(ids, jobID)
	}
	for _, id := range ids {
		waitTerminal(t, m, id, "alice")
	}

	matched := m.JobsByOperation("reindex")
	assert.Len(t, matched, 2)
	for _, job := range matched {
		assert.Equal(t, "reindex", job.OperationType)
	}
}

func TestSelfHealingFieldRecorders(t *testing.T) {
	m := newTestManager(t)

	started := make(chan struct{})
	release := make(chan struct{})
	jobID, err := m.Submit("reindex", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		id := JobIDFromContext(ctx)
		m.RecordResolution(id, "go indexing failed", 2, []string{"installed toolchain"})
		m.SetLanguageResolutionStatus(id, "backend", map[string]any{"status": "resolved"})
		close(started)
		<-release
		return nil, nil
	}, SubmitOptions{Submitter: "alice", RepoAlias: "repo"})
	require.NoError(t, err)

	<-started
	job, err := m.Status(jobID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "go indexing failed", job.FailureReason)
	assert.Equal(t, 2, job.ResolutionAttempts)
	assert.Equal(t, []string{"installed toolchain"}, job.ClaudeActions)
	assert.Equal(t, "resolved", job.LanguageResolutionStatus["backend"]["status"])

	close(release)
	waitTerminal(t, m, jobID, "alice")

	// Terminal jobs are immutable
	m.RecordResolution(jobID, "late", 1, nil)
	job, err = m.Status(jobID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, job.ResolutionAttempts)
}

func TestMaintenanceModeRejectsSubmission(t *testing.T) {
	m := newTestManager(t)
	m.SetMaintenanceMode(true)

	_, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		return nil, nil
	}, SubmitOptions{Submitter: "alice"})

	var maintenance *types.MaintenanceError
	assert.ErrorAs(t, err, &maintenance)
}

func TestShutdownCancelsRunningJobs(t *testing.T) {
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "jobs.json"))
	m, err := NewManager(store, 2, nil)
	require.NoError(t, err)

	started := make(chan struct{})
	jobID, err := m.Submit("test_op", func(ctx context.Context, progress ProgressFunc) (map[string]any, error) {
		close(started)
		<-ctx.Done()
		return nil, Checkpoint(ctx)
	}, SubmitOptions{Submitter: "alice"})
	require.NoError(t, err)
	<-started

	m.Shutdown(5 * time.Second)

	loaded, _, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusCancelled, loaded[jobID].Status)
}

func TestRestartFailsOrphans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	store := storage.NewFileStore(path)

	now := time.Now().UTC()
	require.NoError(t, store.SaveAll(map[string]*types.Job{
		"orphan": {
			JobID:         "orphan",
			OperationType: "activate_repository",
			Status:        types.JobStatusRunning,
			CreatedAt:     now,
			StartedAt:     &now,
			Username:      "alice",
		},
	}))

	m, err := NewManager(storage.NewFileStore(path), 1, nil)
	require.NoError(t, err)
	defer m.Shutdown(time.Second)

	job, err := m.Status("orphan", "alice")
	require.NoError(t, err)
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Equal(t, storage.OrphanReason, job.Error)
	assert.Zero(t, m.ActiveJobCount())
	assert.Zero(t, m.PendingJobCount())
}
