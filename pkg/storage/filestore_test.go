package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/types"
)

func sampleJobs() map[string]*types.Job {
	started := time.Now().UTC().Add(-time.Minute)
	completed := time.Now().UTC()
	return map[string]*types.Job{
		"job-1": {
			JobID:         "job-1",
			OperationType: "add_golden_repo",
			Status:        types.JobStatusCompleted,
			CreatedAt:     started,
			StartedAt:     &started,
			CompletedAt:   &completed,
			Progress:      100,
			Username:      "admin",
			IsAdmin:       true,
			RepoAlias:     "hello",
			Result:        map[string]any{"success": true},
		},
		"job-2": {
			JobID:         "job-2",
			OperationType: "activate_repository",
			Status:        types.JobStatusRunning,
			CreatedAt:     started,
			StartedAt:     &started,
			Progress:      40,
			Username:      "alice",
		},
		"job-3": {
			JobID:         "job-3",
			OperationType: "refresh_golden_repo",
			Status:        types.JobStatusPending,
			CreatedAt:     started,
			Username:      "bob",
		},
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	store := NewFileStore(path)

	jobs := sampleJobs()
	require.NoError(t, store.SaveAll(jobs))

	loaded, _, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, loaded, 3)
	assert.Equal(t, "add_golden_repo", loaded["job-1"].OperationType)
	assert.Equal(t, 100, loaded["job-1"].Progress)
	assert.Equal(t, "hello", loaded["job-1"].RepoAlias)
	assert.True(t, loaded["job-1"].IsAdmin)
}

func TestFileStoreRewritesOrphansOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	store := NewFileStore(path)
	require.NoError(t, store.SaveAll(sampleJobs()))

	loaded, orphans, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 2, orphans)

	for _, id := range []string{"job-2", "job-3"} {
		job := loaded[id]
		assert.Equal(t, types.JobStatusFailed, job.Status, "job %s should be failed", id)
		assert.Equal(t, OrphanReason, job.Error)
		assert.NotNil(t, job.CompletedAt)
		assert.Equal(t, 0, job.Progress)
	}
	assert.Equal(t, types.JobStatusCompleted, loaded["job-1"].Status)

	// The rewrite is itself persisted: a second load sees no orphans
	reloaded, orphans, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, orphans)
	assert.Equal(t, types.JobStatusFailed, reloaded["job-2"].Status)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	loaded, orphans, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
	assert.Zero(t, orphans)
}

func TestWriteJSONFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "metadata.json")

	require.NoError(t, WriteJSONFile(path, map[string]string{"alias": "hello"}))

	var out map[string]string
	require.NoError(t, ReadJSONFile(path, &out))
	assert.Equal(t, "hello", out["alias"])

	// No temp files left behind
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
