package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quarryhq/quarry/pkg/types"
)

// OrphanReason is the fixed error written to jobs found in a non-terminal
// state at load time. The worker that owned them no longer exists.
const OrphanReason = "job orphaned by server restart"

// JobStore persists background job records
type JobStore interface {
	// SaveAll writes the complete job table. Called under the job lock on
	// every state transition.
	SaveAll(jobs map[string]*types.Job) error

	// Load reads all persisted jobs. Records still marked running or
	// pending are rewritten to failed before being returned; the second
	// return value reports how many were rewritten. The rewrite is also
	// persisted so a crash between load and first save cannot resurrect
	// orphans.
	Load() (map[string]*types.Job, int, error)

	Close() error
}

// rewriteOrphans marks non-terminal records failed in place and returns
// how many were touched.
func rewriteOrphans(jobs map[string]*types.Job) int {
	count := 0
	now := time.Now().UTC()
	for _, job := range jobs {
		if job.Status == types.JobStatusRunning || job.Status == types.JobStatusPending ||
			job.Status == types.JobStatusResolvingPrerequisites {
			job.Status = types.JobStatusFailed
			job.Error = OrphanReason
			job.Progress = 0
			completed := now
			job.CompletedAt = &completed
			count++
		}
	}
	return count
}

// WriteJSONFile atomically writes v as indented JSON to path, creating
// parent directories as needed. The write goes through a temp file in the
// same directory followed by a rename.
func WriteJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp_*_"+filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpPath)
		if werr != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(path), werr)
		}
		return fmt.Errorf("failed to close temp file: %w", cerr)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadJSONFile reads path into v
func ReadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
