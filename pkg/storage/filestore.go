package storage

import (
	"fmt"
	"os"

	"github.com/quarryhq/quarry/pkg/types"
)

// FileStore persists the job table as a single JSON document keyed by
// job id.
type FileStore struct {
	path string
}

// NewFileStore creates a JSON-document job store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// SaveAll rewrites the JSON document with the full job table
func (s *FileStore) SaveAll(jobs map[string]*types.Job) error {
	if err := WriteJSONFile(s.path, jobs); err != nil {
		return fmt.Errorf("failed to persist jobs: %w", err)
	}
	return nil
}

// Load reads the document and rewrites orphaned records to failed
func (s *FileStore) Load() (map[string]*types.Job, int, error) {
	jobs := make(map[string]*types.Job)

	err := ReadJSONFile(s.path, &jobs)
	if err != nil {
		if os.IsNotExist(err) {
			return jobs, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to load jobs: %w", err)
	}

	orphans := rewriteOrphans(jobs)
	if orphans > 0 {
		if err := s.SaveAll(jobs); err != nil {
			return nil, 0, err
		}
	}
	return jobs, orphans, nil
}

// Close is a no-op for the file-backed store
func (s *FileStore) Close() error {
	return nil
}
