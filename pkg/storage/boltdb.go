package storage

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/quarryhq/quarry/pkg/types"
)

var bucketJobs = []byte("jobs")

// BoltStore persists job records in a BoltDB bucket, one row per job id
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the job database at dbPath
func NewBoltStore(dbPath string) (*BoltStore, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketJobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create jobs bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// SaveAll mirrors the in-memory job table into the bucket in one
// transaction: upserts every record and removes rows whose job no longer
// exists (pruned jobs must not reappear on the next load).
func (s *BoltStore) SaveAll(jobs map[string]*types.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)

		var stale [][]byte
		err := b.ForEach(func(k, _ []byte) error {
			if _, ok := jobs[string(k)]; !ok {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		for id, job := range jobs {
			data, err := json.Marshal(job)
			if err != nil {
				return fmt.Errorf("failed to marshal job %s: %w", id, err)
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Load reads all job rows and rewrites orphaned records to failed
func (s *BoltStore) Load() (map[string]*types.Job, int, error) {
	jobs := make(map[string]*types.Job)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var job types.Job
			if err := json.Unmarshal(v, &job); err != nil {
				return fmt.Errorf("failed to unmarshal job %s: %w", string(k), err)
			}
			jobs[string(k)] = &job
			return nil
		})
	})
	if err != nil {
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

// Close closes the underlying database
func (s *BoltStore) Close() error {
	return s.db.Close()
}
