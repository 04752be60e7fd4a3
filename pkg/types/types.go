package types

import (
	"time"
)

// GoldenRepo represents an admin-registered golden repository
type GoldenRepo struct {
	Alias           string            `json:"alias"`
	RepoURL         string            `json:"repo_url"`
	DefaultBranch   string            `json:"default_branch"`
	ClonePath       string            `json:"clone_path"`
	CreatedAt       time.Time         `json:"created_at"`
	EnableTemporal  bool              `json:"enable_temporal,omitempty"`
	TemporalOptions map[string]string `json:"temporal_options,omitempty"`
}

// ActivatedRepo represents a per-user working copy of a golden repository.
// The sidecar metadata file next to the working tree is the source of truth.
type ActivatedRepo struct {
	UserAlias       string    `json:"user_alias"`
	GoldenRepoAlias string    `json:"golden_repo_alias"`
	CurrentBranch   string    `json:"current_branch"`
	ActivatedAt     time.Time `json:"activated_at"`
	LastAccessed    time.Time `json:"last_accessed"`
}

// JobStatus represents the lifecycle state of a background job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"

	// JobStatusResolvingPrerequisites is set by indexing workers while
	// automated remediation of language prerequisites is in flight.
	JobStatusResolvingPrerequisites JobStatus = "resolving_prerequisites"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Job is the persisted record of a background operation
type Job struct {
	JobID         string         `json:"job_id"`
	OperationType string         `json:"operation_type"`
	Status        JobStatus      `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	StartedAt     *time.Time     `json:"started_at"`
	CompletedAt   *time.Time     `json:"completed_at"`
	Progress      int            `json:"progress"`
	Result        map[string]any `json:"result"`
	Error         string         `json:"error"`
	Username      string         `json:"username"`
	IsAdmin       bool           `json:"is_admin"`
	Cancelled     bool           `json:"cancelled"`
	RepoAlias     string         `json:"repo_alias"`

	// Self-healing fields written by indexing workers. Always present in
	// API responses, zero-valued when the worker never touched them.
	ResolutionAttempts       int                       `json:"resolution_attempts"`
	ClaudeActions            []string                  `json:"claude_actions"`
	FailureReason            string                    `json:"failure_reason"`
	ExtendedError            map[string]any            `json:"extended_error"`
	LanguageResolutionStatus map[string]map[string]any `json:"language_resolution_status"`
}

// Clone returns a deep-enough copy of the job for hand-out across the
// manager lock boundary.
func (j *Job) Clone() *Job {
	cp := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	if j.Result != nil {
		cp.Result = make(map[string]any, len(j.Result))
		for k, v := range j.Result {
			cp.Result[k] = v
		}
	}
	if j.ClaudeActions != nil {
		cp.ClaudeActions = append([]string(nil), j.ClaudeActions...)
	}
	return &cp
}

// JobList is a paginated page of jobs for one user
type JobList struct {
	Jobs   []*Job `json:"jobs"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// JobStats aggregates terminal job counts over a time window
type JobStats struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// BranchInfo describes one branch of an activated repository
type BranchInfo struct {
	Name              string `json:"name"`
	Type              string `json:"type"` // "local" or "remote"
	RemoteRef         string `json:"remote_ref,omitempty"`
	IsCurrent         bool   `json:"is_current"`
	LastCommitHash    string `json:"last_commit_hash,omitempty"`
	LastCommitMessage string `json:"last_commit_message,omitempty"`
	LastCommitDate    string `json:"last_commit_date,omitempty"`
}

// BranchList is the result of listing branches in an activated repository
type BranchList struct {
	Branches       []BranchInfo `json:"branches"`
	CurrentBranch  string       `json:"current_branch"`
	TotalBranches  int          `json:"total_branches"`
	LocalBranches  int          `json:"local_branches"`
	RemoteBranches int          `json:"remote_branches"`
}
