package listing

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/activated"
	"github.com/quarryhq/quarry/pkg/golden"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/types"
)

// GoldenDetail is the admin-facing view of one golden repository
type GoldenDetail struct {
	Alias         string    `json:"alias"`
	RepoURL       string    `json:"repo_url"`
	DefaultBranch string    `json:"default_branch"`
	ClonePath     string    `json:"clone_path"`
	CreatedAt     time.Time `json:"created_at"`
	SizeBytes     int64     `json:"size_bytes"`
	Indexed       bool      `json:"indexed"`
}

// ActivatedSummary is the user-facing view of one activated repository
type ActivatedSummary struct {
	UserAlias       string    `json:"user_alias"`
	GoldenRepoAlias string    `json:"golden_repo_alias"`
	CurrentBranch   string    `json:"current_branch"`
	ActivatedAt     time.Time `json:"activated_at"`
	LastAccessed    time.Time `json:"last_accessed"`
	GoldenAvailable bool      `json:"golden_available"`
}

// ServerStats combines repository and job counts for the read API
type ServerStats struct {
	GoldenRepos   int            `json:"golden_repos"`
	ActiveJobs    int            `json:"active_jobs"`
	PendingJobs   int            `json:"pending_jobs"`
	FailedJobs    int            `json:"failed_jobs"`
	JobsLast24h   types.JobStats `json:"jobs_last_24h"`
	JobsLast7d    types.JobStats `json:"jobs_last_7d"`
	JobsLast30d   types.JobStats `json:"jobs_last_30d"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// Service composes derived read views over the managers
type Service struct {
	golden    *golden.Manager
	activated *activated.Manager
	jobs      *jobs.Manager
	logger    zerolog.Logger
}

// NewService creates a listing service
func NewService(goldenManager *golden.Manager, activatedManager *activated.Manager, jobManager *jobs.Manager) *Service {
	return &Service{
		golden:    goldenManager,
		activated: activatedManager,
		jobs:      jobManager,
		logger:    log.WithComponent("listing"),
	}
}

// GoldenRepos returns detail views for all golden repositories
func (s *Service) GoldenRepos() []GoldenDetail {
	repos := s.golden.List()
	details := make([]GoldenDetail, 0, len(repos))
	for _, repo := range repos {
		details = append(details, s.describeGolden(repo))
	}
	return details
}

// GoldenRepo returns the detail view for one golden repository
func (s *Service) GoldenRepo(alias string) (*GoldenDetail, error) {
	repo, err := s.golden.Get(alias)
	if err != nil {
		return nil, err
	}
	detail := s.describeGolden(repo)
	return &detail, nil
}

func (s *Service) describeGolden(repo *types.GoldenRepo) GoldenDetail {
	detail := GoldenDetail{
		Alias:         repo.Alias,
		RepoURL:       repo.RepoURL,
		DefaultBranch: repo.DefaultBranch,
		ClonePath:     repo.ClonePath,
		CreatedAt:     repo.CreatedAt,
	}

	if _, err := os.Stat(filepath.Join(repo.ClonePath, ".code-indexer")); err == nil {
		detail.Indexed = true
	}
	detail.SizeBytes = treeSize(repo.ClonePath)
	return detail
}

// UserRepos returns summaries of a user's activations, flagging entries
// whose golden repository has since been removed.
func (s *Service) UserRepos(username string) []ActivatedSummary {
	repos := s.activated.List(username)
	summaries := make([]ActivatedSummary, 0, len(repos))
	for _, repo := range repos {
		summaries = append(summaries, ActivatedSummary{
			UserAlias:       repo.UserAlias,
			GoldenRepoAlias: repo.GoldenRepoAlias,
			CurrentBranch:   repo.CurrentBranch,
			ActivatedAt:     repo.ActivatedAt,
			LastAccessed:    repo.LastAccessed,
			GoldenAvailable: s.golden.Exists(repo.GoldenRepoAlias),
		})
	}
	return summaries
}

// Stats returns server-wide repository and job statistics
func (s *Service) Stats() ServerStats {
	return ServerStats{
		GoldenRepos: len(s.golden.List()),
		ActiveJobs:  s.jobs.ActiveJobCount(),
		PendingJobs: s.jobs.PendingJobCount(),
		FailedJobs:  s.jobs.FailedJobCount(),
		JobsLast24h: s.jobs.StatsWindow(24 * time.Hour),
		JobsLast7d:  s.jobs.StatsWindow(7 * 24 * time.Hour),
		JobsLast30d: s.jobs.StatsWindow(30 * 24 * time.Hour),
		GeneratedAt: time.Now().UTC(),
	}
}

// treeSize sums regular file sizes below root; unreadable entries are
// skipped.
func treeSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
