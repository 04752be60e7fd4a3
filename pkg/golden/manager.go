package golden

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/cidx"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
	"github.com/quarryhq/quarry/pkg/resources"
	"github.com/quarryhq/quarry/pkg/storage"
	"github.com/quarryhq/quarry/pkg/types"
)

const probeTimeout = 30 * time.Second

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateAlias checks a repository alias for format and traversal attempts
func ValidateAlias(alias string) error {
	if alias == "" {
		return &types.ValidationError{Msg: "alias must not be empty"}
	}
	if strings.Contains(alias, "..") || strings.Contains(alias, "/") || strings.Contains(alias, `\`) {
		return &types.ValidationError{Msg: fmt.Sprintf("invalid alias '%s': must not contain '..', '/' or '\\'", alias)}
	}
	if !aliasPattern.MatchString(alias) {
		return &types.ValidationError{Msg: fmt.Sprintf("invalid alias '%s': only letters, digits, '.', '_' and '-' are allowed", alias)}
	}
	return nil
}

// IsLocalPath reports whether a repository URL refers to the local filesystem
func IsLocalPath(repoURL string) bool {
	return strings.HasPrefix(repoURL, "/") || strings.HasPrefix(repoURL, "file://")
}

// LocalPath strips the file:// scheme from a local repository URL
func LocalPath(repoURL string) string {
	return strings.TrimPrefix(repoURL, "file://")
}

// AddOptions carries optional registration parameters
type AddOptions struct {
	EnableTemporal  bool
	TemporalOptions map[string]string
}

// Manager owns the golden repository tree and its metadata document
type Manager struct {
	mu           sync.Mutex
	repos        map[string]*types.GoldenRepo
	pending      map[string]bool
	reposDir     string
	metadataPath string

	cfg    *config.Config
	jobs   *jobs.Manager
	runner gitcmd.Runner
	cidx   *cidx.Client
	clean  Cleaner
	broker *events.Broker
	logger zerolog.Logger
}

// NewManager creates a golden repository manager rooted at the configured
// data directory and loads existing metadata. A corrupted metadata file
// starts the table fresh.
func NewManager(cfg *config.Config, jobManager *jobs.Manager, runner gitcmd.Runner, cleaner Cleaner, broker *events.Broker) (*Manager, error) {
	reposDir := cfg.GoldenReposDir()
	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create golden repos directory: %w", err)
	}

	m := &Manager{
		repos:        make(map[string]*types.GoldenRepo),
		pending:      make(map[string]bool),
		reposDir:     reposDir,
		metadataPath: filepath.Join(reposDir, "metadata.json"),
		cfg:          cfg,
		jobs:         jobManager,
		runner:       runner,
		cidx:         cidx.NewClient(runner),
		clean:        cleaner,
		broker:       broker,
		logger:       log.WithComponent("golden"),
	}
	if m.clean == nil {
		m.clean = NewIndexCleaner(runner)
	}

	m.loadMetadata()
	metrics.GoldenReposTotal.Set(float64(len(m.repos)))
	return m, nil
}

func (m *Manager) loadMetadata() {
	err := storage.ReadJSONFile(m.metadataPath, &m.repos)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn().Err(err).Msg("Golden repo metadata corrupted, starting fresh")
		}
		m.repos = make(map[string]*types.GoldenRepo)
	}
}

// saveMetadataLocked rewrites the metadata document. Must be called with
// the manager lock held.
func (m *Manager) saveMetadataLocked() error {
	if err := storage.WriteJSONFile(m.metadataPath, m.repos); err != nil {
		return fmt.Errorf("failed to save golden repo metadata: %w", err)
	}
	metrics.GoldenReposTotal.Set(float64(len(m.repos)))
	return nil
}

// Add validates the alias and the count quota synchronously and submits
// the registration job. Alias uniqueness is enforced inside the job so a
// duplicate registration surfaces as a failed job rather than a rejected
// submission.
func (m *Manager) Add(repoURL, alias, defaultBranch, submitter string, opts AddOptions) (string, error) {
	if err := ValidateAlias(alias); err != nil {
		return "", err
	}
	if defaultBranch == "" {
		defaultBranch = "main"
	}

	m.mu.Lock()
	if len(m.repos)+len(m.pending) >= m.cfg.MaxGoldenRepos {
		m.mu.Unlock()
		return "", &types.ConflictError{Msg: fmt.Sprintf("maximum of %d golden repositories allowed", m.cfg.MaxGoldenRepos)}
	}
	m.mu.Unlock()

	body := func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		return m.doAdd(ctx, progress, repoURL, alias, defaultBranch, opts)
	}
	return m.jobs.Submit("add_golden_repo", body, jobs.SubmitOptions{
		Submitter: submitter,
		IsAdmin:   true,
		RepoAlias: alias,
	})
}

func (m *Manager) doAdd(ctx context.Context, progress jobs.ProgressFunc, repoURL, alias, defaultBranch string, opts AddOptions) (map[string]any, error) {
	// Reserve the alias so concurrent registrations cannot both win
	m.mu.Lock()
	if _, exists := m.repos[alias]; exists || m.pending[alias] {
		m.mu.Unlock()
		return nil, &types.ConflictError{Msg: fmt.Sprintf("golden repository alias '%s' already exists", alias)}
	}
	if len(m.repos)+len(m.pending) >= m.cfg.MaxGoldenRepos {
		m.mu.Unlock()
		return nil, &types.ConflictError{Msg: fmt.Sprintf("maximum of %d golden repositories allowed", m.cfg.MaxGoldenRepos)}
	}
	m.pending[alias] = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.pending, alias)
		m.mu.Unlock()
	}()

	// The clone is temporary until the record is committed; the scope
	// removes it on every failure path.
	scope := resources.NewScope(resources.WithMemoryMonitoring(m.cfg.MemoryLeakLimitMB))
	defer scope.Close()

	if err := m.probe(ctx, repoURL); err != nil {
		return nil, err
	}
	progress(20)

	clonePath := filepath.Join(m.reposDir, alias)
	scope.TrackTempPath(clonePath)
	if err := m.clone(ctx, repoURL, clonePath, defaultBranch); err != nil {
		return nil, err
	}
	progress(40)

	size, err := repositorySize(clonePath)
	if err != nil {
		m.logger.Warn().Err(err).Str("alias", alias).Msg("Failed to measure repository size")
	}
	if size > m.cfg.MaxRepoSizeBytes {
		return nil, &types.ConflictError{Msg: fmt.Sprintf(
			"repository size (%.1fGB) exceeds limit (%.1fGB)",
			float64(size)/(1<<30), float64(m.cfg.MaxRepoSizeBytes)/(1<<30))}
	}
	progress(50)

	if err := jobs.Checkpoint(ctx); err != nil {
		return nil, err
	}

	if err := m.runWorkflow(ctx, clonePath, false, progress); err != nil {
		return nil, err
	}
	progress(90)
	scope.UntrackTempPath(clonePath)

	repo := &types.GoldenRepo{
		Alias:           alias,
		RepoURL:         repoURL,
		DefaultBranch:   defaultBranch,
		ClonePath:       clonePath,
		CreatedAt:       time.Now().UTC(),
		EnableTemporal:  opts.EnableTemporal,
		TemporalOptions: opts.TemporalOptions,
	}

	m.mu.Lock()
	m.repos[alias] = repo
	err = m.saveMetadataLocked()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.publish(events.EventGoldenRegistered, alias)
	m.logger.Info().Str("alias", alias).Str("repo_url", repoURL).Msg("Golden repository registered")

	return map[string]any{
		"success": true,
		"message": fmt.Sprintf("Golden repository '%s' added successfully", alias),
		"alias":   alias,
	}, nil
}

// probe verifies the repository URL is reachable with git ls-remote
func (m *Manager) probe(ctx context.Context, repoURL string) error {
	result, err := m.runner.Run(ctx, gitcmd.Command{
		Args:    []string{"git", "ls-remote", repoURL},
		Timeout: probeTimeout,
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &types.GitCommandError{
			Msg:      fmt.Sprintf("invalid or inaccessible git repository: %s", repoURL),
			Command:  []string{"git", "ls-remote", repoURL},
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}
	return nil
}

// clone copies the source into the golden tree. Remote URLs get a shallow
// single-branch clone; local paths always get a regular recursive copy,
// never copy-on-write, to avoid cross-device failures.
func (m *Manager) clone(ctx context.Context, repoURL, clonePath, branch string) error {
	if IsLocalPath(repoURL) {
		result, err := m.runner.Run(ctx, gitcmd.Command{
			Args:    []string{"cp", "-r", LocalPath(repoURL), clonePath},
			Timeout: gitcmd.CloneTimeout,
		})
		if err != nil {
			return err
		}
		if result.ExitCode != 0 {
			return &types.GitCommandError{
				Msg:      "failed to copy local repository",
				Command:  []string{"cp", "-r", LocalPath(repoURL), clonePath},
				ExitCode: result.ExitCode,
				Stderr:   result.Stderr,
			}
		}
		return nil
	}

	result, err := m.runner.Run(ctx, gitcmd.Command{
		Args:    []string{"git", "clone", "--depth=1", "--branch", branch, repoURL, clonePath},
		Timeout: gitcmd.CloneTimeout,
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &types.GitCommandError{
			Msg:      "git clone failed",
			Command:  []string{"git", "clone", "--depth=1", "--branch", branch, repoURL, clonePath},
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}
	return nil
}

// Refresh validates existence synchronously and submits the refresh job
func (m *Manager) Refresh(alias, submitter string) (string, error) {
	m.mu.Lock()
	repo, exists := m.repos[alias]
	m.mu.Unlock()
	if !exists {
		return "", &types.NotFoundError{Resource: "golden repository", Name: alias}
	}

	repoURL := repo.RepoURL
	clonePath := repo.ClonePath
	defaultBranch := repo.DefaultBranch

	body := func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		if !IsLocalPath(repoURL) {
			result, err := gitcmd.GitRemote(ctx, m.runner, clonePath, "pull", "origin", defaultBranch)
			if err != nil {
				return nil, err
			}
			if result.ExitCode != 0 {
				return nil, &types.GitCommandError{
					Msg:      "git pull failed",
					Command:  []string{"git", "pull", "origin", defaultBranch},
					Dir:      clonePath,
					ExitCode: result.ExitCode,
					Stderr:   result.Stderr,
				}
			}
		}
		progress(30)

		if err := m.runWorkflow(ctx, clonePath, true, progress); err != nil {
			return nil, err
		}

		m.publish(events.EventGoldenRefreshed, alias)
		return map[string]any{
			"success": true,
			"message": fmt.Sprintf("Golden repository '%s' refreshed successfully", alias),
		}, nil
	}

	return m.jobs.Submit("refresh_golden_repo", body, jobs.SubmitOptions{
		Submitter: submitter,
		IsAdmin:   true,
		RepoAlias: alias,
	})
}

// Remove validates existence synchronously and submits the removal job.
// The removal is transactional: if the orchestrated cleanup or the tree
// removal fails, the record and the directory are left in place and the
// job fails.
func (m *Manager) Remove(alias, submitter string) (string, error) {
	m.mu.Lock()
	repo, exists := m.repos[alias]
	m.mu.Unlock()
	if !exists {
		return "", &types.NotFoundError{Resource: "golden repository", Name: alias}
	}

	clonePath := repo.ClonePath

	body := func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		if err := m.clean.Cleanup(ctx, clonePath); err != nil {
			return nil, &types.CleanupError{Msg: fmt.Sprintf("failed to clean up repository '%s'", alias), Err: err}
		}
		progress(60)

		if err := os.RemoveAll(clonePath); err != nil {
			return nil, &types.CleanupError{Msg: fmt.Sprintf("failed to remove repository files for '%s'", alias), Err: err}
		}
		progress(80)

		m.mu.Lock()
		delete(m.repos, alias)
		err := m.saveMetadataLocked()
		m.mu.Unlock()
		if err != nil {
			return nil, err
		}

		m.publish(events.EventGoldenRemoved, alias)
		m.logger.Info().Str("alias", alias).Msg("Golden repository removed")
		return map[string]any{
			"success": true,
			"message": fmt.Sprintf("Golden repository '%s' removed successfully", alias),
		}, nil
	}

	return m.jobs.Submit("remove_golden_repo", body, jobs.SubmitOptions{
		Submitter: submitter,
		IsAdmin:   true,
		RepoAlias: alias,
	})
}

// List returns all golden repositories
func (m *Manager) List() []*types.GoldenRepo {
	m.mu.Lock()
	defer m.mu.Unlock()

	repos := make([]*types.GoldenRepo, 0, len(m.repos))
	for _, repo := range m.repos {
		cp := *repo
		repos = append(repos, &cp)
	}
	return repos
}

// Get returns one golden repository by alias
func (m *Manager) Get(alias string) (*types.GoldenRepo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, exists := m.repos[alias]
	if !exists {
		return nil, &types.NotFoundError{Resource: "golden repository", Name: alias}
	}
	cp := *repo
	return &cp, nil
}

// Exists reports whether alias is registered
func (m *Manager) Exists(alias string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.repos[alias]
	return ok
}

func (m *Manager) publish(eventType events.EventType, alias string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		Type:     eventType,
		Metadata: map[string]string{"alias": alias},
	})
}

// repositorySize walks the tree and sums file sizes; unreadable entries
// are skipped.
func repositorySize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
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
	return total, err
}
