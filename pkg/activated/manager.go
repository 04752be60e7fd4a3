package activated

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/cidx"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/golden"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
	"github.com/quarryhq/quarry/pkg/resources"
	"github.com/quarryhq/quarry/pkg/storage"
	"github.com/quarryhq/quarry/pkg/types"
)

// Manager owns each user's activated repository subtree. The sidecar
// metadata file next to each working tree is the source of truth for the
// current branch and access times.
type Manager struct {
	cfg      *config.Config
	reposDir string
	golden   *golden.Manager
	jobs     *jobs.Manager
	runner   gitcmd.Runner
	cidx     *cidx.Client
	broker   *events.Broker
	logger   zerolog.Logger
}

// NewManager creates an activated repository manager rooted at the
// configured data directory
func NewManager(cfg *config.Config, goldenManager *golden.Manager, jobManager *jobs.Manager, runner gitcmd.Runner, broker *events.Broker) (*Manager, error) {
	reposDir := cfg.ActivatedReposDir()
	if err := os.MkdirAll(reposDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create activated repos directory: %w", err)
	}

	return &Manager{
		cfg:      cfg,
		reposDir: reposDir,
		golden:   goldenManager,
		jobs:     jobManager,
		runner:   runner,
		cidx:     cidx.NewClient(runner),
		broker:   broker,
		logger:   log.WithComponent("activated"),
	}, nil
}

// RepoPath returns the working tree path for a user's activated repository
func (m *Manager) RepoPath(username, userAlias string) string {
	return filepath.Join(m.reposDir, username, userAlias)
}

func (m *Manager) userDir(username string) string {
	return filepath.Join(m.reposDir, username)
}

func (m *Manager) metadataPath(username, userAlias string) string {
	return filepath.Join(m.reposDir, username, userAlias+"_metadata.json")
}

// isActivated reports whether both the working tree and the sidecar
// metadata file exist. A directory without metadata (or vice versa) is
// not a live activation.
func (m *Manager) isActivated(username, userAlias string) bool {
	if _, err := os.Stat(m.RepoPath(username, userAlias)); err != nil {
		return false
	}
	if _, err := os.Stat(m.metadataPath(username, userAlias)); err != nil {
		return false
	}
	return true
}

func (m *Manager) readMetadata(username, userAlias string) (*types.ActivatedRepo, error) {
	var meta types.ActivatedRepo
	if err := storage.ReadJSONFile(m.metadataPath(username, userAlias), &meta); err != nil {
		return nil, fmt.Errorf("failed to read repository metadata: %w", err)
	}
	return &meta, nil
}

func (m *Manager) writeMetadata(username string, meta *types.ActivatedRepo) error {
	if err := storage.WriteJSONFile(m.metadataPath(username, meta.UserAlias), meta); err != nil {
		return fmt.Errorf("failed to write repository metadata: %w", err)
	}
	return nil
}

// Activate validates synchronously and submits the activation job. The
// job performs the copy-on-write clone and writes the sidecar metadata.
func (m *Manager) Activate(username, goldenAlias, branch, userAlias string) (string, error) {
	goldenRepo, err := m.golden.Get(goldenAlias)
	if err != nil {
		return "", err
	}

	if userAlias == "" {
		userAlias = goldenAlias
	}
	if err := golden.ValidateAlias(userAlias); err != nil {
		return "", err
	}
	if branch == "" {
		branch = goldenRepo.DefaultBranch
	}

	if m.isActivated(username, userAlias) {
		return "", &types.ConflictError{Msg: fmt.Sprintf(
			"repository '%s' already activated for user '%s'", userAlias, username)}
	}

	body := func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		return m.doActivate(ctx, progress, username, goldenAlias, branch, userAlias)
	}
	return m.jobs.Submit("activate_repository", body, jobs.SubmitOptions{
		Submitter: username,
		RepoAlias: userAlias,
	})
}

func (m *Manager) doActivate(ctx context.Context, progress jobs.ProgressFunc, username, goldenAlias, branch, userAlias string) (map[string]any, error) {
	goldenRepo, err := m.golden.Get(goldenAlias)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(m.userDir(username), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create user directory: %w", err)
	}

	// The copy is temporary until both the tree and the sidecar metadata
	// exist; the scope removes a half-built activation on any failure.
	scope := resources.NewScope(resources.WithMemoryMonitoring(m.cfg.MemoryLeakLimitMB))
	defer scope.Close()

	dest := m.RepoPath(username, userAlias)
	scope.TrackTempPath(dest)
	if err := m.cowClone(ctx, goldenRepo, dest, progress); err != nil {
		return nil, err
	}
	progress(80)

	if branch != goldenRepo.DefaultBranch {
		if _, err := m.switchBranchInDir(ctx, dest, branch); err != nil {
			return nil, fmt.Errorf("failed to switch to branch '%s': %w", branch, err)
		}
	}
	progress(90)

	now := time.Now().UTC()
	meta := &types.ActivatedRepo{
		UserAlias:       userAlias,
		GoldenRepoAlias: goldenAlias,
		CurrentBranch:   branch,
		ActivatedAt:     now,
		LastAccessed:    now,
	}
	if err := m.writeMetadata(username, meta); err != nil {
		return nil, err
	}
	scope.UntrackTempPath(dest)

	m.publish(events.EventRepoActivated, username, userAlias)
	metrics.ActivatedReposTotal.Inc()
	m.logger.Info().
		Str("username", username).
		Str("user_alias", userAlias).
		Str("golden_alias", goldenAlias).
		Msg("Repository activated")

	return map[string]any{
		"success":    true,
		"message":    fmt.Sprintf("Repository '%s' activated successfully", userAlias),
		"user_alias": userAlias,
		"branch":     branch,
	}, nil
}

// Deactivate validates synchronously and submits the deactivation job.
// Removal succeeds whether or not the directory held git state.
func (m *Manager) Deactivate(username, userAlias string) (string, error) {
	if !m.isActivated(username, userAlias) {
		return "", &types.NotFoundError{Resource: "activated repository", Name: userAlias}
	}

	body := func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		repoDir := m.RepoPath(username, userAlias)
		if err := os.RemoveAll(repoDir); err != nil {
			return nil, &types.CleanupError{Msg: fmt.Sprintf("failed to remove repository '%s'", userAlias), Err: err}
		}
		progress(60)

		metaPath := m.metadataPath(username, userAlias)
		if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
			return nil, &types.CleanupError{Msg: fmt.Sprintf("failed to remove metadata for '%s'", userAlias), Err: err}
		}

		m.publish(events.EventRepoDeactivated, username, userAlias)
		metrics.ActivatedReposTotal.Dec()
		m.logger.Info().Str("username", username).Str("user_alias", userAlias).Msg("Repository deactivated")
		return map[string]any{
			"success":    true,
			"message":    fmt.Sprintf("Repository '%s' deactivated successfully", userAlias),
			"user_alias": userAlias,
		}, nil
	}

	return m.jobs.Submit("deactivate_repository", body, jobs.SubmitOptions{
		Submitter: username,
		RepoAlias: userAlias,
	})
}

// List scans the user's directory for metadata files whose working tree
// still exists. Corrupted metadata files are skipped with a warning.
func (m *Manager) List(username string) []*types.ActivatedRepo {
	userDir := m.userDir(username)

	entries, err := os.ReadDir(userDir)
	if err != nil {
		return nil
	}

	var repos []*types.ActivatedRepo
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, "_metadata.json") {
			continue
		}

		var meta types.ActivatedRepo
		metaPath := filepath.Join(userDir, name)
		if err := storage.ReadJSONFile(metaPath, &meta); err != nil || meta.UserAlias == "" {
			m.logger.Warn().Str("path", metaPath).Msg("Skipping corrupted metadata file")
			continue
		}

		if _, err := os.Stat(filepath.Join(userDir, meta.UserAlias)); err != nil {
			continue
		}
		repos = append(repos, &meta)
	}
	return repos
}

// SyncResult reports the outcome of a golden sync
type SyncResult struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	ChangesApplied bool     `json:"changes_applied"`
	FilesChanged   int      `json:"files_changed,omitempty"`
	ChangedFiles   []string `json:"changed_files,omitempty"`
}

// SyncWithGolden fast-forwards the activated repository from its golden.
// It fetches from the golden remote, compares HEAD against
// golden/<current_branch> and merges. A merge conflict is fatal and
// user-actionable; a fetch failure is reported as success with no
// changes applied.
func (m *Manager) SyncWithGolden(ctx context.Context, username, userAlias string) (*SyncResult, error) {
	if !m.isActivated(username, userAlias) {
		return nil, &types.NotFoundError{Resource: "activated repository", Name: userAlias}
	}

	meta, err := m.readMetadata(username, userAlias)
	if err != nil {
		return nil, err
	}
	repoDir := m.RepoPath(username, userAlias)

	if _, err := os.Stat(filepath.Join(repoDir, ".git")); err != nil {
		return nil, &types.GitCommandError{
			Msg: fmt.Sprintf("repository '%s' is not a git repository, sync not supported", userAlias),
			Dir: repoDir,
		}
	}

	// Sync consults remotes, so legacy single-remote repos migrate first
	if _, err := m.MigrateLegacyRemotes(ctx, username, userAlias); err != nil {
		m.logger.Warn().Err(err).Str("user_alias", userAlias).Msg("Legacy remote migration failed before sync")
	}

	branch := meta.CurrentBranch
	logger := m.logger.With().Str("username", username).Str("user_alias", userAlias).Logger()

	fetchResult, err := m.runner.Run(ctx, gitcmd.Command{
		Args:    []string{"git", "fetch", "golden"},
		Dir:     repoDir,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if fetchResult.ExitCode != 0 {
		logger.Warn().Str("stderr", fetchResult.Stderr).Msg("Fetch from golden failed, no changes applied")
		return &SyncResult{
			Success:        true,
			Message:        fmt.Sprintf("Repository '%s' is up to date (fetch failed, no changes applied)", userAlias),
			ChangesApplied: false,
		}, nil
	}

	diffResult, err := gitcmd.Git(ctx, m.runner, repoDir, "diff", "HEAD..golden/"+branch, "--name-only")
	if err != nil {
		return nil, err
	}
	changed := strings.TrimSpace(diffResult.Stdout)
	if diffResult.ExitCode != 0 || changed == "" {
		return &SyncResult{
			Success:        true,
			Message:        fmt.Sprintf("Repository '%s' is already up to date", userAlias),
			ChangesApplied: false,
		}, nil
	}

	mergeResult, err := m.runner.Run(ctx, gitcmd.Command{
		Args:    []string{"git", "merge", "golden/" + branch},
		Dir:     repoDir,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if mergeResult.ExitCode != 0 {
		if strings.Contains(strings.ToLower(mergeResult.Combined()), "conflict") {
			return nil, &types.ConflictError{Msg: fmt.Sprintf(
				"sync failed due to merge conflicts in repository '%s', manual resolution required", userAlias)}
		}
		return nil, &types.GitCommandError{
			Msg:      fmt.Sprintf("sync failed for repository '%s'", userAlias),
			Command:  []string{"git", "merge", "golden/" + branch},
			Dir:      repoDir,
			ExitCode: mergeResult.ExitCode,
			Stderr:   mergeResult.Stderr,
		}
	}

	meta.LastAccessed = time.Now().UTC()
	if err := m.writeMetadata(username, meta); err != nil {
		return nil, err
	}

	changedFiles := strings.Split(changed, "\n")
	display := changedFiles
	if len(display) > 10 {
		display = display[:10]
	}

	m.publish(events.EventRepoSynced, username, userAlias)
	logger.Info().Int("files_changed", len(changedFiles)).Msg("Synced repository with golden")

	return &SyncResult{
		Success:        true,
		Message:        fmt.Sprintf("Successfully synced repository '%s' with golden repository", userAlias),
		ChangesApplied: true,
		FilesChanged:   len(changedFiles),
		ChangedFiles:   display,
	}, nil
}

// Touch updates last_accessed in the sidecar metadata
func (m *Manager) Touch(username, userAlias string) {
	meta, err := m.readMetadata(username, userAlias)
	if err != nil {
		return
	}
	meta.LastAccessed = time.Now().UTC()
	if err := m.writeMetadata(username, meta); err != nil {
		m.logger.Warn().Err(err).Str("user_alias", userAlias).Msg("Failed to update last_accessed")
	}
}

// GoldenPathFor resolves the golden clone path referenced by an
// activation's metadata.
func (m *Manager) GoldenPathFor(username, userAlias string) (string, error) {
	meta, err := m.readMetadata(username, userAlias)
	if err != nil {
		return "", err
	}
	goldenRepo, err := m.golden.Get(meta.GoldenRepoAlias)
	if err != nil {
		return "", err
	}
	return goldenRepo.ClonePath, nil
}

func (m *Manager) publish(eventType events.EventType, username, userAlias string) {
	if m.broker == nil {
		return
	}
	m.broker.Publish(&events.Event{
		Type: eventType,
		Metadata: map[string]string{
			"username":   username,
			"user_alias": userAlias,
		},
	})
}
