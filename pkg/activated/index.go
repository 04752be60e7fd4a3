package activated

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/resources"
	"github.com/quarryhq/quarry/pkg/types"
)

// indexingTimeout bounds one index-type rebuild
const indexingTimeout = 10 * time.Minute

// Index types a reindex request may name
const (
	IndexTypeSemantic = "semantic"
	IndexTypeFTS      = "fts"
	IndexTypeTemporal = "temporal"
	IndexTypeSCIP     = "scip"
)

var validIndexTypes = map[string]bool{
	IndexTypeSemantic: true,
	IndexTypeFTS:      true,
	IndexTypeTemporal: true,
	IndexTypeSCIP:     true,
}

// Reindex validates synchronously and submits a reindex job over the
// activated repository. Only one reindex job per user may be in flight.
func (m *Manager) Reindex(username, userAlias string, indexTypes []string, clear bool) (string, error) {
	if len(indexTypes) == 0 {
		return "", &types.ValidationError{Msg: "at least one index type required"}
	}
	for _, indexType := range indexTypes {
		if !validIndexTypes[indexType] {
			return "", &types.ValidationError{Msg: fmt.Sprintf(
				"invalid index type '%s': valid types are semantic, fts, temporal, scip", indexType)}
		}
	}

	if !m.isActivated(username, userAlias) {
		return "", &types.NotFoundError{Resource: "activated repository", Name: userAlias}
	}

	// One reindex at a time per user: rebuilding indexes is IO-heavy and
	// two jobs over the same tree would race.
	for _, status := range []types.JobStatus{types.JobStatusRunning, types.JobStatusPending} {
		for _, job := range m.jobs.List(username, status, 100, 0).Jobs {
			if job.OperationType == "reindex" {
				return "", &types.ConflictError{Msg: fmt.Sprintf(
					"another reindex job is already %s (job %s), wait for it to complete", status, job.JobID)}
			}
		}
	}

	body := func(ctx context.Context, progress jobs.ProgressFunc) (map[string]any, error) {
		return m.doReindex(ctx, progress, username, userAlias, indexTypes, clear)
	}
	return m.jobs.Submit("reindex", body, jobs.SubmitOptions{
		Submitter: username,
		RepoAlias: userAlias,
	})
}

func (m *Manager) doReindex(ctx context.Context, progress jobs.ProgressFunc, username, userAlias string, indexTypes []string, clear bool) (map[string]any, error) {
	repoDir := m.RepoPath(username, userAlias)
	if _, err := os.Stat(repoDir); err != nil {
		return nil, &types.NotFoundError{Resource: "activated repository", Name: userAlias}
	}

	scope := resources.NewScope(resources.WithMemoryMonitoring(m.cfg.MemoryLeakLimitMB))
	defer scope.Close()

	total := len(indexTypes)
	for i, indexType := range indexTypes {
		if err := jobs.Checkpoint(ctx); err != nil {
			return nil, err
		}
		progress(10 + (i*80)/total)

		if err := m.runIndexType(ctx, repoDir, indexType, clear); err != nil {
			// Record the failure context on the job for the self-healing
			// fields before failing it.
			m.jobs.RecordResolution(jobs.JobIDFromContext(ctx),
				fmt.Sprintf("%s indexing failed", indexType), 0, nil)
			return nil, err
		}
		progress(10 + ((i+1)*80)/total)
	}

	m.Touch(username, userAlias)
	m.logger.Info().
		Str("username", username).
		Str("user_alias", userAlias).
		Strs("index_types", indexTypes).
		Bool("clear", clear).
		Msg("Reindex completed")

	return map[string]any{
		"success":     true,
		"message":     fmt.Sprintf("Reindexed repository '%s' (%s)", userAlias, strings.Join(indexTypes, ", ")),
		"index_types": indexTypes,
		"clear":       clear,
	}, nil
}

// runIndexType rebuilds one index kind via the cidx CLI
func (m *Manager) runIndexType(ctx context.Context, repoDir, indexType string, clear bool) error {
	var args []string
	switch indexType {
	case IndexTypeSemantic:
		if clear {
			indexDir := filepath.Join(repoDir, ".code-indexer", "index")
			if err := os.RemoveAll(indexDir); err != nil {
				return fmt.Errorf("failed to clear semantic index: %w", err)
			}
		}
		args = []string{"cidx", "index"}
	case IndexTypeFTS:
		args = []string{"cidx", "index", "--fts"}
		if clear {
			args = append(args, "--clear")
		}
	case IndexTypeTemporal:
		args = []string{"cidx", "index", "--index-commits"}
		if clear {
			args = append(args, "--clear")
		}
	case IndexTypeSCIP:
		args = []string{"cidx", "scip", "generate", "--project", repoDir}
		if clear {
			args = append(args, "--clear")
		}
	}

	result, err := m.runner.Run(ctx, gitcmd.Command{
		Args:    args,
		Dir:     repoDir,
		Timeout: indexingTimeout,
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%s indexing failed with code %d: %s",
			indexType, result.ExitCode, strings.TrimSpace(result.Combined()))
	}
	return nil
}
