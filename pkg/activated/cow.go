package activated

import (
	"context"
	"fmt"
	"time"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/types"
)

// cowClone produces the activated working tree from a golden clone.
//
// The copy is a reflink-aware recursive cp rather than a git clone: a
// local git clone would skip the gitignored .code-indexer/ subtree, and
// carrying the prebuilt indexes over is the whole point of activation.
func (m *Manager) cowClone(ctx context.Context, goldenRepo *types.GoldenRepo, dest string, progress jobs.ProgressFunc) error {
	source := goldenRepo.ClonePath

	// 1. Reflink-aware recursive copy of the working tree and indexes
	result, err := m.runner.Run(ctx, gitcmd.Command{
		Args:    []string{"cp", "--reflink=auto", "-r", source, dest},
		Timeout: gitcmd.CopyTimeout,
	})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return &types.GitCommandError{
			Msg:      "copy-on-write clone failed",
			Command:  []string{"cp", "--reflink=auto", "-r", source, dest},
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}
	progress(40)

	if err := jobs.Checkpoint(ctx); err != nil {
		return err
	}

	// 2. Reset index timestamps so copied files do not show as modified.
	// Untracked gitignored content (.code-indexer/) remaining in status is
	// expected. update-index --refresh exits nonzero when entries needed
	// refreshing, which is exactly the case being repaired.
	if refresh, err := gitcmd.Git(ctx, m.runner, dest, "update-index", "--refresh"); err == nil && refresh.ExitCode != 0 {
		m.logger.Debug().Str("dest", dest).Msg("update-index refreshed stale entries")
	}
	if restore, err := gitcmd.Git(ctx, m.runner, dest, "restore", "."); err != nil {
		return err
	} else if restore.ExitCode != 0 {
		m.logger.Warn().Str("stderr", restore.Stderr).Msg("git restore reported issues after copy")
	}
	progress(50)

	// 3. Rewrite internal paths in the copied index configuration
	if err := m.cidx.FixConfig(ctx, dest); err != nil {
		return fmt.Errorf("failed to fix index configuration: %w", err)
	}
	progress(60)

	// 4. Dual-remote topology: origin -> upstream URL, golden -> local clone
	if err := m.configureRemotes(ctx, dest, goldenRepo); err != nil {
		return err
	}
	progress(65)

	// 5. Best-effort fetch so remote branches are available
	fetchRemote := "golden"
	if url, err := m.remoteURL(ctx, dest, "origin"); err == nil && url != "" {
		fetchRemote = "origin"
	}
	fetch, err := m.runner.Run(ctx, gitcmd.Command{
		Args:    []string{"git", "fetch", fetchRemote},
		Dir:     dest,
		Timeout: time.Minute,
	})
	if err != nil {
		return err
	}
	if fetch.ExitCode != 0 {
		m.logger.Warn().Str("remote", fetchRemote).Str("stderr", fetch.Stderr).Msg("Fetch after activation failed")
	}
	progress(70)

	// 6. Verify the repository is operational
	status, err := gitcmd.Git(ctx, m.runner, dest, "status")
	if err != nil {
		return err
	}
	if status.ExitCode != 0 {
		return &types.GitCommandError{
			Msg:      "git repository structure invalid after clone",
			Command:  []string{"git", "status"},
			Dir:      dest,
			ExitCode: status.ExitCode,
			Stderr:   status.Stderr,
		}
	}

	m.logger.Info().Str("source", source).Str("dest", dest).Msg("Copy-on-write clone successful")
	return nil
}
