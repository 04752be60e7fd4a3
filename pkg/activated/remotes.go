package activated

import (
	"context"
	"fmt"
	"strings"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/types"
)

// isLocalURL reports whether a remote URL points at the local filesystem
func isLocalURL(url string) bool {
	if url == "" {
		return true
	}
	if strings.HasPrefix(url, "/") || strings.HasPrefix(url, "file://") {
		return true
	}
	// Anything that is not a recognized remote scheme is treated as local
	for _, prefix := range []string{"http://", "https://", "git@", "ssh://"} {
		if strings.HasPrefix(url, prefix) {
			return false
		}
	}
	return true
}

// remoteURL reads the URL of a named remote; empty when the remote does
// not exist.
func (m *Manager) remoteURL(ctx context.Context, repoDir, remote string) (string, error) {
	result, err := gitcmd.Git(ctx, m.runner, repoDir, "remote", "get-url", remote)
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", nil
	}
	return strings.TrimSpace(result.Stdout), nil
}

// remoteNames lists the configured remotes
func (m *Manager) remoteNames(ctx context.Context, repoDir string) ([]string, error) {
	result, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// upstreamURL reads the golden clone's own origin remote. That URL is
// what activated repositories use as their origin; it is never a local
// path.
func (m *Manager) upstreamURL(ctx context.Context, goldenPath string) (string, error) {
	url, err := m.remoteURL(ctx, goldenPath, "origin")
	if err != nil {
		return "", err
	}
	if url == "" || isLocalURL(url) {
		return "", nil
	}
	return url, nil
}

// configureRemotes establishes the dual-remote topology on a freshly
// copied working tree: golden -> the local golden clone, origin -> the
// upstream URL propagated from the golden's own origin. When the golden
// has no usable upstream the origin remote is dropped rather than left
// pointing at a local path.
func (m *Manager) configureRemotes(ctx context.Context, repoDir string, goldenRepo *types.GoldenRepo) error {
	names, err := m.remoteNames(ctx, repoDir)
	if err != nil {
		return err
	}
	existing := make(map[string]bool, len(names))
	for _, name := range names {
		existing[name] = true
	}

	upstream, err := m.upstreamURL(ctx, goldenRepo.ClonePath)
	if err != nil {
		return err
	}

	if existing["golden"] {
		if _, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote", "set-url", "golden", goldenRepo.ClonePath); err != nil {
			return err
		}
	} else {
		if _, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote", "add", "golden", goldenRepo.ClonePath); err != nil {
			return err
		}
	}

	switch {
	case upstream != "" && existing["origin"]:
		if _, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote", "set-url", "origin", upstream); err != nil {
			return err
		}
	case upstream != "":
		if _, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote", "add", "origin", upstream); err != nil {
			return err
		}
	case existing["origin"]:
		if _, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote", "remove", "origin"); err != nil {
			return err
		}
	}

	m.logger.Debug().
		Str("repo", repoDir).
		Str("golden", goldenRepo.ClonePath).
		Str("origin", upstream).
		Msg("Configured dual-remote topology")
	return nil
}

// MigrateLegacyRemotes upgrades a legacy single-remote repository, whose
// sole origin points at the local golden clone, to the dual-remote
// topology. It runs just in time, before operations that consult
// remotes, and returns true only on the run that actually migrated.
func (m *Manager) MigrateLegacyRemotes(ctx context.Context, username, userAlias string) (bool, error) {
	repoDir := m.RepoPath(username, userAlias)

	names, err := m.remoteNames(ctx, repoDir)
	if err != nil {
		return false, err
	}
	if len(names) != 1 || names[0] != "origin" {
		return false, nil
	}

	originURL, err := m.remoteURL(ctx, repoDir, "origin")
	if err != nil {
		return false, err
	}
	if !isLocalURL(originURL) {
		return false, nil
	}

	goldenPath, err := m.GoldenPathFor(username, userAlias)
	if err != nil {
		return false, fmt.Errorf("cannot migrate remotes: %w", err)
	}

	// The legacy origin already points at the local golden; renaming
	// preserves its URL, then origin is recreated from the upstream.
	if _, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote", "rename", "origin", "golden"); err != nil {
		return false, err
	}

	upstream, err := m.upstreamURL(ctx, goldenPath)
	if err != nil {
		return false, err
	}
	if upstream != "" {
		if _, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "remote", "add", "origin", upstream); err != nil {
			return false, err
		}
	}

	m.logger.Info().
		Str("username", username).
		Str("user_alias", userAlias).
		Str("origin", upstream).
		Msg("Migrated legacy single-remote repository to dual-remote topology")
	return true, nil
}
