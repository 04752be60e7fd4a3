package activated

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/types"
)

var branchPattern = regexp.MustCompile(`^[A-Za-z0-9/_.-]+$`)

// ValidateBranchName checks a branch name against the allowed grammar
func ValidateBranchName(branch string) error {
	if branch == "" {
		return &types.ValidationError{Msg: "branch name must not be empty"}
	}
	if !branchPattern.MatchString(branch) {
		return &types.ValidationError{Msg: fmt.Sprintf(
			"invalid branch name '%s': only letters, digits, '/', '_', '.' and '-' are allowed", branch)}
	}
	if strings.HasPrefix(branch, "-") || strings.HasSuffix(branch, ".lock") || strings.Contains(branch, "..") {
		return &types.ValidationError{Msg: fmt.Sprintf(
			"invalid branch name '%s': must not start with '-', end with '.lock' or contain '..'", branch)}
	}
	return nil
}

// SwitchResult reports the outcome of a branch switch
type SwitchResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Branch  string `json:"branch"`
}

// switchOutcome records how the working tree got onto the branch
type switchOutcome struct {
	fetchAttempted  bool
	fetchSuccessful bool
	remoteInfo      string
}

// SwitchBranch moves an activated repository onto branch. Remote fetch is
// attempted only when origin resolves to a real remote URL; on fetch
// failure the switch falls back to local strategies. Metadata is updated
// only on success.
func (m *Manager) SwitchBranch(ctx context.Context, username, userAlias, branch string) (*SwitchResult, error) {
	if err := ValidateBranchName(branch); err != nil {
		return nil, err
	}
	if !m.isActivated(username, userAlias) {
		return nil, &types.NotFoundError{Resource: "activated repository", Name: userAlias}
	}

	repoDir := m.RepoPath(username, userAlias)

	// Branch switching consults remotes; migrate legacy repos first
	if _, err := m.MigrateLegacyRemotes(ctx, username, userAlias); err != nil {
		m.logger.Warn().Err(err).Str("user_alias", userAlias).Msg("Legacy remote migration failed before branch switch")
	}

	outcome, err := m.switchBranchInDir(ctx, repoDir, branch)
	if err != nil {
		msg := fmt.Sprintf("branch '%s' not found in repository '%s'", branch, userAlias)
		if outcome.fetchAttempted && !outcome.fetchSuccessful {
			msg += fmt.Sprintf(" (fetch from remote failed: %s)", outcome.remoteInfo)
		}
		return nil, &types.NotFoundError{Resource: "branch", Name: msg}
	}

	meta, err := m.readMetadata(username, userAlias)
	if err != nil {
		return nil, err
	}
	meta.CurrentBranch = branch
	meta.LastAccessed = time.Now().UTC()
	if err := m.writeMetadata(username, meta); err != nil {
		return nil, err
	}

	message := fmt.Sprintf("Successfully switched to branch '%s' in repository '%s'", branch, userAlias)
	switch {
	case outcome.fetchAttempted && outcome.fetchSuccessful:
		message += " (with remote sync)"
	case outcome.fetchAttempted:
		message += " (local branch, remote fetch failed)"
	default:
		message += " (local branch)"
	}

	m.publish(events.EventBranchSwitched, username, userAlias)
	return &SwitchResult{Success: true, Message: message, Branch: branch}, nil
}

// switchBranchInDir runs the prioritized switch strategy chain against a
// working tree. The returned outcome is valid even when err is non-nil.
func (m *Manager) switchBranchInDir(ctx context.Context, repoDir, branch string) (switchOutcome, error) {
	var outcome switchOutcome

	shouldFetch, remoteInfo := m.shouldFetchFromRemote(ctx, repoDir)
	outcome.remoteInfo = remoteInfo

	if shouldFetch {
		outcome.fetchAttempted = true
		fetch, err := m.runner.Run(ctx, gitcmd.Command{
			Args:    []string{"git", "fetch", "origin"},
			Dir:     repoDir,
			Timeout: time.Minute,
		})
		if err != nil {
			return outcome, err
		}
		if fetch.ExitCode == 0 {
			outcome.fetchSuccessful = true
		} else {
			m.logger.Warn().
				Str("repo", repoDir).
				Str("stderr", fetch.Stderr).
				Msg("Git fetch failed, attempting local branch switch as fallback")
		}
	}

	// Strategy 1: remote-tracking checkout, armed by a successful fetch
	if outcome.fetchSuccessful {
		if ok := m.tryGit(ctx, repoDir, "checkout", "-B", branch, "origin/"+branch); ok {
			return outcome, nil
		}
	}

	// Strategy 2: the branch already exists locally
	if ok := m.tryGit(ctx, repoDir, "checkout", branch); ok {
		return outcome, nil
	}

	// Strategy 3: a remote-tracking ref exists from an earlier fetch
	if ok := m.tryGit(ctx, repoDir, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+branch); ok {
		if ok := m.tryGit(ctx, repoDir, "checkout", "-b", branch, "origin/"+branch); ok {
			return outcome, nil
		}
	}

	// Strategy 4: the ref exists somewhere; force reuse
	if ok := m.tryGit(ctx, repoDir, "show-ref", branch); ok {
		if ok := m.tryGit(ctx, repoDir, "checkout", "-B", branch); ok {
			return outcome, nil
		}
	}

	return outcome, fmt.Errorf("branch '%s' not found", branch)
}

// tryGit runs a git command and reports plain success
func (m *Manager) tryGit(ctx context.Context, repoDir string, args ...string) bool {
	result, err := gitcmd.Git(ctx, m.runner, repoDir, args...)
	return err == nil && result.ExitCode == 0
}

// shouldFetchFromRemote decides whether a fetch from origin makes sense:
// origin must exist and resolve to a real remote URL. Local paths are
// skipped (nothing newer lives there than what the copy already has).
func (m *Manager) shouldFetchFromRemote(ctx context.Context, repoDir string) (bool, string) {
	url, err := m.remoteURL(ctx, repoDir, "origin")
	if err != nil || url == "" {
		return false, "no origin remote configured"
	}
	if isLocalURL(url) {
		return false, "local repository: " + url
	}
	return true, "remote repository: " + url
}

// ListBranches returns local and remote branches with last-commit detail.
// Remote branches that already exist locally are folded into their local
// counterpart.
func (m *Manager) ListBranches(ctx context.Context, username, userAlias string) (*types.BranchList, error) {
	if !m.isActivated(username, userAlias) {
		return nil, &types.NotFoundError{Resource: "activated repository", Name: userAlias}
	}

	meta, err := m.readMetadata(username, userAlias)
	if err != nil {
		return nil, err
	}
	repoDir := m.RepoPath(username, userAlias)

	localResult, err := gitcmd.CheckGit(ctx, m.runner, repoDir, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	locals := splitLines(localResult.Stdout)

	var remotes []string
	remoteResult, err := gitcmd.Git(ctx, m.runner, repoDir, "branch", "-r", "--format=%(refname:short)")
	if err == nil && remoteResult.ExitCode == 0 {
		for _, ref := range splitLines(remoteResult.Stdout) {
			if !strings.HasSuffix(ref, "/HEAD") {
				remotes = append(remotes, ref)
			}
		}
	}

	localSet := make(map[string]bool, len(locals))
	var branches []types.BranchInfo
	for _, name := range locals {
		localSet[name] = true
		info := types.BranchInfo{
			Name:      name,
			Type:      "local",
			IsCurrent: name == meta.CurrentBranch,
		}
		m.fillCommitInfo(ctx, repoDir, name, &info)
		branches = append(branches, info)
	}

	remoteCount := 0
	for _, ref := range remotes {
		name := ref
		if idx := strings.Index(ref, "/"); idx >= 0 {
			name = ref[idx+1:]
		}
		if localSet[name] {
			continue
		}
		info := types.BranchInfo{
			Name:      name,
			Type:      "remote",
			RemoteRef: ref,
		}
		m.fillCommitInfo(ctx, repoDir, ref, &info)
		branches = append(branches, info)
		remoteCount++
	}

	return &types.BranchList{
		Branches:       branches,
		CurrentBranch:  meta.CurrentBranch,
		TotalBranches:  len(branches),
		LocalBranches:  len(locals),
		RemoteBranches: remoteCount,
	}, nil
}

// fillCommitInfo attaches last-commit details to a branch; failures are
// simply skipped.
func (m *Manager) fillCommitInfo(ctx context.Context, repoDir, ref string, info *types.BranchInfo) {
	result, err := gitcmd.Git(ctx, m.runner, repoDir, "log", "-1", "--format=%H|%s|%ai", ref)
	if err != nil || result.ExitCode != 0 {
		return
	}
	parts := strings.SplitN(strings.TrimSpace(result.Stdout), "|", 3)
	if len(parts) < 3 {
		return
	}
	hash := parts[0]
	if len(hash) > 8 {
		hash = hash[:8]
	}
	info.LastCommitHash = hash
	info.LastCommitMessage = parts[1]
	info.LastCommitDate = parts[2]
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
