package gitops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/activated"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/metrics"
	"github.com/quarryhq/quarry/pkg/types"
)

// Confirmation-gated operation names
const (
	opResetHard    = "git_reset_hard"
	opClean        = "git_clean"
	opBranchDelete = "git_branch_delete"
)

var (
	conflictPattern = regexp.MustCompile(`Merge conflict in (.+)`)
	changedPattern  = regexp.MustCompile(`(\d+) files? changed`)
)

// RepoResolver resolves aliases to working trees and performs the
// just-in-time legacy remote migration. Satisfied by the activated
// repository manager.
type RepoResolver interface {
	RepoPath(username, userAlias string) string
	MigrateLegacyRemotes(ctx context.Context, username, userAlias string) (bool, error)
}

// Service executes git operations against activated repositories. All
// destructive operations are gated by single-use confirmation tokens.
type Service struct {
	repos          RepoResolver
	runner         gitcmd.Runner
	tokens         *TokenCache
	committerName  string
	committerEmail string
	logger         zerolog.Logger
}

// NewService creates a git operations service
func NewService(cfg *config.Config, repos RepoResolver, runner gitcmd.Runner) *Service {
	return &Service{
		repos:          repos,
		runner:         runner,
		tokens:         NewTokenCache(),
		committerName:  cfg.ServiceCommitterName,
		committerEmail: cfg.ServiceCommitterEmail,
		logger:         log.WithComponent("gitops"),
	}
}

// repoDir resolves a user's alias to its working tree and verifies the
// activation is live.
func (s *Service) repoDir(username, repoAlias string) (string, error) {
	dir := s.repos.RepoPath(username, repoAlias)
	if _, err := os.Stat(dir); err != nil {
		return "", &types.NotFoundError{Resource: "activated repository", Name: repoAlias}
	}
	return dir, nil
}

func (s *Service) observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.GitOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// migrateBeforeRemote upgrades legacy single-remote repositories before
// any operation that touches remotes. Migration problems never fail the
// operation itself.
func (s *Service) migrateBeforeRemote(ctx context.Context, username, repoAlias string) {
	if _, err := s.repos.MigrateLegacyRemotes(ctx, username, repoAlias); err != nil {
		s.logger.Warn().Err(err).
			Str("username", username).
			Str("repo_alias", repoAlias).
			Msg("Legacy remote migration failed before remote operation")
	}
}

// StatusResult is returned by Status
type StatusResult struct {
	Success   bool     `json:"success"`
	Staged    []string `json:"staged"`
	Unstaged  []string `json:"unstaged"`
	Untracked []string `json:"untracked"`
}

// Status parses porcelain v1 output into staged, unstaged and untracked
// file lists.
func (s *Service) Status(ctx context.Context, repoAlias, username string) (*StatusResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	result, err := gitcmd.CheckGit(ctx, s.runner, repoDir, "status", "--porcelain=v1")
	s.observe("status", err)
	if err != nil {
		return nil, err
	}

	status := &StatusResult{
		Success:   true,
		Staged:    []string{},
		Unstaged:  []string{},
		Untracked: []string{},
	}
	for _, line := range strings.Split(result.Stdout, "\n") {
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		path := line[3:]
		if strings.ContainsRune("MADRC", rune(code[0])) {
			status.Staged = append(status.Staged, path)
		}
		if strings.ContainsRune("MADRC", rune(code[1])) {
			status.Unstaged = append(status.Unstaged, path)
		}
		if code == "??" {
			status.Untracked = append(status.Untracked, path)
		}
	}
	return status, nil
}

// DiffOptions selects what Diff shows
type DiffOptions struct {
	ContextLines *int
	StatOnly     bool
	FromRevision string
	ToRevision   string
	Path         string
	FilePaths    []string
}

// DiffResult is returned by Diff
type DiffResult struct {
	Success      bool   `json:"success"`
	DiffText     string `json:"diff_text"`
	FilesChanged int    `json:"files_changed"`
}

// Diff builds and runs a git diff with optional context width, stat
// mode, revision or range, and a trailing path limiter.
func (s *Service) Diff(ctx context.Context, repoAlias, username string, opts DiffOptions) (*DiffResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	args := []string{"diff"}
	if opts.ContextLines != nil {
		args = append(args, "-U"+strconv.Itoa(*opts.ContextLines))
	}
	if opts.StatOnly {
		args = append(args, "--stat")
	}
	switch {
	case opts.FromRevision != "" && opts.ToRevision != "":
		args = append(args, opts.FromRevision+".."+opts.ToRevision)
	case opts.FromRevision != "":
		args = append(args, opts.FromRevision)
	}
	if opts.Path != "" {
		args = append(args, "--", opts.Path)
	} else if len(opts.FilePaths) > 0 {
		args = append(args, opts.FilePaths...)
	}

	result, err := gitcmd.CheckGit(ctx, s.runner, repoDir, args...)
	s.observe("diff", err)
	if err != nil {
		return nil, err
	}

	return &DiffResult{
		Success:      true,
		DiffText:     result.Stdout,
		FilesChanged: strings.Count(result.Stdout, "diff --git"),
	}, nil
}

// LogOptions filters the commit history
type LogOptions struct {
	Limit  int
	Since  string
	Until  string
	Author string
	Branch string
	Path   string
}

// Commit is one parsed history entry
type Commit struct {
	CommitHash string `json:"commit_hash"`
	Author     string `json:"author"`
	Date       string `json:"date"`
	Message    string `json:"message"`
}

// LogResult is returned by Log
type LogResult struct {
	Success bool     `json:"success"`
	Commits []Commit `json:"commits"`
}

// Log emits one JSON object per commit and parses each line; lines that
// fail to parse (messages with embedded quotes) are skipped.
func (s *Service) Log(ctx context.Context, repoAlias, username string, opts LogOptions) (*LogResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	format := `{"commit_hash": "%H", "author": "%an", "date": "%ai", "message": "%s"}`
	args := []string{"log", "--format=" + format, "-n" + strconv.Itoa(limit)}
	if opts.Since != "" {
		args = append(args, "--since="+opts.Since)
	}
	if opts.Until != "" {
		args = append(args, "--until="+opts.Until)
	}
	if opts.Author != "" {
		args = append(args, "--author="+opts.Author)
	}
	if opts.Branch != "" {
		args = append(args, opts.Branch)
	}
	if opts.Path != "" {
		args = append(args, "--", opts.Path)
	}

	result, err := gitcmd.CheckGit(ctx, s.runner, repoDir, args...)
	s.observe("log", err)
	if err != nil {
		return nil, err
	}

	commits := []Commit{}
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var commit Commit
		if err := json.Unmarshal([]byte(line), &commit); err != nil {
			continue
		}
		commits = append(commits, commit)
	}
	return &LogResult{Success: true, Commits: commits}, nil
}

// StageResult is returned by Stage
type StageResult struct {
	Success     bool     `json:"success"`
	StagedFiles []string `json:"staged_files"`
}

// Stage adds files to the index
func (s *Service) Stage(ctx context.Context, repoAlias, username string, filePaths []string) (*StageResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, append([]string{"add"}, filePaths...)...)
	s.observe("stage", err)
	if err != nil {
		return nil, err
	}
	return &StageResult{Success: true, StagedFiles: filePaths}, nil
}

// UnstageResult is returned by Unstage
type UnstageResult struct {
	Success       bool     `json:"success"`
	UnstagedFiles []string `json:"unstaged_files"`
}

// Unstage removes files from the index
func (s *Service) Unstage(ctx context.Context, repoAlias, username string, filePaths []string) (*UnstageResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, append([]string{"reset", "HEAD"}, filePaths...)...)
	s.observe("unstage", err)
	if err != nil {
		return nil, err
	}
	return &UnstageResult{Success: true, UnstagedFiles: filePaths}, nil
}

// PushResult is returned by Push
type PushResult struct {
	Success       bool `json:"success"`
	PushedCommits int  `json:"pushed_commits"`
}

// Push sends commits to a remote. Auth and network failures are
// distinguished in the error message.
func (s *Service) Push(ctx context.Context, repoAlias, username, remote, branch string) (*PushResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}
	if remote == "" {
		remote = "origin"
	}

	s.migrateBeforeRemote(ctx, username, repoAlias)

	args := []string{"push", remote}
	if branch != "" {
		args = append(args, branch)
	}

	result, err := gitcmd.GitRemote(ctx, s.runner, repoDir, args...)
	if err != nil {
		s.observe("push", err)
		return nil, err
	}
	if result.ExitCode != 0 {
		gitErr := &types.GitCommandError{
			Command:  append([]string{"git"}, args...),
			Dir:      repoDir,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
		switch {
		case strings.Contains(result.Stderr, "Authentication") || strings.Contains(result.Stderr, "Permission denied"):
			gitErr.Msg = "git push authentication failed"
		case strings.Contains(result.Stderr, "Could not resolve host") || strings.Contains(result.Stderr, "Network"):
			gitErr.Msg = "git push network error"
		default:
			gitErr.Msg = "git push failed"
		}
		s.observe("push", gitErr)
		return nil, gitErr
	}

	s.observe("push", nil)
	pushed := 0
	if strings.Contains(result.Combined(), "..") {
		pushed = 1
	}
	return &PushResult{Success: true, PushedCommits: pushed}, nil
}

// PullResult is returned by Pull. Success is false when the merge left
// conflicts behind.
type PullResult struct {
	Success      bool     `json:"success"`
	UpdatedFiles int      `json:"updated_files"`
	Conflicts    []string `json:"conflicts"`
}

// Pull merges from a remote and parses conflict markers into a
// structured list.
func (s *Service) Pull(ctx context.Context, repoAlias, username, remote, branch string) (*PullResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}
	if remote == "" {
		remote = "origin"
	}

	s.migrateBeforeRemote(ctx, username, repoAlias)

	args := []string{"pull", remote}
	if branch != "" {
		args = append(args, branch)
	}

	result, err := gitcmd.GitRemote(ctx, s.runner, repoDir, args...)
	s.observe("pull", err)
	if err != nil {
		return nil, err
	}

	conflicts := []string{}
	if result.ExitCode != 0 || strings.Contains(result.Stdout, "CONFLICT") {
		for _, line := range strings.Split(result.Stdout, "\n") {
			if !strings.Contains(line, "CONFLICT") {
				continue
			}
			if match := conflictPattern.FindStringSubmatch(line); match != nil {
				conflicts = append(conflicts, match[1])
			}
		}
	}

	updated := 0
	if match := changedPattern.FindStringSubmatch(result.Stdout); match != nil {
		updated, _ = strconv.Atoi(match[1])
	}

	return &PullResult{
		Success:      result.ExitCode == 0 && len(conflicts) == 0,
		UpdatedFiles: updated,
		Conflicts:    conflicts,
	}, nil
}

// FetchResult is returned by Fetch
type FetchResult struct {
	Success     bool     `json:"success"`
	FetchedRefs []string `json:"fetched_refs"`
}

// Fetch updates remote-tracking refs
func (s *Service) Fetch(ctx context.Context, repoAlias, username, remote string) (*FetchResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}
	if remote == "" {
		remote = "origin"
	}

	s.migrateBeforeRemote(ctx, username, repoAlias)

	result, err := gitcmd.GitRemote(ctx, s.runner, repoDir, "fetch", remote)
	if err != nil {
		s.observe("fetch", err)
		return nil, err
	}
	if result.ExitCode != 0 {
		gitErr := &types.GitCommandError{
			Msg:      "git fetch failed",
			Command:  []string{"git", "fetch", remote},
			Dir:      repoDir,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
		s.observe("fetch", gitErr)
		return nil, gitErr
	}

	s.observe("fetch", nil)
	refs := []string{}
	for _, line := range strings.Split(result.Combined(), "\n") {
		if strings.Contains(line, " -> ") || strings.Contains(line, "FETCH_HEAD") {
			refs = append(refs, strings.TrimSpace(line))
		}
	}
	return &FetchResult{Success: true, FetchedRefs: refs}, nil
}

// ResetResult is returned by Reset. When a hard reset arrives without a
// token, RequiresConfirmation is set and Token carries the challenge.
type ResetResult struct {
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	Token                string `json:"token,omitempty"`
	Success              bool   `json:"success,omitempty"`
	ResetMode            string `json:"reset_mode,omitempty"`
	TargetCommit         string `json:"target_commit,omitempty"`
}

// Reset moves HEAD. Hard resets require the confirmation token protocol.
func (s *Service) Reset(ctx context.Context, repoAlias, username, mode, commitHash, confirmationToken string) (*ResetResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = "mixed"
	}
	if mode != "soft" && mode != "mixed" && mode != "hard" {
		return nil, &types.ValidationError{Msg: fmt.Sprintf("invalid reset mode '%s': must be soft, mixed or hard", mode)}
	}

	if mode == "hard" {
		if confirmationToken == "" {
			return &ResetResult{
				RequiresConfirmation: true,
				Token:                s.tokens.Generate(opResetHard),
			}, nil
		}
		if !s.tokens.Consume(opResetHard, confirmationToken) {
			return nil, &types.ConfirmationInvalidError{Operation: opResetHard}
		}
	}

	target := commitHash
	if target == "" {
		target = "HEAD"
	}

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, "reset", "--"+mode, target)
	s.observe("reset", err)
	if err != nil {
		return nil, err
	}
	return &ResetResult{Success: true, ResetMode: mode, TargetCommit: target}, nil
}

// CleanResult is returned by Clean
type CleanResult struct {
	RequiresConfirmation bool     `json:"requires_confirmation,omitempty"`
	Token                string   `json:"token,omitempty"`
	Success              bool     `json:"success,omitempty"`
	RemovedFiles         []string `json:"removed_files,omitempty"`
}

// Clean removes untracked files and directories behind the confirmation
// token protocol.
func (s *Service) Clean(ctx context.Context, repoAlias, username, confirmationToken string) (*CleanResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	if confirmationToken == "" {
		return &CleanResult{
			RequiresConfirmation: true,
			Token:                s.tokens.Generate(opClean),
		}, nil
	}
	if !s.tokens.Consume(opClean, confirmationToken) {
		return nil, &types.ConfirmationInvalidError{Operation: opClean}
	}

	result, err := gitcmd.CheckGit(ctx, s.runner, repoDir, "clean", "-fd")
	s.observe("clean", err)
	if err != nil {
		return nil, err
	}

	removed := []string{}
	for _, line := range strings.Split(result.Stdout, "\n") {
		if strings.HasPrefix(line, "Removing ") {
			removed = append(removed, strings.TrimSpace(strings.TrimPrefix(line, "Removing ")))
		}
	}
	return &CleanResult{Success: true, RemovedFiles: removed}, nil
}

// MergeAbortResult is returned by MergeAbort
type MergeAbortResult struct {
	Success bool `json:"success"`
	Aborted bool `json:"aborted"`
}

// MergeAbort abandons an in-progress merge
func (s *Service) MergeAbort(ctx context.Context, repoAlias, username string) (*MergeAbortResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, "merge", "--abort")
	s.observe("merge_abort", err)
	if err != nil {
		return nil, err
	}
	return &MergeAbortResult{Success: true, Aborted: true}, nil
}

// CheckoutFileResult is returned by CheckoutFile
type CheckoutFileResult struct {
	Success      bool   `json:"success"`
	RestoredFile string `json:"restored_file"`
}

// CheckoutFile restores one file to its HEAD state
func (s *Service) CheckoutFile(ctx context.Context, repoAlias, username, filePath string) (*CheckoutFileResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, "checkout", "HEAD", "--", filePath)
	s.observe("checkout_file", err)
	if err != nil {
		return nil, err
	}
	return &CheckoutFileResult{Success: true, RestoredFile: filePath}, nil
}

// BranchListResult is returned by BranchList
type BranchListResult struct {
	Success bool     `json:"success"`
	Current string   `json:"current"`
	Local   []string `json:"local"`
	Remote  []string `json:"remote"`
}

// BranchList parses git branch -a into current, local and remote names
func (s *Service) BranchList(ctx context.Context, repoAlias, username string) (*BranchListResult, error) {
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	result, err := gitcmd.CheckGit(ctx, s.runner, repoDir, "branch", "-a")
	s.observe("branch_list", err)
	if err != nil {
		return nil, err
	}

	branches := &BranchListResult{Success: true, Local: []string{}, Remote: []string{}}
	for _, line := range strings.Split(result.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "* "):
			branches.Current = strings.TrimSpace(line[2:])
			branches.Local = append(branches.Local, branches.Current)
		case strings.HasPrefix(line, "remotes/"):
			branches.Remote = append(branches.Remote, strings.TrimPrefix(line, "remotes/"))
		default:
			branches.Local = append(branches.Local, line)
		}
	}
	return branches, nil
}

// BranchCreateResult is returned by BranchCreate
type BranchCreateResult struct {
	Success       bool   `json:"success"`
	CreatedBranch string `json:"created_branch"`
}

// BranchCreate creates a branch at HEAD
func (s *Service) BranchCreate(ctx context.Context, repoAlias, username, branchName string) (*BranchCreateResult, error) {
	if err := activated.ValidateBranchName(branchName); err != nil {
		return nil, err
	}
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, "branch", branchName)
	s.observe("branch_create", err)
	if err != nil {
		return nil, err
	}
	return &BranchCreateResult{Success: true, CreatedBranch: branchName}, nil
}

// BranchSwitchResult is returned by BranchSwitch
type BranchSwitchResult struct {
	Success        bool   `json:"success"`
	CurrentBranch  string `json:"current_branch"`
	PreviousBranch string `json:"previous_branch"`
}

// BranchSwitch checks out an existing branch
func (s *Service) BranchSwitch(ctx context.Context, repoAlias, username, branchName string) (*BranchSwitchResult, error) {
	if err := activated.ValidateBranchName(branchName); err != nil {
		return nil, err
	}
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	current, err := gitcmd.CheckGit(ctx, s.runner, repoDir, "branch", "--show-current")
	if err != nil {
		s.observe("branch_switch", err)
		return nil, err
	}
	previous := strings.TrimSpace(current.Stdout)

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, "checkout", branchName)
	s.observe("branch_switch", err)
	if err != nil {
		return nil, err
	}

	return &BranchSwitchResult{
		Success:        true,
		CurrentBranch:  branchName,
		PreviousBranch: previous,
	}, nil
}

// BranchDeleteResult is returned by BranchDelete
type BranchDeleteResult struct {
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
	Token                string `json:"token,omitempty"`
	Success              bool   `json:"success,omitempty"`
	DeletedBranch        string `json:"deleted_branch,omitempty"`
}

// BranchDelete removes a branch behind the confirmation token protocol
func (s *Service) BranchDelete(ctx context.Context, repoAlias, username, branchName, confirmationToken string) (*BranchDeleteResult, error) {
	if err := activated.ValidateBranchName(branchName); err != nil {
		return nil, err
	}
	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	if confirmationToken == "" {
		return &BranchDeleteResult{
			RequiresConfirmation: true,
			Token:                s.tokens.Generate(opBranchDelete),
		}, nil
	}
	if !s.tokens.Consume(opBranchDelete, confirmationToken) {
		return nil, &types.ConfirmationInvalidError{Operation: opBranchDelete}
	}

	_, err = gitcmd.CheckGit(ctx, s.runner, repoDir, "branch", "-d", branchName)
	s.observe("branch_delete", err)
	if err != nil {
		return nil, err
	}
	return &BranchDeleteResult{Success: true, DeletedBranch: branchName}, nil
}
