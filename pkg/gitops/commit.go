package gitops

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/types"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)
)

// Trailer keys reserved by the service. User-supplied lines starting
// with these are stripped before the real trailers are appended.
const (
	trailerAuthor = "Actual-Author:"
	trailerVia    = "Committed-Via:"
	viaValue      = "CIDX API"
)

// CommitResult is returned by Commit
type CommitResult struct {
	Success    bool   `json:"success"`
	CommitHash string `json:"commit_hash"`
	Message    string `json:"message"`
	Author     string `json:"author"`
	Committer  string `json:"committer"`
}

// SanitizeCommitMessage strips pre-existing attribution trailer lines so
// clients cannot forge them.
func SanitizeCommitMessage(message string) string {
	var kept []string
	for _, line := range strings.Split(message, "\n") {
		if strings.HasPrefix(line, trailerAuthor) || strings.HasPrefix(line, trailerVia) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// AttributedMessage appends the attribution trailers to a sanitized message
func AttributedMessage(message, authorEmail string) string {
	return fmt.Sprintf("%s\n\n%s %s\n%s %s",
		SanitizeCommitMessage(message), trailerAuthor, authorEmail, trailerVia, viaValue)
}

// validateAuthor checks the author email and derives/validates the name
func validateAuthor(authorEmail, authorName string) (string, error) {
	if !emailPattern.MatchString(authorEmail) {
		return "", &types.ValidationError{Msg: fmt.Sprintf("invalid email format: %s", authorEmail)}
	}
	if authorName == "" {
		authorName = strings.SplitN(authorEmail, "@", 2)[0]
	}
	if !namePattern.MatchString(authorName) {
		return "", &types.ValidationError{Msg: fmt.Sprintf("invalid author name format: %s", authorName)}
	}
	return authorName, nil
}

// Commit creates a commit with dual attribution: the authenticated user
// is the git author, the service identity from configuration is the
// committer, and the message carries Actual-Author / Committed-Via
// trailers for the audit trail.
func (s *Service) Commit(ctx context.Context, repoAlias, username, message, authorEmail, authorName string) (*CommitResult, error) {
	authorName, err := validateAuthor(authorEmail, authorName)
	if err != nil {
		return nil, err
	}

	repoDir, err := s.repoDir(username, repoAlias)
	if err != nil {
		return nil, err
	}

	attributed := AttributedMessage(message, authorEmail)

	result, err := s.runner.Run(ctx, gitcmd.Command{
		Args: []string{"git", "commit", "-m", attributed},
		Dir:  repoDir,
		Env: []string{
			"GIT_AUTHOR_NAME=" + authorName,
			"GIT_AUTHOR_EMAIL=" + authorEmail,
			"GIT_COMMITTER_NAME=" + s.committerName,
			"GIT_COMMITTER_EMAIL=" + s.committerEmail,
		},
		Timeout: gitcmd.LocalTimeout,
	})
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, &types.GitCommandError{
			Msg:      "git commit failed",
			Command:  []string{"git", "commit", "-m", "<message>"},
			Dir:      repoDir,
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}

	hashResult, err := gitcmd.CheckGit(ctx, s.runner, repoDir, "rev-parse", "HEAD")
	if err != nil {
		return nil, err
	}

	return &CommitResult{
		Success:    true,
		CommitHash: strings.TrimSpace(hashResult.Stdout),
		Message:    message,
		Author:     authorEmail,
		Committer:  s.committerEmail,
	}, nil
}
