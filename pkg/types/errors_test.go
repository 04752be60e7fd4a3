package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGitCommandErrorCarriesContext(t *testing.T) {
	err := &GitCommandError{
		Msg:      "git clone failed",
		Command:  []string{"git", "clone", "--depth=1", "url", "dest"},
		Dir:      "/data/golden-repos",
		ExitCode: 128,
		Stderr:   "fatal: repository not found",
	}

	s := err.Error()
	assert.Contains(t, s, "git clone failed")
	assert.Contains(t, s, "git clone --depth=1 url dest")
	assert.Contains(t, s, "/data/golden-repos")
	assert.Contains(t, s, "128")
	assert.Contains(t, s, "repository not found")
}

func TestCleanupErrorUnwraps(t *testing.T) {
	cause := errors.New("permission denied")
	err := &CleanupError{Msg: "failed to remove tree", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestErrorKindsMatchThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("activation failed: %w", &NotFoundError{Resource: "golden repository", Name: "x"})

	var notFound *NotFoundError
	assert.ErrorAs(t, wrapped, &notFound)
	assert.Equal(t, "x", notFound.Name)
}

func TestJobStatusTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.True(t, JobStatusCancelled.Terminal())
	assert.False(t, JobStatusPending.Terminal())
	assert.False(t, JobStatusRunning.Terminal())
	assert.False(t, JobStatusResolvingPrerequisites.Terminal())
}

func TestJobCloneIsIndependent(t *testing.T) {
	job := &Job{
		JobID:         "j1",
		Result:        map[string]any{"k": "v"},
		ClaudeActions: []string{"a"},
	}

	cp := job.Clone()
	cp.Result["k"] = "changed"
	cp.ClaudeActions[0] = "b"

	assert.Equal(t, "v", job.Result["k"])
	assert.Equal(t, "a", job.ClaudeActions[0])
}
