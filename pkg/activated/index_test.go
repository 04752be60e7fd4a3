package activated

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/types"
)

func TestReindexValidation(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	var validation *types.ValidationError
	_, err := env.activated.Reindex("alice", "hello", nil, false)
	assert.ErrorAs(t, err, &validation)

	_, err = env.activated.Reindex("alice", "hello", []string{"semantic", "bogus"}, false)
	assert.ErrorAs(t, err, &validation)

	var notFound *types.NotFoundError
	_, err = env.activated.Reindex("alice", "ghost", []string{"semantic"}, false)
	assert.ErrorAs(t, err, &notFound)
}

func TestReindexRunsRequestedTypes(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	jobID, err := env.activated.Reindex("alice", "hello", []string{"semantic", "fts", "temporal"}, false)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID, "alice")
	require.Equal(t, types.JobStatusCompleted, job.Status, "reindex failed: %s", job.Error)
	assert.Equal(t, 100, job.Progress)

	argvs := env.runner.argvs()
	assert.Contains(t, argvs, "cidx index")
	assert.Contains(t, argvs, "cidx index --fts")
	assert.Contains(t, argvs, "cidx index --index-commits")
}

func TestReindexClearFlags(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	jobID, err := env.activated.Reindex("alice", "hello", []string{"fts"}, true)
	require.NoError(t, err)
	job := waitTerminal(t, env.jobs, jobID, "alice")
	require.Equal(t, types.JobStatusCompleted, job.Status)

	assert.Contains(t, env.runner.argvs(), "cidx index --fts --clear")
}

func TestReindexFailureRecordsSelfHealingFields(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		if cmd.Args[0] == "cidx" {
			return gitcmd.Result{ExitCode: 1, Stderr: "index corrupted"}, nil
		}
		return gitcmd.Result{}, nil
	}

	jobID, err := env.activated.Reindex("alice", "hello", []string{"semantic"}, false)
	require.NoError(t, err)

	job := waitTerminal(t, env.jobs, jobID, "alice")
	assert.Equal(t, types.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "index corrupted")
	assert.Equal(t, "semantic indexing failed", job.FailureReason)
}

func TestReindexRejectsConcurrentJobs(t *testing.T) {
	env := newTestEnv(t)
	env.activateOnDisk(t, "alice", "hello", "master")

	block := make(chan struct{})
	env.runner.handler = func(cmd gitcmd.Command) (gitcmd.Result, error) {
		if cmd.Args[0] == "cidx" {
			<-block
		}
		return gitcmd.Result{}, nil
	}

	first, err := env.activated.Reindex("alice", "hello", []string{"semantic"}, false)
	require.NoError(t, err)

	waitRunning(t, env.jobs, first, "alice")

	_, err = env.activated.Reindex("alice", "hello", []string{"fts"}, false)
	var conflict *types.ConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.True(t, strings.Contains(conflict.Msg, "already"))

	close(block)
	waitTerminal(t, env.jobs, first, "alice")
}
