package cidx

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

// fakeRunner records commands and replays scripted results
type fakeRunner struct {
	calls   []gitcmd.Command
	results []gitcmd.Result
}

func (r *fakeRunner) Run(ctx context.Context, cmd gitcmd.Command) (gitcmd.Result, error) {
	r.calls = append(r.calls, cmd)
	if len(r.results) == 0 {
		return gitcmd.Result{}, nil
	}
	result := r.results[0]
	r.results = r.results[1:]
	return result, nil
}

func TestInitBuildsArgs(t *testing.T) {
	runner := &fakeRunner{}
	client := NewClient(runner)

	require.NoError(t, client.Init(context.Background(), "/repo", "voyage-ai", false))
	assert.Equal(t, []string{"cidx", "init", "--embedding-provider", "voyage-ai"}, runner.calls[0].Args)
	assert.Equal(t, "/repo", runner.calls[0].Dir)

	require.NoError(t, client.Init(context.Background(), "/repo", "voyage-ai", true))
	assert.Equal(t, []string{"cidx", "init", "--embedding-provider", "voyage-ai", "--force"}, runner.calls[1].Args)
}

func TestIndexToleratesNoFilesSentinel(t *testing.T) {
	runner := &fakeRunner{results: []gitcmd.Result{
		{ExitCode: 1, Stdout: "scanning...\nNo files found to index\n"},
	}}
	client := NewClient(runner)

	assert.NoError(t, client.Index(context.Background(), "/repo"))
}

func TestIndexFailsOnRealError(t *testing.T) {
	runner := &fakeRunner{results: []gitcmd.Result{
		{ExitCode: 2, Stderr: "embedding provider unreachable"},
	}}
	client := NewClient(runner)

	err := client.Index(context.Background(), "/repo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding provider unreachable")
}

func TestSentinelSeenOnStderr(t *testing.T) {
	runner := &fakeRunner{results: []gitcmd.Result{
		{ExitCode: 1, Stderr: "No files found to index"},
	}}
	client := NewClient(runner)

	assert.NoError(t, client.Index(context.Background(), "/repo"))
}

func TestStepFailurePropagates(t *testing.T) {
	runner := &fakeRunner{results: []gitcmd.Result{
		{ExitCode: 1, Stderr: "daemon not running"},
	}}
	client := NewClient(runner)

	err := client.Start(context.Background(), "/repo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cidx start failed")
}

func TestFixConfigArgs(t *testing.T) {
	runner := &fakeRunner{}
	client := NewClient(runner)

	require.NoError(t, client.FixConfig(context.Background(), "/repo"))
	assert.Equal(t, []string{"cidx", "fix-config", "--force"}, runner.calls[0].Args)
}
