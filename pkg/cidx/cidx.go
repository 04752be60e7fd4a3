package cidx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/log"
)

// StepTimeout bounds each cidx invocation
const StepTimeout = 5 * time.Minute

// NoFilesSentinel marks the tolerated "nothing to index" outcome of the
// index step. Any other nonzero exit fails the workflow.
const NoFilesSentinel = "No files found to index"

// Client wraps the external cidx indexing CLI
type Client struct {
	runner gitcmd.Runner
	logger zerolog.Logger
}

// NewClient creates a cidx client over the given runner
func NewClient(runner gitcmd.Runner) *Client {
	return &Client{
		runner: runner,
		logger: log.WithComponent("cidx"),
	}
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (gitcmd.Result, error) {
	return c.runner.Run(ctx, gitcmd.Command{
		Args:    append([]string{"cidx"}, args...),
		Dir:     dir,
		Timeout: StepTimeout,
	})
}

func (c *Client) runChecked(ctx context.Context, dir string, args ...string) error {
	result, err := c.run(ctx, dir, args...)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("cidx %s failed with code %d: %s", args[0], result.ExitCode,
			strings.TrimSpace(result.Combined()))
	}
	return nil
}

// Init initializes the index configuration in dir
func (c *Client) Init(ctx context.Context, dir, embeddingProvider string, force bool) error {
	args := []string{"init", "--embedding-provider", embeddingProvider}
	if force {
		args = append(args, "--force")
	}
	return c.runChecked(ctx, dir, args...)
}

// Start brings up the indexing services for dir
func (c *Client) Start(ctx context.Context, dir string) error {
	return c.runChecked(ctx, dir, "start")
}

// Status performs an indexing service health check
func (c *Client) Status(ctx context.Context, dir string) error {
	return c.runChecked(ctx, dir, "status")
}

// Index runs the indexer. A nonzero exit is tolerated only when the
// combined output carries the no-files sentinel.
func (c *Client) Index(ctx context.Context, dir string) error {
	result, err := c.run(ctx, dir, "index")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		if strings.Contains(result.Combined(), NoFilesSentinel) {
			c.logger.Warn().Str("dir", dir).Msg("Repository has no indexable files")
			return nil
		}
		return fmt.Errorf("cidx index failed with code %d: %s", result.ExitCode,
			strings.TrimSpace(result.Combined()))
	}
	return nil
}

// Stop shuts down the indexing services for dir
func (c *Client) Stop(ctx context.Context, dir string) error {
	return c.runChecked(ctx, dir, "stop")
}

// FixConfig rewrites internal paths in .code-indexer/config.json after a
// repository has been copied to a new location
func (c *Client) FixConfig(ctx context.Context, dir string) error {
	return c.runChecked(ctx, dir, "fix-config", "--force")
}
