package golden

import (
	"context"
	"os"
	"path/filepath"

	"github.com/quarryhq/quarry/pkg/cidx"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/log"
)

// runWorkflow executes the post-clone indexing workflow: init, start,
// status, index, stop. Each step is bounded by the cidx step deadline and
// the index step tolerates the no-files sentinel. Progress is reported at
// coarse step boundaries between 50 and 85.
func (m *Manager) runWorkflow(ctx context.Context, clonePath string, forceInit bool, progress jobs.ProgressFunc) error {
	m.logger.Info().Str("path", clonePath).Bool("force_init", forceInit).Msg("Executing post-clone workflow")

	steps := []struct {
		name string
		run  func(context.Context) error
		pct  int
	}{
		{"init", func(ctx context.Context) error {
			return m.cidx.Init(ctx, clonePath, m.cfg.EmbeddingProvider, forceInit)
		}, 55},
		{"start", func(ctx context.Context) error { return m.cidx.Start(ctx, clonePath) }, 60},
		{"status", func(ctx context.Context) error { return m.cidx.Status(ctx, clonePath) }, 65},
		{"index", func(ctx context.Context) error { return m.cidx.Index(ctx, clonePath) }, 80},
		{"stop", func(ctx context.Context) error { return m.cidx.Stop(ctx, clonePath) }, 85},
	}

	for _, step := range steps {
		if err := jobs.Checkpoint(ctx); err != nil {
			return err
		}
		if err := step.run(ctx); err != nil {
			m.logger.Error().Err(err).Str("step", step.name).Str("path", clonePath).Msg("Workflow step failed")
			return err
		}
		progress(step.pct)
		m.logger.Debug().Str("step", step.name).Msg("Workflow step completed")
	}

	m.logger.Info().Str("path", clonePath).Msg("Post-clone workflow completed")
	return nil
}

// Cleaner tears down auxiliary indexing services attached to a golden
// repository before its tree is deleted. Implementations may operate on
// container-like resources; a failure must fail the owning removal job.
type Cleaner interface {
	Cleanup(ctx context.Context, clonePath string) error
}

// IndexCleaner stops the indexing services for repositories that carry a
// .code-indexer configuration and removes their index data.
type IndexCleaner struct {
	cidx *cidx.Client
}

// NewIndexCleaner creates the default cleaner over the given runner
func NewIndexCleaner(runner gitcmd.Runner) *IndexCleaner {
	return &IndexCleaner{cidx: cidx.NewClient(runner)}
}

// Cleanup stops indexing services when the repository was ever indexed.
// Repositories without a .code-indexer directory need no teardown.
func (c *IndexCleaner) Cleanup(ctx context.Context, clonePath string) error {
	configDir := filepath.Join(clonePath, ".code-indexer")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil
	}

	logger := log.WithComponent("golden")
	if err := c.cidx.Stop(ctx, clonePath); err != nil {
		return err
	}
	logger.Info().Str("path", clonePath).Msg("Completed orchestrated cleanup")
	return nil
}
