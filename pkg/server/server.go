package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarryhq/quarry/pkg/activated"
	"github.com/quarryhq/quarry/pkg/api"
	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/events"
	"github.com/quarryhq/quarry/pkg/files"
	"github.com/quarryhq/quarry/pkg/gitcmd"
	"github.com/quarryhq/quarry/pkg/gitops"
	"github.com/quarryhq/quarry/pkg/golden"
	"github.com/quarryhq/quarry/pkg/jobs"
	"github.com/quarryhq/quarry/pkg/listing"
	"github.com/quarryhq/quarry/pkg/log"
	"github.com/quarryhq/quarry/pkg/resources"
	"github.com/quarryhq/quarry/pkg/storage"
)

// pruneInterval is how often terminal jobs past retention are removed
const pruneInterval = time.Hour

// Server wires the managers, the job engine, the stores and the REST
// adaptor into one process.
type Server struct {
	cfg       *config.Config
	store     storage.JobStore
	broker    *events.Broker
	jobs      *jobs.Manager
	golden    *golden.Manager
	activated *activated.Manager
	files     *files.Service
	git       *gitops.Service
	listing   *listing.Service
	api       *api.Server
	logger    zerolog.Logger
}

// New builds the full component tree from configuration
func New(cfg *config.Config) (*Server, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	var store storage.JobStore
	switch cfg.JobBackend {
	case config.JobBackendBolt:
		boltStore, err := storage.NewBoltStore(cfg.JobStoragePath())
		if err != nil {
			return nil, err
		}
		store = boltStore
	default:
		store = storage.NewFileStore(cfg.JobStoragePath())
	}

	broker := events.NewBroker()
	broker.Start()

	runner := gitcmd.NewExecRunner()

	jobManager, err := jobs.NewManager(store, cfg.JobWorkers, broker)
	if err != nil {
		return nil, err
	}
	jobManager.SetMaintenanceMode(cfg.MaintenanceMode)

	goldenManager, err := golden.NewManager(cfg, jobManager, runner, nil, broker)
	if err != nil {
		return nil, err
	}

	activatedManager, err := activated.NewManager(cfg, goldenManager, jobManager, runner, broker)
	if err != nil {
		return nil, err
	}

	fileService := files.NewService(activatedManager)
	gitService := gitops.NewService(cfg, activatedManager, runner)
	listingService := listing.NewService(goldenManager, activatedManager, jobManager)

	return &Server{
		cfg:       cfg,
		store:     store,
		broker:    broker,
		jobs:      jobManager,
		golden:    goldenManager,
		activated: activatedManager,
		files:     fileService,
		git:       gitService,
		listing:   listingService,
		api:       api.NewServer(goldenManager, activatedManager, jobManager, fileService, gitService, listingService),
		logger:    log.WithComponent("server"),
	}, nil
}

// Run serves the API until a shutdown signal arrives, then drains
// within the configured budget.
func (s *Server) Run() error {
	httpServer := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.api.Router(),
	}

	pruneStop := make(chan struct{})
	go s.pruneLoop(pruneStop)

	shutdown := resources.NewShutdownHandler(s.cfg.ShutdownTimeout)
	shutdown.Register("http", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("HTTP server shutdown failed")
		}
	})
	shutdown.Register("prune-loop", func() { close(pruneStop) })
	shutdown.Register("jobs", func() { s.jobs.Shutdown(10 * time.Second) })
	shutdown.Register("events", s.broker.Stop)
	shutdown.Register("store", func() {
		if err := s.store.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("Job store close failed")
		}
	})

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	done := make(chan struct{})
	go func() {
		shutdown.Listen()
		close(done)
	}()

	select {
	case err := <-errCh:
		shutdown.Trigger()
		return err
	case <-done:
		return nil
	}
}

// pruneLoop periodically removes terminal jobs past the retention period
func (s *Server) pruneLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.jobs.Prune(s.cfg.JobRetentionPeriod)
		case <-stop:
			return
		}
	}
}
