package server

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/golden"
	"github.com/quarryhq/quarry/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, Output: io.Discard})
	os.Exit(m.Run())
}

func TestNewBuildsComponentTree(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.jobs.Shutdown(time.Second)
		srv.broker.Stop()
		srv.store.Close()
	})

	assert.NotNil(t, srv.jobs)
	assert.NotNil(t, srv.golden)
	assert.NotNil(t, srv.activated)
	assert.NotNil(t, srv.files)
	assert.NotNil(t, srv.git)
	assert.NotNil(t, srv.listing)
	assert.NotNil(t, srv.api)

	assert.DirExists(t, cfg.GoldenReposDir())
	assert.DirExists(t, cfg.ActivatedReposDir())
}

func TestNewBoltBackend(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.JobBackend = config.JobBackendBolt

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.jobs.Shutdown(time.Second)
		srv.broker.Stop()
		srv.store.Close()
	})

	assert.FileExists(t, filepath.Join(cfg.DataDir, "jobs.db"))
}

func TestNewMaintenanceMode(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.MaintenanceMode = true

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.jobs.Shutdown(time.Second)
		srv.broker.Stop()
		srv.store.Close()
	})

	_, err = srv.golden.Add("/tmp/fixture.git", "hello", "master", "admin", golden.AddOptions{})
	assert.Error(t, err)
}
