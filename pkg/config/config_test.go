package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 20, cfg.MaxGoldenRepos)
	assert.Equal(t, int64(1<<30), cfg.MaxRepoSizeBytes)
	assert.Equal(t, JobBackendJSON, cfg.JobBackend)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "voyage-ai", cfg.EmbeddingProvider)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /var/lib/quarry
listen_addr: ":9000"
max_golden_repos: 5
job_backend: bolt
job_workers: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/quarry", cfg.DataDir)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, 5, cfg.MaxGoldenRepos)
	assert.Equal(t, JobBackendBolt, cfg.JobBackend)
	assert.Equal(t, 8, cfg.JobWorkers)
	// Untouched keys keep their defaults
	assert.Equal(t, int64(1<<30), cfg.MaxRepoSizeBytes)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero golden quota", func(c *Config) { c.MaxGoldenRepos = 0 }},
		{"negative size limit", func(c *Config) { c.MaxRepoSizeBytes = -1 }},
		{"unknown backend", func(c *Config) { c.JobBackend = "etcd" }},
		{"zero workers", func(c *Config) { c.JobWorkers = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	assert.Equal(t, filepath.Join("/data", "golden-repos"), cfg.GoldenReposDir())
	assert.Equal(t, filepath.Join("/data", "activated-repos"), cfg.ActivatedReposDir())
	assert.Equal(t, filepath.Join("/data", "jobs.json"), cfg.JobStoragePath())

	cfg.JobBackend = JobBackendBolt
	assert.Equal(t, filepath.Join("/data", "jobs.db"), cfg.JobStoragePath())
}
