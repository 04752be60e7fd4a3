package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Job storage backends
const (
	JobBackendJSON = "json"
	JobBackendBolt = "bolt"
)

// Config holds the full server configuration
type Config struct {
	DataDir    string `yaml:"data_dir"`
	ListenAddr string `yaml:"listen_addr"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`

	// Golden repository quotas
	MaxGoldenRepos   int   `yaml:"max_golden_repos"`
	MaxRepoSizeBytes int64 `yaml:"max_repo_size_bytes"`

	// Indexing tool settings
	EmbeddingProvider string `yaml:"embedding_provider"`

	// Service identity used as git committer on API commits
	ServiceCommitterName  string `yaml:"service_committer_name"`
	ServiceCommitterEmail string `yaml:"service_committer_email"`

	// Background job engine
	JobBackend string `yaml:"job_backend"`
	JobWorkers int    `yaml:"job_workers"`

	// Resource discipline
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MemoryLeakLimitMB  float64       `yaml:"memory_leak_limit_mb"`
	MaintenanceMode    bool          `yaml:"maintenance_mode"`
	JobRetentionPeriod time.Duration `yaml:"job_retention_period"`
}

// Default returns the configuration used when no file is supplied
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		DataDir:               filepath.Join(home, ".quarry-server", "data"),
		ListenAddr:            ":8090",
		LogLevel:              "info",
		MaxGoldenRepos:        20,
		MaxRepoSizeBytes:      1 << 30, // 1 GiB
		EmbeddingProvider:     "voyage-ai",
		ServiceCommitterName:  "Quarry Service",
		ServiceCommitterEmail: "service@quarry.local",
		JobBackend:            JobBackendJSON,
		JobWorkers:            4,
		ShutdownTimeout:       30 * time.Second,
		MemoryLeakLimitMB:     50,
		JobRetentionPeriod:    24 * time.Hour,
	}
}

// Load reads a YAML configuration file on top of the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.MaxGoldenRepos <= 0 {
		return fmt.Errorf("max_golden_repos must be positive, got %d", c.MaxGoldenRepos)
	}
	if c.MaxRepoSizeBytes <= 0 {
		return fmt.Errorf("max_repo_size_bytes must be positive, got %d", c.MaxRepoSizeBytes)
	}
	if c.JobBackend != JobBackendJSON && c.JobBackend != JobBackendBolt {
		return fmt.Errorf("job_backend must be %q or %q, got %q", JobBackendJSON, JobBackendBolt, c.JobBackend)
	}
	if c.JobWorkers <= 0 {
		return fmt.Errorf("job_workers must be positive, got %d", c.JobWorkers)
	}
	return nil
}

// GoldenReposDir returns the root directory for golden repository clones
func (c *Config) GoldenReposDir() string {
	return filepath.Join(c.DataDir, "golden-repos")
}

// ActivatedReposDir returns the root directory for activated repositories
func (c *Config) ActivatedReposDir() string {
	return filepath.Join(c.DataDir, "activated-repos")
}

// JobStoragePath returns the path for the selected job persistence backend
func (c *Config) JobStoragePath() string {
	if c.JobBackend == JobBackendBolt {
		return filepath.Join(c.DataDir, "jobs.db")
	}
	return filepath.Join(c.DataDir, "jobs.json")
}
