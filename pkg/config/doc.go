/*
Package config loads and validates the Quarry server configuration.

Configuration starts from built-in defaults, is optionally overlaid with
a YAML file, and is finally overridden by CLI flags in cmd/quarry. One
validated Config value is passed to every component at construction; no
component reads configuration from globals or the environment.

# Architecture

	defaults ──► YAML file (optional) ──► flag overrides ──► Validate
	                                                             │
	                                                             ▼
	                                                  Config → pkg/server

# Configuration Surface

	data_dir                  root of all durable state
	                          (default ~/.quarry-server/data)
	listen_addr               API listen address (default :8090)
	log_level / log_json      logging (debug|info|warn|error, JSON flag)

	max_golden_repos          golden repository count quota (default 20)
	max_repo_size_bytes       size quota at registration (default 1 GiB)

	embedding_provider        passed to cidx init (default voyage-ai)

	service_committer_name    git committer identity for API commits
	service_committer_email

	job_backend               "json" or "bolt" (default json)
	job_workers               worker pool size (default 4)

	shutdown_timeout          total cleanup budget (default 30s)
	memory_leak_limit_mb      scope leak-warning threshold (default 50)
	maintenance_mode          reject new job submissions when true
	job_retention_period      prune terminal jobs older than this
	                          (default 24h)

# Derived Paths

Everything durable lives under data_dir:

	<data_dir>/golden-repos/           GoldenReposDir()
	<data_dir>/activated-repos/        ActivatedReposDir()
	<data_dir>/jobs.json or jobs.db    JobStoragePath() per backend

# Usage

	// Defaults only
	cfg := config.Default()

	// Defaults + file
	cfg, err := config.Load("/etc/quarry/config.yaml")

	// Flag overrides happen in cmd/quarry after Load
	cfg.DataDir = dataDirFlag

A minimal configuration file:

	data_dir: /var/lib/quarry
	listen_addr: ":9000"
	job_backend: bolt
	job_workers: 8
	service_committer_email: quarry@example.com

Unset keys keep their defaults; Load fails on unreadable files,
malformed YAML, and validation errors.

# Validation

Validate enforces the structural invariants before any component is
built:

  - data_dir must not be empty
  - max_golden_repos and max_repo_size_bytes must be positive
  - job_backend must be "json" or "bolt"
  - job_workers must be positive

# Integration Points

This package integrates with:

  - cmd/quarry: flag definitions and Load at startup
  - pkg/server: the single construction-time consumer
  - pkg/golden, pkg/activated: quotas, provider, data paths
  - pkg/gitops: the service committer identity
  - pkg/jobs, pkg/storage: backend selection and worker count

# Design Patterns

Explicit value, no globals:
  - The Config pointer is threaded through constructors; tests build
    their own with config.Default() and a t.TempDir() data dir

Defaults first:
  - Default() returns a complete, valid configuration; files and
    flags only override, so partial files are always safe

# Precedence

From weakest to strongest:

 1. built-in defaults (config.Default)
 2. the YAML file named by --config
 3. CLI flags (--data-dir, --listen-addr)

A flag left empty never clobbers a file value; cmd/quarry only applies
non-empty overrides.

# Troubleshooting

"failed to parse config file":
  - Cause: malformed YAML or a type mismatch (for example a string
    where an integer is expected)
  - Check: the reported line in the wrapped yaml error

"job_backend must be …":
  - Cause: a backend name other than json or bolt
  - Solution: pick one of the two; there is no third backend

Server writes to an unexpected directory:
  - Check precedence: a non-empty --data-dir flag beats the file,
    which beats the default under the home directory

# Best Practices

  - Keep one file per environment and pass it with --config; reserve
    flags for ad-hoc overrides
  - Set service_committer_name/email explicitly in any real
    deployment so API commits carry a meaningful committer identity
  - Leave maintenance_mode false in files; flip it only for planned
    windows, since it rejects every new job submission

# See Also

  - cmd/quarry for the flag surface
  - pkg/server for how the value fans out
*/
package config
