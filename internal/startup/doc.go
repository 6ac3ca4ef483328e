// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - UPLOAD_DIR: Path to durable uploaded source files (default: /uploads)
//   - WORK_DIR: Path to per-job temp dirs and chunk staging (default: /work)
//   - OUTPUT_DIR: Path to finished compilation artifacts (default: /output)
//   - DATABASE_DIR: Path to database directory (default: /database)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - MAX_UPLOAD_SIZE: Whole-file upload ceiling in bytes (default: 4 GiB)
//   - MAX_CHUNKED_SIZE: Chunked upload ceiling in bytes (default: 2 GiB)
//   - CHUNK_SESSION_TTL: Abandoned chunk session lifetime (default: 30m)
//   - JOB_RETENTION: How long terminal jobs stay pollable (default: 5m)
//   - MAX_CONCURRENT_JOBS: Cross-job parallelism, 0 = core-based (default: 0)
//   - OUTPUT_MAX_AGE: Artifact age before the sweeper deletes it (default: 24h)
//   - SWEEP_INTERVAL: Sweeper run interval as Go duration (default: 5m)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Fraction of MEMORY_LIMIT for the Go heap (default: 0.6)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//   - COMPILE_WORKERS: Direct override for the transcode worker budget
//
// # Directory Setup
//
// The package validates and creates required directories: uploads, work,
// output, and database must all exist and be writable before the service
// accepts jobs.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
package startup
