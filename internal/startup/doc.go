// Package startup handles process initialization for glimpse: environment
// configuration, data directory setup, the single-instance lock, and the
// startup/shutdown log sections.
//
// # Configuration
//
// Configuration is read from environment variables by [ResolveConfig]
// (pure) and [LoadConfig] (which also logs and prepares directories):
//
//   - GLIMPSE_DATA_DIR: data directory (default: $XDG_DATA_HOME/Glimpse or ~/.local/share/Glimpse)
//   - GLIMPSE_CONFIG: preferences file (default: <user config dir>/Glimpse/config.toml)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - LOG_HEALTH_CHECKS: log /api/health requests (default: false)
//   - RAW_WORKER_MAX_STACK: goroutine stack ceiling for RAW batches in bytes (default: 0, runtime default)
//   - THUMBNAIL_WORKERS: worker count override, read once at startup (see package workers)
//   - LOG_LEVEL, DEBUG: see package logging
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: see package memory
//
// Derived paths inside the data directory:
//
//	glimpse.db     SQLite session and label store
//	glimpse.lock   instance lock
//	cache/<id>/    per-session thumbnails and previews
//
// # Instance lock
//
// Two processes sharing one data directory would race on the cache tree, so
// [AcquireInstanceLock] takes a non-blocking advisory lock on glimpse.lock
// and fails with [ErrAlreadyRunning] when it is held elsewhere.
package startup
