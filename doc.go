// Package main runs the glimpse server, a local photo culling service.
//
// glimpse opens a folder of photos (JPEG, PNG, TIFF, WebP and camera RAW
// formats), generates thumbnails and RAW previews in the background, lets
// the user label each file adopted or rejected, and exports every file that
// was not rejected to another folder.
//
// # Application Lifecycle
//
//  1. Memory Configuration: sets GOMEMLIMIT from GOMEMLIMIT or MEMORY_LIMIT
//  2. Configuration Loading: reads the environment and prepares the data directory
//  3. Instance Lock: one process per data directory
//  4. Database Initialization: opens the SQLite session store
//  5. Imaging: starts libvips when available
//  6. Library, metrics collector and HTTP server
//  7. Graceful Shutdown on SIGINT/SIGTERM: event streams end, running
//     batches report their unstarted files as failed, the store closes
//
// # Environment Variables
//
//   - GLIMPSE_DATA_DIR: database, cache and lock location (default: user data dir + /Glimpse)
//   - GLIMPSE_CONFIG: preferences file (default: user config dir + /Glimpse/config.toml)
//   - PORT: HTTP port (default: 8080)
//   - METRICS_ENABLED: serve /metrics (default: true)
//   - LOG_HEALTH_CHECKS: log probe requests (default: false)
//   - THUMBNAIL_WORKERS: worker override for thumbnail batches
//   - RAW_WORKER_MAX_STACK: raises the goroutine stack ceiling for RAW batches (bytes, 0 = runtime default)
//   - LOG_LEVEL, DEBUG: logging verbosity
//   - GOMEMLIMIT, MEMORY_LIMIT, MEMORY_RATIO: memory limit
//
// # Build Requirements
//
// CGO is required for SQLite and libvips.
//
//	go build -o glimpse .
//	go build -o glimpsectl ./cmd/glimpsectl
package main
