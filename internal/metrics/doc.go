// Package metrics provides Prometheus instrumentation for glimpse.
//
// All metrics are prefixed with "glimpse_" and registered on the default
// registry through promauto, so importing the package is enough to expose
// them on /metrics.
//
// # Metric Categories
//
//   - HTTP: request counts, latency and in-flight gauge for the JSON API
//   - Database: per-operation query counts and latency, SQLite file sizes
//   - Scanner: folder scans and photos returned per scan
//   - Thumbnail: generated assets by asset kind (thumbnail/preview) and source
//     (image/raw), cache hits and misses, cache size
//   - RAW: decode attempts and latency per decode method
//   - Scheduler: batches, worker pool size, per-file outcomes, recovered panics
//   - Library: folder opens, label writes, stored session and label counts
//   - Export: runs and per-file outcomes by mode
//   - Filesystem: stale-handle retries on network mounts
//   - Memory: usage ratio and backpressure pauses for RAW workers
//
// The Collector refreshes the slow-moving gauges (sessions, labels, cache
// size, database file sizes) on an interval.
package metrics
