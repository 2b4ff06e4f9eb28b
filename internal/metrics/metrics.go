package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glimpse_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Scanner metrics
var (
	ScannerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_scanner_operations_total",
			Help: "Total number of folder scans",
		},
		[]string{"status"},
	)

	ScannerOperationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glimpse_scanner_operation_duration_seconds",
			Help:    "Folder scan duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	ScannerItemsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_scanner_items_returned",
			Help:    "Number of photos returned by a folder scan",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"type"}, // "image", "raw"
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_thumbnail_generations_total",
			Help: "Total number of derived assets generated",
		},
		[]string{"asset", "source", "status"}, // asset: thumbnail|preview, source: image|raw
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_thumbnail_generation_duration_seconds",
			Help:    "Derived asset generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"asset", "source"},
	)

	ThumbnailCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_thumbnail_cache_hits_total",
			Help: "Total number of derived assets already present on disk",
		},
		[]string{"asset"},
	)

	ThumbnailCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_thumbnail_cache_misses_total",
			Help: "Total number of derived assets that had to be generated",
		},
		[]string{"asset"},
	)

	ThumbnailCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_thumbnail_cache_size_bytes",
			Help: "Total size of the thumbnail cache in bytes",
		},
	)
)

// RAW decoder metrics
var (
	RawDecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_raw_decode_total",
			Help: "Total number of RAW decode attempts by method",
		},
		[]string{"method", "status"}, // method: sensor|vips|embedded
	)

	RawDecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_raw_decode_duration_seconds",
			Help:    "RAW decode duration in seconds by method",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method"},
	)
)

// Scheduler metrics
var (
	SchedulerBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_scheduler_batches_total",
			Help: "Total number of thumbnail batches started",
		},
	)

	SchedulerBatchesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_scheduler_batches_in_flight",
			Help: "Number of thumbnail batches currently running",
		},
	)

	SchedulerWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_scheduler_workers",
			Help: "Worker pool size of the most recently started batch",
		},
	)

	SchedulerFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_scheduler_files_total",
			Help: "Total number of files completed by the scheduler",
		},
		[]string{"status"}, // "success", "failed"
	)

	SchedulerWorkerPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_scheduler_worker_panics_total",
			Help: "Total number of recovered panics in thumbnail workers",
		},
	)

	SchedulerBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "glimpse_scheduler_batch_duration_seconds",
			Help:    "Thumbnail batch duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

// Library metrics
var (
	SessionsOpenedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_sessions_opened_total",
			Help: "Total number of folder opens",
		},
	)

	LabelWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_label_writes_total",
			Help: "Total number of label writes by label value",
		},
		[]string{"label"}, // "none" for clears
	)

	SessionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_sessions",
			Help: "Number of stored sessions",
		},
	)

	LabelsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_labels",
			Help: "Number of stored labels",
		},
	)
)

// Export metrics
var (
	ExportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_export_runs_total",
			Help: "Total number of export runs",
		},
		[]string{"mode"},
	)

	ExportFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_export_files_total",
			Help: "Total number of files handled by exports",
		},
		[]string{"mode", "result"}, // result: copied|skipped|failed
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after a retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glimpse_filesystem_stale_errors_total",
			Help: "Total number of stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glimpse_filesystem_retry_duration_seconds",
			Help:    "Duration of retried filesystem operations in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "glimpse_memory_paused",
			Help: "Whether RAW workers are paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "glimpse_memory_gc_pauses_total",
			Help: "Total number of times workers were paused for memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "glimpse_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
