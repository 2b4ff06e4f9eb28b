package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	for _, status := range []string{"success", "error"} {
		ScannerOperationsTotal.WithLabelValues(status)
	}
	for _, t := range []string{"image", "raw"} {
		ScannerItemsReturned.WithLabelValues(t)
	}

	for _, asset := range []string{"thumbnail", "preview"} {
		ThumbnailCacheHits.WithLabelValues(asset)
		ThumbnailCacheMisses.WithLabelValues(asset)
		for _, source := range []string{"image", "raw"} {
			ThumbnailGenerationDuration.WithLabelValues(asset, source)
			for _, status := range []string{"success", "error_decode", "error_encode", "error_io"} {
				ThumbnailGenerationsTotal.WithLabelValues(asset, source, status)
			}
		}
	}

	for _, method := range []string{"sensor", "vips", "embedded"} {
		RawDecodeDuration.WithLabelValues(method)
		RawDecodeTotal.WithLabelValues(method, "success")
		RawDecodeTotal.WithLabelValues(method, "error")
	}

	for _, status := range []string{"success", "failed"} {
		SchedulerFilesTotal.WithLabelValues(status)
	}

	for _, mode := range []string{"copy", "move"} {
		ExportRunsTotal.WithLabelValues(mode)
		for _, result := range []string{"copied", "skipped", "failed"} {
			ExportFilesTotal.WithLabelValues(mode, result)
		}
	}

	for _, op := range []string{"stat", "open", "readdir", "read"} {
		for _, vol := range []string{"cache", "data", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, op := range []string{"initialize_schema", "get_or_create_session", "get_session", "list_sessions",
		"update_last_selected", "delete_session", "clear_all_sessions", "set_label", "get_label", "get_labels",
		"get_rejected", "clear_all_labels", "count_labels", "count_sessions", "set_thumbnail_cache",
		"get_thumbnail_cache", "clear_thumbnail_cache"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
