package media

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"glimpse/internal/filesystem"
	"glimpse/internal/logging"
	"glimpse/internal/mediatypes"
	"glimpse/internal/metrics"
)

// ScanFolder lists the supported images directly inside dir, sorted by
// filename. Subdirectories are not entered. A file whose metadata cannot
// be read is still listed, with ModTimeUnknown as its timestamp.
func ScanFolder(dir string) ([]ImageInfo, error) {
	start := time.Now()

	retry := filesystem.DefaultRetryConfig()
	entries, err := filesystem.ReadDirWithRetry(dir, retry)
	if err != nil {
		metrics.ScannerOperationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read folder %s: %w", dir, err)
	}

	images := make([]ImageInfo, 0, len(entries))
	var standard, rawCount int

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		fileType := mediatypes.Classify(name)
		if fileType == mediatypes.FileTypeOther {
			continue
		}

		full := filepath.Join(dir, name)
		info := ImageInfo{
			Filename:   name,
			Path:       NormalizePath(full),
			MimeType:   mediatypes.GetMimeType(name),
			ModifiedAt: ModTimeUnknown,
		}

		fi, err := filesystem.StatWithRetry(full, retry)
		if err != nil {
			logging.Debug("Scanner: metadata unavailable for %s: %v", name, err)
		} else {
			// Stat follows symlinks; links to directories are dropped here.
			if !fi.Mode().IsRegular() {
				continue
			}
			info.Size = fi.Size()
			info.ModifiedAt = fi.ModTime().Local().Format(ModTimeLayout)
		}

		if fileType == mediatypes.FileTypeRaw {
			rawCount++
		} else {
			standard++
		}
		images = append(images, info)
	}

	sort.Slice(images, func(i, j int) bool {
		return images[i].Filename < images[j].Filename
	})

	metrics.ScannerOperationsTotal.WithLabelValues("success").Inc()
	metrics.ScannerOperationDuration.Observe(time.Since(start).Seconds())
	metrics.ScannerItemsReturned.WithLabelValues("image").Observe(float64(standard))
	metrics.ScannerItemsReturned.WithLabelValues("raw").Observe(float64(rawCount))

	logging.Debug("Scanner: %s has %d images (%d RAW) in %v", dir, len(images), rawCount, time.Since(start))
	return images, nil
}
