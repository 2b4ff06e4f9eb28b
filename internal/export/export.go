// Package export copies or moves the photos of a folder that were not
// rejected to another folder.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"glimpse/internal/filesystem"
	"glimpse/internal/logging"
	"glimpse/internal/media"
	"glimpse/internal/metrics"
)

// Mode selects copy or move.
type Mode string

const (
	ModeCopy Mode = "copy"
	ModeMove Mode = "move"
)

var (
	// ErrInvalidMode is returned by ParseMode for anything but copy or move.
	ErrInvalidMode = errors.New("invalid export mode")
	// ErrSameFolder is returned when the destination is the source folder.
	ErrSameFolder = errors.New("destination is the source folder")
)

// ParseMode parses "copy" or "move", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeCopy:
		return ModeCopy, nil
	case ModeMove:
		return ModeMove, nil
	}
	return "", fmt.Errorf("%w: %q (want copy or move)", ErrInvalidMode, s)
}

// Failure names one file that could not be exported.
type Failure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Result counts the outcome of an export. Total is Copied + Skipped +
// Failed; Copied counts moved files in move mode.
type Result struct {
	Total    int       `json:"total"`
	Copied   int       `json:"copied"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures,omitempty"`
}

// Run exports images to dest, skipping every filename in rejected.
// Existing files at the destination are replaced. Per-file errors are
// counted in the result; only a bad destination or a cancelled ctx
// returns an error.
func Run(ctx context.Context, images []media.ImageInfo, rejected map[string]bool, dest string, mode Mode) (Result, error) {
	var result Result
	if mode != ModeCopy && mode != ModeMove {
		return result, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	destAbs, err := filepath.Abs(dest)
	if err != nil {
		return result, err
	}
	if len(images) > 0 {
		srcDir, err := filepath.Abs(filepath.Dir(filepath.FromSlash(images[0].Path)))
		if err == nil && srcDir == destAbs {
			return result, ErrSameFolder
		}
	}
	if err := os.MkdirAll(destAbs, 0o755); err != nil {
		return result, fmt.Errorf("failed to create destination %s: %w", dest, err)
	}

	start := time.Now()
	metrics.ExportRunsTotal.WithLabelValues(string(mode)).Inc()

	transfer := filesystem.CopyFile
	if mode == ModeMove {
		transfer = filesystem.MoveFile
	}

	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Total++

		if rejected[img.Filename] {
			result.Skipped++
			metrics.ExportFilesTotal.WithLabelValues(string(mode), "skipped").Inc()
			continue
		}

		src := filepath.FromSlash(img.Path)
		if err := transfer(src, filepath.Join(destAbs, img.Filename)); err != nil {
			logging.Warn("Export %s of %s failed: %v", mode, img.Filename, err)
			result.Failed++
			result.Failures = append(result.Failures, Failure{Filename: img.Filename, Error: err.Error()})
			metrics.ExportFilesTotal.WithLabelValues(string(mode), "failed").Inc()
			continue
		}
		result.Copied++
		metrics.ExportFilesTotal.WithLabelValues(string(mode), "copied").Inc()
	}

	logging.Info("Export (%s) to %s: %d exported, %d skipped, %d failed in %v",
		mode, destAbs, result.Copied, result.Skipped, result.Failed, time.Since(start).Round(time.Millisecond))
	return result, nil
}
