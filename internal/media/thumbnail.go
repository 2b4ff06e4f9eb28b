package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"glimpse/internal/database"
	"glimpse/internal/filesystem"
	"glimpse/internal/logging"
	"glimpse/internal/mediatypes"
	"glimpse/internal/memory"
	"glimpse/internal/metrics"
	"glimpse/internal/raw"
)

// CacheRecorder stores the secondary index of generated assets.
type CacheRecorder interface {
	SetThumbnailCache(ctx context.Context, entry database.ThumbnailCacheEntry) error
}

// ThumbnailGenerator derives thumbnails and RAW previews. It holds no
// per-file state and is safe for concurrent use.
type ThumbnailGenerator struct {
	decoder  *raw.Decoder
	recorder CacheRecorder
	monitor  *memory.Monitor
}

// NewThumbnailGenerator creates a generator. A nil decoder gets the default
// RAW decoder (with the libvips fallback when available); recorder and
// monitor may be nil.
func NewThumbnailGenerator(decoder *raw.Decoder, recorder CacheRecorder, monitor *memory.Monitor) *ThumbnailGenerator {
	if decoder == nil {
		decoder = raw.NewDecoder(RawFallback())
	}
	return &ThumbnailGenerator{
		decoder:  decoder,
		recorder: recorder,
		monitor:  monitor,
	}
}

// RawFallback returns LoadRawWithVips when libvips is running, else nil.
func RawFallback() raw.Fallback {
	if IsVipsAvailable() {
		return LoadRawWithVips
	}
	return nil
}

// Request names one source image and where its assets go.
type Request struct {
	SessionID string
	Image     ImageInfo
	Dirs      CacheDirs
}

// Output holds the normalized asset paths of one image. PreviewPath is set
// only for RAW sources whose preview exists.
type Output struct {
	ThumbnailPath string
	PreviewPath   string
	// Generated is false when every asset was already cached.
	Generated bool
}

// Generate makes sure the thumbnail (and, for RAW sources, the preview)
// of req.Image exists. Existing files are never rewritten. The returned
// error describes a thumbnail failure; a failed preview is logged and
// leaves Output.PreviewPath empty.
func (g *ThumbnailGenerator) Generate(ctx context.Context, req Request) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	filename := req.Image.Filename
	srcPath := filepath.FromSlash(req.Image.Path)
	isRaw := mediatypes.IsRaw(filename)
	source := sourceLabel(isRaw)

	thumbPath := req.Dirs.ThumbnailPath(filename)
	previewPath := req.Dirs.PreviewPath(filename)

	needThumb := !g.cached(AssetThumbnail, thumbPath)
	needPreview := isRaw && !g.cached(AssetPreview, previewPath)

	out := Output{ThumbnailPath: NormalizePath(thumbPath)}
	if isRaw && !needPreview {
		out.PreviewPath = NormalizePath(previewPath)
	}
	if !needThumb && !needPreview {
		return out, nil
	}
	out.Generated = true

	start := time.Now()
	img, err := g.decode(ctx, srcPath, isRaw)
	if err != nil {
		if needThumb {
			recordGeneration(AssetThumbnail, source, start, err)
		}
		if needPreview {
			recordGeneration(AssetPreview, source, start, err)
		}
		if needThumb {
			return Output{}, err
		}
		logging.Warn("Failed to generate preview for %s: %v", filename, err)
		return out, nil
	}

	if needThumb {
		err := writeJPEG(thumbPath, img, ThumbnailSize, ThumbnailQuality)
		recordGeneration(AssetThumbnail, source, start, err)
		if err != nil {
			return Output{}, err
		}
	}

	if needPreview {
		err := writeJPEG(previewPath, img, PreviewSize, PreviewQuality)
		recordGeneration(AssetPreview, source, start, err)
		if err != nil {
			logging.Warn("Failed to generate preview for %s: %v", filename, err)
		} else {
			out.PreviewPath = NormalizePath(previewPath)
		}
	}

	g.record(ctx, req, srcPath, out)
	logging.Debug("Generated assets for %s in %v", filename, time.Since(start))
	return out, nil
}

func (g *ThumbnailGenerator) cached(asset Asset, path string) bool {
	if filesystem.Exists(path) {
		metrics.ThumbnailCacheHits.WithLabelValues(string(asset)).Inc()
		return true
	}
	metrics.ThumbnailCacheMisses.WithLabelValues(string(asset)).Inc()
	return false
}

func (g *ThumbnailGenerator) decode(ctx context.Context, path string, isRaw bool) (image.Image, error) {
	if !isRaw {
		return LoadImage(path)
	}
	if err := g.monitor.WaitIfPaused(ctx); err != nil {
		return nil, err
	}
	img, info, err := g.decoder.Decode(path)
	if err != nil {
		return nil, err
	}
	logging.Debug("Decoded RAW %s via %s (%s %s)", filepath.Base(path), info.Method, info.Make, info.Model)
	return img, nil
}

// record writes the secondary cache index. Failures are logged only: the
// files on disk are the source of truth. No row is written once the
// session itself has been cleared.
func (g *ThumbnailGenerator) record(ctx context.Context, req Request, srcPath string, out Output) {
	if g.recorder == nil || req.SessionID == "" {
		return
	}

	entry := database.ThumbnailCacheEntry{
		SessionID:   req.SessionID,
		Filename:    req.Image.Filename,
		CachePath:   out.ThumbnailPath,
		PreviewPath: out.PreviewPath,
	}
	if fi, err := filesystem.StatWithRetry(srcPath, filesystem.DefaultRetryConfig()); err == nil {
		entry.OriginalModified = fi.ModTime()
	}
	err := g.recorder.SetThumbnailCache(ctx, entry)
	switch {
	case errors.Is(err, database.ErrSessionNotFound):
		logging.Debug("Session %s was cleared, not indexing %s", req.SessionID, req.Image.Filename)
	case err != nil:
		logging.Warn("Failed to record thumbnail cache for %s: %v", req.Image.Filename, err)
	}
}

// ErrorKind classifies a generation error as "decode", "encode" or "io".
func ErrorKind(err error) string {
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, raw.ErrRawProcessing) && !errors.As(err, &pathErr):
		return "decode"
	}
	return "io"
}

func recordGeneration(asset Asset, source string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error_" + ErrorKind(err)
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues(string(asset), source, status).Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(string(asset), source).Observe(time.Since(start).Seconds())
}

func sourceLabel(isRaw bool) string {
	if isRaw {
		return "raw"
	}
	return "image"
}

// ClearSessionCache removes a session's cache directory and recreates the
// empty thumbnail and preview folders.
func ClearSessionCache(dirs CacheDirs) error {
	base := filepath.Dir(dirs.Thumbnails)
	if err := os.RemoveAll(base); err != nil {
		return fmt.Errorf("failed to remove cache %s: %w", base, err)
	}
	return EnsureCacheDirs(dirs)
}

// EnsureCacheDirs creates the thumbnail and preview folders.
func EnsureCacheDirs(dirs CacheDirs) error {
	for _, dir := range []string{dirs.Thumbnails, dirs.Previews} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create cache dir %s: %w", dir, err)
		}
	}
	return nil
}
