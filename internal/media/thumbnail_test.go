package media

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"glimpse/internal/database"
	"glimpse/internal/raw"
)

type fakeRecorder struct {
	mu      sync.Mutex
	entries []database.ThumbnailCacheEntry
	err     error
}

func (f *fakeRecorder) SetThumbnailCache(_ context.Context, entry database.ThumbnailCacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

// writeFakeRaw writes a RAW-named file that only carries an embedded JPEG
// preview, which the RAW decoder falls back to.
func writeFakeRaw(t *testing.T, path string, width, height int) {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height)), nil); err != nil {
		t.Fatal(err)
	}
	data := append([]byte("vendor raw header"), buf.Bytes()...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestGenerator(recorder CacheRecorder) *ThumbnailGenerator {
	return NewThumbnailGenerator(raw.NewDecoder(nil), recorder, nil)
}

func request(dir, cacheRoot, filename string) Request {
	return Request{
		SessionID: "session",
		Image:     ImageInfo{Filename: filename, Path: NormalizePath(filepath.Join(dir, filename))},
		Dirs:      SessionCacheDirs(cacheRoot, "session"),
	}
}

func jpegSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(filepath.FromSlash(path))
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("%s is not a JPEG: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestGenerateStandardImage(t *testing.T) {
	src, cache := t.TempDir(), t.TempDir()
	createTestImage(t, filepath.Join(src, "photo.jpg"), 900, 600, "jpeg")

	recorder := &fakeRecorder{}
	out, err := newTestGenerator(recorder).Generate(context.Background(), request(src, cache, "photo.jpg"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if !out.Generated {
		t.Error("Generated = false on first run")
	}
	if out.PreviewPath != "" {
		t.Errorf("PreviewPath = %q, standard images get no preview", out.PreviewPath)
	}
	if w, h := jpegSize(t, out.ThumbnailPath); w != ThumbnailSize || h != 200 {
		t.Errorf("thumbnail = %dx%d, want 300x200", w, h)
	}

	if len(recorder.entries) != 1 {
		t.Fatalf("recorded %d cache entries, want 1", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.Filename != "photo.jpg" || entry.CachePath != out.ThumbnailPath || entry.OriginalModified.IsZero() {
		t.Errorf("unexpected cache entry %+v", entry)
	}
}

func TestGenerateAfterSessionCleared(t *testing.T) {
	src, cache := t.TempDir(), t.TempDir()
	createTestImage(t, filepath.Join(src, "photo.jpg"), 90, 60, "jpeg")

	recorder := &fakeRecorder{err: database.ErrSessionNotFound}
	out, err := newTestGenerator(recorder).Generate(context.Background(), request(src, cache, "photo.jpg"))
	if err != nil {
		t.Fatalf("Generate() error = %v, a missing session only skips indexing", err)
	}
	if !out.Generated || len(recorder.entries) != 0 {
		t.Errorf("Generate() = %+v with %d entries", out, len(recorder.entries))
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	src, cache := t.TempDir(), t.TempDir()
	createTestImage(t, filepath.Join(src, "photo.png"), 400, 400, "png")
	gen := newTestGenerator(nil)
	req := request(src, cache, "photo.png")

	first, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	thumb := filepath.FromSlash(first.ThumbnailPath)
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(thumb, old, old); err != nil {
		t.Fatal(err)
	}

	second, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("second Generate() error = %v", err)
	}
	if second.Generated {
		t.Error("second Generate() rewrote a cached thumbnail")
	}
	fi, err := os.Stat(thumb)
	if err != nil {
		t.Fatal(err)
	}
	if !fi.ModTime().Equal(old) {
		t.Error("cached thumbnail was modified")
	}
}

func TestGenerateRawWritesPreview(t *testing.T) {
	src, cache := t.TempDir(), t.TempDir()
	writeFakeRaw(t, filepath.Join(src, "DSC_0001.NEF"), 2400, 1600)

	out, err := newTestGenerator(nil).Generate(context.Background(), request(src, cache, "DSC_0001.NEF"))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out.PreviewPath == "" {
		t.Fatal("RAW source produced no preview")
	}
	if filepath.Base(out.PreviewPath) != "DSC_0001_preview.jpg" {
		t.Errorf("preview name = %s", filepath.Base(out.PreviewPath))
	}
	if w, h := jpegSize(t, out.PreviewPath); w != PreviewSize || h != 1333 {
		t.Errorf("preview = %dx%d, want 2000x1333", w, h)
	}
	if w, _ := jpegSize(t, out.ThumbnailPath); w != ThumbnailSize {
		t.Errorf("thumbnail width = %d, want %d", w, ThumbnailSize)
	}
}

func TestGenerateCorruptRaw(t *testing.T) {
	src, cache := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "bad.cr2"), []byte("II*\x00garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := request(src, cache, "bad.cr2")
	_, err := newTestGenerator(nil).Generate(context.Background(), req)
	if !errors.Is(err, raw.ErrRawProcessing) {
		t.Fatalf("Generate() error = %v, want ErrRawProcessing", err)
	}
	if kind := ErrorKind(err); kind != "decode" {
		t.Errorf("ErrorKind() = %q, want decode", kind)
	}

	entries, _ := os.ReadDir(req.Dirs.Thumbnails)
	if len(entries) != 0 {
		t.Errorf("failed generation left files behind: %v", entries)
	}
}

func TestGenerateMissingSource(t *testing.T) {
	src, cache := t.TempDir(), t.TempDir()

	_, err := newTestGenerator(nil).Generate(context.Background(), request(src, cache, "gone.jpg"))
	if err == nil {
		t.Fatal("Generate() error = nil for a missing file")
	}
	if kind := ErrorKind(err); kind != "io" {
		t.Errorf("ErrorKind() = %q, want io", kind)
	}
}

func TestGenerateCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestGenerator(nil).Generate(ctx, request(t.TempDir(), t.TempDir(), "a.jpg"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Generate() error = %v, want context.Canceled", err)
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrDecode, "decode"},
		{ErrEncode, "encode"},
		{&raw.Error{Path: "a.nef", Stage: "decode", Err: errors.New("bad")}, "decode"},
		{&raw.Error{Path: "a.nef", Stage: "read", Err: &os.PathError{Op: "open", Path: "a.nef", Err: os.ErrNotExist}}, "io"},
		{os.ErrPermission, "io"},
	}

	for _, tt := range tests {
		if got := ErrorKind(tt.err); got != tt.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestClearSessionCache(t *testing.T) {
	dirs := SessionCacheDirs(t.TempDir(), "s1")
	if err := EnsureCacheDirs(dirs); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(dirs.Thumbnails, "old.jpg")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ClearSessionCache(dirs); err != nil {
		t.Fatalf("ClearSessionCache() error = %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("cached file survived ClearSessionCache")
	}
	for _, dir := range []string{dirs.Thumbnails, dirs.Previews} {
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			t.Errorf("%s was not recreated", dir)
		}
	}
}
