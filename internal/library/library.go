package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"glimpse/internal/config"
	"glimpse/internal/database"
	"glimpse/internal/export"
	"glimpse/internal/filesystem"
	"glimpse/internal/logging"
	"glimpse/internal/media"
	"glimpse/internal/memory"
	"glimpse/internal/metrics"
	"glimpse/internal/scheduler"
	"glimpse/internal/workers"

	"github.com/dustin/go-humanize"
)

// maxTrackedBatches bounds how many batches Batch can look up.
const maxTrackedBatches = 32

// Options configures a Library.
type Options struct {
	DB          *database.Database
	CacheDir    string
	Preferences *config.Preferences

	// Generator overrides the thumbnail generator, mainly for tests.
	Generator scheduler.Generator
	// Monitor pauses RAW decoding under memory pressure; may be nil.
	Monitor *memory.Monitor
	// MaxStackBytes is passed to every batch.
	MaxStackBytes int
	// ThreadOverride forces the batch pool size over the saved preference;
	// 0 means none.
	ThreadOverride int
}

// Library is the application core: it opens folders, keeps labels and
// positions, schedules thumbnail generation and exports selections. All
// methods are safe for concurrent use.
type Library struct {
	db       *database.Database
	cacheDir string
	prefs    *config.Preferences
	sched    *scheduler.Scheduler
	maxStack int
	override int

	mu      sync.RWMutex
	current string

	// Batches run on this context so that opening another folder never
	// cancels an earlier batch; only Close does.
	batchCtx    context.Context
	cancelBatch context.CancelFunc
	running     sync.WaitGroup

	batchMu    sync.Mutex
	batches    map[string]*scheduler.Batch
	batchOrder []string
}

// New creates a Library. The cache directory is created if missing.
func New(opts Options) (*Library, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("%w: database is required", ErrInvalidArgument)
	}
	if opts.CacheDir == "" {
		return nil, fmt.Errorf("%w: cache directory is required", ErrInvalidArgument)
	}
	if err := os.MkdirAll(opts.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	prefs := opts.Preferences
	if prefs == nil {
		var err error
		if prefs, err = config.Load(""); err != nil {
			return nil, err
		}
	}

	gen := opts.Generator
	if gen == nil {
		gen = media.NewThumbnailGenerator(nil, opts.DB, opts.Monitor)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Library{
		db:          opts.DB,
		cacheDir:    opts.CacheDir,
		prefs:       prefs,
		sched:       scheduler.New(gen),
		maxStack:    opts.MaxStackBytes,
		override:    opts.ThreadOverride,
		batchCtx:    ctx,
		cancelBatch: cancel,
		batches:     make(map[string]*scheduler.Batch),
	}, nil
}

// Close cancels running batches and waits for them to report completion.
func (l *Library) Close() {
	l.cancelBatch()
	l.running.Wait()
}

// ActiveSession returns the id of the most recently opened folder, or "".
func (l *Library) ActiveSession() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// validSessionID matches the ids produced by database.SessionID.
var validSessionID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func (l *Library) resolveSession(sessionID string) (string, error) {
	if sessionID != "" {
		if !validSessionID.MatchString(sessionID) {
			return "", fmt.Errorf("%w: bad session id %q", ErrInvalidArgument, sessionID)
		}
		return sessionID, nil
	}
	if id := l.ActiveSession(); id != "" {
		return id, nil
	}
	return "", ErrNoActiveSession
}

// OpenHooks receive the progress and results of the batch started by Open.
type OpenHooks struct {
	OnProgress func(scheduler.Progress)
	OnComplete func(batchID string, results []scheduler.Result)
}

// OpenResult is returned by Open before any thumbnail is generated.
type OpenResult struct {
	SessionID         string               `json:"sessionId"`
	Images            []media.ImageInfo    `json:"images"`
	Labels            []database.FileLabel `json:"labels"`
	LastSelectedIndex int                  `json:"lastSelectedIndex"`
	CacheDir          string               `json:"cacheDir"`
	BatchID           string               `json:"batchId"`
	Threads           int                  `json:"threads"`

	Batch *scheduler.Batch `json:"-"`
}

// Open scans folder, records it as the active session and starts
// generating its thumbnails in the background. It returns as soon as the
// batch is launched.
func (l *Library) Open(ctx context.Context, folder string, hooks OpenHooks) (*OpenResult, error) {
	if strings.TrimSpace(folder) == "" {
		return nil, fmt.Errorf("%w: folder path is empty", ErrInvalidArgument)
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}

	images, err := media.ScanFolder(abs)
	if err != nil {
		return nil, err
	}

	session, err := l.db.GetOrCreateSession(ctx, abs, len(images))
	if err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	labels, err := l.db.GetLabels(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	dirs := media.SessionCacheDirs(l.cacheDir, session.ID)
	if err := media.EnsureCacheDirs(dirs); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.current = session.ID
	l.mu.Unlock()
	metrics.SessionsOpenedTotal.Inc()

	threads := workers.Resolve(l.override, l.prefs.ThumbnailThreads())
	l.running.Add(1)
	batch := l.sched.Start(l.batchCtx, scheduler.Config{Threads: threads, MaxStackBytes: l.maxStack}, scheduler.Job{
		SessionID:  session.ID,
		Dirs:       dirs,
		Images:     images,
		OnProgress: hooks.OnProgress,
		OnComplete: func(id string, results []scheduler.Result) {
			defer l.running.Done()
			if hooks.OnComplete != nil {
				hooks.OnComplete(id, results)
			}
		},
	})
	l.trackBatch(batch)

	logging.Info("Opened %s: session %s, %d images, resuming at %d", abs, session.ID, len(images), session.LastSelectedIndex)

	return &OpenResult{
		SessionID:         session.ID,
		Images:            images,
		Labels:            labels,
		LastSelectedIndex: session.LastSelectedIndex,
		CacheDir:          media.NormalizePath(filepath.Dir(dirs.Thumbnails)),
		BatchID:           batch.ID,
		Threads:           batch.Threads,
		Batch:             batch,
	}, nil
}

// SessionFor returns the session id of folder without opening it.
func SessionFor(folder string) (string, error) {
	if strings.TrimSpace(folder) == "" {
		return "", fmt.Errorf("%w: folder path is empty", ErrInvalidArgument)
	}
	abs, err := filepath.Abs(folder)
	if err != nil {
		return "", err
	}
	return database.SessionID(abs), nil
}

func (l *Library) trackBatch(b *scheduler.Batch) {
	l.batchMu.Lock()
	defer l.batchMu.Unlock()

	l.batches[b.ID] = b
	l.batchOrder = append(l.batchOrder, b.ID)
	if len(l.batchOrder) > maxTrackedBatches {
		delete(l.batches, l.batchOrder[0])
		l.batchOrder = l.batchOrder[1:]
	}
}

// Batch returns a recently started batch by id.
func (l *Library) Batch(id string) (*scheduler.Batch, bool) {
	l.batchMu.Lock()
	defer l.batchMu.Unlock()
	b, ok := l.batches[id]
	return b, ok
}

func validFilename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad filename %q", ErrInvalidArgument, name)
	}
	return nil
}

// SetLabel tags filename in a session; LabelNone removes the tag. An empty
// sessionID means the active session.
func (l *Library) SetLabel(ctx context.Context, sessionID, filename string, label database.Label) error {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return err
	}
	if err := validFilename(filename); err != nil {
		return err
	}
	label = database.Label(strings.TrimSpace(string(label)))

	if err := l.db.SetLabel(ctx, sid, filename, label); err != nil {
		return fmt.Errorf("failed to set label: %w", err)
	}
	metrics.LabelWritesTotal.WithLabelValues(labelMetric(label)).Inc()
	return nil
}

func labelMetric(label database.Label) string {
	switch label {
	case database.LabelNone:
		return "none"
	case database.LabelAdopted, database.LabelRejected:
		return string(label)
	}
	return "other"
}

// Label returns the label of one file, LabelNone when it has none.
func (l *Library) Label(ctx context.Context, sessionID, filename string) (database.Label, error) {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return database.LabelNone, err
	}
	if err := validFilename(filename); err != nil {
		return database.LabelNone, err
	}
	return l.db.GetLabel(ctx, sid, filename)
}

// Labels returns every label of a session.
func (l *Library) Labels(ctx context.Context, sessionID string) ([]database.FileLabel, error) {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return nil, err
	}
	return l.db.GetLabels(ctx, sid)
}

// SaveSelection stores the viewer position of a session.
func (l *Library) SaveSelection(ctx context.Context, sessionID string, index int) error {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return err
	}
	if index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidArgument, index)
	}

	err = l.db.UpdateLastSelectedIndex(ctx, sid, index)
	if errors.Is(err, database.ErrSessionNotFound) {
		return fmt.Errorf("%w: session %s", ErrNotFound, sid)
	}
	return err
}

// Export copies or moves the images of source that are not labeled
// rejected in source's session. mode is "copy" or "move".
func (l *Library) Export(ctx context.Context, source, dest, mode string) (export.Result, error) {
	m, err := export.ParseMode(mode)
	if err != nil {
		return export.Result{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if strings.TrimSpace(source) == "" || strings.TrimSpace(dest) == "" {
		return export.Result{}, fmt.Errorf("%w: source and destination are required", ErrInvalidArgument)
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return export.Result{}, err
	}
	rejected, err := l.db.GetRejectedFilenames(ctx, database.SessionID(abs))
	if err != nil {
		return export.Result{}, fmt.Errorf("failed to load labels: %w", err)
	}
	images, err := media.ScanFolder(abs)
	if err != nil {
		return export.Result{}, err
	}

	result, err := export.Run(ctx, images, rejected, dest, m)
	if errors.Is(err, export.ErrSameFolder) {
		return result, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return result, err
}

func (l *Library) assetPath(sessionID, filename string, asset media.Asset) (string, error) {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return "", err
	}
	if err := validFilename(filename); err != nil {
		return "", err
	}

	dirs := media.SessionCacheDirs(l.cacheDir, sid)
	path := dirs.ThumbnailPath(filename)
	if asset == media.AssetPreview {
		path = dirs.PreviewPath(filename)
	}
	if !filesystem.Exists(path) {
		return "", fmt.Errorf("%w: %s of %s", ErrNotFound, asset, filename)
	}
	return path, nil
}

// ThumbnailPath returns the cached thumbnail of filename, or ErrNotFound.
func (l *Library) ThumbnailPath(sessionID, filename string) (string, error) {
	return l.assetPath(sessionID, filename, media.AssetThumbnail)
}

// PreviewPath returns the cached RAW preview of filename, or ErrNotFound.
func (l *Library) PreviewPath(sessionID, filename string) (string, error) {
	return l.assetPath(sessionID, filename, media.AssetPreview)
}

// CacheStatus describes the recorded generation of one file's assets.
type CacheStatus struct {
	database.ThumbnailCacheEntry
	// Stale is true when the source changed after generation. The cached
	// files are still served until the session cache is cleared.
	Stale bool `json:"stale"`
}

// CacheStatus looks up the cache index entry of filename.
func (l *Library) CacheStatus(ctx context.Context, sessionID, filename string) (*CacheStatus, error) {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := validFilename(filename); err != nil {
		return nil, err
	}

	entry, ok, err := l.db.GetThumbnailCache(ctx, sid, filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: no cache entry for %s", ErrNotFound, filename)
	}

	status := &CacheStatus{ThumbnailCacheEntry: entry}
	session, err := l.db.GetSession(ctx, sid)
	if err == nil {
		src := filepath.Join(session.FolderPath, filename)
		if fi, statErr := filesystem.StatWithRetry(src, filesystem.DefaultRetryConfig()); statErr == nil {
			status.Stale = entry.Stale(fi.ModTime())
		}
	}
	return status, nil
}

// Exif reads the EXIF data of filename in a session's folder.
func (l *Library) Exif(ctx context.Context, sessionID, filename string) (*media.ExifInfo, error) {
	session, err := l.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := validFilename(filename); err != nil {
		return nil, err
	}

	info, err := media.ReadExif(filepath.Join(session.FolderPath, filename))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return info, err
}

// ClearCache deletes the derived assets of one session and its cache
// index rows. Labels and the session row are kept. A batch still running
// for the session keeps writing: the files it finishes afterwards land in
// a recreated cache directory together with their index rows.
func (l *Library) ClearCache(ctx context.Context, sessionID string) error {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return err
	}
	if err := media.ClearSessionCache(media.SessionCacheDirs(l.cacheDir, sid)); err != nil {
		return err
	}
	if err := l.db.DeleteSessionCache(ctx, sid); err != nil {
		return fmt.Errorf("failed to clear cache index: %w", err)
	}
	logging.Info("Cleared thumbnail cache of session %s", sid)
	return nil
}

// ClearAllCache deletes every cached asset, session and cache index row,
// and returns the number of bytes freed. Labels survive. Assets a running
// batch writes afterwards stay on disk unindexed, since their session row
// is gone; reopening the folder reuses them.
func (l *Library) ClearAllCache(ctx context.Context) (int64, error) {
	size, err := filesystem.DirSize(l.cacheDir)
	if err != nil {
		logging.Warn("Failed to measure cache size: %v", err)
	}

	if err := os.RemoveAll(l.cacheDir); err != nil {
		return 0, fmt.Errorf("failed to remove cache: %w", err)
	}
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to recreate cache: %w", err)
	}
	if err := l.db.ClearAllSessions(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear sessions: %w", err)
	}
	if err := l.db.SetLastCacheClear(ctx, time.Now()); err != nil {
		logging.Warn("Failed to record cache clear time: %v", err)
	}

	logging.Info("Cleared all thumbnail caches (%s freed)", humanize.IBytes(uint64(size)))
	return size, nil
}

// ClearAllLabels deletes every label and returns how many were removed.
func (l *Library) ClearAllLabels(ctx context.Context) (int64, error) {
	n, err := l.db.ClearAllLabels(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clear labels: %w", err)
	}
	logging.Info("Cleared %d labels", n)
	return n, nil
}

// StorageInfo summarizes disk and store usage.
type StorageInfo struct {
	CacheSizeBytes   int64      `json:"cacheSizeBytes"`
	CacheSizeDisplay string     `json:"cacheSizeDisplay"`
	LabelCount       int64      `json:"labelCount"`
	SessionCount     int64      `json:"sessionCount"`
	LastCacheClear   *time.Time `json:"lastCacheClear,omitempty"`
}

// StorageInfo reports the cache size and row counts.
func (l *Library) StorageInfo(ctx context.Context) (*StorageInfo, error) {
	size, err := filesystem.DirSize(l.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to measure cache: %w", err)
	}
	labels, err := l.db.LabelCount(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := l.db.SessionCount(ctx)
	if err != nil {
		return nil, err
	}

	info := &StorageInfo{
		CacheSizeBytes:   size,
		CacheSizeDisplay: humanize.IBytes(uint64(size)),
		LabelCount:       labels,
		SessionCount:     sessions,
	}
	if t, err := l.db.GetLastCacheClear(ctx); err == nil && !t.IsZero() {
		info.LastCacheClear = &t
	}
	return info, nil
}

// CollectStats implements metrics.StatsProvider.
func (l *Library) CollectStats() (metrics.Stats, error) {
	ctx := context.Background()
	info, err := l.StorageInfo(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		Sessions:       info.SessionCount,
		Labels:         info.LabelCount,
		CacheSizeBytes: info.CacheSizeBytes,
	}, nil
}

// SystemInfo reports the CPU count and worker settings. EnvOverride is
// the THUMBNAIL_WORKERS value, which beats the saved Override.
type SystemInfo struct {
	CPUCount           int  `json:"cpuCount"`
	CurrentThreads     int  `json:"currentThreads"`
	RecommendedThreads int  `json:"recommendedThreads"`
	Override           *int `json:"override,omitempty"`
	EnvOverride        int  `json:"envOverride,omitempty"`
	VipsAvailable      bool `json:"vipsAvailable"`
}

// SystemInfo returns the thread settings the next batch would use.
func (l *Library) SystemInfo() SystemInfo {
	override := l.prefs.ThumbnailThreads()
	return SystemInfo{
		CPUCount:           workers.Available(),
		CurrentThreads:     workers.Resolve(l.override, override),
		RecommendedThreads: workers.Recommended(),
		Override:           override,
		EnvOverride:        l.override,
		VipsAvailable:      media.IsVipsAvailable(),
	}
}

// SetThreadCount saves a worker override; nil restores the default. It
// applies from the next batch on.
func (l *Library) SetThreadCount(n *int) error {
	if err := l.prefs.SetThumbnailThreads(n); err != nil {
		if n != nil && *n <= 0 {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return err
	}
	if n == nil {
		logging.Info("Thumbnail threads reset to automatic (%d)", workers.Recommended())
	} else {
		logging.Info("Thumbnail threads set to %d", *n)
	}
	return nil
}

// ListSessions returns every known session, most recent first.
func (l *Library) ListSessions(ctx context.Context) ([]database.Session, error) {
	sessions, err := l.db.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []database.Session{}
	}
	return sessions, nil
}

// GetSession returns a session by id; "" means the active session.
func (l *Library) GetSession(ctx context.Context, sessionID string) (*database.Session, error) {
	sid, err := l.resolveSession(sessionID)
	if err != nil {
		return nil, err
	}
	s, err := l.db.GetSession(ctx, sid)
	if errors.Is(err, database.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sid)
	}
	return s, err
}
