package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"glimpse/internal/logging"
	"glimpse/internal/media"
	"glimpse/internal/metrics"
	"glimpse/internal/workers"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Generator produces the cached assets of one image.
type Generator interface {
	Generate(ctx context.Context, req media.Request) (media.Output, error)
}

// Config sizes the worker pool of a batch.
type Config struct {
	// Threads is the pool size; 0 uses workers.Recommended().
	Threads int
	// MaxStackBytes raises the process goroutine stack limit before the
	// batch starts when it is above the current limit; 0 leaves it alone.
	MaxStackBytes int
}

// Progress reports how many files of a batch have finished.
type Progress struct {
	BatchID   string `json:"batchId"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

// Result is the outcome for one file.
type Result struct {
	Filename      string `json:"filename"`
	ThumbnailPath string `json:"thumbnailPath"`
	PreviewPath   string `json:"previewPath,omitempty"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
	// ErrorKind is "decode", "encode" or "io" for failed results.
	ErrorKind string `json:"errorKind,omitempty"`
}

// Job describes one batch.
type Job struct {
	SessionID string
	Dirs      media.CacheDirs
	Images    []media.ImageInfo

	// OnProgress is called once per finished file, always from the same
	// goroutine.
	OnProgress func(Progress)
	// OnComplete receives the full result list after the last progress tick.
	OnComplete func(batchID string, results []Result)
}

// Scheduler runs batches. It is safe for concurrent use; each batch gets
// its own pool.
type Scheduler struct {
	gen Generator
}

// New creates a scheduler around gen.
func New(gen Generator) *Scheduler {
	return &Scheduler{gen: gen}
}

// Batch is a running or finished batch.
type Batch struct {
	ID      string
	Total   int
	Threads int

	progress chan Progress
	done     chan struct{}
	results  []Result
	failed   atomic.Int64
}

// Progress returns a channel carrying every tick of the batch. It is
// buffered for the whole batch, so an idle reader never stalls the pool,
// and it is closed after the last tick.
func (b *Batch) Progress() <-chan Progress { return b.progress }

// Done is closed once the results are available.
func (b *Batch) Done() <-chan struct{} { return b.done }

// Wait blocks until the batch completes or ctx ends, and returns the
// results in input order.
func (b *Batch) Wait(ctx context.Context) ([]Result, error) {
	select {
	case <-b.done:
		return b.results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Failed returns the number of failed files so far.
func (b *Batch) Failed() int { return int(b.failed.Load()) }

// Start launches job and returns immediately. Cancelling ctx stops
// handing out new files; files not yet started are reported as failed so
// the batch still completes with one result per image.
func (s *Scheduler) Start(ctx context.Context, cfg Config, job Job) *Batch {
	threads := cfg.Threads
	if threads <= 0 {
		threads = workers.Recommended()
	}
	if cfg.MaxStackBytes > 0 {
		ensureMaxStack(cfg.MaxStackBytes)
	}

	total := len(job.Images)
	b := &Batch{
		ID:       uuid.NewString(),
		Total:    total,
		Threads:  threads,
		progress: make(chan Progress, total),
		done:     make(chan struct{}),
	}

	go s.run(ctx, b, job)
	return b
}

func (s *Scheduler) run(ctx context.Context, b *Batch, job Job) {
	start := time.Now()
	logging.Info("Thumbnail batch %s: %d files with %d workers", b.ID, b.Total, b.Threads)

	metrics.SchedulerBatchesTotal.Inc()
	metrics.SchedulerBatchesInFlight.Inc()
	metrics.SchedulerWorkers.Add(float64(b.Threads))
	defer func() {
		metrics.SchedulerBatchesInFlight.Dec()
		metrics.SchedulerWorkers.Sub(float64(b.Threads))
		metrics.SchedulerBatchDuration.Observe(time.Since(start).Seconds())
	}()

	// One tick per file. The buffer holds every tick, so workers never
	// wait on the consumer.
	ticks := make(chan struct{}, b.Total)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		defer close(b.progress)
		completed := 0
		for range ticks {
			completed++
			p := Progress{BatchID: b.ID, Completed: completed, Total: b.Total}
			b.progress <- p
			if job.OnProgress != nil {
				job.OnProgress(p)
			}
		}
	}()

	results := make([]Result, b.Total)
	finish := func(i int, r Result) {
		results[i] = r
		status := "success"
		if !r.Success {
			status = "failed"
			b.failed.Add(1)
		}
		metrics.SchedulerFilesTotal.WithLabelValues(status).Inc()
		ticks <- struct{}{}
	}

	var g errgroup.Group
	g.SetLimit(b.Threads)

	for i, img := range job.Images {
		if err := ctx.Err(); err != nil {
			finish(i, failedResult(img.Filename, err, "io"))
			continue
		}
		g.Go(func() error {
			finish(i, s.process(ctx, job, img))
			return nil
		})
	}

	_ = g.Wait()
	close(ticks)
	<-consumerDone

	b.results = results
	close(b.done)

	logging.Info("Thumbnail batch %s complete: %d/%d succeeded in %v",
		b.ID, b.Total-b.Failed(), b.Total, time.Since(start).Round(time.Millisecond))

	if job.OnComplete != nil {
		job.OnComplete(b.ID, results)
	}
}

// process generates one file. Panics become failed results.
func (s *Scheduler) process(ctx context.Context, job Job, img media.ImageInfo) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerWorkerPanics.Inc()
			logging.Error("Thumbnail worker panic on %s: %v\n%s", img.Filename, r, debug.Stack())
			result = failedResult(img.Filename, fmt.Errorf("panic: %v", r), "decode")
		}
	}()

	out, err := s.gen.Generate(ctx, media.Request{
		SessionID: job.SessionID,
		Image:     img,
		Dirs:      job.Dirs,
	})
	if err != nil {
		logging.Warn("Thumbnail failed for %s: %v", img.Filename, err)
		return failedResult(img.Filename, err, media.ErrorKind(err))
	}

	return Result{
		Filename:      img.Filename,
		ThumbnailPath: out.ThumbnailPath,
		PreviewPath:   out.PreviewPath,
		Success:       true,
	}
}

func failedResult(filename string, err error, kind string) Result {
	return Result{
		Filename:  filename,
		Success:   false,
		Error:     err.Error(),
		ErrorKind: kind,
	}
}

var stackMu sync.Mutex

// ensureMaxStack raises the goroutine stack ceiling to at least n bytes.
func ensureMaxStack(n int) {
	stackMu.Lock()
	defer stackMu.Unlock()

	if prev := debug.SetMaxStack(n); prev > n {
		debug.SetMaxStack(prev)
	} else if prev < n {
		logging.Debug("Goroutine stack limit raised from %d to %d bytes", prev, n)
	}
}
