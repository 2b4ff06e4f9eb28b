package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"glimpse/internal/media"
)

type fakeGenerator struct {
	delay  time.Duration
	fail   map[string]error
	panics map[string]bool

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int32
}

func (f *fakeGenerator) Generate(ctx context.Context, req media.Request) (media.Output, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	name := req.Image.Filename
	if f.panics[name] {
		panic("decoder blew up")
	}
	if err := f.fail[name]; err != nil {
		return media.Output{}, err
	}
	return media.Output{ThumbnailPath: "/cache/" + name}, nil
}

func images(n int) []media.ImageInfo {
	out := make([]media.ImageInfo, n)
	for i := range out {
		out[i] = media.ImageInfo{Filename: fmt.Sprintf("img_%03d.jpg", i)}
	}
	return out
}

func TestBatchCompleteness(t *testing.T) {
	const n = 40
	imgs := images(n)
	gen := &fakeGenerator{
		delay: time.Millisecond,
		fail: map[string]error{
			imgs[3].Filename:  media.ErrDecode,
			imgs[17].Filename: media.ErrEncode,
		},
		panics: map[string]bool{imgs[25].Filename: true},
	}

	var mu sync.Mutex
	var ticks []Progress
	var inCallback atomic.Int32
	var overlapped atomic.Bool
	completeCalls := 0

	b := New(gen).Start(context.Background(), Config{Threads: 4}, Job{
		Images: imgs,
		OnProgress: func(p Progress) {
			if inCallback.Add(1) > 1 {
				overlapped.Store(true)
			}
			defer inCallback.Add(-1)
			mu.Lock()
			ticks = append(ticks, p)
			mu.Unlock()
		},
		OnComplete: func(string, []Result) {
			mu.Lock()
			completeCalls++
			mu.Unlock()
		},
	})

	results, err := b.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if len(results) != n {
		t.Fatalf("got %d results, want %d", len(results), n)
	}
	failed := 0
	for i, r := range results {
		if r.Filename != imgs[i].Filename {
			t.Errorf("result %d is %s, want input order", i, r.Filename)
		}
		if !r.Success {
			failed++
			if r.Error == "" || r.ErrorKind == "" {
				t.Errorf("failed result %s lacks error detail: %+v", r.Filename, r)
			}
		}
	}
	if failed != 3 || b.Failed() != 3 {
		t.Errorf("failed = %d (Failed() = %d), want 3", failed, b.Failed())
	}
	if results[3].ErrorKind != "decode" || results[17].ErrorKind != "encode" {
		t.Errorf("error kinds = %q, %q", results[3].ErrorKind, results[17].ErrorKind)
	}
	if !strings.Contains(results[25].Error, "panic") {
		t.Errorf("panic result error = %q", results[25].Error)
	}

	// Wait returns after close(done), which follows the last tick.
	mu.Lock()
	got := append([]Progress(nil), ticks...)
	mu.Unlock()

	if len(got) != n {
		t.Fatalf("got %d progress ticks, want %d", len(got), n)
	}
	for i, p := range got {
		if p.Completed != i+1 || p.Total != n || p.BatchID != b.ID {
			t.Fatalf("tick %d = %+v", i, p)
		}
	}
	if overlapped.Load() {
		t.Error("OnProgress was called concurrently")
	}
	if gen.maxActive.Load() > 4 {
		t.Errorf("max concurrent generations = %d, want <= 4", gen.maxActive.Load())
	}

	// OnComplete runs right after done is closed.
	deadline := time.Now().Add(time.Second)
	for {
		mu.Lock()
		c := completeCalls
		mu.Unlock()
		if c == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("OnComplete called %d times, want 1", c)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestProgressChannel(t *testing.T) {
	b := New(&fakeGenerator{}).Start(context.Background(), Config{Threads: 2}, Job{Images: images(10)})

	last := 0
	count := 0
	for p := range b.Progress() {
		if p.Completed <= last {
			t.Fatalf("progress went from %d to %d", last, p.Completed)
		}
		last = p.Completed
		count++
	}
	if count != 10 || last != 10 {
		t.Errorf("ticks = %d, last = %d; want 10, 10", count, last)
	}

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("batch not done after progress channel closed")
	}
}

func TestUnreadProgressDoesNotBlock(t *testing.T) {
	b := New(&fakeGenerator{}).Start(context.Background(), Config{Threads: 3}, Job{Images: images(25)})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := b.Wait(ctx); err != nil {
		t.Fatalf("batch stalled without a progress reader: %v", err)
	}
}

func TestEmptyBatch(t *testing.T) {
	b := New(&fakeGenerator{}).Start(context.Background(), Config{}, Job{})

	results, err := b.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v", results)
	}
	if _, open := <-b.Progress(); open {
		t.Error("progress channel should be closed")
	}
	if b.Threads <= 0 {
		t.Errorf("Threads = %d, want the recommended default", b.Threads)
	}
}

func TestCanceledBatchStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := &fakeGenerator{}
	b := New(gen).Start(ctx, Config{Threads: 2}, Job{Images: images(8)})

	results, err := b.Wait(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 8 {
		t.Fatalf("got %d results, want 8", len(results))
	}
	for _, r := range results {
		if r.Success || !strings.Contains(r.Error, context.Canceled.Error()) {
			t.Errorf("result %+v, want canceled failure", r)
		}
	}
	if gen.calls.Load() != 0 {
		t.Errorf("generator called %d times after cancel", gen.calls.Load())
	}
}

func TestWaitHonorsContext(t *testing.T) {
	b := New(&fakeGenerator{delay: 200 * time.Millisecond}).Start(context.Background(), Config{Threads: 1}, Job{Images: images(3)})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := b.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestEnsureMaxStack(t *testing.T) {
	original := debug.SetMaxStack(1 << 30)
	defer debug.SetMaxStack(original)

	debug.SetMaxStack(32 << 20)
	ensureMaxStack(64 << 20)
	if got := debug.SetMaxStack(64 << 20); got != 64<<20 {
		t.Errorf("stack limit = %d, want raised to %d", got, 64<<20)
	}

	ensureMaxStack(16 << 20)
	if got := debug.SetMaxStack(64 << 20); got != 64<<20 {
		t.Errorf("stack limit = %d, a smaller request must not lower it", got)
	}
}
