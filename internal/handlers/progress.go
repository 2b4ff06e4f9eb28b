package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"glimpse/internal/library"
	"glimpse/internal/logging"
	"glimpse/internal/scheduler"

	"github.com/gorilla/mux"
)

// maxStreams bounds how many finished batches stay replayable.
const maxStreams = 32

const (
	eventProgress = "progress"
	eventComplete = "complete"
)

type batchEvent struct {
	name string
	data interface{}
}

// completeEvent is the payload of the terminal event of a batch.
type completeEvent struct {
	BatchID   string             `json:"batchId"`
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []scheduler.Result `json:"results"`
}

// batchStream records every event of one batch so late subscribers can
// replay it.
type batchStream struct {
	mu     sync.Mutex
	events []batchEvent
	last   scheduler.Progress
	final  *completeEvent
	notify chan struct{}
}

func newBatchStream() *batchStream {
	return &batchStream{notify: make(chan struct{})}
}

func (s *batchStream) publish(ev batchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch v := ev.data.(type) {
	case scheduler.Progress:
		s.last = v
	case *completeEvent:
		s.final = v
	}
	s.events = append(s.events, ev)
	close(s.notify)
	s.notify = make(chan struct{})
}

func (s *batchStream) onProgress(p scheduler.Progress) {
	s.publish(batchEvent{name: eventProgress, data: p})
}

func (s *batchStream) onComplete(batchID string, results []scheduler.Result) {
	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.publish(batchEvent{name: eventComplete, data: &completeEvent{
		BatchID:   batchID,
		Total:     len(results),
		Succeeded: len(results) - failed,
		Failed:    failed,
		Results:   results,
	}})
}

// since returns the events from index next on, a channel closed by the
// next publish, and whether the batch has completed.
func (s *batchStream) since(next int) ([]batchEvent, <-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[next:], s.notify, s.final != nil
}

// progressHub indexes batch streams by batch id.
type progressHub struct {
	mu      sync.Mutex
	streams map[string]*batchStream
	order   []string
}

func newProgressHub() *progressHub {
	return &progressHub{streams: make(map[string]*batchStream)}
}

func (h *progressHub) register(id string, s *batchStream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.streams[id] = s
	h.order = append(h.order, id)
	if len(h.order) > maxStreams {
		delete(h.streams, h.order[0])
		h.order = h.order[1:]
	}
}

func (h *progressHub) get(id string) (*batchStream, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.streams[id]
	return s, ok
}

// BatchStatus is the snapshot returned by GetBatch.
type BatchStatus struct {
	BatchID   string             `json:"batchId"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Done      bool               `json:"done"`
	Failed    int                `json:"failed"`
	Results   []scheduler.Result `json:"results,omitempty"`
}

func (h *Handlers) stream(r *http.Request) (string, *batchStream, error) {
	id := mux.Vars(r)["id"]
	s, ok := h.progress.get(id)
	if !ok {
		return id, nil, fmt.Errorf("%w: batch %s", library.ErrNotFound, id)
	}
	return id, s, nil
}

// GetBatch reports how far a thumbnail batch has progressed.
func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	id, s, err := h.stream(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.mu.Lock()
	status := BatchStatus{BatchID: id, Completed: s.last.Completed, Total: s.last.Total}
	if s.final != nil {
		status.Done = true
		status.Completed = s.final.Total
		status.Total = s.final.Total
		status.Failed = s.final.Failed
		status.Results = s.final.Results
	}
	s.mu.Unlock()

	if b, ok := h.lib.Batch(id); ok && status.Total == 0 {
		status.Total = b.Total
	}
	writeJSONCode(w, http.StatusOK, status)
}

// StreamBatch sends the progress of a batch as Server-Sent Events. Past
// events are replayed first; the stream ends after the complete event.
func (h *Handlers) StreamBatch(w http.ResponseWriter, r *http.Request) {
	_, s, err := h.stream(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	next := 0
	for {
		events, wait, done := s.since(next)
		for _, ev := range events {
			if err := writeEvent(w, ev); err != nil {
				logging.Debug("SSE client went away: %v", err)
				return
			}
		}
		next += len(events)
		flusher.Flush()

		if done {
			return
		}
		select {
		case <-wait:
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev batchEvent) error {
	data, err := json.Marshal(ev.data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
	return err
}
