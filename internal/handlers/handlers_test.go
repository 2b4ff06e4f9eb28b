package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"glimpse/internal/config"
	"glimpse/internal/database"
	"glimpse/internal/library"
	"glimpse/internal/media"
	"glimpse/internal/raw"
	"glimpse/internal/scheduler"
	"glimpse/internal/workers"

	"github.com/gorilla/mux"
)

// =============================================================================
// Fixtures
// =============================================================================

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	root := t.TempDir()

	db, err := database.New(context.Background(), filepath.Join(root, "glimpse.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	prefs, err := config.Load(filepath.Join(root, "config.toml"))
	if err != nil {
		t.Fatal(err)
	}
	lib, err := library.New(library.Options{DB: db, CacheDir: filepath.Join(root, "cache"), Preferences: prefs})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(lib.Close)

	return New(lib)
}

func photoFolder(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: 120, B: uint8(y * 8), A: 255})
		}
	}
	for _, name := range names {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, nil); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func jsonRequest(t *testing.T, method, target string, body interface{}, vars map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	var resp ErrorResponse
	decodeBody(t, rr, &resp)
	if resp.Kind != kind || resp.Error == "" {
		t.Errorf("error body = %+v, want kind %s", resp, kind)
	}
}

// openFolder opens folder through the handler and waits for its batch by
// following the event stream.
func openFolder(t *testing.T, h *Handlers, folder string) library.OpenResult {
	t.Helper()
	rr := httptest.NewRecorder()
	h.OpenFolder(rr, jsonRequest(t, http.MethodPost, "/api/folders/open", OpenRequest{Path: folder}, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("OpenFolder status = %d: %s", rr.Code, rr.Body.String())
	}
	var res library.OpenResult
	decodeBody(t, rr, &res)

	events := httptest.NewRecorder()
	h.StreamBatch(events, jsonRequest(t, http.MethodGet, "/api/batches/"+res.BatchID+"/events", nil, map[string]string{"id": res.BatchID}))
	if !strings.Contains(events.Body.String(), "event: complete") {
		t.Fatalf("event stream did not complete: %s", events.Body.String())
	}
	return res
}

// =============================================================================
// Folder, batch and asset handlers
// =============================================================================

func TestOpenFolderStreamsProgress(t *testing.T) {
	h := newTestHandlers(t)
	folder := photoFolder(t, "b.jpg", "a.jpg")

	res := openFolder(t, h, folder)
	if len(res.Images) != 2 || res.Images[0].Filename != "a.jpg" {
		t.Errorf("Images = %+v", res.Images)
	}
	if res.SessionID != database.SessionID(folder) {
		t.Errorf("SessionID = %s", res.SessionID)
	}

	// A late subscriber gets the full replay.
	rr := httptest.NewRecorder()
	h.StreamBatch(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"id": res.BatchID}))
	body := rr.Body.String()
	if got := strings.Count(body, "event: progress"); got != 2 {
		t.Errorf("replayed %d progress events, want 2:\n%s", got, body)
	}
	if rr.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if strings.LastIndex(body, "event: progress") > strings.Index(body, "event: complete") {
		t.Error("progress event after complete event")
	}

	rr = httptest.NewRecorder()
	h.GetBatch(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"id": res.BatchID}))
	var status BatchStatus
	decodeBody(t, rr, &status)
	if !status.Done || status.Completed != 2 || status.Total != 2 || status.Failed != 0 || len(status.Results) != 2 {
		t.Errorf("GetBatch() = %+v", status)
	}
}

func TestOpenFolderErrors(t *testing.T) {
	h := newTestHandlers(t)

	rr := httptest.NewRecorder()
	h.OpenFolder(rr, jsonRequest(t, http.MethodPost, "/", OpenRequest{Path: filepath.Join(t.TempDir(), "gone")}, nil))
	expectError(t, rr, http.StatusNotFound, "not_found")

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	h.OpenFolder(rr, req)
	expectError(t, rr, http.StatusBadRequest, "invalid_argument")

	rr = httptest.NewRecorder()
	h.GetBatch(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"id": "nope"}))
	expectError(t, rr, http.StatusNotFound, "not_found")
}

func TestAssetHandlers(t *testing.T) {
	h := newTestHandlers(t)
	res := openFolder(t, h, photoFolder(t, "a.jpg"))

	rr := httptest.NewRecorder()
	h.GetThumbnail(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": res.SessionID, "filename": "a.jpg"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("GetThumbnail status = %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if _, _, err := image.Decode(rr.Body); err != nil {
		t.Errorf("thumbnail body is not an image: %v", err)
	}

	rr = httptest.NewRecorder()
	h.GetThumbnail(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": currentSession, "filename": "other.jpg"}))
	expectError(t, rr, http.StatusNotFound, "not_found")

	rr = httptest.NewRecorder()
	h.GetPreview(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": currentSession, "filename": "a.jpg"}))
	expectError(t, rr, http.StatusNotFound, "not_found")

	rr = httptest.NewRecorder()
	h.GetCacheStatus(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": currentSession, "filename": "a.jpg"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("GetCacheStatus status = %d: %s", rr.Code, rr.Body.String())
	}
	var status library.CacheStatus
	decodeBody(t, rr, &status)
	if status.Filename != "a.jpg" || status.Stale {
		t.Errorf("GetCacheStatus() = %+v", status)
	}

	rr = httptest.NewRecorder()
	h.GetExif(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": currentSession, "filename": "a.jpg"}))
	expectError(t, rr, http.StatusUnprocessableEntity, "decode")
}

// =============================================================================
// Session handlers
// =============================================================================

func TestSessionHandlersRequireActiveSession(t *testing.T) {
	h := newTestHandlers(t)
	vars := map[string]string{"session": currentSession}

	rr := httptest.NewRecorder()
	h.SetLabel(rr, jsonRequest(t, http.MethodPut, "/", LabelRequest{Filename: "a.jpg", Label: "rejected"}, vars))
	expectError(t, rr, http.StatusConflict, "no_active_session")

	rr = httptest.NewRecorder()
	h.GetSession(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": "feedfacefeedfacefeedfacefeedface"}))
	expectError(t, rr, http.StatusNotFound, "not_found")

	for _, id := range []string{"feedface", "FEEDFACEFEEDFACEFEEDFACEFEEDFACE", "..%2f..%2fetc"} {
		rr = httptest.NewRecorder()
		h.GetSession(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": id}))
		expectError(t, rr, http.StatusBadRequest, "invalid_argument")
	}
}

func TestLabelsAndSelection(t *testing.T) {
	h := newTestHandlers(t)
	res := openFolder(t, h, photoFolder(t, "a.jpg", "b.jpg"))
	vars := map[string]string{"session": res.SessionID}

	rr := httptest.NewRecorder()
	h.SetLabel(rr, jsonRequest(t, http.MethodPut, "/", LabelRequest{Filename: "b.jpg", Label: "rejected"}, vars))
	if rr.Code != http.StatusOK {
		t.Fatalf("SetLabel status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.GetLabels(rr, jsonRequest(t, http.MethodGet, "/", nil, vars))
	var labels []database.FileLabel
	decodeBody(t, rr, &labels)
	if len(labels) != 1 || labels[0].Filename != "b.jpg" || labels[0].Label != database.LabelRejected {
		t.Errorf("GetLabels() = %+v", labels)
	}

	rr = httptest.NewRecorder()
	h.GetLabel(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": res.SessionID, "filename": "b.jpg"}))
	var one LabelResponse
	decodeBody(t, rr, &one)
	if one.Filename != "b.jpg" || one.Label != database.LabelRejected {
		t.Errorf("GetLabel(b.jpg) = %+v", one)
	}

	rr = httptest.NewRecorder()
	h.GetLabel(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": currentSession, "filename": "a.jpg"}))
	one = LabelResponse{}
	decodeBody(t, rr, &one)
	if one.Filename != "a.jpg" || one.Label != database.LabelNone {
		t.Errorf("GetLabel(a.jpg) = %+v, want no label", one)
	}

	rr = httptest.NewRecorder()
	h.SetLabel(rr, jsonRequest(t, http.MethodPut, "/", LabelRequest{Filename: "b.jpg"}, vars))
	if rr.Code != http.StatusOK {
		t.Fatalf("clearing label: status %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.GetLabels(rr, jsonRequest(t, http.MethodGet, "/", nil, vars))
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("labels after clear = %s, want []", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.SaveSelection(rr, jsonRequest(t, http.MethodPut, "/", map[string]int{"index": 1}, vars))
	if rr.Code != http.StatusOK {
		t.Fatalf("SaveSelection status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.SaveSelection(rr, jsonRequest(t, http.MethodPut, "/", map[string]string{}, vars))
	expectError(t, rr, http.StatusBadRequest, "invalid_argument")

	rr = httptest.NewRecorder()
	h.GetSession(rr, jsonRequest(t, http.MethodGet, "/", nil, map[string]string{"session": currentSession}))
	var session database.Session
	decodeBody(t, rr, &session)
	if session.LastSelectedIndex != 1 || session.TotalFiles != 2 {
		t.Errorf("GetSession() = %+v", session)
	}

	rr = httptest.NewRecorder()
	h.ListSessions(rr, jsonRequest(t, http.MethodGet, "/", nil, nil))
	var sessions []database.Session
	decodeBody(t, rr, &sessions)
	if len(sessions) != 1 {
		t.Errorf("ListSessions() returned %d sessions", len(sessions))
	}
}

// =============================================================================
// Export and maintenance handlers
// =============================================================================

func TestExportHandler(t *testing.T) {
	h := newTestHandlers(t)
	folder := photoFolder(t, "a.jpg", "b.jpg", "c.jpg")
	res := openFolder(t, h, folder)

	rr := httptest.NewRecorder()
	h.SetLabel(rr, jsonRequest(t, http.MethodPut, "/", LabelRequest{Filename: "b.jpg", Label: "rejected"}, map[string]string{"session": res.SessionID}))

	dest := filepath.Join(t.TempDir(), "out")
	rr = httptest.NewRecorder()
	h.Export(rr, jsonRequest(t, http.MethodPost, "/", ExportRequest{Source: folder, Destination: dest}, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Export status = %d: %s", rr.Code, rr.Body.String())
	}
	var result struct{ Total, Copied, Skipped, Failed int }
	decodeBody(t, rr, &result)
	if result.Total != 3 || result.Copied != 2 || result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("Export() = %+v", result)
	}

	rr = httptest.NewRecorder()
	h.Export(rr, jsonRequest(t, http.MethodPost, "/", ExportRequest{Source: folder, Destination: dest, Mode: "link"}, nil))
	expectError(t, rr, http.StatusBadRequest, "invalid_argument")
}

func TestMaintenanceHandlers(t *testing.T) {
	h := newTestHandlers(t)
	res := openFolder(t, h, photoFolder(t, "a.jpg"))

	rr := httptest.NewRecorder()
	h.SetLabel(rr, jsonRequest(t, http.MethodPut, "/", LabelRequest{Filename: "a.jpg", Label: "adopted"}, map[string]string{"session": res.SessionID}))

	rr = httptest.NewRecorder()
	h.GetStorage(rr, jsonRequest(t, http.MethodGet, "/", nil, nil))
	var storage library.StorageInfo
	decodeBody(t, rr, &storage)
	if storage.CacheSizeBytes == 0 || storage.LabelCount != 1 || storage.SessionCount != 1 {
		t.Errorf("GetStorage() = %+v", storage)
	}

	rr = httptest.NewRecorder()
	h.ClearSessionCache(rr, jsonRequest(t, http.MethodDelete, "/", nil, map[string]string{"session": currentSession}))
	if rr.Code != http.StatusOK {
		t.Fatalf("ClearSessionCache status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ClearAllCache(rr, jsonRequest(t, http.MethodDelete, "/", nil, nil))
	var cleared ClearCacheResponse
	decodeBody(t, rr, &cleared)
	if cleared.FreedDisplay == "" {
		t.Errorf("ClearAllCache() = %+v", cleared)
	}

	rr = httptest.NewRecorder()
	h.ClearAllLabels(rr, jsonRequest(t, http.MethodDelete, "/", nil, nil))
	var deleted map[string]int64
	decodeBody(t, rr, &deleted)
	if deleted["deleted"] != 1 {
		t.Errorf("ClearAllLabels() = %v", deleted)
	}

	rr = httptest.NewRecorder()
	h.SetThreads(rr, jsonRequest(t, http.MethodPut, "/", map[string]int{"threads": 5}, nil))
	var sys library.SystemInfo
	decodeBody(t, rr, &sys)
	if sys.CurrentThreads != 5 || sys.Override == nil || *sys.Override != 5 {
		t.Errorf("SetThreads(5) = %+v", sys)
	}

	rr = httptest.NewRecorder()
	h.SetThreads(rr, jsonRequest(t, http.MethodPut, "/", map[string]int{"threads": -1}, nil))
	expectError(t, rr, http.StatusBadRequest, "invalid_argument")

	rr = httptest.NewRecorder()
	h.SetThreads(rr, jsonRequest(t, http.MethodPut, "/", map[string]interface{}{"threads": nil}, nil))
	sys = library.SystemInfo{}
	decodeBody(t, rr, &sys)
	if sys.Override != nil || sys.CurrentThreads != workers.Recommended() {
		t.Errorf("SetThreads(null) = %+v", sys)
	}

	rr = httptest.NewRecorder()
	h.GetSystem(rr, jsonRequest(t, http.MethodGet, "/", nil, nil))
	if rr.Code != http.StatusOK {
		t.Errorf("GetSystem status = %d", rr.Code)
	}
}

// =============================================================================
// Health and helpers
// =============================================================================

func TestHealthEndpoints(t *testing.T) {
	h := newTestHandlers(t)

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health HealthResponse
	decodeBody(t, rr, &health)
	if rr.Code != http.StatusOK || health.Status != statusHealthy || !health.Ready {
		t.Errorf("HealthCheck() = %d %+v", rr.Code, health)
	}

	rr = httptest.NewRecorder()
	h.ReadinessCheck(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("ReadinessCheck status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.LivenessCheck(rr, httptest.NewRequest(http.MethodHead, "/livez", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d body bytes", rr.Code, rr.Body.Len())
	}

	rr = httptest.NewRecorder()
	h.GetVersion(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	if !strings.Contains(rr.Body.String(), `"version"`) {
		t.Errorf("GetVersion() = %s", rr.Body.String())
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{library.ErrNoActiveSession, http.StatusConflict, "no_active_session"},
		{fmt.Errorf("wrap: %w", library.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument"},
		{library.ErrNotFound, http.StatusNotFound, "not_found"},
		{database.ErrSessionNotFound, http.StatusNotFound, "not_found"},
		{&os.PathError{Op: "open", Path: "x", Err: os.ErrNotExist}, http.StatusNotFound, "not_found"},
		{&raw.Error{Path: "a.nef", Stage: "decode", Err: errors.New("bad")}, http.StatusUnprocessableEntity, "raw_processing"},
		{fmt.Errorf("%w: truncated", media.ErrDecode), http.StatusUnprocessableEntity, "decode"},
		{os.ErrPermission, http.StatusInternalServerError, "io"},
		{errors.New("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		status, kind := classifyError(tt.err)
		if status != tt.status || kind != tt.kind {
			t.Errorf("classifyError(%v) = %d %s, want %d %s", tt.err, status, kind, tt.status, tt.kind)
		}
	}
}

func TestBatchStreamReplay(t *testing.T) {
	s := newBatchStream()
	events, wait, done := s.since(0)
	if len(events) != 0 || done {
		t.Fatal("new stream is not empty")
	}

	s.onProgress(progressTick(1, 2))
	select {
	case <-wait:
	default:
		t.Fatal("publish did not wake waiters")
	}

	s.onProgress(progressTick(2, 2))
	s.onComplete("b1", nil)

	events, _, done = s.since(1)
	if len(events) != 2 || !done {
		t.Fatalf("since(1) = %d events, done %v", len(events), done)
	}
	if events[1].name != eventComplete {
		t.Errorf("last event = %s, want complete", events[1].name)
	}
}

func progressTick(completed, total int) scheduler.Progress {
	return scheduler.Progress{BatchID: "b1", Completed: completed, Total: total}
}
