package handlers

import (
	"net/http"

	"glimpse/internal/logging"

	"github.com/dustin/go-humanize"
)

// ExportRequest copies or moves the kept images of a folder.
type ExportRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Mode        string `json:"mode"`
}

// ClearCacheResponse reports the space freed by ClearAllCache.
type ClearCacheResponse struct {
	BytesFreed   int64  `json:"bytesFreed"`
	FreedDisplay string `json:"freedDisplay"`
}

// ThreadsRequest sets the worker override; a null value restores auto.
type ThreadsRequest struct {
	Threads *int `json:"threads"`
}

// Export copies or moves every image of source not labeled rejected.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Mode == "" {
		req.Mode = "copy"
	}

	result, err := h.lib.Export(r.Context(), req.Source, req.Destination, req.Mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logging.Info("Export %s -> %s (%s): %d copied, %d skipped, %d failed",
		req.Source, req.Destination, req.Mode, result.Copied, result.Skipped, result.Failed)
	writeJSONCode(w, http.StatusOK, result)
}

// ClearSessionCache drops the cached assets of one session.
func (h *Handlers) ClearSessionCache(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.ClearCache(r.Context(), sessionVar(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "cleared")
}

// ClearAllCache drops every cached asset and session.
func (h *Handlers) ClearAllCache(w http.ResponseWriter, r *http.Request) {
	freed, err := h.lib.ClearAllCache(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, ClearCacheResponse{
		BytesFreed:   freed,
		FreedDisplay: humanize.IBytes(uint64(freed)),
	})
}

// ClearAllLabels deletes every label of every session.
func (h *Handlers) ClearAllLabels(w http.ResponseWriter, r *http.Request) {
	n, err := h.lib.ClearAllLabels(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, map[string]int64{"deleted": n})
}

// GetStorage reports cache size and row counts.
func (h *Handlers) GetStorage(w http.ResponseWriter, r *http.Request) {
	info, err := h.lib.StorageInfo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, info)
}

// GetSystem reports CPU and thread settings.
func (h *Handlers) GetSystem(w http.ResponseWriter, _ *http.Request) {
	writeJSONCode(w, http.StatusOK, h.lib.SystemInfo())
}

// SetThreads saves the worker override and returns the new settings.
func (h *Handlers) SetThreads(w http.ResponseWriter, r *http.Request) {
	var req ThreadsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.lib.SetThreadCount(req.Threads); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, h.lib.SystemInfo())
}
