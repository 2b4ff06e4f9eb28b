package handlers

import (
	"net/http"

	"glimpse/internal/database"
	"glimpse/internal/library"

	"github.com/gorilla/mux"
)

// OpenRequest names the folder to open.
type OpenRequest struct {
	Path string `json:"path"`
}

// LabelRequest sets or clears the label of one file. An empty label
// clears it.
type LabelRequest struct {
	Filename string `json:"filename"`
	Label    string `json:"label"`
}

// LabelResponse is the label of one file.
type LabelResponse struct {
	Filename string         `json:"filename"`
	Label    database.Label `json:"label"`
}

// SelectionRequest stores the viewer position.
type SelectionRequest struct {
	Index *int `json:"index"`
}

// OpenFolder scans a folder, makes it the active session and starts its
// thumbnail batch. Progress is available from the batch endpoints.
func (h *Handlers) OpenFolder(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stream := newBatchStream()
	res, err := h.lib.Open(r.Context(), req.Path, library.OpenHooks{
		OnProgress: stream.onProgress,
		OnComplete: stream.onComplete,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.progress.register(res.BatchID, stream)

	if res.Labels == nil {
		res.Labels = []database.FileLabel{}
	}
	writeJSONCode(w, http.StatusOK, res)
}

// ListSessions returns every known session.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.lib.ListSessions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, sessions)
}

// GetSession returns one session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.lib.GetSession(r.Context(), sessionVar(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, session)
}

// GetLabels returns the labels of a session.
func (h *Handlers) GetLabels(w http.ResponseWriter, r *http.Request) {
	labels, err := h.lib.Labels(r.Context(), sessionVar(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if labels == nil {
		labels = []database.FileLabel{}
	}
	writeJSONCode(w, http.StatusOK, labels)
}

// GetLabel returns the label of one file. Unlabeled files report an
// empty label.
func (h *Handlers) GetLabel(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	label, err := h.lib.Label(r.Context(), sessionVar(r), filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, LabelResponse{Filename: filename, Label: label})
}

// SetLabel sets or clears the label of one file.
func (h *Handlers) SetLabel(w http.ResponseWriter, r *http.Request) {
	var req LabelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.lib.SetLabel(r.Context(), sessionVar(r), req.Filename, database.Label(req.Label)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}

// SaveSelection stores the index of the selected image.
func (h *Handlers) SaveSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Index == nil {
		writeJSONCode(w, http.StatusBadRequest, ErrorResponse{Error: "index is required", Kind: "invalid_argument"})
		return
	}

	if err := h.lib.SaveSelection(r.Context(), sessionVar(r), *req.Index); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, "ok")
}
