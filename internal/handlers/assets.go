package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// serveAsset serves a cached JPEG. Cached files only change when the
// cache is cleared, so clients revalidate instead of caching blindly.
func serveAsset(w http.ResponseWriter, r *http.Request, path string) {
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, path)
}

// GetThumbnail serves the thumbnail of a file, or 404 until it is generated.
func (h *Handlers) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	path, err := h.lib.ThumbnailPath(sessionVar(r), mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	serveAsset(w, r, path)
}

// GetPreview serves the large preview of a RAW file.
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	path, err := h.lib.PreviewPath(sessionVar(r), mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	serveAsset(w, r, path)
}

// GetCacheStatus returns the cache index entry of a file.
func (h *Handlers) GetCacheStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.lib.CacheStatus(r.Context(), sessionVar(r), mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, status)
}

// GetExif returns the EXIF summary of a file.
func (h *Handlers) GetExif(w http.ResponseWriter, r *http.Request) {
	info, err := h.lib.Exif(r.Context(), sessionVar(r), mux.Vars(r)["filename"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONCode(w, http.StatusOK, info)
}
