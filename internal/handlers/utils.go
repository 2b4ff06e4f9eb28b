package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"glimpse/internal/database"
	"glimpse/internal/library"
	"glimpse/internal/logging"
	"glimpse/internal/media"
	"glimpse/internal/raw"

	"github.com/gorilla/mux"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// currentSession is the path value that selects the active session.
const currentSession = "current"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONCode writes v as JSON with the given status code.
func writeJSONCode(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, status string) {
	writeJSONCode(w, http.StatusOK, map[string]string{"status": status})
}

// classifyError maps library errors to an HTTP status and a short kind.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, library.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, library.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, library.ErrNotFound),
		errors.Is(err, database.ErrSessionNotFound),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, raw.ErrRawProcessing):
		return http.StatusUnprocessableEntity, "raw_processing"
	case errors.Is(err, media.ErrDecode), errors.Is(err, media.ErrNoExif):
		return http.StatusUnprocessableEntity, "decode"
	case errors.Is(err, fs.ErrPermission):
		return http.StatusInternalServerError, "io"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError reports err as a JSON ErrorResponse.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classifyError(err)
	if status >= http.StatusInternalServerError {
		logging.Error("%s %s failed: %v", r.Method, r.URL.Path, err)
	} else {
		logging.Debug("%s %s rejected (%s): %v", r.Method, r.URL.Path, kind, err)
	}
	writeJSONCode(w, status, ErrorResponse{Error: err.Error(), Kind: kind})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", library.ErrInvalidArgument, err)
	}
	return nil
}

// sessionVar returns the {session} path variable; "current" and "" select
// the active session.
func sessionVar(r *http.Request) string {
	id := mux.Vars(r)["session"]
	if id == currentSession {
		return ""
	}
	return id
}
