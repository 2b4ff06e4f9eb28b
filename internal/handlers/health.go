package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"glimpse/internal/logging"
	"glimpse/internal/media"
	"glimpse/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// readinessTimeout bounds the store probe of the health endpoints.
const readinessTimeout = 2 * time.Second

// HealthResponse contains the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Ready         bool   `json:"ready"`
	Version       string `json:"version"`
	Uptime        string `json:"uptime"`
	Error         string `json:"error,omitempty"`
	ActiveSession string `json:"activeSession,omitempty"`
	VipsAvailable bool   `json:"vipsAvailable"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Stats summary
	Sessions int64 `json:"sessions"`
	Labels   int64 `json:"labels"`
}

// probe checks that the store answers.
func (h *Handlers) probe(ctx context.Context) (sessions, labels int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()

	info, err := h.lib.StorageInfo(ctx)
	if err != nil {
		return 0, 0, err
	}
	return info.SessionCount, info.LabelCount, nil
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:        statusHealthy,
		Ready:         true,
		Version:       startup.Version,
		Uptime:        time.Since(h.started).Round(time.Second).String(),
		ActiveSession: h.lib.ActiveSession(),
		VipsAvailable: media.IsVipsAvailable(),
		GoVersion:     runtime.Version(),
		NumCPU:        runtime.NumCPU(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	sessions, labels, err := h.probe(r.Context())
	if err != nil {
		logging.Warn("Health check: store probe failed: %v", err)
		response.Status = statusDegraded
		response.Ready = false
		response.Error = err.Error()
	}
	response.Sessions = sessions
	response.Labels = labels

	// Return 503 only if the store is unreachable
	code := http.StatusOK
	if !response.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONCode(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the store answers
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.probe(r.Context()); err != nil {
		writeJSONCode(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
		})
		return
	}
	writeJSONStatus(w, "ready")
}
