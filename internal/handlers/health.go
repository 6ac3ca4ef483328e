package handlers

import (
	"net/http"
	"runtime"
	"time"

	"clip-compiler/internal/startup"
)

const statusHealthy = "healthy"

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	ActiveJobs   int `json:"activeJobs"`
	OpenSessions int `json:"openSessions"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startedAt).Round(time.Second).String(),
		ActiveJobs:   h.registry.ActiveCount(),
		OpenSessions: h.assembler.OpenSessions(),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}

// LivenessCheck is a minimal probe: the process is up.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, "alive")
}

// ReadinessCheck reports whether the service can accept jobs. There is
// no async warm-up, so readiness matches liveness unless the database
// has gone away.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if _, err := h.db.Stats(r.Context()); err != nil {
			writeJSONError(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSONStatus(w, "ready")
}
