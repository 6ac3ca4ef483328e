package handlers

import (
	"net/http"

	"clip-compiler/internal/database"
	"clip-compiler/internal/logging"
)

// StatsResponse combines live state with the durable job history.
type StatsResponse struct {
	ActiveJobs   int `json:"activeJobs"`
	OpenSessions int `json:"openSessions"`

	History database.JobStats    `json:"history"`
	Recent  []database.JobRecord `json:"recent,omitempty"`
}

// GetStats returns live and historical job statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	response := StatsResponse{
		ActiveJobs:   h.registry.ActiveCount(),
		OpenSessions: h.assembler.OpenSessions(),
	}

	if h.db != nil {
		history, err := h.db.Stats(r.Context())
		if err != nil {
			logging.Error("Failed to query stats: %v", err)
			writeJSONError(w, "failed to query stats", http.StatusInternalServerError)
			return
		}
		response.History = history

		recent, err := h.db.RecentJobs(r.Context(), 20)
		if err != nil {
			logging.Warn("Failed to query recent jobs: %v", err)
		} else {
			response.Recent = recent
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, response)
}
