package handler

import (
	"encoding/json"
	"net/http"
)

// Status serves the combined protection snapshot.
func (h *GuardHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guard.ProtectionStatus())
}

// Statistics serves the registry occupancy summary.
func (h *GuardHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guard.Statistics())
}

// Patterns serves the pattern risk analysis.
func (h *GuardHandler) Patterns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guard.PatternAnalysis())
}

// CallStack serves the per-caller call stack visualization.
func (h *GuardHandler) CallStack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.guard.CallStackVisualization())
}

// Reset force-closes every circuit. POST only; operational escape hatch.
func (h *GuardHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.guard.ResetAll()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
