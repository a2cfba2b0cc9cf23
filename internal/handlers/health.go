package handlers

import (
	"net/http"
	"time"
)

// Health reports liveness plus pairing registry counters.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"pairing":   h.coordinator.Stats(),
	})
}
