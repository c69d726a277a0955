package handlers

import "net/http"

// SessionCounter reports open sessions.
type SessionCounter interface {
	Count() int
}

// NewHealthHandler returns GET /health handler.
func NewHealthHandler(sessions SessionCounter, sinks []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"sessions": sessions.Count(),
			"sinks":    sinks,
		})
	}
}
