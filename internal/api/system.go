package api

import (
	"net/http"
	"time"
)

// handleStatus returns a point-in-time summary of the daemon.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	hub := s.bridge.Status()

	resp := map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"hub":            hub,
	}

	if s.settings != nil {
		settingsStatus := "ok"
		if err := s.settings.HealthCheck(r.Context()); err != nil {
			settingsStatus = "unhealthy"
		}
		resp["settings"] = settingsStatus
	}

	writeJSON(w, http.StatusOK, resp)
}
