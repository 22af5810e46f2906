package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status", s.handleStatus)

			// Hub configuration
			r.Route("/hub", func(r chi.Router) {
				r.Get("/", s.handleGetHub)
				r.Put("/", s.handleConfigureHub)
				r.Delete("/", s.handleDisconnectHub)
			})

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/find", s.handleFindDevice)
			})

			// Command endpoints, mapping 1:1 onto the bridge dispatcher
			r.Route("/commands", func(r chi.Router) {
				r.Post("/turn_on", s.handleTurnOn)
				r.Post("/turn_off", s.handleTurnOff)
				r.Post("/toggle", s.handleToggle)
				r.Post("/brightness", s.handleSetBrightness)
				r.Post("/area", s.handleControlArea)
			})

			// Assistant collaborator endpoints
			r.Route("/assist", func(r chi.Router) {
				r.Get("/quality", s.handleQualityScore)
				r.Post("/tier", s.handleClassifyTier)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
