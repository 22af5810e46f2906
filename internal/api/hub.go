package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hearthvoice/hearth-core/internal/bridges/hass"
	"github.com/hearthvoice/hearth-core/internal/settings"
)

// hubRequest is the body of a hub configuration request.
type hubRequest struct {
	URL           string `json:"url"`
	Token         string `json:"token"`
	AutoDiscovery bool   `json:"auto_discovery"`
}

// handleGetHub returns the current hub configuration status.
// The access token is never echoed back.
func (s *Server) handleGetHub(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

// handleConfigureHub connects the bridge to a hub and persists the
// settings so the daemon reconfigures itself on the next start.
func (s *Server) handleConfigureHub(w http.ResponseWriter, r *http.Request) {
	var req hubRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	count, err := s.bridge.Configure(r.Context(), hass.Config{
		URL:           req.URL,
		Token:         req.Token,
		AutoDiscovery: req.AutoDiscovery,
	})
	if err != nil {
		switch {
		case errors.Is(err, hass.ErrInvalidConfig):
			writeBadRequest(w, err.Error())
		case hass.IsAuthError(err):
			writeUnauthorized(w, "hub rejected the access token")
		default:
			writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
		}
		return
	}

	if s.settings != nil {
		saveErr := s.settings.SaveHub(r.Context(), settings.HubSettings{
			URL:           req.URL,
			Token:         req.Token,
			AutoDiscovery: req.AutoDiscovery,
		})
		if saveErr != nil {
			// Connected but not persisted; the caller should know.
			s.logger.Warn("hub connected but settings not saved", "error", saveErr)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_count": count,
	})
}

// handleDisconnectHub tears down the hub connection and forgets the
// stored settings.
func (s *Server) handleDisconnectHub(w http.ResponseWriter, r *http.Request) {
	s.bridge.Disconnect()

	if s.settings != nil {
		if err := s.settings.ClearHub(r.Context()); err != nil {
			s.logger.Warn("clearing stored hub settings", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"disconnected": true})
}
