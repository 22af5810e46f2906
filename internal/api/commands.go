package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hearthvoice/hearth-core/internal/bridges/hass"
)

// commandRequest is the body of a single-device command.
type commandRequest struct {
	// Query is the entity id or partial device name.
	Query string `json:"query"`

	// Brightness is a percentage in [0, 100]. Only meaningful for lights.
	Brightness *int `json:"brightness,omitempty"`
}

// areaRequest is the body of a batched area command.
type areaRequest struct {
	Area       string `json:"area"`
	Action     string `json:"action"`
	Brightness *int   `json:"brightness,omitempty"`
}

// commandResponse carries a dispatcher result back to the caller.
type commandResponse struct {
	Done    bool   `json:"done"`
	Message string `json:"message,omitempty"`
}

// handleTurnOn turns a device on, optionally at a brightness percentage.
func (s *Server) handleTurnOn(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res, err := s.bridge.TurnOn(r.Context(), req.Query, hass.TurnOnOptions{Brightness: req.Brightness})
	s.writeCommandResult(w, res, err)
}

// handleTurnOff turns a device off.
func (s *Server) handleTurnOff(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res, err := s.bridge.TurnOff(r.Context(), req.Query)
	s.writeCommandResult(w, res, err)
}

// handleToggle toggles a device.
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}

	res, err := s.bridge.Toggle(r.Context(), req.Query)
	s.writeCommandResult(w, res, err)
}

// handleSetBrightness sets a light's brightness percentage.
func (s *Server) handleSetBrightness(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommand(w, r)
	if !ok {
		return
	}
	if req.Brightness == nil {
		writeBadRequest(w, "brightness is required")
		return
	}

	res, err := s.bridge.SetBrightness(r.Context(), req.Query, *req.Brightness)
	s.writeCommandResult(w, res, err)
}

// handleControlArea batch-controls the lights and switches in an area.
func (s *Server) handleControlArea(w http.ResponseWriter, r *http.Request) {
	var req areaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Area == "" {
		writeBadRequest(w, "area is required")
		return
	}
	if req.Action == "" {
		writeBadRequest(w, "action is required")
		return
	}

	res, err := s.bridge.ControlArea(r.Context(), req.Area, req.Action, req.Brightness)
	s.writeCommandResult(w, res, err)
}

// decodeCommand parses and validates a single-device command body.
// On failure it writes the error response and returns ok=false.
func decodeCommand(w http.ResponseWriter, r *http.Request) (commandRequest, bool) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return commandRequest{}, false
	}
	if req.Query == "" {
		writeBadRequest(w, "query is required")
		return commandRequest{}, false
	}
	return req, true
}

// writeCommandResult maps a dispatcher outcome onto an HTTP response.
//
// Declined results (unknown device, wrong device kind) are still 200s: the
// caller's request was understood and answered, just not with an action.
func (s *Server) writeCommandResult(w http.ResponseWriter, res hass.CommandResult, err error) {
	if err != nil {
		switch {
		case errors.Is(err, hass.ErrNotConfigured):
			writeConflict(w, "hub is not configured")
		case errors.Is(err, hass.ErrCommandFailed), errors.Is(err, hass.ErrServiceCall):
			writeError(w, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
		default:
			writeInternalError(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, commandResponse{Done: res.Done, Message: res.Message})
}
