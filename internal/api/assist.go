package api

import (
	"encoding/json"
	"net/http"
)

// tierRequest is the body of a power-tier classification request.
type tierRequest struct {
	Text string `json:"text"`
}

// handleQualityScore reports the assistant's current input quality score.
func (s *Server) handleQualityScore(w http.ResponseWriter, r *http.Request) {
	if s.quality == nil {
		writeUnavailable(w, "no quality scorer is configured")
		return
	}

	score, err := s.quality.QualityScore(r.Context())
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"score": score})
}

// handleClassifyTier maps free text onto a power tier.
func (s *Server) handleClassifyTier(w http.ResponseWriter, r *http.Request) {
	if s.tier == nil {
		writeUnavailable(w, "no tier classifier is configured")
		return
	}

	var req tierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Text == "" {
		writeBadRequest(w, "text is required")
		return
	}

	tier, err := s.tier.Classify(r.Context(), req.Text)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"tier": tier})
}
