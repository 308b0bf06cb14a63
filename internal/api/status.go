package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/netpanel/internal/history"
)

// statusResponse is the dashboard summary returned by handleStatus.
type statusResponse struct {
	Registered    bool                      `json:"registered"`
	Authenticated bool                      `json:"authenticated"`
	Model         string                    `json:"model,omitempty"`
	SlowHardware  bool                      `json:"slow_hardware"`
	Latest        map[string]history.Sample `json:"latest"`
}

// handleStatus returns the client's registration and session state, the
// detected router model, and the latest collected sample per endpoint.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	latest, err := s.history.LatestByEndpoint(r.Context())
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Registered:    s.client.Auth().IsRegistered(),
		Authenticated: s.client.Auth().IsAuthenticated(),
		Model:         s.client.Profile().Model(),
		SlowHardware:  s.client.Profile().SlowClass(),
		Latest:        latest,
	})
}

// handleHistory returns recent status samples, newest first. The limit
// query parameter caps the result set.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	samples, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeInternalError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"samples": samples,
		"count":   len(samples),
	})
}
