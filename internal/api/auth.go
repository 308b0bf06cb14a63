package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/netpanel/internal/freebox"
)

// handleRegister starts the pairing flow with the router. The router
// displays an approval prompt on its front panel and the returned track
// ID is polled via handleTrack until the user responds.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	trackID, err := s.client.Auth().Register(r.Context())
	if err != nil {
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"track_id": trackID,
	})
}

// handleTrack reports the approval state of a pending registration.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	trackID, err := strconv.Atoi(chi.URLParam(r, "trackID"))
	if err != nil {
		writeBadRequest(w, "track ID must be an integer")
		return
	}

	status, err := s.client.Auth().TrackAuthorization(r.Context(), trackID)
	if err != nil {
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"track_id": trackID,
		"status":   status,
	})
}

// handleLogin opens an authenticated session using the stored app token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	err := s.client.Auth().Login(r.Context())
	if err != nil {
		if errors.Is(err, freebox.ErrNoCredential) {
			writeConflict(w, "no app token stored; register first")
			return
		}
		writeUpstreamError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"permissions":   s.client.Auth().Permissions(),
	})
}

// handleLogout terminates the current session. Logging out without a
// session is not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.client.Auth().Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleSession reports whether the current session is still accepted by
// the router. Without a session this answers false without touching the
// network.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": s.client.Auth().CheckSession(r.Context()),
	})
}

// handleResetCredential forgets the stored app token, forcing a fresh
// pairing flow. The in-memory session is cleared as well.
func (s *Server) handleResetCredential(w http.ResponseWriter, _ *http.Request) {
	s.client.Auth().ClearSession()
	if err := s.client.Credentials().Reset(); err != nil {
		writeInternalError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
