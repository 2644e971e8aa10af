package api

import (
	"net/http"

	"github.com/MrWong99/echocoach/pkg/store"
)

type createSessionRequest struct {
	SessionType string `json:"session_type"`
	Difficulty  string `json:"difficulty_level"`
}

type sessionResponse struct {
	Session *store.Session `json:"session"`
}

// createSession handles POST /v1/sessions.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Difficulty != "" && !store.ValidDifficulties[req.Difficulty] {
		s.fail(w, r, invalid("unknown difficulty_level %q", req.Difficulty))
		return
	}

	sess, err := s.svc.CreateSession(r.Context(), user(r).ID, req.SessionType, req.Difficulty)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess})
}

// getSession handles GET /v1/sessions/{id}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.Session(r.Context(), r.PathValue("id"), user(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

// updateSession handles PUT /v1/sessions/{id}.
func (s *Server) updateSession(w http.ResponseWriter, r *http.Request) {
	var u store.SessionUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.svc.UpdateSession(r.Context(), r.PathValue("id"), user(r).ID, u)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

// completeSession handles POST /v1/sessions/{id}/complete.
func (s *Server) completeSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.svc.CompleteSession(r.Context(), r.PathValue("id"), user(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: sess})
}

// sessionResponses handles GET /v1/sessions/{id}/responses.
func (s *Server) sessionResponses(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.svc.Session(r.Context(), id, user(r).ID); err != nil {
		s.fail(w, r, err)
		return
	}
	responses, err := s.svc.SessionResponses(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if responses == nil {
		responses = []store.Response{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": responses})
}

// sessionHistory handles GET /v1/sessions/history.
func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.svc.SessionHistory(r.Context(), user(r).ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// ownSession fails the request unless sessionID is empty or belongs to the
// caller.
func (s *Server) ownSession(w http.ResponseWriter, r *http.Request, sessionID string) bool {
	if sessionID == "" {
		return true
	}
	if _, err := s.svc.Session(r.Context(), sessionID, user(r).ID); err != nil {
		s.fail(w, r, err)
		return false
	}
	return true
}
