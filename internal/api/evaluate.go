package api

import (
	"net/http"
	"strings"

	"github.com/MrWong99/echocoach/internal/interview"
)

type evaluateRequest struct {
	SessionID      string `json:"session_id"`
	QuestionID     string `json:"question_id"`
	QuestionNumber int    `json:"question_number"`
	Transcript     string `json:"transcript"`
	QuestionText   string `json:"question_text"`
}

func (req evaluateRequest) missing() []string {
	var m []string
	for _, f := range []struct{ name, value string }{
		{"session_id", req.SessionID},
		{"question_id", req.QuestionID},
		{"transcript", req.Transcript},
		{"question_text", req.QuestionText},
	} {
		if strings.TrimSpace(f.value) == "" {
			m = append(m, f.name)
		}
	}
	return m
}

// evaluate handles POST /v1/evaluate: the answer is scored and stored with
// its feedback.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if m := req.missing(); len(m) > 0 {
		s.fail(w, r, invalid("missing required fields: %s", strings.Join(m, ", ")))
		return
	}
	if !s.ownSession(w, r, req.SessionID) {
		return
	}

	res, err := s.svc.EvaluateAndPersist(r.Context(), interview.Answer{
		SessionID:      req.SessionID,
		QuestionID:     req.QuestionID,
		QuestionNumber: req.QuestionNumber,
		Transcript:     req.Transcript,
	}, req.QuestionText)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
