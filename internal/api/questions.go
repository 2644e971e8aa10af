package api

import (
	"net/http"
	"strings"

	"github.com/MrWong99/echocoach/pkg/store"
)

type nextQuestionRequest struct {
	SessionID  string `json:"session_id"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
}

type questionResponse struct {
	Question    *store.Question `json:"question"`
	ModelAnswer string          `json:"model_answer,omitempty"`
}

// nextQuestion handles POST /v1/questions/next.
func (s *Server) nextQuestion(w http.ResponseWriter, r *http.Request) {
	var req nextQuestionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Category != "" && !store.ValidCategories[req.Category] {
		s.fail(w, r, invalid("unknown category %q", req.Category))
		return
	}
	if req.Difficulty != "" && !store.ValidDifficulties[req.Difficulty] {
		s.fail(w, r, invalid("unknown difficulty %q", req.Difficulty))
		return
	}
	if !s.ownSession(w, r, req.SessionID) {
		return
	}

	q, err := s.svc.NextQuestion(r.Context(), req.SessionID, req.Category, req.Difficulty)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: q})
}

type modelAnswerRequest struct {
	QuestionText string `json:"question_text"`
	Category     string `json:"category"`
	Difficulty   string `json:"difficulty"`
}

// modelAnswer handles POST /v1/questions/model-answer.
func (s *Server) modelAnswer(w http.ResponseWriter, r *http.Request) {
	var req modelAnswerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.QuestionText) == "" {
		s.fail(w, r, invalid("question_text is required"))
		return
	}

	answer, err := s.svc.ModelAnswer(r.Context(), req.QuestionText, req.Category, req.Difficulty)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model_answer": answer})
}

type customQARequest struct {
	JobDescription string `json:"job_description"`
	SessionID      string `json:"session_id"`
}

// customQA handles POST /v1/questions/custom-qa.
func (s *Server) customQA(w http.ResponseWriter, r *http.Request) {
	var req customQARequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		s.fail(w, r, invalid("job_description is required"))
		return
	}
	if !s.ownSession(w, r, req.SessionID) {
		return
	}

	q, answer, err := s.svc.CustomQuestion(r.Context(), req.JobDescription, req.SessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: q, ModelAnswer: answer})
}

// getQuestion handles GET /v1/questions/{id}.
func (s *Server) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := s.svc.Question(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, questionResponse{Question: q})
}
