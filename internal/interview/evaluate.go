package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/echocoach/pkg/provider/llm"
	"github.com/MrWong99/echocoach/pkg/store"
)

const (
	defaultScore = 50
	defaultPace  = 120
)

// ErrEmptyCompletion is returned when the model replies with no content.
var ErrEmptyCompletion = errors.New("interview: empty completion")

// Evaluate scores transcript as an answer to questionText.
func (s *Service) Evaluate(ctx context.Context, questionText, transcript string) (*store.Evaluation, error) {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     llm.UserPrompt(evaluationPrompt(questionText, transcript)),
		Temperature:  evalTemperature,
		MaxTokens:    evalMaxTokens,
		JSONMode:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("interview: evaluate: %w", err)
	}
	s.log.Debug("answer evaluated", "model", s.llm.Model(), "tokens", resp.Usage.TotalTokens)
	e, err := decodeJSON[store.Evaluation](resp.Content)
	if err != nil {
		return nil, fmt.Errorf("interview: evaluate: %w", err)
	}
	normalizeEvaluation(&e)
	return &e, nil
}

// normalizeEvaluation fills missing fields with neutral defaults and clamps
// scores to [0, 100].
func normalizeEvaluation(e *store.Evaluation) {
	for _, score := range []*float64{&e.Clarity, &e.Confidence, &e.TechnicalAccuracy} {
		if *score == 0 {
			*score = defaultScore
		}
		*score = min(max(*score, 0), 100)
	}
	if e.SpeechPace <= 0 {
		e.SpeechPace = defaultPace
	}
	e.FillerWordCount = max(e.FillerWordCount, 0)
	e.PauseCount = max(e.PauseCount, 0)
	if e.FeedbackText = strings.TrimSpace(e.FeedbackText); e.FeedbackText == "" {
		e.FeedbackText = fallbackFeedback
	}
	if e.ImprovementSuggestions == nil {
		e.ImprovementSuggestions = []string{}
	}
	if e.Strengths == nil {
		e.Strengths = []string{}
	}
	if e.AreasToImprove == nil {
		e.AreasToImprove = []string{}
	}
}

func decodeJSON[T any](content string) (T, error) {
	var v T
	cleaned := stripMarkdown(content)
	if cleaned == "" {
		return v, ErrEmptyCompletion
	}
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return v, fmt.Errorf("parse completion: %w", err)
	}
	return v, nil
}

// Answer is one answer to persist.
type Answer struct {
	SessionID      string
	QuestionID     string
	QuestionNumber int
	Transcript     string
}

// Result is a persisted answer with its feedback. Feedback is nil when it
// could not be stored.
type Result struct {
	Response   store.Response   `json:"response"`
	Feedback   *store.Feedback  `json:"feedback"`
	Evaluation store.Evaluation `json:"evaluation"`
}

// PersistResponse stores the answer and its feedback and returns the
// response id.
func (s *Service) PersistResponse(ctx context.Context, sessionID, questionID string, number int, transcript string, eval store.Evaluation) (string, error) {
	res, err := s.persist(ctx, Answer{
		SessionID:      sessionID,
		QuestionID:     questionID,
		QuestionNumber: number,
		Transcript:     transcript,
	}, eval)
	if err != nil {
		return "", err
	}
	return res.Response.ID, nil
}

// EvaluateAndPersist evaluates a, stores it and returns everything written.
func (s *Service) EvaluateAndPersist(ctx context.Context, a Answer, questionText string) (*Result, error) {
	eval, err := s.Evaluate(ctx, questionText, a.Transcript)
	if err != nil {
		return nil, err
	}
	return s.persist(ctx, a, *eval)
}

func (s *Service) persist(ctx context.Context, a Answer, eval store.Evaluation) (*Result, error) {
	r := &store.Response{
		SessionID:      a.SessionID,
		QuestionID:     a.QuestionID,
		QuestionNumber: a.QuestionNumber,
		Transcript:     a.Transcript,
		Evaluation:     eval,
	}
	if err := s.store.InsertResponse(ctx, r); err != nil {
		return nil, fmt.Errorf("interview: insert response: %w", err)
	}
	res := &Result{Response: *r, Evaluation: eval}

	f := store.FeedbackFromEvaluation(r.ID, a.SessionID, eval)
	if err := s.store.InsertFeedback(ctx, &f); err != nil {
		// The response itself is stored; feedback history is secondary.
		s.log.Warn("storing feedback failed", "response_id", r.ID, "err", err)
		return res, nil
	}
	res.Feedback = &f
	return res, nil
}
