// Package interview implements the coaching backend: session bookkeeping,
// question selection and generation, model answers, transcription, answer
// evaluation and persistence. [Service] satisfies [coach.Backend] and also
// serves the REST and MCP surfaces.
//
// Question selection prefers the stored bank. When the bank has no unasked
// question for the requested category and difficulty, a new one is generated
// with the LLM, checked against the bank for near-duplicates (Jaro-Winkler on
// normalised text and, when an embeddings provider is configured, vector
// distance) and persisted.
//
// Generation errors are returned to the caller; the orchestrator owns the
// user-facing fallbacks. The only exception is question text, which falls
// back to a fixed prompt so a session never runs out of questions.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
	"github.com/MrWong99/echocoach/pkg/provider/llm"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/store"
)

const (
	defaultSessionType = store.CategoryGeneral
	defaultCategory    = store.CategoryBehavioral
	defaultDifficulty  = store.DifficultyMedium

	// candidatePool is how many stored questions are considered for the
	// random pick.
	candidatePool = 5

	defaultGenerateAttempts = 3
)

var _ coach.Backend = (*Service)(nil)

// ErrInvalidInput marks a request with a malformed field.
var ErrInvalidInput = errors.New("interview: invalid input")

// Option configures a [Service].
type Option func(*Service)

// WithEmbeddings enables vector based duplicate detection for generated
// questions and stores their embeddings.
func WithEmbeddings(p embeddings.Provider) Option {
	return func(s *Service) { s.embedder = p }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithVoice sets the voice used when Synthesize is called without one.
func WithVoice(v tts.Voice) Option {
	return func(s *Service) { s.voice = v }
}

// WithSTTOptions sets the language and keyword hints for transcription.
func WithSTTOptions(o stt.Options) Option {
	return func(s *Service) { s.sttOpts = o }
}

// WithDedupThresholds overrides the Jaro-Winkler similarity (default 0.92)
// and cosine distance (default 0.08) at which a generated question counts as
// a duplicate. Non-positive values keep the default.
func WithDedupThresholds(similarity, distance float64) Option {
	return func(s *Service) {
		if similarity > 0 {
			s.similarity = similarity
		}
		if distance > 0 {
			s.distance = distance
		}
	}
}

// WithGenerateAttempts sets how many generations are tried before a
// duplicate is accepted anyway. Default: 3.
func WithGenerateAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithRand replaces the random pick among stored candidates. intn must
// return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(s *Service) { s.intn = intn }
}

// WithNow replaces the wall clock used for completion timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the interview backend. It is safe for concurrent use.
type Service struct {
	store    store.Store
	llm      llm.Provider
	tts      tts.Provider
	stt      stt.Provider
	embedder embeddings.Provider

	log        *slog.Logger
	voice      tts.Voice
	sttOpts    stt.Options
	similarity float64
	distance   float64
	attempts   int
	intn       func(n int) int
	now        func() time.Time
}

// New returns a Service using st for persistence and the given providers.
func New(st store.Store, l llm.Provider, t tts.Provider, s stt.Provider, opts ...Option) *Service {
	svc := &Service{
		store:      st,
		llm:        l,
		tts:        t,
		stt:        s,
		log:        slog.Default(),
		similarity: defaultSimilarityThreshold,
		distance:   defaultDistanceThreshold,
		attempts:   defaultGenerateAttempts,
		intn:       rand.IntN,
		now:        time.Now,
	}
	for _, o := range opts {
		o(svc)
	}
	svc.log = svc.log.With("component", "interview")
	return svc
}

// Store returns the underlying persistence layer.
func (s *Service) Store() store.Store { return s.store }

// ── Sessions ─────────────────────────────────────────────────────────────────

// CreateSession starts a new active session for userID.
func (s *Service) CreateSession(ctx context.Context, userID, sessionType, difficulty string) (*store.Session, error) {
	if sessionType == "" {
		sessionType = defaultSessionType
	}
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	sess := &store.Session{
		UserID:      userID,
		SessionType: sessionType,
		Difficulty:  difficulty,
		Status:      store.StatusActive,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("interview: create session: %w", err)
	}
	s.log.Info("session created", "session_id", sess.ID, "user_id", userID, "type", sessionType)
	return sess, nil
}

// CompleteSession marks the session completed and stores the averages over
// its recorded responses.
func (s *Service) CompleteSession(ctx context.Context, sessionID, userID string) (*store.Session, error) {
	responses, err := s.store.ListResponses(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("interview: list responses: %w", err)
	}

	var clarity, confidence float64
	for _, r := range responses {
		clarity += r.Evaluation.Clarity
		confidence += r.Evaluation.Confidence
	}
	if n := len(responses); n > 0 {
		clarity /= float64(n)
		confidence /= float64(n)
	}

	status := store.StatusCompleted
	completed := s.now().UTC()
	total := len(responses)
	sess, err := s.store.UpdateSession(ctx, sessionID, userID, store.SessionUpdate{
		Status:         &status,
		CompletedAt:    &completed,
		TotalQuestions: &total,
		AvgClarity:     &clarity,
		AvgConfidence:  &confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("interview: complete session: %w", err)
	}
	s.log.Info("session completed", "session_id", sessionID, "responses", total)
	return sess, nil
}

// Session returns the session with id owned by userID.
func (s *Service) Session(ctx context.Context, id, userID string) (*store.Session, error) {
	sess, err := s.store.GetSession(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("interview: get session: %w", err)
	}
	return sess, nil
}

// UpdateSession applies u to the session with id owned by userID.
func (s *Service) UpdateSession(ctx context.Context, id, userID string, u store.SessionUpdate) (*store.Session, error) {
	if u.Status != nil && !u.Status.IsValid() {
		return nil, fmt.Errorf("interview: %w: unknown status %q", ErrInvalidInput, *u.Status)
	}
	sess, err := s.store.UpdateSession(ctx, id, userID, u)
	if err != nil {
		return nil, fmt.Errorf("interview: update session: %w", err)
	}
	return sess, nil
}

// SessionHistory returns every session of userID, newest first.
func (s *Service) SessionHistory(ctx context.Context, userID string) ([]store.Session, error) {
	sessions, err := s.store.ListSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("interview: session history: %w", err)
	}
	return sessions, nil
}

// SessionResponses returns the responses of sessionID ordered by question
// number, with question and feedback attached.
func (s *Service) SessionResponses(ctx context.Context, sessionID string) ([]store.Response, error) {
	responses, err := s.store.ListResponses(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("interview: session responses: %w", err)
	}
	return responses, nil
}

// ── Questions ────────────────────────────────────────────────────────────────

// NextQuestion returns a question not yet answered in sessionID. It picks at
// random among up to five stored matches and generates a new question when
// none is left.
func (s *Service) NextQuestion(ctx context.Context, sessionID, category, difficulty string) (*store.Question, error) {
	if category == "" {
		category = defaultCategory
	}
	if difficulty == "" {
		difficulty = defaultDifficulty
	}

	asked, err := s.store.AskedQuestionTexts(ctx, sessionID)
	if err != nil {
		// Not fatal: worst case a question repeats.
		s.log.Warn("loading asked questions failed", "session_id", sessionID, "err", err)
	}

	candidates, err := s.store.FindQuestions(ctx, store.QuestionFilter{
		Category:     category,
		Difficulty:   difficulty,
		ExcludeTexts: asked,
		Limit:        candidatePool,
	})
	if err != nil {
		s.log.Warn("loading stored questions failed", "category", category, "difficulty", difficulty, "err", err)
	}
	if len(candidates) > 0 {
		q := candidates[s.intn(len(candidates))]
		return &q, nil
	}
	return s.generateQuestion(ctx, category, difficulty, asked)
}

// Question returns the stored question with id.
func (s *Service) Question(ctx context.Context, id string) (*store.Question, error) {
	q, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("interview: get question: %w", err)
	}
	return q, nil
}

func (s *Service) generateQuestion(ctx context.Context, category, difficulty string, asked []string) (*store.Question, error) {
	known, err := s.bankTexts(ctx, category, difficulty)
	if err != nil {
		s.log.Warn("loading question bank failed", "err", err)
	}
	known = append(known, asked...)
	avoid := append([]string(nil), asked...)

	var (
		text string
		vec  []float32
	)
	for attempt := 1; attempt <= s.attempts; attempt++ {
		text = s.completeQuestion(ctx, category, difficulty, avoid)
		var (
			dup   duplicate
			isDup bool
		)
		vec, dup, isDup, err = s.checkDuplicate(ctx, text, known)
		if err != nil {
			return nil, err
		}
		if !isDup {
			break
		}
		s.log.Info("generated question rejected as duplicate",
			"attempt", attempt,
			"method", dup.Method,
			"score", dup.Score,
			"duplicate_of", dup.Of,
		)
		avoid = append(avoid, dup.Of)
		if attempt == s.attempts {
			s.log.Warn("keeping duplicate question after retries", "question", text)
		}
	}

	q := &store.Question{
		Text:             text,
		Category:         category,
		Difficulty:       difficulty,
		ExpectedKeywords: []string{},
		FollowUpPrompts:  []string{},
		Embedding:        vec,
	}
	if err := s.store.InsertQuestion(ctx, q); err != nil {
		return nil, fmt.Errorf("interview: insert generated question: %w", err)
	}
	return q, nil
}

// completeQuestion asks the LLM for one question. Errors and empty replies
// yield the fallback question.
func (s *Service) completeQuestion(ctx context.Context, category, difficulty string, avoid []string) string {
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     llm.UserPrompt(questionPrompt(category, difficulty, avoid)),
		Temperature:  questionTemperature,
		MaxTokens:    questionMaxTokens,
	})
	if err != nil {
		s.log.Warn("question generation failed, using fallback", "model", s.llm.Model(), "err", err)
		return fallbackQuestion
	}
	if text := cleanQuestion(resp.Content); text != "" {
		return text
	}
	return fallbackQuestion
}

type customQA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CustomQuestion generates a question and model answer tailored to
// jobDescription and stores the question with category custom.
func (s *Service) CustomQuestion(ctx context.Context, jobDescription, sessionID string) (*store.Question, string, error) {
	jobDescription = strings.TrimSpace(jobDescription)
	if jobDescription == "" {
		return nil, "", fmt.Errorf("interview: %w: job description", coach.ErrUserInputMissing)
	}
	var asked []string
	if sessionID != "" {
		var err error
		if asked, err = s.store.AskedQuestionTexts(ctx, sessionID); err != nil {
			s.log.Warn("loading asked questions failed", "session_id", sessionID, "err", err)
		}
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     llm.UserPrompt(customPrompt(jobDescription, asked)),
		Temperature:  customTemperature,
		MaxTokens:    customMaxTokens,
		JSONMode:     true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("interview: custom question: %w", err)
	}
	qa, err := decodeJSON[customQA](resp.Content)
	if err != nil {
		return nil, "", fmt.Errorf("interview: custom question: %w", err)
	}
	if qa.Question = cleanQuestion(qa.Question); qa.Question == "" {
		qa.Question = fallbackCustomQ
	}
	if qa.Answer = strings.TrimSpace(qa.Answer); qa.Answer == "" {
		qa.Answer = fallbackCustomAnswer
	}

	q := &store.Question{
		Text:             qa.Question,
		Category:         store.CategoryCustom,
		Difficulty:       store.DifficultyMedium,
		ExpectedKeywords: []string{},
		FollowUpPrompts:  []string{},
	}
	if err := s.store.InsertQuestion(ctx, q); err != nil {
		return nil, "", fmt.Errorf("interview: insert custom question: %w", err)
	}
	return q, qa.Answer, nil
}

// ModelAnswer generates a short exemplary answer to questionText.
func (s *Service) ModelAnswer(ctx context.Context, questionText, category, difficulty string) (string, error) {
	if category == "" {
		category = defaultCategory
	}
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     llm.UserPrompt(modelAnswerPrompt(questionText, category, difficulty)),
		Temperature:  answerTemperature,
		MaxTokens:    answerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("interview: model answer: %w", err)
	}
	if answer := strings.TrimSpace(resp.Content); answer != "" {
		return answer, nil
	}
	return fallbackModelAnswer, nil
}

// ── Speech ───────────────────────────────────────────────────────────────────

// Synthesize renders text with voice, or with the configured voice when
// voice has no ID.
func (s *Service) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	if voice.ID == "" {
		voice = s.voice
	}
	clip, err := s.tts.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, fmt.Errorf("interview: synthesize: %w", err)
	}
	return clip, nil
}

// Voices lists the voices of the TTS provider.
func (s *Service) Voices(ctx context.Context) ([]tts.Voice, error) {
	voices, err := s.tts.ListVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("interview: list voices: %w", err)
	}
	return voices, nil
}

// Transcribe returns the recognised text of clip.
func (s *Service) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	t, err := s.TranscribeDetailed(ctx, clip)
	if err != nil {
		return "", err
	}
	return t.Text, nil
}

// TranscribeDetailed returns the full transcript including timing data.
func (s *Service) TranscribeDetailed(ctx context.Context, clip audio.Clip) (*stt.Transcript, error) {
	t, err := s.stt.Transcribe(ctx, clip, s.sttOpts)
	if err != nil {
		if errors.Is(err, stt.ErrEmptyAudio) {
			return nil, fmt.Errorf("interview: %w: %w", coach.ErrUserInputMissing, err)
		}
		return nil, fmt.Errorf("interview: transcribe: %w", err)
	}
	t.Text = strings.TrimSpace(t.Text)
	return t, nil
}
