// Package mock provides test doubles for the coach package: a call-recording
// Backend, an event-recording Sink and a manually advanced Clock.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/store"
)

var _ coach.Backend = (*Backend)(nil)

// Call records one Backend invocation.
type Call struct {
	Method string
	Args   []any
}

// Backend is a configurable coach.Backend. Zero-value fields produce sensible
// canned results: questions are numbered "q1", "q2", ..., synthesized clips
// carry the text as MP3 payload, and evaluation returns Evaluation.
type Backend struct {
	mu    sync.Mutex
	calls []Call
	qn    int

	Questions       []store.Question
	ModelAnswerText string
	CustomAnswer    string
	TranscriptText  string
	Evaluation      store.Evaluation

	// SynthesizeFunc overrides the default synthesis when set.
	SynthesizeFunc func(ctx context.Context, text string) (*audio.Clip, error)
	// TranscribeFunc overrides TranscriptText and TranscribeErr when set.
	TranscribeFunc func(ctx context.Context, clip audio.Clip) (string, error)

	CreateSessionErr   error
	NextQuestionErr    error
	CustomQuestionErr  error
	ModelAnswerErr     error
	SynthesizeErr      error
	TranscribeErr      error
	EvaluateErr        error
	PersistResponseErr error
	CompleteSessionErr error
}

func (b *Backend) record(method string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Method: method, Args: args})
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallCount returns how often method was called.
func (b *Backend) CallCount(method string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (b *Backend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *Backend) CreateSession(_ context.Context, userID, sessionType, difficulty string) (*store.Session, error) {
	b.record("CreateSession", userID, sessionType, difficulty)
	if b.CreateSessionErr != nil {
		return nil, b.CreateSessionErr
	}
	return &store.Session{ID: "sess-1", UserID: userID, SessionType: sessionType, Difficulty: difficulty, Status: store.StatusActive}, nil
}

func (b *Backend) NextQuestion(_ context.Context, sessionID, category, difficulty string) (*store.Question, error) {
	b.record("NextQuestion", sessionID, category, difficulty)
	if b.NextQuestionErr != nil {
		return nil, b.NextQuestionErr
	}
	return b.nextQuestion(category, difficulty), nil
}

func (b *Backend) nextQuestion(category, difficulty string) *store.Question {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.qn
	b.qn++
	if i < len(b.Questions) {
		q := b.Questions[i]
		return &q
	}
	return &store.Question{
		ID:         fmt.Sprintf("q%d", i+1),
		Text:       fmt.Sprintf("Question number %d?", i+1),
		Category:   category,
		Difficulty: difficulty,
	}
}

func (b *Backend) CustomQuestion(_ context.Context, jobDescription, sessionID string) (*store.Question, string, error) {
	b.record("CustomQuestion", jobDescription, sessionID)
	if b.CustomQuestionErr != nil {
		return nil, "", b.CustomQuestionErr
	}
	q := b.nextQuestion(store.CategoryCustom, store.DifficultyMedium)
	return q, b.CustomAnswer, nil
}

func (b *Backend) ModelAnswer(_ context.Context, questionText, category, difficulty string) (string, error) {
	b.record("ModelAnswer", questionText, category, difficulty)
	if b.ModelAnswerErr != nil {
		return "", b.ModelAnswerErr
	}
	return b.ModelAnswerText, nil
}

func (b *Backend) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	b.record("Synthesize", text, voice)
	if b.SynthesizeFunc != nil {
		return b.SynthesizeFunc(ctx, text)
	}
	if b.SynthesizeErr != nil {
		return nil, b.SynthesizeErr
	}
	return &audio.Clip{Data: []byte(text), ContentType: audio.ContentTypeMP3}, nil
}

func (b *Backend) Transcribe(ctx context.Context, clip audio.Clip) (string, error) {
	b.record("Transcribe", len(clip.Data))
	if b.TranscribeFunc != nil {
		return b.TranscribeFunc(ctx, clip)
	}
	return b.TranscriptText, b.TranscribeErr
}

func (b *Backend) Evaluate(_ context.Context, questionText, transcript string) (*store.Evaluation, error) {
	b.record("Evaluate", questionText, transcript)
	if b.EvaluateErr != nil {
		return nil, b.EvaluateErr
	}
	e := b.Evaluation
	return &e, nil
}

func (b *Backend) PersistResponse(_ context.Context, sessionID, questionID string, number int, transcript string, eval store.Evaluation) (string, error) {
	b.record("PersistResponse", sessionID, questionID, number, transcript, eval)
	if b.PersistResponseErr != nil {
		return "", b.PersistResponseErr
	}
	return fmt.Sprintf("resp-%d", number), nil
}

func (b *Backend) CompleteSession(_ context.Context, sessionID, userID string) (*store.Session, error) {
	b.record("CompleteSession", sessionID, userID)
	if b.CompleteSessionErr != nil {
		return nil, b.CompleteSessionErr
	}
	return &store.Session{ID: sessionID, UserID: userID, Status: store.StatusCompleted}, nil
}

// Texts returns the texts passed to Synthesize, in call order.
func (b *Backend) Texts() []string {
	var out []string
	for _, c := range b.Calls() {
		if c.Method == "Synthesize" {
			out = append(out, c.Args[0].(string))
		}
	}
	return out
}
