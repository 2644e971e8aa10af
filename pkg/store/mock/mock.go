// Package mock provides a call-recording test double for [store.Store].
//
// Store delegates to an in-memory [memstore.Store] so that reads observe
// earlier writes, and exposes per-method error fields to inject failures.
// It is safe for concurrent use.
//
// Typical usage:
//
//	s := mock.New()
//	s.InsertResponseErr = errors.New("disk full")
//
//	// inject s into the system under test …
//
//	if got := s.CallCount("InsertResponse"); got != 1 {
//	    t.Errorf("InsertResponse calls: got %d, want 1", got)
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/echocoach/pkg/store"
	"github.com/MrWong99/echocoach/pkg/store/memstore"
)

var _ store.Store = (*Store)(nil)

// Call records the name and non-context arguments of a method invocation.
type Call struct {
	Method string
	Args   []any
}

// Store is a configurable test double for [store.Store].
type Store struct {
	mu    sync.Mutex
	calls []Call
	inner *memstore.Store

	CreateSessionErr      error
	GetSessionErr         error
	UpdateSessionErr      error
	ListSessionsErr       error
	GetQuestionErr        error
	FindQuestionsErr      error
	InsertQuestionErr     error
	SimilarQuestionsErr   error
	InsertResponseErr     error
	InsertFeedbackErr     error
	ListResponsesErr      error
	AskedQuestionTextsErr error
}

// New returns an empty mock store.
func New() *Store {
	return &Store{inner: memstore.New()}
}

// Inner exposes the backing store for seeding test data without recording
// calls.
func (m *Store) Inner() *memstore.Store { return m.inner }

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls without altering error configuration or data.
func (m *Store) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// record appends a call and returns the configured error for it.
func (m *Store) record(method string, err *error, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Args: args})
	return *err
}

// CreateSession implements [store.SessionStore].
func (m *Store) CreateSession(ctx context.Context, s *store.Session) error {
	if err := m.record("CreateSession", &m.CreateSessionErr, *s); err != nil {
		return err
	}
	return m.inner.CreateSession(ctx, s)
}

// GetSession implements [store.SessionStore].
func (m *Store) GetSession(ctx context.Context, id, userID string) (*store.Session, error) {
	if err := m.record("GetSession", &m.GetSessionErr, id, userID); err != nil {
		return nil, err
	}
	return m.inner.GetSession(ctx, id, userID)
}

// UpdateSession implements [store.SessionStore].
func (m *Store) UpdateSession(ctx context.Context, id, userID string, u store.SessionUpdate) (*store.Session, error) {
	if err := m.record("UpdateSession", &m.UpdateSessionErr, id, userID, u); err != nil {
		return nil, err
	}
	return m.inner.UpdateSession(ctx, id, userID, u)
}

// ListSessions implements [store.SessionStore].
func (m *Store) ListSessions(ctx context.Context, userID string) ([]store.Session, error) {
	if err := m.record("ListSessions", &m.ListSessionsErr, userID); err != nil {
		return nil, err
	}
	return m.inner.ListSessions(ctx, userID)
}

// GetQuestion implements [store.QuestionStore].
func (m *Store) GetQuestion(ctx context.Context, id string) (*store.Question, error) {
	if err := m.record("GetQuestion", &m.GetQuestionErr, id); err != nil {
		return nil, err
	}
	return m.inner.GetQuestion(ctx, id)
}

// FindQuestions implements [store.QuestionStore].
func (m *Store) FindQuestions(ctx context.Context, f store.QuestionFilter) ([]store.Question, error) {
	if err := m.record("FindQuestions", &m.FindQuestionsErr, f); err != nil {
		return nil, err
	}
	return m.inner.FindQuestions(ctx, f)
}

// InsertQuestion implements [store.QuestionStore].
func (m *Store) InsertQuestion(ctx context.Context, q *store.Question) error {
	if err := m.record("InsertQuestion", &m.InsertQuestionErr, *q); err != nil {
		return err
	}
	return m.inner.InsertQuestion(ctx, q)
}

// SimilarQuestions implements [store.QuestionStore].
func (m *Store) SimilarQuestions(ctx context.Context, embedding []float32, limit int) ([]store.ScoredQuestion, error) {
	if err := m.record("SimilarQuestions", &m.SimilarQuestionsErr, embedding, limit); err != nil {
		return nil, err
	}
	return m.inner.SimilarQuestions(ctx, embedding, limit)
}

// InsertResponse implements [store.ResponseStore].
func (m *Store) InsertResponse(ctx context.Context, r *store.Response) error {
	if err := m.record("InsertResponse", &m.InsertResponseErr, *r); err != nil {
		return err
	}
	return m.inner.InsertResponse(ctx, r)
}

// InsertFeedback implements [store.ResponseStore].
func (m *Store) InsertFeedback(ctx context.Context, f *store.Feedback) error {
	if err := m.record("InsertFeedback", &m.InsertFeedbackErr, *f); err != nil {
		return err
	}
	return m.inner.InsertFeedback(ctx, f)
}

// ListResponses implements [store.ResponseStore].
func (m *Store) ListResponses(ctx context.Context, sessionID string) ([]store.Response, error) {
	if err := m.record("ListResponses", &m.ListResponsesErr, sessionID); err != nil {
		return nil, err
	}
	return m.inner.ListResponses(ctx, sessionID)
}

// AskedQuestionTexts implements [store.ResponseStore].
func (m *Store) AskedQuestionTexts(ctx context.Context, sessionID string) ([]string, error) {
	if err := m.record("AskedQuestionTexts", &m.AskedQuestionTextsErr, sessionID); err != nil {
		return nil, err
	}
	return m.inner.AskedQuestionTexts(ctx, sessionID)
}
