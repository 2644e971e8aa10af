// Package memstore is an in-process [store.Store] for development and tests.
// Data lives only as long as the process.
package memstore

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/echocoach/pkg/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps every record in maps guarded by a single RWMutex.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]store.Session
	questions map[string]store.Question
	order     []string // question ids in insertion order
	responses []store.Response
	feedback  []store.Feedback
	now       func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions:  make(map[string]store.Session),
		questions: make(map[string]store.Question),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Seed inserts questions into the bank, typically at startup.
func (s *Store) Seed(ctx context.Context, questions ...store.Question) error {
	for i := range questions {
		if err := s.InsertQuestion(ctx, &questions[i]); err != nil {
			return err
		}
	}
	return nil
}

// ── Sessions ─────────────────────────────────────────────────────────────────

// CreateSession implements [store.SessionStore].
func (s *Store) CreateSession(_ context.Context, sess *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := s.now()
	if sess.StartedAt.IsZero() {
		sess.StartedAt = now
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.Status == "" {
		sess.Status = store.StatusActive
	}
	s.sessions[sess.ID] = *sess
	return nil
}

// GetSession implements [store.SessionStore].
func (s *Store) GetSession(_ context.Context, id, userID string) (*store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok || (userID != "" && sess.UserID != userID) {
		return nil, store.ErrNotFound
	}
	return &sess, nil
}

// UpdateSession implements [store.SessionStore].
func (s *Store) UpdateSession(_ context.Context, id, userID string, u store.SessionUpdate) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || (userID != "" && sess.UserID != userID) {
		return nil, store.ErrNotFound
	}
	if u.Status != nil {
		sess.Status = *u.Status
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		sess.CompletedAt = &t
	}
	if u.TotalQuestions != nil {
		sess.TotalQuestions = *u.TotalQuestions
	}
	if u.AvgClarity != nil {
		sess.AvgClarity = *u.AvgClarity
	}
	if u.AvgConfidence != nil {
		sess.AvgConfidence = *u.AvgConfidence
	}
	s.sessions[id] = sess
	return &sess, nil
}

// ListSessions implements [store.SessionStore].
func (s *Store) ListSessions(_ context.Context, userID string) ([]store.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Session{}
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// ── Questions ────────────────────────────────────────────────────────────────

// GetQuestion implements [store.QuestionStore].
func (s *Store) GetQuestion(_ context.Context, id string) (*store.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.questions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &q, nil
}

// FindQuestions implements [store.QuestionStore].
func (s *Store) FindQuestions(_ context.Context, f store.QuestionFilter) ([]store.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Question{}
	for _, id := range s.order {
		q := s.questions[id]
		if q.Category != f.Category || q.Difficulty != f.Difficulty {
			continue
		}
		if slices.Contains(f.ExcludeTexts, q.Text) {
			continue
		}
		out = append(out, q)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// InsertQuestion implements [store.QuestionStore].
func (s *Store) InsertQuestion(_ context.Context, q *store.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = s.now()
	}
	if _, exists := s.questions[q.ID]; !exists {
		s.order = append(s.order, q.ID)
	}
	s.questions[q.ID] = *q
	return nil
}

// SimilarQuestions implements [store.QuestionStore] with a linear scan.
func (s *Store) SimilarQuestions(_ context.Context, embedding []float32, limit int) ([]store.ScoredQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}
	var out []store.ScoredQuestion
	for _, id := range s.order {
		q := s.questions[id]
		if len(q.Embedding) == 0 || len(q.Embedding) != len(embedding) {
			continue
		}
		out = append(out, store.ScoredQuestion{Question: q, Distance: cosineDistance(q.Embedding, embedding)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []store.ScoredQuestion{}
	}
	return out, nil
}

// ── Responses ────────────────────────────────────────────────────────────────

// InsertResponse implements [store.ResponseStore].
func (s *Store) InsertResponse(_ context.Context, r *store.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	stored := *r
	stored.Question = nil
	stored.Feedback = nil
	s.responses = append(s.responses, stored)
	return nil
}

// InsertFeedback implements [store.ResponseStore].
func (s *Store) InsertFeedback(_ context.Context, f *store.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	s.feedback = append(s.feedback, *f)
	return nil
}

// ListResponses implements [store.ResponseStore].
func (s *Store) ListResponses(_ context.Context, sessionID string) ([]store.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []store.Response{}
	for _, r := range s.responses {
		if r.SessionID != sessionID {
			continue
		}
		if q, ok := s.questions[r.QuestionID]; ok {
			r.Question = &q
		}
		for _, f := range s.feedback {
			if f.ResponseID == r.ID {
				r.Feedback = append(r.Feedback, f)
			}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].QuestionNumber < out[j].QuestionNumber })
	return out, nil
}

// AskedQuestionTexts implements [store.ResponseStore].
func (s *Store) AskedQuestionTexts(_ context.Context, sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, r := range s.responses {
		if r.SessionID != sessionID {
			continue
		}
		if q, ok := s.questions[r.QuestionID]; ok && !slices.Contains(out, q.Text) {
			out = append(out, q.Text)
		}
	}
	return out, nil
}

// cosineDistance matches pgvector's <=> operator: 1 - cosine similarity.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
