// Package api serves the echocoach HTTP surface: the REST endpoints under
// /v1 and the /v1/coach WebSocket that hosts a live coaching session.
//
// Every route requires a bearer token. Errors are JSON objects of the form
// {"error": "<code>", "message": "<detail>"}.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrWong99/echocoach/internal/auth"
	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/internal/interview"
	"github.com/MrWong99/echocoach/internal/observe"
	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/store"
)

const (
	defaultMaxUploadBytes = 10 << 20
	maxJSONBody           = 1 << 20
)

// ErrTooManySessions is returned by [Sessions.Open] when the live session
// cap is reached.
var ErrTooManySessions = errors.New("api: too many live sessions")

var errBadRequest = errors.New("bad request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Service is the backend behind the REST routes. *interview.Service
// implements it.
type Service interface {
	CreateSession(ctx context.Context, userID, sessionType, difficulty string) (*store.Session, error)
	Session(ctx context.Context, id, userID string) (*store.Session, error)
	UpdateSession(ctx context.Context, id, userID string, u store.SessionUpdate) (*store.Session, error)
	CompleteSession(ctx context.Context, sessionID, userID string) (*store.Session, error)
	SessionResponses(ctx context.Context, sessionID string) ([]store.Response, error)
	SessionHistory(ctx context.Context, userID string) ([]store.Session, error)

	NextQuestion(ctx context.Context, sessionID, category, difficulty string) (*store.Question, error)
	ModelAnswer(ctx context.Context, questionText, category, difficulty string) (string, error)
	CustomQuestion(ctx context.Context, jobDescription, sessionID string) (*store.Question, string, error)
	Question(ctx context.Context, id string) (*store.Question, error)

	Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error)
	Voices(ctx context.Context) ([]tts.Voice, error)
	Transcribe(ctx context.Context, clip audio.Clip) (string, error)
	EvaluateAndPersist(ctx context.Context, a interview.Answer, questionText string) (*interview.Result, error)
}

var _ Service = (*interview.Service)(nil)

// Coach is one live coaching session. *coach.Orchestrator implements it.
type Coach interface {
	Start(opts coach.StartOptions) error
	PlaybackEnded(clipID string) error
	RecordingComplete(clip audio.Clip) error
	NextQuestion() error
	EndSession() error
	Close()
	Done() <-chan struct{}
}

var _ Coach = (*coach.Orchestrator)(nil)

// Sessions opens live coaching sessions for the WebSocket handler.
type Sessions interface {
	// Open starts a session reporting to sink. It returns
	// [ErrTooManySessions] when no slot is free.
	Open(ctx context.Context, userID string, sink coach.Sink) (Coach, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMaxUploadBytes caps uploaded recordings. Default: 10 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithAllowedOrigins sets the host patterns accepted on the WebSocket
// handshake in addition to same-origin requests.
func WithAllowedOrigins(patterns ...string) Option {
	return func(s *Server) { s.origins = patterns }
}

// Server holds the HTTP handlers. Create with [New] and mount with
// [Server.Register].
type Server struct {
	svc       Service
	sessions  Sessions
	verifier  *auth.Verifier
	log       *slog.Logger
	maxUpload int64
	origins   []string
}

// New returns a Server. sessions may be nil, in which case /v1/coach is not
// registered.
func New(svc Service, sessions Sessions, verifier *auth.Verifier, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		sessions:  sessions,
		verifier:  verifier,
		log:       slog.Default(),
		maxUpload: defaultMaxUploadBytes,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds all /v1 routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	authn := s.verifier.Middleware(s.fail)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authn(h))
	}

	handle("POST /v1/sessions", s.createSession)
	handle("GET /v1/sessions/history", s.sessionHistory)
	handle("GET /v1/sessions/{id}", s.getSession)
	handle("PUT /v1/sessions/{id}", s.updateSession)
	handle("POST /v1/sessions/{id}/complete", s.completeSession)
	handle("GET /v1/sessions/{id}/responses", s.sessionResponses)

	handle("POST /v1/questions/next", s.nextQuestion)
	handle("POST /v1/questions/model-answer", s.modelAnswer)
	handle("POST /v1/questions/custom-qa", s.customQA)
	handle("GET /v1/questions/{id}", s.getQuestion)

	handle("POST /v1/tts/synthesize", s.synthesize)
	handle("GET /v1/tts/voices", s.voices)
	handle("POST /v1/stt/transcribe", s.transcribe)

	handle("POST /v1/evaluate", s.evaluate)

	if s.sessions != nil {
		handle("GET /v1/coach", s.coachSocket)
	}
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// ── Responses ────────────────────────────────────────────────────────────────

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// statusOf maps err to an HTTP status and a stable error code.
func statusOf(err error) (int, string) {
	var tooBig *http.MaxBytesError
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &tooBig), errors.Is(err, audio.ErrRecordingTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errBadRequest),
		errors.Is(err, coach.ErrUserInputMissing),
		errors.Is(err, interview.ErrInvalidInput),
		errors.Is(err, tts.ErrEmptyText),
		errors.Is(err, stt.ErrEmptyAudio):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, ErrTooManySessions):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// WriteError replies with the JSON error body and status matching err. Other
// handlers mounted next to the API use it to keep error replies uniform.
func (s *Server) WriteError(w http.ResponseWriter, r *http.Request, err error) { s.fail(w, r, err) }

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		observe.Logger(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: code, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body of at most maxJSONBody bytes into v. An
// empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			return err
		case errors.Is(err, io.EOF):
			return nil
		default:
			return invalid("malformed JSON body: %v", err)
		}
	}
	return nil
}

// user returns the caller set by the auth middleware.
func user(r *http.Request) auth.User {
	u, _ := auth.FromContext(r.Context())
	return u
}
