package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/echocoach/internal/api"
	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/internal/dialogue"
	"github.com/MrWong99/echocoach/internal/observe"
	"github.com/MrWong99/echocoach/pkg/store"
)

// ErrShuttingDown is returned by [SessionManager.Open] after CloseAll.
var ErrShuttingDown = errors.New("app: server is shutting down")

// SessionInfo holds metadata about a live coaching session.
type SessionInfo struct {
	// ID identifies the connection, not the stored interview session.
	ID string

	// UserID is the authenticated owner.
	UserID string

	// StartedAt is when the WebSocket was opened.
	StartedAt time.Time
}

// liveSession is one running orchestrator and what is known about it.
type liveSession struct {
	info SessionInfo
	orch *coach.Orchestrator

	mu   sync.Mutex
	mode dialogue.Mode
}

func (s *liveSession) setMode(m dialogue.Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *liveSession) currentMode() dialogue.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SessionManager runs one [coach.Orchestrator] per coaching WebSocket and
// enforces the concurrent session cap. All exported methods are safe for
// concurrent use.
type SessionManager struct {
	backend  coach.Backend
	notifier coach.Notifier
	metrics  *observe.Metrics
	log      *slog.Logger

	mu          sync.Mutex
	pacing      coach.Config
	maxSessions int
	sessions    map[string]*liveSession
	closed      bool
	wg          sync.WaitGroup
}

var _ api.Sessions = (*SessionManager)(nil)

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// Backend serves every orchestrator. Required.
	Backend coach.Backend

	// Pacing is the orchestrator timing for new sessions.
	Pacing coach.Config

	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int

	// Notifier, when set, is told about completed sessions.
	Notifier coach.Notifier

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SessionManager{
		backend:     cfg.Backend,
		notifier:    cfg.Notifier,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		pacing:      cfg.Pacing,
		maxSessions: cfg.MaxSessions,
		sessions:    make(map[string]*liveSession),
	}
}

// Open starts an orchestrator that reports to sink. It runs until ctx is
// cancelled or the returned coach is closed.
//
// Returns [api.ErrTooManySessions] when the cap is reached.
func (sm *SessionManager) Open(ctx context.Context, userID string, sink coach.Sink) (api.Coach, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.closed {
		return nil, ErrShuttingDown
	}
	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		return nil, api.ErrTooManySessions
	}

	ls := &liveSession{info: SessionInfo{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartedAt: time.Now().UTC(),
	}}
	log := sm.log.With("conn_id", ls.info.ID, "user_id", userID)

	opts := []coach.Option{
		coach.WithLogger(log),
		coach.WithPhaseObserver(func(mode dialogue.Mode, from, to dialogue.Phase) {
			ls.setMode(mode)
			sm.metrics.RecordPhaseTransition(ctx, mode.String(), from.String(), to.String())
		}),
		coach.WithNotifier(&completionNotifier{session: ls, metrics: sm.metrics, next: sm.notifier}),
	}
	ls.orch = coach.New(sm.pacing, sm.backend, sink, opts...)
	sm.sessions[ls.info.ID] = ls
	sm.metrics.ActiveSessions.Add(ctx, 1)

	sm.wg.Add(1)
	go sm.run(ctx, ls, log)

	log.Info("coaching session opened", "live_sessions", len(sm.sessions))
	return ls.orch, nil
}

func (sm *SessionManager) run(ctx context.Context, ls *liveSession, log *slog.Logger) {
	defer sm.wg.Done()

	err := ls.orch.Run(ctx)

	sm.mu.Lock()
	delete(sm.sessions, ls.info.ID)
	remaining := len(sm.sessions)
	sm.mu.Unlock()
	// ctx may already be cancelled; the gauge must still go down.
	sm.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("coaching session stopped", "err", err)
	}
	log.Info("coaching session closed",
		"duration", time.Since(ls.info.StartedAt).Truncate(time.Millisecond),
		"live_sessions", remaining,
	)
}

// Active returns metadata about all live sessions.
func (sm *SessionManager) Active() []SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	out := make([]SessionInfo, 0, len(sm.sessions))
	for _, ls := range sm.sessions {
		out = append(out, ls.info)
	}
	return out
}

// Len returns the number of live sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// UpdatePacing applies cfg to sessions opened from now on and to the later
// timers of running ones.
func (sm *SessionManager) UpdatePacing(cfg coach.Config) {
	sm.mu.Lock()
	sm.pacing = cfg
	live := make([]*liveSession, 0, len(sm.sessions))
	for _, ls := range sm.sessions {
		live = append(live, ls)
	}
	sm.mu.Unlock()

	for _, ls := range live {
		// ErrClosed only means the session ended meanwhile.
		_ = ls.orch.UpdateConfig(cfg)
	}
}

// SetMaxSessions changes the cap. Sessions above a lowered cap keep running.
func (sm *SessionManager) SetMaxSessions(n int) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.maxSessions = n
}

// CloseAll stops every live session, refuses new ones and waits for the
// orchestrators to exit or ctx to expire.
func (sm *SessionManager) CloseAll(ctx context.Context) error {
	sm.mu.Lock()
	sm.closed = true
	for _, ls := range sm.sessions {
		ls.orch.Close()
	}
	sm.mu.Unlock()

	done := make(chan struct{})
	go func() {
		sm.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// completionNotifier records the completion metrics of one session and
// forwards to the configured notifier.
type completionNotifier struct {
	session *liveSession
	metrics *observe.Metrics
	next    coach.Notifier
}

func (n *completionNotifier) SessionCompleted(ctx context.Context, sess store.Session, summary coach.Summary) error {
	n.metrics.RecordSessionCompleted(ctx, n.session.currentMode().String(), summary.QuestionsAnswered)
	if n.next == nil {
		return nil
	}
	return n.next.SessionCompleted(ctx, sess, summary)
}
