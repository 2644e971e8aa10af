// Package app wires all echocoach subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithNotifier, WithListener). When an option is not provided, New creates
// real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/echocoach/internal/api"
	"github.com/MrWong99/echocoach/internal/auth"
	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/internal/config"
	"github.com/MrWong99/echocoach/internal/health"
	"github.com/MrWong99/echocoach/internal/interview"
	"github.com/MrWong99/echocoach/internal/mcpserver"
	"github.com/MrWong99/echocoach/internal/notify"
	"github.com/MrWong99/echocoach/internal/observe"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	"github.com/MrWong99/echocoach/pkg/store"
	"github.com/MrWong99/echocoach/pkg/store/memstore"
	"github.com/MrWong99/echocoach/pkg/store/postgres"
)

const (
	readHeaderTimeout = 10 * time.Second
	idleTimeout       = 120 * time.Second
	drainTimeout      = 10 * time.Second
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	logLevel  *slog.LevelVar

	store     store.Store
	notifier  coach.Notifier
	checkers  []health.Checker
	health    *health.Handler
	service   *interview.Service
	sessions  *SessionManager
	handler   http.Handler
	server    *http.Server
	listener  net.Listener

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithNotifier injects a session-complete notifier instead of the Discord
// webhook from config.
func WithNotifier(n coach.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithMetrics replaces [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets config reloads change the level of the process logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = v }
}

// WithListener serves on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers come
// from [BuildProviders]. Use Option functions to inject test doubles.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if providers == nil || providers.LLM == nil || providers.STT == nil || providers.TTS == nil {
		return nil, errors.New("app: llm, stt and tts providers are required")
	}
	a.closers = append(a.closers, providers.Close)

	// ── 1. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Interview service ─────────────────────────────────────────────
	a.initService()

	// ── 3. Notifier ──────────────────────────────────────────────────────
	if err := a.initNotifier(); err != nil {
		return nil, fmt.Errorf("app: init notifier: %w", err)
	}

	// ── 4. Coaching sessions ─────────────────────────────────────────────
	a.sessions = NewSessionManager(SessionManagerConfig{
		Backend:     a.service,
		Pacing:      cfg.Coach.Pacing(),
		MaxSessions: cfg.Coach.MaxSessions,
		Notifier:    a.notifier,
		Metrics:     a.metrics,
	})

	// ── 5. HTTP surface ──────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects to PostgreSQL, or falls back to the in-memory store
// when no DSN is configured.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		if p, ok := a.store.(health.Pinger); ok {
			a.checkers = append(a.checkers, health.PingChecker("store", p))
		}
		return nil
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		a.store = memstore.New()
		slog.Info("using in-memory store")
		return nil
	}

	if e := a.providers.Embeddings; e != nil {
		if d := e.Dimensions(); d > 0 && d != a.cfg.Store.EmbeddingDimensions {
			return fmt.Errorf("app: embeddings model produces %d dimensions but store.embedding_dimensions is %d", d, a.cfg.Store.EmbeddingDimensions)
		}
	}
	opts := []postgres.Option{
		postgres.WithEmbeddingDimensions(a.cfg.Store.EmbeddingDimensions),
		postgres.WithMaxConns(a.cfg.Store.MaxConns),
	}
	if a.cfg.Store.TraceQueries {
		opts = append(opts, postgres.WithQueryTracing())
	}
	pg, err := postgres.NewStore(ctx, dsn, opts...)
	if err != nil {
		return err
	}
	a.store = pg
	a.checkers = append(a.checkers, health.PingChecker("store", pg))
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	slog.Info("connected to postgres store", "embedding_dimensions", a.cfg.Store.EmbeddingDimensions)
	return nil
}

func (a *App) initService() {
	opts := []interview.Option{
		interview.WithVoice(a.cfg.Coach.Voice.TTSVoice()),
		interview.WithSTTOptions(stt.Options{Language: a.cfg.Coach.Language}),
	}
	if a.cfg.Coach.GenerateAttempts > 0 {
		opts = append(opts, interview.WithGenerateAttempts(a.cfg.Coach.GenerateAttempts))
	}
	if a.providers.Embeddings != nil {
		opts = append(opts, interview.WithEmbeddings(a.providers.Embeddings))
	}
	a.service = interview.New(a.store, a.providers.LLM, a.providers.TTS, a.providers.STT, opts...)
}

func (a *App) initNotifier() error {
	if a.notifier != nil || a.cfg.Notify.DiscordWebhookURL == "" {
		return nil
	}
	d, err := notify.NewDiscord(a.cfg.Notify.DiscordWebhookURL)
	if err != nil {
		return err
	}
	a.notifier = d
	slog.Info("discord session notifications enabled")
	return nil
}

// initHTTP assembles the API, health, metrics and MCP routes behind the
// observability middleware.
func (a *App) initHTTP() {
	verifier := auth.NewVerifier(auth.Config{
		Secret:   a.cfg.Auth.JWTSecret,
		Issuer:   a.cfg.Auth.Issuer,
		Audience: a.cfg.Auth.Audience,
	})
	apiServer := api.New(a.service, a.sessions, verifier,
		api.WithMaxUploadBytes(a.cfg.Server.MaxUploadBytes),
		api.WithAllowedOrigins(a.cfg.Server.AllowedOrigins...),
	)

	mux := http.NewServeMux()
	apiServer.Register(mux)

	checkers := append([]health.Checker(nil), a.checkers...)
	for _, kind := range []string{"llm", "stt", "tts", "embeddings"} {
		if states, ok := a.providers.Breakers[kind]; ok {
			checkers = append(checkers, health.BreakerChecker(kind, states))
		}
	}
	a.health = health.New(checkers)
	a.health.Register(mux)

	mux.Handle("GET "+a.cfg.Observe.MetricsPath, promhttp.Handler())

	if a.cfg.MCP.Enabled {
		mux.Handle(a.cfg.MCP.Path, mcpserver.New(a.service, verifier, apiServer.WriteError).HTTPHandler())
		slog.Info("mcp endpoint enabled", "path", a.cfg.MCP.Path)
	}

	a.handler = observe.Middleware(a.metrics)(mux)
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Sessions returns the live coaching session registry.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and blocks until ctx is cancelled or the server fails.
// When ctx is done, in-flight requests get a short grace period and Run
// returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("app: listen on %s: %w", a.server.Addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.health.SetDraining()
		// Long-lived coaching sockets are not tracked by Shutdown; close
		// them so their handlers return.
		closeCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := a.sessions.CloseAll(closeCtx); err != nil {
			slog.Warn("coaching sessions did not stop in time", "err", err)
		}
		if err := a.server.Shutdown(closeCtx); err != nil {
			slog.Warn("http server shutdown error", "err", err)
		}
		return nil
	})

	slog.Info("http server listening", "addr", ln.Addr().String(), "tls", a.cfg.Server.TLS != nil)
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig applies the live-reloadable parts of a changed config. It is
// meant as the [config.Watcher] callback.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.Empty() {
		return
	}

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.CoachChanged {
		a.sessions.UpdatePacing(new.Coach.Pacing())
		slog.Info("coach pacing reloaded", "live_sessions", a.sessions.Len())
	}

	if d.MaxSessionsChanged {
		a.sessions.SetMaxSessions(d.NewMaxSessions)
		slog.Info("max sessions changed", "max_sessions", d.NewMaxSessions)
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config sections changed that need a restart to take effect", "sections", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems. It respects the context deadline: if
// ctx expires before all closers finish, remaining closers are skipped and
// the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.sessions.CloseAll(ctx); err != nil {
			slog.Warn("coaching sessions did not stop in time", "err", err)
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// SlogLevel converts a config log level to a [slog.Level].
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
