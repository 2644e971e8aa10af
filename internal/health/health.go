// Package health serves the liveness and readiness probes.
//
// GET /healthz answers 200 as long as the process can serve HTTP. GET /readyz
// runs every registered [Checker] and answers 503 when one of them fails or
// the server is draining for shutdown.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/echocoach/internal/resilience"
)

// DefaultTimeout bounds one readiness check.
const DefaultTimeout = 5 * time.Second

// Probe states in the JSON bodies.
const (
	StatusOK       = "ok"
	StatusFail     = "fail"
	StatusDraining = "draining"
)

// Checker probes one dependency. Check returns nil when it is usable and
// must return once ctx is done.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is implemented by stores that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports whether p answers a ping.
func PingChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// BreakerChecker fails only when every breaker returned by states is open.
// One provider in the fallback chain that still accepts calls keeps the
// service ready.
func BreakerChecker(name string, states func() map[string]resilience.State) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		var open []string
		for provider, st := range states() {
			if st != resilience.StateOpen {
				return nil
			}
			open = append(open, provider)
		}
		if len(open) == 0 {
			return nil
		}
		slices.Sort(open)
		return fmt.Errorf("all circuits open: %s", strings.Join(open, ", "))
	}}
}

// CheckResult is the outcome of one checker in a /readyz body.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the /readyz body.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type liveness struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Handler serves the probes. The checker list is fixed at construction.
type Handler struct {
	checkers []Checker
	timeout  time.Duration
	started  time.Time
	draining atomic.Bool
}

// Option configures a [Handler].
type Option func(*Handler)

// WithTimeout overrides [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// New creates a Handler that runs checkers on every readiness probe.
func New(checkers []Checker, opts ...Option) *Handler {
	h := &Handler{
		checkers: slices.Clone(checkers),
		timeout:  DefaultTimeout,
		started:  time.Now(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetDraining makes /readyz fail so load balancers stop routing new
// sessions here while existing ones wind down.
func (h *Handler) SetDraining() { h.draining.Store(true) }

// Register adds GET /healthz and GET /readyz to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveness{
		Status: StatusOK,
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, Report{Status: StatusDraining})
		return
	}
	rep := h.Check(r.Context())
	code := http.StatusOK
	if rep.Status != StatusOK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// Check runs all checkers concurrently, each bounded by the handler timeout.
func (h *Handler) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		g.Go(func() error {
			results[i] = h.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusOK}
	if len(results) > 0 {
		rep.Checks = make(map[string]CheckResult, len(results))
	}
	for i, res := range results {
		rep.Checks[h.checkers[i].Name] = res
		if res.Status != StatusOK {
			rep.Status = StatusFail
		}
	}
	return rep
}

func (h *Handler) run(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	res := CheckResult{Status: StatusOK, LatencyMS: time.Since(start).Milliseconds()}
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("no answer within %s", h.timeout)
	}
	if err != nil {
		res.Status, res.Error = StatusFail, err.Error()
	}
	return res
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
