package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/echocoach/internal/resilience"
)

func passing(name string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return nil }}
}

func failing(name, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error { return errors.New(msg) }}
}

// probe serves path through a mux wired by Register.
func probe(t *testing.T, h *Handler, path string) (int, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("%s Content-Type: got %q", path, ct)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("%s: decode body: %v", path, err)
	}
	return rec.Code, body
}

func TestHealthz_IgnoresCheckers(t *testing.T) {
	t.Parallel()
	code, body := probe(t, New([]Checker{failing("store", "down")}), "/healthz")

	if code != http.StatusOK {
		t.Errorf("status: got %d, want %d", code, http.StatusOK)
	}
	if body["status"] != StatusOK || body["uptime"] == nil {
		t.Errorf("body: got %v", body)
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus string
		wantErrors map[string]string
	}{
		{name: "no checkers", wantStatus: StatusOK},
		{
			name:       "all pass",
			checkers:   []Checker{passing("store"), passing("llm")},
			wantStatus: StatusOK,
			wantErrors: map[string]string{"store": "", "llm": ""},
		},
		{
			name:       "one fails",
			checkers:   []Checker{failing("store", "connection refused"), passing("llm")},
			wantStatus: StatusFail,
			wantErrors: map[string]string{"store": "connection refused", "llm": ""},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rep := New(tc.checkers).Check(context.Background())
			if rep.Status != tc.wantStatus {
				t.Errorf("status: got %q, want %q", rep.Status, tc.wantStatus)
			}
			for name, want := range tc.wantErrors {
				res, ok := rep.Checks[name]
				if !ok {
					t.Errorf("check %q missing from report", name)
					continue
				}
				if res.Error != want {
					t.Errorf("check %q error: got %q, want %q", name, res.Error, want)
				}
			}
		})
	}
}

func TestCheck_Timeout(t *testing.T) {
	t.Parallel()
	slow := Checker{Name: "tts", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	rep := New([]Checker{slow}, WithTimeout(20*time.Millisecond)).Check(context.Background())
	res := rep.Checks["tts"]
	if res.Status != StatusFail || !strings.Contains(res.Error, "no answer within 20ms") {
		t.Errorf("tts: got %+v, want a timeout failure", res)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	code, body := probe(t, New([]Checker{passing("store")}), "/readyz")
	if code != http.StatusOK || body["status"] != StatusOK {
		t.Errorf("healthy: got %d %v", code, body)
	}

	code, body = probe(t, New([]Checker{failing("store", "down")}), "/readyz")
	if code != http.StatusServiceUnavailable || body["status"] != StatusFail {
		t.Errorf("failing: got %d %v", code, body)
	}
}

func TestReadyz_Draining(t *testing.T) {
	t.Parallel()
	h := New([]Checker{passing("store")})
	h.SetDraining()

	code, body := probe(t, h, "/readyz")
	if code != http.StatusServiceUnavailable || body["status"] != StatusDraining {
		t.Errorf("got %d %v, want 503 draining", code, body)
	}
	if code, _ := probe(t, h, "/healthz"); code != http.StatusOK {
		t.Errorf("healthz while draining: got %d, want 200", code)
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingChecker(t *testing.T) {
	t.Parallel()
	if err := PingChecker("store", pinger{}).Check(context.Background()); err != nil {
		t.Errorf("healthy pinger: got %v", err)
	}
	want := errors.New("dial tcp: refused")
	if err := PingChecker("store", pinger{err: want}).Check(context.Background()); !errors.Is(err, want) {
		t.Errorf("failing pinger: got %v, want %v", err, want)
	}
}

func TestBreakerChecker(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		states  map[string]resilience.State
		wantErr string
	}{
		{name: "none"},
		{name: "all closed", states: map[string]resilience.State{"openai": resilience.StateClosed}},
		{name: "fallback alive", states: map[string]resilience.State{"elevenlabs": resilience.StateOpen, "coqui": resilience.StateHalfOpen}},
		{
			name:    "all open",
			states:  map[string]resilience.State{"elevenlabs": resilience.StateOpen, "coqui": resilience.StateOpen},
			wantErr: "all circuits open: coqui, elevenlabs",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := BreakerChecker("tts", func() map[string]resilience.State { return tc.states }).Check(context.Background())
			switch {
			case tc.wantErr == "" && err != nil:
				t.Errorf("got %v, want nil", err)
			case tc.wantErr != "" && (err == nil || err.Error() != tc.wantErr):
				t.Errorf("got %v, want %q", err, tc.wantErr)
			}
		})
	}
}
