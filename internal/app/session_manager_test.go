package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/echocoach/internal/api"
	"github.com/MrWong99/echocoach/internal/app"
	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/internal/coach/mock"
	"github.com/MrWong99/echocoach/internal/dialogue"
	"github.com/MrWong99/echocoach/internal/observe"
	"github.com/MrWong99/echocoach/pkg/store"
)

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counter returns the summed value of metric name over data points carrying
// key=value, or over all points when key is empty.
func counter(t *testing.T, reader *sdkmetric.ManualReader, name, key, value string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not an int64 sum", name)
			}
			for _, dp := range sum.DataPoints {
				if key == "" {
					total += dp.Value
					continue
				}
				if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

type recordingNotifier struct {
	mu        sync.Mutex
	summaries []coach.Summary
}

func (n *recordingNotifier) SessionCompleted(_ context.Context, _ store.Session, s coach.Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, s)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.summaries)
}

func newManager(t *testing.T, max int, opts ...func(*app.SessionManagerConfig)) (*app.SessionManager, *sdkmetric.ManualReader) {
	t.Helper()
	m, reader := newTestMetrics(t)
	cfg := app.SessionManagerConfig{
		Backend:     &mock.Backend{},
		Pacing:      coach.Config{PracticeRepeatDelay: 10 * time.Millisecond, SettleDelay: 10 * time.Millisecond},
		MaxSessions: max,
		Metrics:     m,
	}
	for _, o := range opts {
		o(&cfg)
	}
	sm := app.NewSessionManager(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sm.CloseAll(ctx)
	})
	return sm, reader
}

// waitLen polls until sm holds n sessions.
func waitLen(t *testing.T, sm *app.SessionManager, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for sm.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("live sessions: got %d, want %d", sm.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionManager_OpenAndClose(t *testing.T) {
	t.Parallel()
	sm, reader := newManager(t, 0)

	live, err := sm.Open(context.Background(), "alice", mock.NewSink())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := sm.Len(); got != 1 {
		t.Fatalf("Len: got %d, want 1", got)
	}
	info := sm.Active()
	if len(info) != 1 || info[0].UserID != "alice" || info[0].ID == "" {
		t.Errorf("Active: got %+v", info)
	}
	if got := counter(t, reader, "echocoach.active_sessions", "", ""); got != 1 {
		t.Errorf("active_sessions: got %d, want 1", got)
	}

	live.Close()
	select {
	case <-live.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("orchestrator did not stop after Close")
	}
	waitLen(t, sm, 0)
	if got := counter(t, reader, "echocoach.active_sessions", "", ""); got != 0 {
		t.Errorf("active_sessions after close: got %d, want 0", got)
	}
}

func TestSessionManager_ContextCancelEndsSession(t *testing.T) {
	t.Parallel()
	sm, _ := newManager(t, 0)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := sm.Open(ctx, "alice", mock.NewSink()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	cancel()
	waitLen(t, sm, 0)
}

func TestSessionManager_MaxSessions(t *testing.T) {
	t.Parallel()
	sm, _ := newManager(t, 1)
	ctx := context.Background()

	if _, err := sm.Open(ctx, "alice", mock.NewSink()); err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if _, err := sm.Open(ctx, "bob", mock.NewSink()); !errors.Is(err, api.ErrTooManySessions) {
		t.Fatalf("second Open: got %v, want ErrTooManySessions", err)
	}

	sm.SetMaxSessions(2)
	if _, err := sm.Open(ctx, "bob", mock.NewSink()); err != nil {
		t.Fatalf("Open after raising cap: %v", err)
	}

	// Lowering the cap keeps running sessions.
	sm.SetMaxSessions(1)
	if got := sm.Len(); got != 2 {
		t.Errorf("Len after lowering cap: got %d, want 2", got)
	}
	if _, err := sm.Open(ctx, "carol", mock.NewSink()); !errors.Is(err, api.ErrTooManySessions) {
		t.Errorf("Open above lowered cap: got %v, want ErrTooManySessions", err)
	}
}

func TestSessionManager_CloseAll(t *testing.T) {
	t.Parallel()
	sm, _ := newManager(t, 0)
	ctx := context.Background()

	var lives []api.Coach
	for _, u := range []string{"alice", "bob", "carol"} {
		live, err := sm.Open(ctx, u, mock.NewSink())
		if err != nil {
			t.Fatalf("Open(%s): %v", u, err)
		}
		lives = append(lives, live)
	}

	closeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sm.CloseAll(closeCtx); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if got := sm.Len(); got != 0 {
		t.Errorf("Len after CloseAll: got %d, want 0", got)
	}
	for i, live := range lives {
		if err := live.NextQuestion(); !errors.Is(err, coach.ErrClosed) {
			t.Errorf("session %d NextQuestion: got %v, want ErrClosed", i, err)
		}
	}
	if _, err := sm.Open(ctx, "dave", mock.NewSink()); !errors.Is(err, app.ErrShuttingDown) {
		t.Errorf("Open after CloseAll: got %v, want ErrShuttingDown", err)
	}
}

func TestSessionManager_CompletionNotifiesAndCounts(t *testing.T) {
	t.Parallel()
	n := &recordingNotifier{}
	sm, reader := newManager(t, 0, func(c *app.SessionManagerConfig) { c.Notifier = n })

	sink := mock.NewSink()
	live, err := sm.Open(context.Background(), "alice", sink)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := live.Start(coach.StartOptions{UserID: "alice", Mode: dialogue.Practice}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := sink.WaitFor(func(e mock.Event) bool { return e.Kind == "phase" && e.To == dialogue.Ask }, 3*time.Second); !ok {
		t.Fatal("session never reached ASK")
	}
	if err := live.EndSession(); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, ok := sink.WaitFor(func(e mock.Event) bool { return e.Kind == "summary" }, 3*time.Second); !ok {
		t.Fatal("no summary after EndSession")
	}

	if got := n.count(); got != 1 {
		t.Errorf("notifications: got %d, want 1", got)
	}
	if got := counter(t, reader, "echocoach.sessions.completed", "mode", dialogue.Practice.String()); got != 1 {
		t.Errorf("sessions.completed{mode=practice}: got %d, want 1", got)
	}
	if got := counter(t, reader, "echocoach.dialogue.transitions", "to", dialogue.Ask.String()); got < 1 {
		t.Errorf("dialogue.transitions{to=ASK}: got %d, want >= 1", got)
	}
}

func TestSessionManager_UpdatePacingSkipsClosedSessions(t *testing.T) {
	t.Parallel()
	sm, _ := newManager(t, 0)

	live, err := sm.Open(context.Background(), "alice", mock.NewSink())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	live.Close()
	<-live.Done()

	// Must not block or panic while the closed session is being removed.
	sm.UpdatePacing(coach.Config{PracticeRepeatDelay: time.Second})
	waitLen(t, sm, 0)
}
