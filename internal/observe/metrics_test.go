package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns Metrics on a private provider with a ManualReader.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// hasAttrs reports whether set carries every key=value pair in kv.
func hasAttrs(set attribute.Set, kv ...string) bool {
	for i := 0; i+1 < len(kv); i += 2 {
		v, ok := set.Value(attribute.Key(kv[i]))
		if !ok || v.Emit() != kv[i+1] {
			return false
		}
	}
	return true
}

// sumValue returns the counter value of the data point carrying key=value.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is a %T, not a sum", name, met.Data)
	}
	for _, dp := range sum.DataPoints {
		if hasAttrs(dp.Attributes, key, value) {
			return dp.Value
		}
	}
	t.Fatalf("metric %q: no data point with %s=%s", name, key, value)
	return 0
}

// histogramCount returns the sample count of the data point matching kv.
func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string, kv ...string) uint64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("metric %q is a %T, not a histogram", name, met.Data)
	}
	for _, dp := range hist.DataPoints {
		if hasAttrs(dp.Attributes, kv...) {
			return dp.Count
		}
	}
	return 0
}

func TestRecordProviderCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderCall(ctx, KindLLM, "openai", 1200*time.Millisecond, nil)
	m.RecordProviderCall(ctx, KindLLM, "openai", 3*time.Second, nil)
	m.RecordProviderCall(ctx, KindTTS, "elevenlabs", 400*time.Millisecond, errors.New("elevenlabs: 429"))
	m.RecordProviderCall(ctx, KindSTT, "deepgram", 50*time.Millisecond, fmt.Errorf("deepgram: %w", context.Canceled))

	rm := collect(t, reader)

	tests := []struct {
		status string
		want   int64
	}{
		{StatusOK, 2},
		{StatusError, 1},
		{StatusCancelled, 1},
	}
	for _, tc := range tests {
		if got := sumValue(t, rm, "echocoach.provider.requests", "status", tc.status); got != tc.want {
			t.Errorf("requests with status %s: got %d, want %d", tc.status, got, tc.want)
		}
	}

	if got := sumValue(t, rm, "echocoach.provider.errors", "provider", "elevenlabs"); got != 1 {
		t.Errorf("elevenlabs errors: got %d, want 1", got)
	}
	errs := findMetric(rm, "echocoach.provider.errors").Data.(metricdata.Sum[int64])
	if len(errs.DataPoints) != 1 {
		t.Errorf("error series: got %d, want 1 (cancellation is not an error)", len(errs.DataPoints))
	}

	if got := histogramCount(t, rm, "echocoach.provider.duration", "kind", KindLLM, "provider", "openai"); got != 2 {
		t.Errorf("llm latency samples: got %d, want 2", got)
	}
	if got := histogramCount(t, rm, "echocoach.provider.duration", "kind", KindSTT); got != 1 {
		t.Errorf("stt latency samples: got %d, want 1", got)
	}
}

func TestRecordPhaseTransition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPhaseTransition(ctx, "practice", "IDLE", "ASK")
	m.RecordPhaseTransition(ctx, "train", "IDLE", "ASK")
	m.RecordPhaseTransition(ctx, "train", "ASK", "PAUSE1")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "echocoach.dialogue.transitions", "to", "PAUSE1"); got != 1 {
		t.Errorf("PAUSE1 transitions: got %d, want 1", got)
	}
	if got := sumValue(t, rm, "echocoach.dialogue.transitions", "mode", "practice"); got != 1 {
		t.Errorf("practice transitions: got %d, want 1", got)
	}
}

func TestRecordSessionCompleted(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSessionCompleted(ctx, "train", 4)
	m.RecordSessionCompleted(ctx, "train", 0)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "echocoach.sessions.completed", "mode", "train"); got != 2 {
		t.Errorf("sessions: got %d, want 2", got)
	}
	if got := sumValue(t, rm, "echocoach.questions.answered", "mode", "train"); got != 4 {
		t.Errorf("answered: got %d, want 4", got)
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordBreakerTransition(ctx, "tts/elevenlabs", "open")
	m.RecordBreakerTransition(ctx, "tts/elevenlabs", "half-open")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "echocoach.breaker.transitions", "to", "open"); got != 1 {
		t.Errorf("open transitions: got %d, want 1", got)
	}
}

func TestActiveSessions(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)

	rm := collect(t, reader)
	met := findMetric(rm, "echocoach.active_sessions")
	if met == nil {
		t.Fatal("echocoach.active_sessions not found")
	}
	sum := met.Data.(metricdata.Sum[int64])
	if sum.IsMonotonic {
		t.Error("active sessions must be an up/down counter")
	}
	if got := sum.DataPoints[0].Value; got != 1 {
		t.Errorf("active sessions: got %d, want 1", got)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
