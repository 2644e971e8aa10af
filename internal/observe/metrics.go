// Package observe wires OpenTelemetry into echocoach: provider and HTTP
// metrics, tracing spans, correlation IDs and trace-aware logging.
//
// Instruments are created from a [metric.MeterProvider]. Production code uses
// [DefaultMetrics], which reads the global provider installed by
// [InitProvider]; tests build their own with [NewMetrics] and a ManualReader.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/echocoach"

// Call outcomes reported in the "status" attribute of provider requests.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

// Metrics holds the application's metric instruments. It is safe for
// concurrent use.
type Metrics struct {
	// ProviderDuration is the latency of one provider call, labelled with
	// "kind" (llm, stt, tts, embeddings) and "provider".
	ProviderDuration metric.Float64Histogram
	// ProviderRequests counts calls by kind, provider and status.
	ProviderRequests metric.Int64Counter
	// ProviderErrors counts failed calls by kind and provider. Cancelled
	// calls are not errors.
	ProviderErrors metric.Int64Counter

	PhaseTransitions   metric.Int64Counter
	SessionsCompleted  metric.Int64Counter
	QuestionsAnswered  metric.Int64Counter
	BreakerTransitions metric.Int64Counter

	// ActiveSessions is the number of live coaching WebSockets.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration is labelled with "method", "path" (the route
	// pattern) and "status".
	HTTPRequestDuration metric.Float64Histogram
}

// Provider calls are request/response and an LLM evaluation can take many
// seconds, so the buckets reach up to half a minute.
var providerBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30}

// instruments collects the first instrument creation error so NewMetrics can
// build everything in one pass.
type instruments struct {
	meter metric.Meter
	err   error
}

func (b *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return c
}

func (b *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	b.err = errors.Join(b.err, err)
	return c
}

func (b *instruments) seconds(name, desc string, buckets ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
	if len(buckets) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
	}
	h, err := b.meter.Float64Histogram(name, opts...)
	b.err = errors.Join(b.err, err)
	return h
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		ProviderDuration: b.seconds("echocoach.provider.duration",
			"Latency of LLM, STT, TTS and embedding calls.", providerBuckets...),
		ProviderRequests: b.counter("echocoach.provider.requests",
			"Provider calls by kind, provider and status."),
		ProviderErrors: b.counter("echocoach.provider.errors",
			"Failed provider calls by kind and provider."),

		PhaseTransitions: b.counter("echocoach.dialogue.transitions",
			"Coaching cycle phase changes by mode and phase pair."),
		SessionsCompleted: b.counter("echocoach.sessions.completed",
			"Finished coaching sessions by mode."),
		QuestionsAnswered: b.counter("echocoach.questions.answered",
			"Evaluated answers by mode."),
		BreakerTransitions: b.counter("echocoach.breaker.transitions",
			"Circuit breaker state changes by breaker and target state."),

		ActiveSessions: b.upDown("echocoach.active_sessions",
			"Live coaching sessions."),

		HTTPRequestDuration: b.seconds("echocoach.http.request.duration",
			"HTTP request latency by method, route and status."),
	}
	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] built on
// [otel.GetMeterProvider]. Call it after [InitProvider]; instruments created
// earlier stay bound to the no-op provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic("observe: create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordProviderCall records the latency and outcome of one provider call.
func (m *Metrics) RecordProviderCall(ctx context.Context, kind, provider string, elapsed time.Duration, err error) {
	who := attribute.NewSet(attribute.String("kind", kind), attribute.String("provider", provider))
	m.ProviderDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributeSet(who))

	status := StatusOK
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = StatusCancelled
	default:
		status = StatusError
		m.ProviderErrors.Add(ctx, 1, metric.WithAttributeSet(who))
	}
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributeSet(who), metric.WithAttributes(attribute.String("status", status)))
}

// RecordPhaseTransition counts one coaching cycle phase change.
func (m *Metrics) RecordPhaseTransition(ctx context.Context, mode, from, to string) {
	m.PhaseTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordSessionCompleted counts a finished session and the answers
// evaluated in it.
func (m *Metrics) RecordSessionCompleted(ctx context.Context, mode string, answered int) {
	byMode := metric.WithAttributes(attribute.String("mode", mode))
	m.SessionsCompleted.Add(ctx, 1, byMode)
	if answered > 0 {
		m.QuestionsAnswered.Add(ctx, int64(answered), byMode)
	}
}

// RecordBreakerTransition counts a circuit breaker moving to state to.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, name, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("name", name),
		attribute.String("to", to),
	))
}
