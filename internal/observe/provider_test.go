package observe

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitProvider(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceVersion: "test",
		TraceExporter:  tracetest.NewInMemoryExporter(),
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	ctx, span := StartSpan(context.Background(), "coach.session")
	if CorrelationID(ctx) == "" {
		t.Error("global tracer did not start a recording span")
	}
	span.End()

	if _, err := NewMetrics(otel.GetMeterProvider()); err != nil {
		t.Errorf("NewMetrics on the installed provider: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestProviderConfig_Sampler(t *testing.T) {
	t.Parallel()
	tests := []struct {
		ratio float64
		want  string
	}{
		{0, "AlwaysOnSampler"},
		{1, "AlwaysOnSampler"},
		{-0.5, "AlwaysOnSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tc := range tests {
		got := ProviderConfig{SampleRatio: tc.ratio}.sampler().Description()
		if !strings.Contains(got, tc.want) {
			t.Errorf("ratio %v: got %q, want it to contain %q", tc.ratio, got, tc.want)
		}
	}
}
