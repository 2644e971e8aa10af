package observe

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/MrWong99/echocoach"

type correlationKey struct{}

// StartSpan starts a span on the global tracer provider. The caller ends it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// CorrelationID is the trace ID of the span in ctx as 32 hex digits. Without
// a recording tracer it falls back to the ID stored by [withCorrelationID],
// and to "" when there is neither. Clients see it as X-Correlation-ID.
func CorrelationID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// withCorrelationID makes sure ctx has a correlation ID, minting a random
// one in the trace ID format when tracing is off.
func withCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	u := uuid.New()
	id := hex.EncodeToString(u[:])
	return context.WithValue(ctx, correlationKey{}, id), id
}

// Logger returns the default logger, tagged with trace_id when ctx carries a
// span so log lines can be matched to the request that produced them.
func Logger(ctx context.Context) *slog.Logger {
	if id := CorrelationID(ctx); id != "" {
		return slog.Default().With(slog.String("trace_id", id))
	}
	return slog.Default()
}
