package observe

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
	"github.com/MrWong99/echocoach/pkg/provider/llm"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// Provider kinds used as the "kind" metric attribute.
const (
	KindLLM        = "llm"
	KindSTT        = "stt"
	KindTTS        = "tts"
	KindEmbeddings = "embeddings"
)

// instrument runs one provider call inside a client span and records it on
// m. A cancelled call is recorded but does not mark the span as failed.
func instrument[R any](ctx context.Context, m *Metrics, kind, provider string, call func(context.Context) (R, error)) (R, error) {
	ctx, span := StartSpan(ctx, kind+"."+provider,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("provider", provider)),
	)
	defer span.End()

	start := time.Now()
	res, err := call(ctx)
	m.RecordProviderCall(ctx, kind, provider, time.Since(start), err)
	if err != nil && !errors.Is(err, context.Canceled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return res, err
}

// InstrumentedLLM records metrics and spans for every completion.
type InstrumentedLLM struct {
	llm.Provider
	name string
	m    *Metrics
}

// InstrumentLLM wraps p so its calls show up under provider name.
func InstrumentLLM(p llm.Provider, name string, m *Metrics) *InstrumentedLLM {
	return &InstrumentedLLM{Provider: p, name: name, m: m}
}

// Complete implements [llm.Provider].
func (p *InstrumentedLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return instrument(ctx, p.m, KindLLM, p.name, func(ctx context.Context) (*llm.CompletionResponse, error) {
		return p.Provider.Complete(ctx, req)
	})
}

// InstrumentedSTT records metrics and spans for every transcription.
type InstrumentedSTT struct {
	stt.Provider
	name string
	m    *Metrics
}

// InstrumentSTT wraps p so its calls show up under provider name.
func InstrumentSTT(p stt.Provider, name string, m *Metrics) *InstrumentedSTT {
	return &InstrumentedSTT{Provider: p, name: name, m: m}
}

// Transcribe implements [stt.Provider].
func (p *InstrumentedSTT) Transcribe(ctx context.Context, clip audio.Clip, opts stt.Options) (*stt.Transcript, error) {
	return instrument(ctx, p.m, KindSTT, p.name, func(ctx context.Context) (*stt.Transcript, error) {
		return p.Provider.Transcribe(ctx, clip, opts)
	})
}

// InstrumentedTTS records metrics and spans for every synthesis.
type InstrumentedTTS struct {
	tts.Provider
	name string
	m    *Metrics
}

// InstrumentTTS wraps p so its calls show up under provider name.
func InstrumentTTS(p tts.Provider, name string, m *Metrics) *InstrumentedTTS {
	return &InstrumentedTTS{Provider: p, name: name, m: m}
}

// Synthesize implements [tts.Provider].
func (p *InstrumentedTTS) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	return instrument(ctx, p.m, KindTTS, p.name, func(ctx context.Context) (*audio.Clip, error) {
		return p.Provider.Synthesize(ctx, text, voice)
	})
}

// InstrumentedEmbeddings records metrics and spans for every Embed call.
type InstrumentedEmbeddings struct {
	embeddings.Provider
	name string
	m    *Metrics
}

// InstrumentEmbeddings wraps p so its calls show up under provider name.
func InstrumentEmbeddings(p embeddings.Provider, name string, m *Metrics) *InstrumentedEmbeddings {
	return &InstrumentedEmbeddings{Provider: p, name: name, m: m}
}

// Embed implements [embeddings.Provider].
func (p *InstrumentedEmbeddings) Embed(ctx context.Context, text string) ([]float32, error) {
	return instrument(ctx, p.m, KindEmbeddings, p.name, func(ctx context.Context) ([]float32, error) {
		return p.Provider.Embed(ctx, text)
	})
}

var (
	_ llm.Provider        = (*InstrumentedLLM)(nil)
	_ stt.Provider        = (*InstrumentedSTT)(nil)
	_ tts.Provider        = (*InstrumentedTTS)(nil)
	_ embeddings.Provider = (*InstrumentedEmbeddings)(nil)
)
