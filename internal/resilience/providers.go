package resilience

import (
	"context"
	"strings"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
	"github.com/MrWong99/echocoach/pkg/provider/llm"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// ── LLM ──────────────────────────────────────────────────────────────────────

// LLMFallback is an [llm.Provider] that fails over across several backends.
type LLMFallback struct {
	*FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns an LLMFallback preferring primary.
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	return &LLMFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Complete sends req to the first healthy backend.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}

// Model names the primary's model.
func (f *LLMFallback) Model() string {
	return f.Primary().Model()
}

// ── STT ──────────────────────────────────────────────────────────────────────

// STTFallback is an [stt.Provider] that fails over across several backends.
type STTFallback struct {
	*FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback returns an STTFallback preferring primary.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Transcribe sends clip to the first healthy backend. Empty audio is
// rejected up front so it cannot count against any breaker.
func (f *STTFallback) Transcribe(ctx context.Context, clip audio.Clip, opts stt.Options) (*stt.Transcript, error) {
	if clip.Empty() {
		return nil, stt.ErrEmptyAudio
	}
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p stt.Provider) (*stt.Transcript, error) {
		return p.Transcribe(ctx, clip, opts)
	})
}

// ── TTS ──────────────────────────────────────────────────────────────────────

// TTSFallback is a [tts.Provider] that fails over across several backends.
//
// Voice IDs are provider specific. A fallback entry receives the voice with
// its ID cleared unless the voice names that entry as its Provider, so the
// fallback speaks with its own default voice.
type TTSFallback struct {
	*FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback returns a TTSFallback preferring primary.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Synthesize renders text with the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	if text == "" {
		return nil, tts.ErrEmptyText
	}
	primary := f.members[0].name
	return tryEach(ctx, f.FallbackGroup, func(name string, p tts.Provider) (*audio.Clip, error) {
		v := voice
		if backend := backendName(name); name != primary && v.Provider != backend {
			v.ID, v.Provider = "", backend
		}
		return p.Synthesize(ctx, text, v)
	})
}

// backendName strips a "kind/" prefix from a member name.
func backendName(member string) string {
	if _, name, ok := strings.Cut(member, "/"); ok {
		return name
	}
	return member
}

// ListVoices returns the voices of the first healthy backend.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p tts.Provider) ([]tts.Voice, error) {
		return p.ListVoices(ctx)
	})
}

// ── Embeddings ───────────────────────────────────────────────────────────────

// EmbeddingsFallback is an [embeddings.Provider] that fails over across
// several backends. All entries must produce vectors of the same length.
type EmbeddingsFallback struct {
	*FallbackGroup[embeddings.Provider]
}

var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback returns an EmbeddingsFallback preferring primary.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{NewFallbackGroup(primary, primaryName, cfg)}
}

// Embed embeds text with the first healthy backend.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(ctx, f.FallbackGroup, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// Dimensions returns the primary's vector length. Fallbacks are expected to
// produce vectors of the same size.
func (f *EmbeddingsFallback) Dimensions() int { return f.Primary().Dimensions() }
