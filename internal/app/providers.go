package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/MrWong99/echocoach/internal/config"
	"github.com/MrWong99/echocoach/internal/observe"
	"github.com/MrWong99/echocoach/internal/resilience"
	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
	"github.com/MrWong99/echocoach/pkg/provider/llm"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/provider/tts/cache"
)

// Providers holds one interface value per provider slot. LLM, STT and TTS
// are required; Embeddings may be nil.
type Providers struct {
	LLM        llm.Provider
	STT        stt.Provider
	TTS        tts.Provider
	Embeddings embeddings.Provider

	// Breakers maps a provider kind to the breaker states of its chain.
	// Used for readiness checks.
	Breakers map[string]func() map[string]resilience.State

	closers []func() error
}

// Close releases providers that hold resources (native models, pools).
func (p *Providers) Close() error {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			slog.Warn("provider close error", "err", err)
		}
	}
	return nil
}

type namedProvider[P any] struct {
	name string
	p    P
}

// createChain instantiates entry and its fallbacks in order.
func createChain[P any](kind string, entry config.ProviderEntry, create func(config.ProviderEntry) (P, error)) ([]namedProvider[P], error) {
	entries := append([]config.ProviderEntry{entry}, entry.Fallbacks...)
	out := make([]namedProvider[P], 0, len(entries))
	for _, e := range entries {
		p, err := create(e)
		if err != nil {
			return nil, fmt.Errorf("create %s provider %q: %w", kind, e.Name, err)
		}
		out = append(out, namedProvider[P]{name: e.Name, p: p})
		slog.Info("provider created", "kind", kind, "name", e.Name, "model", e.Model)
	}
	return out, nil
}

// BuildProviders instantiates every provider chain named in cfg through reg.
// Each provider is instrumented and guarded by its own circuit breaker; the
// chain fails over in configuration order. Breaker state changes are logged
// and counted on m.
func BuildProviders(cfg config.ProvidersConfig, reg *config.Registry, m *observe.Metrics) (*Providers, error) {
	fcfg := resilience.FallbackConfig{CircuitBreaker: resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Breaker.MaxFailures,
		ResetTimeout: cfg.Breaker.ResetTimeout,
		HalfOpenMax:  cfg.Breaker.HalfOpenMax,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Warn("circuit breaker state change", "breaker", name, "from", from, "to", to)
			m.RecordBreakerTransition(context.Background(), name, to.String())
		},
	}}
	ps := &Providers{Breakers: make(map[string]func() map[string]resilience.State)}
	track := func(v any) {
		if c, ok := v.(io.Closer); ok {
			ps.closers = append(ps.closers, c.Close)
		}
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	llms, err := createChain("llm", cfg.LLM, reg.CreateLLM)
	if err != nil {
		return nil, err
	}
	llmGroup := resilience.NewLLMFallback(observe.InstrumentLLM(llms[0].p, llms[0].name, m), "llm/"+llms[0].name, fcfg)
	for _, n := range llms[1:] {
		llmGroup.AddFallback("llm/"+n.name, observe.InstrumentLLM(n.p, n.name, m))
	}
	for _, n := range llms {
		track(n.p)
	}
	ps.LLM = llmGroup
	ps.Breakers["llm"] = llmGroup.BreakerStates

	// ── STT ───────────────────────────────────────────────────────────────────
	stts, err := createChain("stt", cfg.STT, reg.CreateSTT)
	if err != nil {
		ps.Close()
		return nil, err
	}
	sttGroup := resilience.NewSTTFallback(observe.InstrumentSTT(stts[0].p, stts[0].name, m), "stt/"+stts[0].name, fcfg)
	for _, n := range stts[1:] {
		sttGroup.AddFallback("stt/"+n.name, observe.InstrumentSTT(n.p, n.name, m))
	}
	for _, n := range stts {
		track(n.p)
	}
	ps.STT = sttGroup
	ps.Breakers["stt"] = sttGroup.BreakerStates

	// ── TTS ───────────────────────────────────────────────────────────────────
	ttss, err := createChain("tts", cfg.TTS, reg.CreateTTS)
	if err != nil {
		ps.Close()
		return nil, err
	}
	ttsGroup := resilience.NewTTSFallback(observe.InstrumentTTS(ttss[0].p, ttss[0].name, m), "tts/"+ttss[0].name, fcfg)
	for _, n := range ttss[1:] {
		ttsGroup.AddFallback("tts/"+n.name, observe.InstrumentTTS(n.p, n.name, m))
	}
	for _, n := range ttss {
		track(n.p)
	}
	ps.TTS = ttsGroup
	ps.Breakers["tts"] = ttsGroup.BreakerStates
	if cfg.TTSCacheEntries > 0 {
		ps.TTS = cache.New(ttsGroup, cfg.TTSCacheEntries)
	}

	// ── Embeddings (optional) ─────────────────────────────────────────────────
	if cfg.Embeddings.Name != "" {
		embs, err := createChain("embeddings", cfg.Embeddings, reg.CreateEmbeddings)
		if err != nil {
			ps.Close()
			return nil, err
		}
		embGroup := resilience.NewEmbeddingsFallback(observe.InstrumentEmbeddings(embs[0].p, embs[0].name, m), "embeddings/"+embs[0].name, fcfg)
		for _, n := range embs[1:] {
			embGroup.AddFallback("embeddings/"+n.name, observe.InstrumentEmbeddings(n.p, n.name, m))
		}
		for _, n := range embs {
			track(n.p)
		}
		ps.Embeddings = embGroup
		ps.Breakers["embeddings"] = embGroup.BreakerStates
	}

	return ps, nil
}
