package main

import (
	"log/slog"
	"net/http"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/echocoach/internal/config"
	"github.com/MrWong99/echocoach/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/echocoach/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/echocoach/pkg/provider/embeddings/openai"
	"github.com/MrWong99/echocoach/pkg/provider/llm"
	"github.com/MrWong99/echocoach/pkg/provider/llm/anyllm"
	oallm "github.com/MrWong99/echocoach/pkg/provider/llm/openai"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
	"github.com/MrWong99/echocoach/pkg/provider/stt/deepgram"
	oastt "github.com/MrWong99/echocoach/pkg/provider/stt/openai"
	"github.com/MrWong99/echocoach/pkg/provider/stt/whisper"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/provider/tts/coqui"
	"github.com/MrWong99/echocoach/pkg/provider/tts/elevenlabs"
	oatts "github.com/MrWong99/echocoach/pkg/provider/tts/openai"
)

// registerBuiltinProviders makes every compiled-in backend available to the
// providers section of the config.
func registerBuiltinProviders(reg *config.Registry) {
	// "openai" keeps the native client for its JSON response format; the
	// rest of the LLM backends go through any-llm-go.
	reg.RegisterLLM("openai", newOpenAILLM)
	for _, backend := range anyllm.Backends {
		if backend != "openai" {
			reg.RegisterLLM(backend, anyLLMFactory(backend))
		}
	}

	reg.RegisterSTT("openai", newOpenAISTT)
	reg.RegisterSTT("deepgram", newDeepgram)
	reg.RegisterSTT("whisper", newWhisperServer)
	reg.RegisterSTT("whisper-native", newWhisperNative)

	reg.RegisterTTS("openai", newOpenAITTS)
	reg.RegisterTTS("elevenlabs", newElevenLabs)
	reg.RegisterTTS("coqui", newCoqui)

	reg.RegisterEmbeddings("openai", newOpenAIEmbeddings)
	reg.RegisterEmbeddings("ollama", newOllamaEmbeddings)

	for _, kind := range []string{"llm", "stt", "tts", "embeddings"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// extra reads the free-form options map of a provider entry.
type extra map[string]any

func (e extra) str(key string) string {
	s, _ := e[key].(string)
	return s
}

// num reads an integer. YAML decodes plain numbers as int, JSON as float64.
func (e extra) num(key string) int {
	switch v := e[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func newOpenAILLM(entry config.ProviderEntry) (llm.Provider, error) {
	opts := []oallm.Option{
		oallm.WithBaseURL(entry.BaseURL),
		oallm.WithOrganization(extra(entry.Options).str("organization")),
		oallm.WithTimeout(entry.Timeout),
	}
	if _, ok := entry.Options["max_retries"]; ok {
		opts = append(opts, oallm.WithMaxRetries(extra(entry.Options).num("max_retries")))
	}
	return oallm.New(entry.APIKey, entry.Model, opts...)
}

func anyLLMFactory(backend string) config.Factory[llm.Provider] {
	return func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(backend, entry.Model, opts...)
	}
}

func newOpenAISTT(entry config.ProviderEntry) (stt.Provider, error) {
	var opts []oastt.Option
	if entry.Model != "" {
		opts = append(opts, oastt.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
	}
	return oastt.New(entry.APIKey, opts...)
}

func newDeepgram(entry config.ProviderEntry) (stt.Provider, error) {
	var opts []deepgram.Option
	if entry.Model != "" {
		opts = append(opts, deepgram.WithModel(entry.Model))
	}
	if lang := extra(entry.Options).str("language"); lang != "" {
		opts = append(opts, deepgram.WithLanguage(lang))
	}
	if entry.BaseURL != "" {
		opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
	}
	return deepgram.New(entry.APIKey, opts...)
}

func newWhisperServer(entry config.ProviderEntry) (stt.Provider, error) {
	var opts []whisper.Option
	if entry.Model != "" {
		opts = append(opts, whisper.WithModel(entry.Model))
	}
	if lang := extra(entry.Options).str("language"); lang != "" {
		opts = append(opts, whisper.WithLanguage(lang))
	}
	return whisper.New(entry.BaseURL, opts...)
}

// newWhisperNative takes the model file from model, or from the model_path
// option when model is left empty.
func newWhisperNative(entry config.ProviderEntry) (stt.Provider, error) {
	x := extra(entry.Options)
	path := entry.Model
	if path == "" {
		path = x.str("model_path")
	}
	var opts []whisper.NativeOption
	if lang := x.str("language"); lang != "" {
		opts = append(opts, whisper.WithNativeLanguage(lang))
	}
	if n := x.num("concurrency"); n > 0 {
		opts = append(opts, whisper.WithNativeConcurrency(n))
	}
	if n := x.num("threads"); n > 0 {
		opts = append(opts, whisper.WithNativeThreads(uint(n)))
	}
	return whisper.NewNative(path, opts...)
}

func newOpenAITTS(entry config.ProviderEntry) (tts.Provider, error) {
	var opts []oatts.Option
	if entry.Model != "" {
		opts = append(opts, oatts.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		opts = append(opts, oatts.WithBaseURL(entry.BaseURL))
	}
	return oatts.New(entry.APIKey, opts...)
}

func newElevenLabs(entry config.ProviderEntry) (tts.Provider, error) {
	var opts []elevenlabs.Option
	if entry.Model != "" {
		opts = append(opts, elevenlabs.WithModel(entry.Model))
	}
	if format := extra(entry.Options).str("output_format"); format != "" {
		opts = append(opts, elevenlabs.WithOutputFormat(format))
	}
	if entry.BaseURL != "" {
		opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
	}
	if entry.Timeout > 0 {
		opts = append(opts, elevenlabs.WithHTTPClient(&http.Client{Timeout: entry.Timeout}))
	}
	return elevenlabs.New(entry.APIKey, opts...)
}

func newCoqui(entry config.ProviderEntry) (tts.Provider, error) {
	x := extra(entry.Options)
	var opts []coqui.Option
	if lang := x.str("language"); lang != "" {
		opts = append(opts, coqui.WithLanguage(lang))
	}
	if mode := x.str("api_mode"); mode != "" {
		opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
	}
	if entry.Timeout > 0 {
		opts = append(opts, coqui.WithTimeout(entry.Timeout))
	}
	return coqui.New(entry.BaseURL, opts...)
}

func newOpenAIEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	var opts []oaembed.Option
	if entry.BaseURL != "" {
		opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
	}
	if entry.Timeout > 0 {
		opts = append(opts, oaembed.WithTimeout(entry.Timeout))
	}
	if dims := extra(entry.Options).num("dimensions"); dims > 0 {
		opts = append(opts, oaembed.WithDimensions(dims))
	}
	return oaembed.New(entry.APIKey, entry.Model, opts...)
}

func newOllamaEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	var opts []ollamaembed.Option
	if entry.Timeout > 0 {
		opts = append(opts, ollamaembed.WithTimeout(entry.Timeout))
	}
	if dims := extra(entry.Options).num("dimensions"); dims > 0 {
		opts = append(opts, ollamaembed.WithDimensions(dims))
	}
	return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
}
