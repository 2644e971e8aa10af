package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":        {"openai", "deepgram", "whisper", "whisper-native"},
	"tts":        {"openai", "elevenlabs", "coqui"},
	"embeddings": {"openai", "ollama"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr          = ":8080"
	DefaultMaxUploadBytes      = 10 << 20
	DefaultEmbeddingDimensions = 1536
	DefaultLanguage            = "en"
	DefaultMCPPath             = "/mcp"
	DefaultMetricsPath         = "/metrics"
	DefaultServiceName         = "echocoach"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references in
// secret fields, applies defaults and validates the result. Unknown keys are
// rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandSecrets(cfg)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandSecrets resolves environment references in every field that usually
// holds a credential, so keys can live in .env instead of the YAML file.
func expandSecrets(cfg *Config) {
	var expandEntry func(e *ProviderEntry)
	expandEntry = func(e *ProviderEntry) {
		e.APIKey = os.ExpandEnv(e.APIKey)
		e.BaseURL = os.ExpandEnv(e.BaseURL)
		for i := range e.Fallbacks {
			expandEntry(&e.Fallbacks[i])
		}
	}
	expandEntry(&cfg.Providers.LLM)
	expandEntry(&cfg.Providers.STT)
	expandEntry(&cfg.Providers.TTS)
	expandEntry(&cfg.Providers.Embeddings)

	cfg.Store.PostgresDSN = os.ExpandEnv(cfg.Store.PostgresDSN)
	cfg.Auth.JWTSecret = os.ExpandEnv(cfg.Auth.JWTSecret)
	cfg.Notify.DiscordWebhookURL = os.ExpandEnv(cfg.Notify.DiscordWebhookURL)
}

// ApplyDefaults fills unset fields that have a non-zero default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Store.EmbeddingDimensions == 0 {
		cfg.Store.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if cfg.Coach.Language == "" {
		cfg.Coach.Language = DefaultLanguage
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
	if cfg.Observe.ServiceName == "" {
		cfg.Observe.ServiceName = DefaultServiceName
	}
	if cfg.Observe.MetricsPath == "" {
		cfg.Observe.MetricsPath = DefaultMetricsPath
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes must not be negative, got %d", cfg.Server.MaxUploadBytes))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	required := []struct {
		kind  string
		entry ProviderEntry
	}{
		{"llm", cfg.Providers.LLM},
		{"stt", cfg.Providers.STT},
		{"tts", cfg.Providers.TTS},
	}
	for _, r := range required {
		if r.entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s.name is required", r.kind))
		}
	}
	errs = append(errs, validateEntry("llm", "providers.llm", cfg.Providers.LLM)...)
	errs = append(errs, validateEntry("stt", "providers.stt", cfg.Providers.STT)...)
	errs = append(errs, validateEntry("tts", "providers.tts", cfg.Providers.TTS)...)
	errs = append(errs, validateEntry("embeddings", "providers.embeddings", cfg.Providers.Embeddings)...)
	if cfg.Providers.TTSCacheEntries < 0 {
		errs = append(errs, fmt.Errorf("providers.tts_cache_entries must not be negative, got %d", cfg.Providers.TTSCacheEntries))
	}
	if b := cfg.Providers.Breaker; b.MaxFailures < 0 || b.HalfOpenMax < 0 || b.ResetTimeout < 0 {
		errs = append(errs, errors.New("providers.breaker values must not be negative"))
	}

	// Store
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; using the in-memory store, sessions are lost on restart")
	}
	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, fmt.Errorf("store.embedding_dimensions must be positive, got %d", cfg.Store.EmbeddingDimensions))
	}

	// Auth
	if cfg.Auth.JWTSecret == "" {
		slog.Warn("auth.jwt_secret is empty; tokens are NOT verified (development mode)")
	}

	// Coach
	if err := cfg.Coach.Pacing().Validate(); err != nil {
		errs = append(errs, err)
	}
	if sf := cfg.Coach.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("coach.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}
	if cfg.Coach.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("coach.max_sessions must not be negative, got %d", cfg.Coach.MaxSessions))
	}
	if cfg.Coach.GenerateAttempts < 0 {
		errs = append(errs, fmt.Errorf("coach.generate_attempts must not be negative, got %d", cfg.Coach.GenerateAttempts))
	}
	if v := cfg.Coach.Voice.Provider; v != "" && cfg.Providers.TTS.Name != "" && v != cfg.Providers.TTS.Name {
		slog.Warn("coach voice belongs to a different provider than providers.tts; fallbacks will use their default voice",
			"voice_provider", v,
			"tts_provider", cfg.Providers.TTS.Name,
		)
	}

	// Notify
	if u := cfg.Notify.DiscordWebhookURL; u != "" {
		if parsed, err := url.Parse(u); err != nil || parsed.Scheme != "https" || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("notify.discord_webhook_url %q is not an https URL", u))
		}
	}

	// MCP / observe
	if cfg.MCP.Path != "" && cfg.MCP.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}
	if cfg.Store.MaxConns < 0 {
		errs = append(errs, errors.New("store.max_conns must not be negative"))
	}
	if r := cfg.Observe.TraceSampleRatio; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("observe.trace_sample_ratio %v must be within [0, 1]", r))
	}
	if cfg.Observe.MetricsPath != "" && cfg.Observe.MetricsPath[0] != '/' {
		errs = append(errs, fmt.Errorf("observe.metrics_path %q must start with /", cfg.Observe.MetricsPath))
	}

	return errors.Join(errs...)
}

// validateEntry checks a provider entry and its fallbacks.
func validateEntry(kind, prefix string, e ProviderEntry) []error {
	var errs []error
	validateProviderName(kind, e.Name)
	if e.Timeout < 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must not be negative", prefix))
	}
	seen := map[string]bool{e.Name: true}
	for i, fb := range e.Fallbacks {
		p := fmt.Sprintf("%s.fallbacks[%d]", prefix, i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", p))
			continue
		}
		if seen[fb.Name] {
			errs = append(errs, fmt.Errorf("%s.name %q is used twice in this chain", p, fb.Name))
		}
		seen[fb.Name] = true
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s: fallbacks cannot be nested", p))
		}
		errs = append(errs, validateEntry(kind, p, ProviderEntry{Name: fb.Name, Timeout: fb.Timeout})...)
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
