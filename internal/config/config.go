// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for the echocoach server.
package config

import (
	"time"

	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Coach     CoachConfig     `yaml:"coach"`
	Notify    NotifyConfig    `yaml:"notify"`
	MCP       MCPConfig       `yaml:"mcp"`
	Observe   ObserveConfig   `yaml:"observe"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// MaxUploadBytes caps transcription uploads and WebSocket recordings.
	// Default 10 MiB.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// AllowedOrigins lists browser origins allowed to open the coach
	// WebSocket. Empty allows same-origin requests only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// collaborator. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	STT        ProviderEntry `yaml:"stt"`
	TTS        ProviderEntry `yaml:"tts"`
	Embeddings ProviderEntry `yaml:"embeddings"`

	// TTSCacheEntries sizes the in-memory cache of synthesized clips. Zero
	// disables it.
	TTSCacheEntries int `yaml:"tts_cache_entries"`

	// Breaker tunes the circuit breaker placed in front of every provider.
	Breaker BreakerConfig `yaml:"breaker"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the
// [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g. "openai",
	// "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// ${VAR} references are expanded from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g. "gpt-4o-mini",
	// "nova-2").
	Model string `yaml:"model"`

	// Timeout bounds a single request. Zero uses the provider default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`

	// Fallbacks are tried in order when this provider fails or its breaker
	// is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// BreakerConfig mirrors resilience.CircuitBreakerConfig.
type BreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// PostgresDSN is the PostgreSQL connection string. When empty an
	// in-memory store is used and nothing survives a restart.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions is the vector size of the question embedding
	// column. Must match providers.embeddings. Default 1536.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`

	// MaxConns caps the connection pool. Zero keeps the driver default.
	MaxConns int `yaml:"max_conns"`

	// TraceQueries records a span for every SQL statement.
	TraceQueries bool `yaml:"trace_queries"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	// JWTSecret is the HMAC key used to verify tokens. When empty the server
	// runs in development mode and trusts the token's sub claim unverified.
	JWTSecret string `yaml:"jwt_secret"`

	// Issuer and Audience, when set, must match the token claims.
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// CoachConfig holds the pacing of a coaching turn and session limits. Zero
// durations fall back to [coach.DefaultConfig].
type CoachConfig struct {
	PracticeRepeatDelay time.Duration `yaml:"practice_repeat_delay"`
	SettleDelay         time.Duration `yaml:"settle_delay"`
	SentenceRetryDelay  time.Duration `yaml:"sentence_retry_delay"`
	MinReadingTime      time.Duration `yaml:"min_reading_time"`
	ReadingBuffer       time.Duration `yaml:"reading_buffer"`
	WordsPerSecond      float64       `yaml:"words_per_second"`
	FeedbackPrefix      string        `yaml:"feedback_prefix"`

	// Voice is the interviewer voice.
	Voice VoiceConfig `yaml:"voice"`

	// Language is the BCP-47 transcription language hint. Default "en".
	Language string `yaml:"language"`

	// MaxSessions caps concurrent coaching WebSockets. Zero means unlimited.
	MaxSessions int `yaml:"max_sessions"`

	// GenerateAttempts bounds how often a duplicate generated question is
	// regenerated. Default 3.
	GenerateAttempts int `yaml:"generate_attempts"`
}

// VoiceConfig specifies the interviewer's TTS voice.
type VoiceConfig struct {
	// Provider is the TTS provider the voice belongs to (e.g. "elevenlabs").
	Provider string `yaml:"provider"`

	// VoiceID is the provider-specific voice identifier.
	VoiceID string `yaml:"voice_id"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. Zero means
	// default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// TTSVoice converts v to a [tts.Voice].
func (v VoiceConfig) TTSVoice() tts.Voice {
	return tts.Voice{ID: v.VoiceID, Provider: v.Provider, Speed: v.SpeedFactor}
}

// Pacing returns the orchestrator configuration with defaults applied.
func (c CoachConfig) Pacing() coach.Config {
	return coach.Config{
		PracticeRepeatDelay: c.PracticeRepeatDelay,
		SettleDelay:         c.SettleDelay,
		SentenceRetryDelay:  c.SentenceRetryDelay,
		MinReadingTime:      c.MinReadingTime,
		ReadingBuffer:       c.ReadingBuffer,
		WordsPerSecond:      c.WordsPerSecond,
		FeedbackPrefix:      c.FeedbackPrefix,
		Voice:               c.Voice.TTSVoice(),
	}.WithDefaults()
}

// NotifyConfig configures session-complete notifications.
type NotifyConfig struct {
	// DiscordWebhookURL receives a summary embed for every completed
	// session. Empty disables notifications.
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// MCPConfig configures the Model Context Protocol endpoint.
type MCPConfig struct {
	// Enabled mounts the MCP server on Path.
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path of the streamable MCP endpoint. Default "/mcp".
	Path string `yaml:"path"`
}

// ObserveConfig configures telemetry.
type ObserveConfig struct {
	// ServiceName is reported in traces and metrics. Default "echocoach".
	ServiceName string `yaml:"service_name"`

	// MetricsPath is where Prometheus metrics are served. Default "/metrics".
	MetricsPath string `yaml:"metrics_path"`

	// TraceSampleRatio is the share of new traces that are recorded, in
	// [0, 1]. Zero records all of them. Requests that arrive with a sampled
	// traceparent are always recorded.
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}
