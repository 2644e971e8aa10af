// Package whisper provides whisper.cpp-backed STT providers.
//
// [Provider] talks to a running whisper-server binary (POST /inference).
// [NativeProvider] links whisper.cpp directly via CGO and runs inference
// in-process.
//
// Both normalise PCM and WAV clips to 16 kHz mono before inference.
// Compressed clips are forwarded untouched to the HTTP server, which decodes
// them when started with --convert; the native provider rejects them.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	t, err := p.Transcribe(ctx, clip, stt.Options{})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
)

const defaultLanguage = "en"

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en"). When empty the server uses whichever model it was
// started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default language code sent to the server. Defaults
// to "en". A per-request [stt.Options.Language] takes precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient overrides the HTTP client. Useful in tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider for the whisper.cpp HTTP server at serverURL
// (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe uploads clip to the /inference endpoint as multipart/form-data.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, opts stt.Options) (*stt.Transcript, error) {
	if clip.Empty() {
		return nil, stt.ErrEmptyAudio
	}
	data, filename, dur := prepare(clip)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("whisper: write audio data: %w", err)
	}

	lang := opts.Language
	if lang == "" {
		lang = p.language
	}
	fields := map[string]string{
		"language":        shortLang(lang),
		"model":           p.model,
		"response_format": "json",
	}
	if len(opts.Keywords) > 0 {
		// whisper.cpp biases decoding towards words seen in the prompt.
		fields["prompt"] = strings.Join(opts.Keywords, ", ")
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	return &stt.Transcript{Text: strings.TrimSpace(result.Text), Duration: dur}, nil
}

// prepare converts PCM and WAV clips into a 16 kHz mono WAV payload and
// reports its duration. Other formats pass through with a matching filename.
func prepare(clip audio.Clip) (data []byte, filename string, dur time.Duration) {
	pcm, rate, ch, ok := clip.PCM()
	if !ok {
		return clip.Data, "audio" + extension(clip.ContentType), 0
	}
	mono := audio.ToMono16k(pcm, rate, ch)
	return audio.EncodeWAV(mono, audio.SpeechSampleRate, 1), "audio.wav",
		audio.PCMDuration(mono, audio.SpeechSampleRate, 1)
}

func extension(contentType string) string {
	switch contentType {
	case audio.ContentTypeMP3:
		return ".mp3"
	case audio.ContentTypeOpus:
		return ".ogg"
	case audio.ContentTypeWebM:
		return ".webm"
	default:
		return ".wav"
	}
}

// shortLang reduces a BCP-47 tag such as "en-US" to the two-letter code
// whisper expects.
func shortLang(lang string) string {
	if i := strings.IndexByte(lang, '-'); i > 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}
