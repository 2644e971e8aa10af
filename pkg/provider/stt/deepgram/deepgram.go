// Package deepgram provides a Deepgram-backed STT provider. A recording is
// streamed over the live WebSocket API and the stream is closed right after
// the last chunk; the provider collects every final result until Deepgram
// hangs up.
package deepgram

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
)

const (
	deepgramEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// chunkBytes is 250 ms of 16 kHz mono PCM.
	chunkBytes = 8000

	keywordBoost = 2
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the default BCP-47 language code for recognition.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithEndpoint overrides the WebSocket endpoint. Used by tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe streams clip to Deepgram and returns the joined final
// transcripts. PCM and WAV clips are sent as 16 kHz linear16; other formats
// are sent as-is and Deepgram detects the container.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip, opts stt.Options) (*stt.Transcript, error) {
	if clip.Empty() {
		return nil, stt.ErrEmptyAudio
	}

	var c collector
	payload := clip.Data
	pcm, rate, ch, linear := clip.PCM()
	if linear {
		payload = audio.ToMono16k(pcm, rate, ch)
		c.length = audio.PCMDuration(payload, audio.SpeechSampleRate, 1)
	}

	wsURL, err := p.buildURL(opts, linear)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": {"Token " + p.apiKey}},
	})
	if err != nil {
		return nil, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(1 << 20)

	writeErr := make(chan error, 1)
	go func() { writeErr <- writeAudio(ctx, conn, payload) }()

	if err := c.readUntilClosed(ctx, conn); err != nil {
		return nil, err
	}
	if err := <-writeErr; err != nil && len(c.texts) == 0 {
		return nil, err
	}
	return c.transcript(), nil
}

// collector accumulates the final results of one stream.
type collector struct {
	texts   []string
	confSum float64
	words   []stt.WordDetail
	length  time.Duration
}

// readUntilClosed consumes messages until Deepgram closes the stream. A
// connection dropped after results arrived counts as a normal end.
func (c *collector) readUntilClosed(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			switch {
			case isNormalClose(err), len(c.texts) > 0 && ctx.Err() == nil:
				return nil
			case ctx.Err() != nil:
				return fmt.Errorf("deepgram: %w", ctx.Err())
			default:
				return fmt.Errorf("deepgram: read: %w", err)
			}
		}
		if r, ok := parseResult(msg); ok {
			c.add(r)
		}
	}
}

func (c *collector) add(r result) {
	if r.Text != "" {
		c.texts = append(c.texts, r.Text)
		c.confSum += r.Confidence
	}
	c.words = append(c.words, r.Words...)
	c.length = max(c.length, r.end)
}

func (c *collector) transcript() *stt.Transcript {
	t := &stt.Transcript{Text: strings.Join(c.texts, " "), Words: c.words, Duration: c.length}
	if n := len(c.texts); n > 0 {
		t.Confidence = c.confSum / float64(n)
	}
	return t
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}

// writeAudio sends payload in chunks and then asks Deepgram to flush and
// close the stream.
func writeAudio(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	for chunk := range slices.Chunk(payload, chunkBytes) {
		if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
			return fmt.Errorf("deepgram: write audio: %w", err)
		}
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("deepgram: close stream: %w", err)
	}
	return nil
}

// buildURL constructs the streaming endpoint URL for one request.
func (p *Provider) buildURL(opts stt.Options, linear bool) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", cmp.Or(opts.Language, p.language))
	for _, flag := range []string{"punctuate", "smart_format", "filler_words"} {
		q.Set(flag, "true")
	}
	if linear {
		q.Set("encoding", "linear16")
		q.Set("sample_rate", strconv.Itoa(audio.SpeechSampleRate))
		q.Set("channels", "1")
	}

	// Nova-3 replaced boosted keywords with keyterm prompting.
	for _, kw := range opts.Keywords {
		if strings.HasPrefix(p.model, "nova-3") {
			q.Add("keyterm", kw)
		} else {
			q.Add("keywords", kw+":"+strconv.Itoa(keywordBoost))
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// deepgramResponse is the JSON structure returned by Deepgram for a Results event.
type deepgramResponse struct {
	Type     string  `json:"type"`
	IsFinal  bool    `json:"is_final"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Channel  struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word       string  `json:"word"`
				Start      float64 `json:"start"`
				End        float64 `json:"end"`
				Confidence float64 `json:"confidence"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type result struct {
	stt.Transcript
	end time.Duration
}

// parseResult parses a final Results message. Interim results and other
// message types return ok=false.
func parseResult(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	if resp.Type != "Results" || !resp.IsFinal || len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}

	alt := resp.Channel.Alternatives[0]
	words := make([]stt.WordDetail, 0, len(alt.Words))
	for _, w := range alt.Words {
		words = append(words, stt.WordDetail{
			Word:       w.Word,
			Start:      seconds(w.Start),
			End:        seconds(w.End),
			Confidence: w.Confidence,
		})
	}

	return result{
		Transcript: stt.Transcript{
			Text:       strings.TrimSpace(alt.Transcript),
			Confidence: alt.Confidence,
			Words:      words,
		},
		end: seconds(resp.Start + resp.Duration),
	}, true
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
