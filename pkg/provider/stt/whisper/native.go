// In-process transcription through the whisper.cpp CGO bindings. Building
// this file needs libwhisper.a and whisper.h on LIBRARY_PATH and
// C_INCLUDE_PATH.

package whisper

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"golang.org/x/sync/semaphore"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
)

var errCompressed = errors.New("whisper: native provider needs PCM or WAV input")

// NativeProvider transcribes with a whisper.cpp model loaded into the
// process. The model is shared; each call gets its own decoding context.
type NativeProvider struct {
	model    whisperlib.Model
	language string
	threads  uint
	slots    *semaphore.Weighted
}

var _ stt.Provider = (*NativeProvider)(nil)

// NativeOption configures a [NativeProvider].
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language used when a request names none.
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeConcurrency caps simultaneous inferences. Each one holds a full
// decoder state in memory. Default 2.
func WithNativeConcurrency(n int) NativeOption {
	return func(p *NativeProvider) {
		if n > 0 {
			p.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithNativeThreads sets the CPU threads per inference. Zero keeps the
// whisper.cpp default.
func WithNativeThreads(n uint) NativeOption {
	return func(p *NativeProvider) { p.threads = n }
}

// NewNative loads the model file at modelPath. Close releases it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: model path is required")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p := &NativeProvider{model: model, language: defaultLanguage, slots: semaphore.NewWeighted(2)}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the model.
func (p *NativeProvider) Close() error {
	if p.model == nil {
		return nil
	}
	return p.model.Close()
}

// Transcribe decodes clip to 16 kHz mono and runs inference on it. ctx is
// honoured while waiting for a free slot; inference itself cannot be
// interrupted.
func (p *NativeProvider) Transcribe(ctx context.Context, clip audio.Clip, opts stt.Options) (*stt.Transcript, error) {
	samples, length, err := speechSamples(clip)
	if err != nil {
		return nil, err
	}
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("whisper: wait for decoder: %w", err)
	}
	defer p.slots.Release(1)

	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: new context: %w", err)
	}
	lang := shortLang(cmp.Or(opts.Language, p.language))
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: language not supported by model, auto-detecting", "language", lang, "err", err)
	}
	if p.threads > 0 {
		wctx.SetThreads(p.threads)
	}
	if prompt := keywordPrompt(opts.Keywords); prompt != "" {
		wctx.SetInitialPrompt(prompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: inference: %w", err)
	}

	var (
		texts   []string
		probSum float64
		probN   int
	)
	for {
		seg, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: next segment: %w", err)
		}
		if t := strings.TrimSpace(seg.Text); t != "" {
			texts = append(texts, t)
		}
		for _, tok := range seg.Tokens {
			if strings.HasPrefix(tok.Text, "[_") {
				continue
			}
			probSum += float64(tok.P)
			probN++
		}
	}

	tr := &stt.Transcript{Text: strings.Join(texts, " "), Duration: length}
	if probN > 0 {
		tr.Confidence = probSum / float64(probN)
	}
	return tr, nil
}

// speechSamples converts clip into the 16 kHz mono float samples whisper
// expects and reports the audio length.
func speechSamples(clip audio.Clip) ([]float32, time.Duration, error) {
	if clip.Empty() {
		return nil, 0, stt.ErrEmptyAudio
	}
	pcm, rate, ch, ok := clip.PCM()
	if !ok {
		return nil, 0, fmt.Errorf("%w (got %s)", errCompressed, clip.ContentType)
	}
	mono := audio.ToMono16k(pcm, rate, ch)
	return audio.Float32(mono), audio.PCMDuration(mono, audio.SpeechSampleRate, 1), nil
}

// keywordPrompt turns vocabulary hints into an initial prompt, which biases
// whisper towards those spellings.
func keywordPrompt(keywords []string) string {
	if len(keywords) == 0 {
		return ""
	}
	return "Glossary: " + strings.Join(keywords, ", ") + "."
}
