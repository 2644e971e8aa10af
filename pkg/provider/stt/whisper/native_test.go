package whisper

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/stt"
)

func TestSpeechSamples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		clip        audio.Clip
		wantErr     error
		wantSamples int
		wantLength  time.Duration
	}{
		{name: "empty", clip: audio.Clip{}, wantErr: stt.ErrEmptyAudio},
		{name: "compressed", clip: audio.Clip{Data: []byte{1, 2}, ContentType: audio.ContentTypeMP3}, wantErr: errCompressed},
		{
			name:        "16 kHz mono wav",
			clip:        audio.Clip{Data: audio.EncodeWAV(make([]byte, 16000*2), 16000, 1), ContentType: audio.ContentTypeWAV},
			wantSamples: 16000,
			wantLength:  time.Second,
		},
		{
			name:        "48 kHz stereo pcm",
			clip:        audio.Clip{Data: make([]byte, 48000*4/2), ContentType: audio.ContentTypePCM, SampleRate: 48000, Channels: 2},
			wantSamples: 8000,
			wantLength:  500 * time.Millisecond,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			samples, length, err := speechSamples(tc.clip)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err: got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("speechSamples: %v", err)
			}
			if len(samples) != tc.wantSamples {
				t.Errorf("samples: got %d, want %d", len(samples), tc.wantSamples)
			}
			if length != tc.wantLength {
				t.Errorf("length: got %v, want %v", length, tc.wantLength)
			}
		})
	}
}

func TestKeywordPrompt(t *testing.T) {
	t.Parallel()
	if got := keywordPrompt(nil); got != "" {
		t.Errorf("no keywords: got %q, want empty", got)
	}
	if got, want := keywordPrompt([]string{"Kubernetes", "gRPC"}), "Glossary: Kubernetes, gRPC."; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNewNative_EmptyPath(t *testing.T) {
	t.Parallel()
	if _, err := NewNative(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

// TestNativeProvider_Transcribe needs a ggml model file named by
// WHISPER_MODEL_PATH.
func TestNativeProvider_Transcribe(t *testing.T) {
	path := os.Getenv("WHISPER_MODEL_PATH")
	if path == "" {
		t.Skip("WHISPER_MODEL_PATH not set")
	}
	p, err := NewNative(path, WithNativeLanguage("en"), WithNativeConcurrency(1))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	clip := audio.Clip{Data: audio.EncodeWAV(make([]byte, 16000*2), 16000, 1), ContentType: audio.ContentTypeWAV}
	got, err := p.Transcribe(context.Background(), clip, stt.Options{Keywords: []string{"Go"}})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Duration != time.Second {
		t.Errorf("duration: got %v, want 1s", got.Duration)
	}
}
