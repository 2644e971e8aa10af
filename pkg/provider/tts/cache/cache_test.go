package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
	"github.com/MrWong99/echocoach/pkg/provider/tts/cache"
	"github.com/MrWong99/echocoach/pkg/provider/tts/mock"
)

func TestSynthesize_Caches(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{}
	p := cache.New(m, 4)
	voice := tts.Voice{ID: "alloy"}

	for range 3 {
		clip, err := p.Synthesize(context.Background(), "Tell me about yourself.", voice)
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if string(clip.Data) != "Tell me about yourself." {
			t.Errorf("data: got %q", clip.Data)
		}
	}
	if got := len(m.Calls()); got != 1 {
		t.Errorf("upstream calls: got %d, want 1", got)
	}
	if hits, misses := p.Stats(); hits != 2 || misses != 1 {
		t.Errorf("stats: got %d hits / %d misses, want 2/1", hits, misses)
	}
}

func TestSynthesize_KeyIncludesVoice(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{}
	p := cache.New(m, 4)

	_, _ = p.Synthesize(context.Background(), "Hi.", tts.Voice{ID: "a"})
	_, _ = p.Synthesize(context.Background(), "Hi.", tts.Voice{ID: "b"})
	_, _ = p.Synthesize(context.Background(), "Hi.", tts.Voice{ID: "a", Speed: 1.2})
	if got := len(m.Calls()); got != 3 {
		t.Errorf("upstream calls: got %d, want 3", got)
	}
}

func TestSynthesize_Evicts(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{}
	p := cache.New(m, 2)
	v := tts.Voice{}

	for _, s := range []string{"one", "two", "three", "one"} {
		if _, err := p.Synthesize(context.Background(), s, v); err != nil {
			t.Fatalf("Synthesize(%q): %v", s, err)
		}
	}
	if got := len(m.Calls()); got != 4 {
		t.Errorf("upstream calls: got %d, want 4 (one evicted)", got)
	}
	if p.Len() != 2 {
		t.Errorf("len: got %d, want 2", p.Len())
	}
}

func TestSynthesize_ErrorsNotCached(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{SynthesizeErr: errors.New("quota")}
	p := cache.New(m, 2)

	for range 2 {
		if _, err := p.Synthesize(context.Background(), "x", tts.Voice{}); err == nil {
			t.Fatal("expected error")
		}
	}
	if got := len(m.Calls()); got != 2 {
		t.Errorf("upstream calls: got %d, want 2", got)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()
	p := cache.New(&mock.Provider{}, 0)
	if _, err := p.Synthesize(context.Background(), "  ", tts.Voice{}); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("got %v, want ErrEmptyText", err)
	}
}

func TestSynthesize_Singleflight(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	m := &mock.Provider{SynthesizeFunc: func(text string) (*audio.Clip, error) {
		calls.Add(1)
		<-release
		return &audio.Clip{Data: []byte(text), ContentType: audio.ContentTypeMP3}, nil
	}}
	p := cache.New(m, 4)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Synthesize(context.Background(), "same", tts.Voice{}); err != nil {
				t.Errorf("Synthesize: %v", err)
			}
		}()
	}
	// Give the goroutines time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got < 1 || got > 5 {
		t.Errorf("upstream calls: got %d", got)
	}
	if p.Len() != 1 {
		t.Errorf("len: got %d, want 1", p.Len())
	}
}

func TestListVoices_PassThrough(t *testing.T) {
	t.Parallel()
	m := &mock.Provider{ListVoicesResult: []tts.Voice{{ID: "alloy"}}}
	got, err := cache.New(m, 1).ListVoices(context.Background())
	if err != nil || len(got) != 1 || got[0].ID != "alloy" {
		t.Errorf("got %v, %v", got, err)
	}
}
