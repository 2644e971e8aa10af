package coach_test

import (
	"testing"

	"github.com/MrWong99/echocoach/internal/coach"
	"github.com/MrWong99/echocoach/internal/coach/mock"
	"github.com/MrWong99/echocoach/pkg/audio"
)

func TestPlayer_StopsPreviousClip(t *testing.T) {
	t.Parallel()

	sink := mock.NewSink()
	p := coach.NewPlayer(sink)

	first := p.Play(audio.Clip{Data: []byte("a")})
	second := p.Play(audio.Clip{Data: []byte("b")})
	if first == "" || first == second {
		t.Fatalf("clip ids: got %q and %q", first, second)
	}

	events := sink.Events()
	kinds := make([]string, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	want := []string{"play", "stop", "play"}
	if len(kinds) != len(want) {
		t.Fatalf("events: got %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, kinds[i], want[i])
		}
	}
	if events[1].ClipID != first {
		t.Errorf("stopped clip: got %q, want %q", events[1].ClipID, first)
	}
}

func TestPlayer_Ended(t *testing.T) {
	t.Parallel()

	p := coach.NewPlayer(mock.NewSink())
	first := p.Play(audio.Clip{})
	second := p.Play(audio.Clip{})

	if p.Ended(first) {
		t.Error("stale clip accepted")
	}
	if p.Ended("") {
		t.Error("empty id accepted")
	}
	if !p.Ended(second) {
		t.Error("current clip rejected")
	}
	if p.Ended(second) {
		t.Error("clip accepted twice")
	}
	if p.Current() != "" {
		t.Errorf("current: got %q, want empty", p.Current())
	}
}
