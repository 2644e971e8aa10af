package coach

import (
	"github.com/google/uuid"

	"github.com/MrWong99/echocoach/pkg/audio"
)

// Player is the single owner of the client's audio output. At most one clip
// is current; playing a new clip stops the previous one first.
type Player struct {
	sink    Sink
	current string
}

// NewPlayer returns a player that forwards to sink.
func NewPlayer(sink Sink) *Player { return &Player{sink: sink} }

// Play assigns clip a fresh ID, stops the current clip and starts clip.
func (p *Player) Play(clip audio.Clip) string {
	p.Stop()
	clip.ID = uuid.NewString()
	p.current = clip.ID
	p.sink.Play(clip)
	return clip.ID
}

// Stop stops the current clip, if any.
func (p *Player) Stop() {
	if p.current == "" {
		return
	}
	p.sink.Stop(p.current)
	p.current = ""
}

// Current returns the ID of the playing clip or "".
func (p *Player) Current() string { return p.current }

// Ended reports whether id is the current clip and releases it. Events for
// any other clip are stale.
func (p *Player) Ended(id string) bool {
	if id == "" || id != p.current {
		return false
	}
	p.current = ""
	return true
}
