// Package cache wraps a tts.Provider with an in-memory LRU of synthesised
// clips. Question prompts and the fixed feedback prefix repeat across
// sessions, and the practice flow replays the same question twice per turn.
//
// Concurrent requests for the same (voice, text) pair share one upstream
// call.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/echocoach/pkg/audio"
	"github.com/MrWong99/echocoach/pkg/provider/tts"
)

// DefaultEntries is the cache size used when New is given a non-positive size.
const DefaultEntries = 256

// Provider is a caching tts.Provider. It is safe for concurrent use.
type Provider struct {
	next tts.Provider

	mu    sync.Mutex
	lru   *lru.Cache
	group singleflight.Group

	hits, misses int
}

var _ tts.Provider = (*Provider)(nil)

// New returns a Provider caching up to entries clips from next.
func New(next tts.Provider, entries int) *Provider {
	if entries <= 0 {
		entries = DefaultEntries
	}
	return &Provider{next: next, lru: lru.New(entries)}
}

func key(text string, v tts.Voice) string {
	return fmt.Sprintf("%s|%s|%g|%s", v.Provider, v.ID, v.Speed, strings.TrimSpace(text))
}

// Synthesize returns a cached clip or synthesises and stores a new one.
// Failed calls are not cached. Every caller receives its own copy of the
// clip header; the payload bytes are shared and must not be modified.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, tts.ErrEmptyText
	}
	k := key(text, voice)

	p.mu.Lock()
	if v, ok := p.lru.Get(k); ok {
		p.hits++
		p.mu.Unlock()
		c := v.(audio.Clip)
		return &c, nil
	}
	p.misses++
	p.mu.Unlock()

	v, err, _ := p.group.Do(k, func() (any, error) {
		clip, err := p.next.Synthesize(ctx, text, voice)
		if err != nil {
			return nil, err
		}
		c := *clip
		c.ID = ""
		p.mu.Lock()
		p.lru.Add(k, c)
		p.mu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	c := v.(audio.Clip)
	return &c, nil
}

// ListVoices is passed through uncached.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.Voice, error) {
	return p.next.ListVoices(ctx)
}

// Stats reports cache hits and misses since creation.
func (p *Provider) Stats() (hits, misses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits, p.misses
}

// Len returns the number of cached clips.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Len()
}
