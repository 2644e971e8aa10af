package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the [Watcher] waits after the last write
// before it reloads the file.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk and hands every
// new valid version to onChange. A version that fails to parse or validate
// is logged and skipped; the previous config stays live.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(old, new *Config)
	fs       *fsnotify.Watcher

	// reloadMu serialises reloads so onChange sees versions in order.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	digest  [sha256.Size]byte

	stop     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period between the last file event and the
// reload. Editors tend to write a file in several steps.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher loads path and starts watching it. The initial load must
// succeed.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		onChange: onChange,
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, digest, err := readConfigFile(w.path)
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current, w.digest = cfg, digest

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	// The directory is watched, not the file: an editor that saves by
	// renaming a temp file over the original would drop a file watch.
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("config: watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fs = fw

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Reload reads the file right away instead of waiting for a file event.
// onChange runs before Reload returns if the content changed.
func (w *Watcher) Reload() error {
	return w.reload()
}

// Stop ends watching and waits for the event loop to exit. It is safe to
// call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.exited
	})
}

func (w *Watcher) loop() {
	defer close(w.exited)
	defer w.fs.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-w.stop:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.reload(); err != nil {
				slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher: watch error", "path", w.path, "err", err)
		}
	}
}

func (w *Watcher) reload() error {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	cfg, digest, err := readConfigFile(w.path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if digest == w.digest {
		w.mu.Unlock()
		return nil
	}
	old := w.current
	w.current, w.digest = cfg, digest
	w.mu.Unlock()

	slog.Info("config watcher: configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
	return nil
}

func readConfigFile(path string) (*Config, [sha256.Size]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, [sha256.Size]byte{}, err
	}
	return cfg, sha256.Sum256(data), nil
}
