package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// defaultPollInterval is how often the watcher re-checks the config file when
// no interval option is given.
const defaultPollInterval = 5 * time.Second

// fingerprint identifies one observed state of the config file. The mtime
// gates the cheap check; the content hash decides whether a reload actually
// changed anything.
type fingerprint struct {
	modTime time.Time
	sum     [sha256.Size]byte
}

// Watcher polls a config file and reports edits through a callback. A reload
// that fails to parse or validate is logged and discarded, so the daemon
// keeps running on the last good configuration.
type Watcher struct {
	path     string
	interval time.Duration
	onChange func(old, new *Config)

	mu       sync.Mutex
	current  *Config
	seen     fingerprint
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path once, then polls it in a background goroutine until
// [Watcher.Stop]. An invalid file at startup is a hard error; later edits
// that fail validation keep the previous config.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: defaultPollInterval,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	cfg, fp, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = cfg
	w.seen = fp

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *Watcher) loop() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

// pollOnce checks the file's mtime and, when it moved, re-reads and compares
// content. The callback runs outside the lock so it may call Current.
func (w *Watcher) pollOnce() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config file unreadable, keeping current configuration", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	unchanged := info.ModTime().Equal(w.seen.modTime)
	w.mu.Unlock()
	if unchanged {
		return
	}

	cfg, fp, err := w.read()
	if err != nil {
		slog.Warn("config reload rejected, keeping current configuration", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	if fp.sum == w.seen.sum {
		// mtime moved but the content did not (touch, atomic rewrite).
		w.seen.modTime = fp.modTime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = cfg
	w.seen = fp
	w.mu.Unlock()

	slog.Info("configuration reloaded", "path", w.path)
	if w.onChange != nil {
		w.onChange(old, cfg)
	}
}

// read loads and validates the file, returning the parsed config together
// with the fingerprint of the bytes it was parsed from.
func (w *Watcher) read() (*Config, fingerprint, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}
	info, err := os.Stat(w.path)
	if err != nil {
		return nil, fingerprint{}, err
	}

	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fingerprint{}, err
	}

	return cfg, fingerprint{modTime: info.ModTime(), sum: sha256.Sum256(data)}, nil
}
