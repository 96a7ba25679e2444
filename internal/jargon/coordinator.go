package jargon

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the minimum spacing between batch detection rounds.
const DefaultInterval = 5 * time.Second

// Coordinator runs periodic batch jargon detection over the live transcript
// and serves on-demand word explanations. Detection and explanation failures
// are logged and swallowed; they never interrupt transcription.
//
// All methods are safe for concurrent use. Multiple explanation requests may
// be in flight at once; Explaining reflects whether at least one is
// outstanding but does not gate them.
type Coordinator struct {
	provider   Provider
	transcript func() string
	interval   time.Duration

	mu           sync.Mutex
	words        map[string]struct{}
	cache        map[string]string
	lastAnalyzed string

	explaining atomic.Int64

	// OnDetected, when non-nil, is called after each successful detection
	// round with the number of newly discovered words.
	OnDetected func(newWords int)

	kick      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option is a functional option for configuring a Coordinator.
type Option func(*Coordinator)

// WithInterval overrides the periodic detection interval.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// NewCoordinator creates a coordinator reading the current transcript from
// transcript and calling provider for classification and explanations.
func NewCoordinator(provider Provider, transcript func() string, opts ...Option) *Coordinator {
	c := &Coordinator{
		provider:   provider,
		transcript: transcript,
		interval:   DefaultInterval,
		words:      make(map[string]struct{}),
		cache:      make(map[string]string),
		kick:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start launches the periodic detection loop. The first round runs
// immediately; later rounds run on the interval ticker or when Poke is
// called, whichever comes first. The loop exits when ctx is cancelled or
// Stop is called.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		c.detect(ctx)

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case <-ticker.C:
				c.detect(ctx)
			case <-c.kick:
				c.detect(ctx)
				ticker.Reset(c.interval)
			}
		}
	}()
}

// Poke requests an eager detection round ahead of the next tick, typically
// after a committed transcript event. Non-blocking; coalesces with any
// already-pending request.
func (c *Coordinator) Poke() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// Stop ends the detection loop and waits for it to finish. Idempotent.
func (c *Coordinator) Stop() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()
}

// detect runs one batch classification round. The round is skipped when the
// transcript is empty or unchanged since the last successful round (exact
// string comparison). On failure the previous word set and snapshot are
// retained so the next tick retries.
func (c *Coordinator) detect(ctx context.Context) {
	snapshot := c.transcript()
	if snapshot == "" {
		return
	}

	c.mu.Lock()
	unchanged := snapshot == c.lastAnalyzed
	c.mu.Unlock()
	if unchanged {
		return
	}

	found, err := c.provider.DetectJargon(ctx, snapshot)
	if err != nil {
		slog.Warn("jargon detection failed, keeping previous word set", "error", err)
		return
	}

	c.mu.Lock()
	added := 0
	for _, w := range found {
		w = normalizeWord(w)
		if w == "" {
			continue
		}
		if _, ok := c.words[w]; !ok {
			c.words[w] = struct{}{}
			added++
		}
	}
	c.lastAnalyzed = snapshot
	c.mu.Unlock()

	if c.OnDetected != nil {
		c.OnDetected(added)
	}
	if added > 0 {
		slog.Debug("jargon detection round complete", "new_words", added)
	}
}

// Words returns the detected jargon words in sorted order.
func (c *Coordinator) Words() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.words))
	for w := range c.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether word is in the detected set (case-insensitive).
func (c *Coordinator) Contains(word string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.words[normalizeWord(word)]
	return ok
}

// ExplainWord explains one tapped word, consulting the session cache first.
// A cache hit (exact key or phonetic near-match) is always jargon, since
// only jargon explanations are ever cached. Misses go to the explainer; its
// result is returned verbatim and cached when it carries an explanation.
// Failures resolve to a safe non-jargon default; this method never returns
// an error.
func (c *Coordinator) ExplainWord(ctx context.Context, word, wordContext string) Detection {
	key := normalizeWord(word)
	if key == "" {
		return Detection{}
	}

	if explanation, ok := c.cachedExplanation(key); ok {
		return Detection{IsJargon: true, Explanation: explanation}
	}

	c.explaining.Add(1)
	defer c.explaining.Add(-1)

	det, err := c.provider.ExplainWord(ctx, word, wordContext)
	if err != nil {
		slog.Warn("word explanation failed, returning non-jargon default", "word", word, "error", err)
		return Detection{}
	}

	if det.IsJargon && strings.TrimSpace(det.Explanation) != "" {
		c.mu.Lock()
		// First write wins; concurrent explanations of the same word must
		// not flip an already-cached entry.
		if _, exists := c.cache[key]; !exists {
			c.cache[key] = det.Explanation
		}
		c.words[key] = struct{}{}
		c.mu.Unlock()
	}
	return det
}

// cachedExplanation looks key up in the cache, falling back to the closest
// phonetic match among cached keys.
func (c *Coordinator) cachedExplanation(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if explanation, ok := c.cache[key]; ok {
		return explanation, true
	}

	keys := make([]string, 0, len(c.cache))
	for k := range c.cache {
		keys = append(keys, k)
	}
	if near := nearestKey(key, keys); near != "" {
		return c.cache[near], true
	}
	return "", false
}

// Explaining reports whether at least one explanation request is in flight.
// Informational only; it does not serialize requests.
func (c *Coordinator) Explaining() bool {
	return c.explaining.Load() > 0
}

// Reset clears the word set, the explanation cache, and the analyzed
// snapshot, typically between listening sessions.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.words = make(map[string]struct{})
	c.cache = make(map[string]string)
	c.lastAnalyzed = ""
}
