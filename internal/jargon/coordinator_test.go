package jargon

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

// scriptedProvider is an in-package test double so coordinator tests can
// script per-call behavior without an import cycle on the mock package.
type scriptedProvider struct {
	mu           sync.Mutex
	detectCalls  []string
	explainCalls []string

	words     []string
	detectErr error

	explain    Detection
	explainErr error
}

func (p *scriptedProvider) DetectJargon(_ context.Context, transcript string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detectCalls = append(p.detectCalls, transcript)
	if p.detectErr != nil {
		return nil, p.detectErr
	}
	return p.words, nil
}

func (p *scriptedProvider) ExplainWord(_ context.Context, word, _ string) (Detection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.explainCalls = append(p.explainCalls, word)
	if p.explainErr != nil {
		return Detection{}, p.explainErr
	}
	return p.explain, nil
}

func (p *scriptedProvider) numDetectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.detectCalls)
}

func (p *scriptedProvider) numExplainCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.explainCalls)
}

func TestCoordinator_DetectUnionsLowercased(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{words: []string{"Kubernetes", "API", ""}}
	text := "we deployed it on Kubernetes via the API"
	c := NewCoordinator(p, func() string { return text })

	c.detect(context.Background())

	want := []string{"api", "kubernetes"}
	if got := c.Words(); !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %v, want %v", got, want)
	}
	if !c.Contains("KUBERNETES") {
		t.Error("Contains should be case-insensitive")
	}
}

func TestCoordinator_SkipsUnchangedTranscript(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{words: []string{"latency"}}
	text := "tail latency regressed"
	c := NewCoordinator(p, func() string { return text })

	ctx := context.Background()
	c.detect(ctx)
	c.detect(ctx)

	if got := p.numDetectCalls(); got != 1 {
		t.Errorf("classifier invoked %d times for unchanged transcript, want 1", got)
	}

	text = "tail latency regressed after the rollout"
	c.detect(ctx)
	if got := p.numDetectCalls(); got != 2 {
		t.Errorf("classifier invoked %d times after transcript change, want 2", got)
	}
}

func TestCoordinator_EmptyTranscriptSkipped(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{}
	c := NewCoordinator(p, func() string { return "" })

	c.detect(context.Background())
	if got := p.numDetectCalls(); got != 0 {
		t.Errorf("classifier invoked %d times on empty transcript, want 0", got)
	}
}

func TestCoordinator_DetectFailureKeepsSetAndRetries(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{words: []string{"sharding"}}
	text := "we talked about sharding"
	c := NewCoordinator(p, func() string { return text })

	ctx := context.Background()
	c.detect(ctx)

	p.mu.Lock()
	p.detectErr = errors.New("classifier down")
	p.mu.Unlock()
	text = "we talked about sharding and quorum"
	c.detect(ctx)

	// Failure keeps the previous set and leaves the snapshot unanalyzed.
	if got := c.Words(); !reflect.DeepEqual(got, []string{"sharding"}) {
		t.Errorf("Words() after failure = %v, want previous set", got)
	}

	p.mu.Lock()
	p.detectErr = nil
	p.words = []string{"quorum"}
	p.mu.Unlock()
	c.detect(ctx)

	if got := c.Words(); !reflect.DeepEqual(got, []string{"quorum", "sharding"}) {
		t.Errorf("Words() after retry = %v", got)
	}
}

func TestCoordinator_ExplainCachesAndHitsAnyCase(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{explain: Detection{IsJargon: true, Explanation: "application programming interface"}}
	c := NewCoordinator(p, func() string { return "" })

	ctx := context.Background()
	first := c.ExplainWord(ctx, "API", "the API returned 500")
	if !first.IsJargon || first.Explanation == "" {
		t.Fatalf("first explain = %+v", first)
	}

	second := c.ExplainWord(ctx, "api", "")
	if !second.IsJargon || second.Explanation != first.Explanation {
		t.Errorf("cached explain = %+v, want cached result", second)
	}
	if got := p.numExplainCalls(); got != 1 {
		t.Errorf("explainer invoked %d times, want 1 (second call served from cache)", got)
	}
}

func TestCoordinator_ExplainPhoneticCacheHit(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{explain: Detection{IsJargon: true, Explanation: "container orchestrator"}}
	c := NewCoordinator(p, func() string { return "" })

	ctx := context.Background()
	c.ExplainWord(ctx, "kubernetes", "")

	// The recognizer's near-miss spelling resolves to the cached entry.
	got := c.ExplainWord(ctx, "kubernetees", "")
	if !got.IsJargon || got.Explanation != "container orchestrator" {
		t.Errorf("phonetic lookup = %+v, want cache hit", got)
	}
	if calls := p.numExplainCalls(); calls != 1 {
		t.Errorf("explainer invoked %d times, want 1", calls)
	}
}

func TestCoordinator_ExplainFailureSafeDefault(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{explainErr: errors.New("model unavailable")}
	c := NewCoordinator(p, func() string { return "" })

	got := c.ExplainWord(context.Background(), "idempotent", "")
	if got.IsJargon || got.Explanation != "" {
		t.Errorf("explain on failure = %+v, want zero detection", got)
	}
}

func TestCoordinator_NonJargonNotCached(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{explain: Detection{IsJargon: false}}
	c := NewCoordinator(p, func() string { return "" })

	ctx := context.Background()
	c.ExplainWord(ctx, "hello", "")
	c.ExplainWord(ctx, "hello", "")

	if got := p.numExplainCalls(); got != 2 {
		t.Errorf("explainer invoked %d times, want 2 (non-jargon never cached)", got)
	}
}

func TestCoordinator_Reset(t *testing.T) {
	t.Parallel()

	p := &scriptedProvider{
		words:   []string{"quorum"},
		explain: Detection{IsJargon: true, Explanation: "majority agreement"},
	}
	text := "reaching quorum"
	c := NewCoordinator(p, func() string { return text })

	ctx := context.Background()
	c.detect(ctx)
	c.ExplainWord(ctx, "quorum", "")
	c.Reset()

	if got := c.Words(); len(got) != 0 {
		t.Errorf("Words() after reset = %v", got)
	}
	// The snapshot was cleared too, so the same transcript is re-analyzed.
	c.detect(ctx)
	if got := p.numDetectCalls(); got != 2 {
		t.Errorf("classifier invoked %d times, want re-analysis after reset", got)
	}
	// And the cache was cleared.
	c.ExplainWord(ctx, "quorum", "")
	if got := p.numExplainCalls(); got != 2 {
		t.Errorf("explainer invoked %d times, want cache miss after reset", got)
	}
}
