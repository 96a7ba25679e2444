package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	jargonmock "github.com/auricle-audio/auricle/internal/jargon/mock"
)

func TestJargonFallback_PrimaryHealthy(t *testing.T) {
	t.Parallel()

	primary := &jargonmock.Provider{Words: []string{"sharding"}}
	f := NewJargonFallback(primary, "primary", FallbackConfig{})

	words, err := f.DetectJargon(context.Background(), "we use sharding")
	if err != nil {
		t.Fatalf("DetectJargon() error: %v", err)
	}
	if len(words) != 1 || words[0] != "sharding" {
		t.Errorf("words = %v, want [sharding]", words)
	}
}

func TestJargonFallback_FailoverToSecondary(t *testing.T) {
	t.Parallel()

	primary := &jargonmock.Provider{DetectErr: errors.New("quota exceeded")}
	secondary := &jargonmock.Provider{Words: []string{"quorum"}}

	f := NewJargonFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("secondary", secondary)

	words, err := f.DetectJargon(context.Background(), "wait for quorum")
	if err != nil {
		t.Fatalf("DetectJargon() error: %v", err)
	}
	if len(words) != 1 || words[0] != "quorum" {
		t.Errorf("words = %v, want [quorum]", words)
	}
	if len(primary.DetectCalls()) != 1 {
		t.Errorf("primary calls = %d, want 1", len(primary.DetectCalls()))
	}
}

func TestJargonFallback_AllFailed(t *testing.T) {
	t.Parallel()

	primary := &jargonmock.Provider{ExplainErr: errors.New("down")}
	f := NewJargonFallback(primary, "primary", FallbackConfig{})

	_, err := f.ExplainWord(context.Background(), "etcd", "")
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("ExplainWord() error = %v, want ErrAllFailed", err)
	}
}

func TestJargonFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	t.Parallel()

	primary := &jargonmock.Provider{DetectErr: errors.New("down")}
	f := NewJargonFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})

	for i := 0; i < 3; i++ {
		_, _ = f.DetectJargon(context.Background(), "transcript")
	}

	// After two consecutive failures the breaker opened; the third round
	// must not have reached the provider.
	if got := len(primary.DetectCalls()); got != 2 {
		t.Errorf("primary calls = %d, want 2 (breaker open)", got)
	}
}
