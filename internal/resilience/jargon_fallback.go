package resilience

import (
	"context"

	"github.com/auricle-audio/auricle/internal/jargon"
)

// JargonFallback implements [jargon.Provider] with circuit breaking and
// optional failover across multiple AI backends. Each backend has its own
// breaker; when the primary fails repeatedly (or its breaker is open), the
// next healthy fallback is tried. With a single backend the wrapper still
// pays off: an open breaker fails detection rounds fast instead of hammering
// a provider that is already down, and the coordinator retries on a later
// tick once the breaker half-opens.
type JargonFallback struct {
	group *FallbackGroup[jargon.Provider]
}

// Compile-time interface assertion.
var _ jargon.Provider = (*JargonFallback)(nil)

// NewJargonFallback creates a [JargonFallback] with primary as the preferred
// backend.
func NewJargonFallback(primary jargon.Provider, primaryName string, cfg FallbackConfig) *JargonFallback {
	return &JargonFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional jargon provider as a fallback.
func (f *JargonFallback) AddFallback(name string, provider jargon.Provider) {
	f.group.AddFallback(name, provider)
}

// DetectJargon classifies the transcript via the first healthy backend.
func (f *JargonFallback) DetectJargon(ctx context.Context, transcript string) ([]string, error) {
	return ExecuteWithResult(f.group, func(p jargon.Provider) ([]string, error) {
		return p.DetectJargon(ctx, transcript)
	})
}

// ExplainWord explains the word via the first healthy backend.
func (f *JargonFallback) ExplainWord(ctx context.Context, word, wordContext string) (jargon.Detection, error) {
	return ExecuteWithResult(f.group, func(p jargon.Provider) (jargon.Detection, error) {
		return p.ExplainWord(ctx, word, wordContext)
	})
}
