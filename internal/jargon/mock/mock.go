// Package mock provides a test double for the jargon provider.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/auricle-audio/auricle/internal/jargon"
)

// Compile-time assertion that Provider satisfies jargon.Provider.
var _ jargon.Provider = (*Provider)(nil)

// Provider records classification and explanation calls and returns
// configured results, allowing error injection on both paths.
type Provider struct {
	// Words is returned by DetectJargon when DetectErr is nil.
	Words []string

	// DetectErr is returned by DetectJargon when non-nil.
	DetectErr error

	// Explanations maps lowercased words to scripted results.
	Explanations map[string]jargon.Detection

	// ExplainErr is returned by ExplainWord when non-nil.
	ExplainErr error

	mu          sync.Mutex
	detectCalls []string
	explainCalls []string
}

// DetectJargon records the transcript and returns the scripted word list.
func (m *Provider) DetectJargon(_ context.Context, transcript string) ([]string, error) {
	m.mu.Lock()
	m.detectCalls = append(m.detectCalls, transcript)
	m.mu.Unlock()
	if m.DetectErr != nil {
		return nil, m.DetectErr
	}
	return m.Words, nil
}

// ExplainWord records the word and returns the scripted detection.
func (m *Provider) ExplainWord(_ context.Context, word, _ string) (jargon.Detection, error) {
	m.mu.Lock()
	m.explainCalls = append(m.explainCalls, word)
	m.mu.Unlock()
	if m.ExplainErr != nil {
		return jargon.Detection{}, m.ExplainErr
	}
	return m.Explanations[strings.ToLower(word)], nil
}

// DetectCalls returns the transcripts passed to DetectJargon so far.
func (m *Provider) DetectCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.detectCalls))
	copy(out, m.detectCalls)
	return out
}

// ExplainCalls returns the words passed to ExplainWord so far.
func (m *Provider) ExplainCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.explainCalls))
	copy(out, m.explainCalls)
	return out
}
