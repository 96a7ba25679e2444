// Package jargon coordinates AI-assisted jargon detection over the live
// transcript: periodic batch classification of the full transcript plus
// on-demand single-word explanations with a session-scoped cache.
package jargon

import "context"

// Detection is the outcome of a single-word explanation request.
type Detection struct {
	// IsJargon reports whether the word is considered jargon.
	IsJargon bool

	// Explanation is a short plain-language explanation, empty when the
	// word is not jargon or no explanation was produced.
	Explanation string
}

// Classifier finds jargon terms in a transcript.
type Classifier interface {
	// DetectJargon returns the jargon words present in the transcript.
	DetectJargon(ctx context.Context, transcript string) ([]string, error)
}

// Explainer explains a single word, optionally with surrounding context.
type Explainer interface {
	// ExplainWord classifies one word and, when it is jargon, produces an
	// explanation.
	ExplainWord(ctx context.Context, word, context string) (Detection, error)
}

// Provider combines both collaborator roles; the LLM-backed implementations
// satisfy it with a single client.
type Provider interface {
	Classifier
	Explainer
}
