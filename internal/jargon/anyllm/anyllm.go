// Package anyllm provides a jargon provider backed by
// github.com/mozilla-ai/any-llm-go, allowing detection and explanations to
// run against OpenAI, Anthropic, Gemini, Ollama, and other backends through
// one configuration knob.
package anyllm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/auricle-audio/auricle/internal/jargon"
)

// Compile-time assertion that Provider satisfies jargon.Provider.
var _ jargon.Provider = (*Provider)(nil)

const classifySystemPrompt = `You identify jargon in meeting transcripts.
Given a transcript, list the technical terms, acronyms, and specialized
vocabulary that a general audience would likely not understand.
Respond with JSON only: {"jargonWords": ["word1", "word2"]}.
Return {"jargonWords": []} when there is none.`

const explainSystemPrompt = `You explain individual words from meeting
transcripts. Given a word and optional surrounding context, decide whether it
is jargon (a technical term, acronym, or specialized vocabulary) and, if so,
explain it in one or two plain sentences.
Respond with JSON only: {"isJargon": true|false, "explanation": "..." | null}.`

// Provider implements jargon.Provider by wrapping any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Provider backed by the given backend name: "openai",
// "anthropic", "gemini", or "ollama". Without an API-key option the backend
// falls back to its usual environment variable (OPENAI_API_KEY etc.).
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// DetectJargon implements jargon.Classifier.
func (p *Provider) DetectJargon(ctx context.Context, transcript string) ([]string, error) {
	content, err := p.complete(ctx, classifySystemPrompt, transcript)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		JargonWords []string `json:"jargonWords"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("anyllm: parse classifier response: %w", err)
	}
	return parsed.JargonWords, nil
}

// ExplainWord implements jargon.Explainer.
func (p *Provider) ExplainWord(ctx context.Context, word, wordContext string) (jargon.Detection, error) {
	prompt := fmt.Sprintf("Word: %q", word)
	if wordContext != "" {
		prompt += fmt.Sprintf("\nContext: %q", wordContext)
	}

	content, err := p.complete(ctx, explainSystemPrompt, prompt)
	if err != nil {
		return jargon.Detection{}, err
	}

	var parsed struct {
		IsJargon    bool    `json:"isJargon"`
		Explanation *string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &parsed); err != nil {
		return jargon.Detection{}, fmt.Errorf("anyllm: parse explainer response: %w", err)
	}

	det := jargon.Detection{IsJargon: parsed.IsJargon}
	if parsed.Explanation != nil {
		det.Explanation = *parsed.Explanation
	}
	return det, nil
}

// complete runs one non-streaming completion and returns the first choice.
func (p *Provider) complete(ctx context.Context, system, user string) (string, error) {
	temperature := 0.2
	resp, err := p.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: system},
			{Role: anyllmlib.RoleUser, Content: user},
		},
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama", providerName)
	}
}

// stripFences removes a Markdown code fence wrapper that some models add
// around JSON responses.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
