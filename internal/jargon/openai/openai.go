// Package openai provides a jargon provider backed by the OpenAI API.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

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

// Provider implements jargon.Provider using OpenAI chat completions.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI jargon Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("openai: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
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
		return nil, fmt.Errorf("openai: parse classifier response: %w", err)
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
		return jargon.Detection{}, fmt.Errorf("openai: parse explainer response: %w", err)
	}

	det := jargon.Detection{IsJargon: parsed.IsJargon}
	if parsed.Explanation != nil {
		det.Explanation = *parsed.Explanation
	}
	return det, nil
}

// complete runs one non-streaming chat completion and returns the text of
// the first choice.
func (p *Provider) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		Temperature: param.NewOpt(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
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
