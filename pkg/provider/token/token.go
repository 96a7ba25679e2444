// Package token obtains the short-lived session tokens that authenticate a
// streaming transcription session. Each token is scoped to exactly one
// session; the client fetches a fresh one per connect.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrUnavailable indicates the token endpoint failed or returned no token.
// Fatal to session start; callers must not retry automatically.
var ErrUnavailable = errors.New("token: unavailable")

// Provider issues a short-lived transcription session token.
type Provider interface {
	// Token returns a fresh session token. A nil error guarantees a
	// non-empty token.
	Token(ctx context.Context) (string, error)
}

// Static is a fixed-token Provider for tests and local engines that skip
// authentication.
type Static string

// Token implements [Provider].
func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrUnavailable
	}
	return string(s), nil
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 10 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.SetTimeout(d)
	}
}

// Client fetches tokens from the token-issuing endpoint over HTTPS,
// authenticating with a bearer credential.
type Client struct {
	http     *resty.Client
	endpoint string
}

// Compile-time interface assertion.
var _ Provider = (*Client)(nil)

// NewClient creates a token client for the given endpoint. bearer is the
// caller's credential; it authorizes the token request, not the session.
func NewClient(endpoint, bearer string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, errors.New("token: endpoint must not be empty")
	}

	c := &Client{
		http:     resty.New().SetTimeout(10 * time.Second).SetAuthToken(bearer),
		endpoint: endpoint,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// tokenResponse is the JSON body returned by the token endpoint.
type tokenResponse struct {
	Token string `json:"token"`
}

// Token implements [Provider]. Every failure mode — transport error,
// non-2xx status, empty token — maps to [ErrUnavailable].
func (c *Client) Token(ctx context.Context) (string, error) {
	var body tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: endpoint returned %s", ErrUnavailable, resp.Status())
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: endpoint returned no token", ErrUnavailable)
	}
	return body.Token, nil
}
