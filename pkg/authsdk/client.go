package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient talks to the HostDesk panel API. It covers the anonymous
// endpoints (login steps, password reset, setup, health) and hands out
// Sessions once a login completes.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// UserAgent is sent on every request when set. The server records it
	// with login attempts.
	UserAgent string
}

// Option customises an SDKClient.
type Option func(*SDKClient)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *SDKClient) { c.HTTPClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *SDKClient) { c.UserAgent = ua }
}

// NewSDKClient creates a client for the panel at baseURL.
func NewSDKClient(baseURL string, opts ...Option) *SDKClient {
	c := &SDKClient{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSession wraps a session token returned by a completed login. Tokens
// are not refreshed; sign in again once it expires.
func (c *SDKClient) NewSession(token string) *Session {
	return &Session{client: c, token: token}
}
