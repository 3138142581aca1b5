package authsdk

import (
	"context"
	"net/http"
)

// Session is a signed-in session. Session tokens are not refreshed; once
// the token expires the user signs in again.
type Session struct {
	client *SDKClient
	token  string
}

// Token returns the raw session token.
func (s *Session) Token() string { return s.token }

func (s *Session) call(ctx context.Context, method, path string, payload, target any) error {
	return s.client.call(ctx, method, path, s.token, payload, target)
}

func (s *Session) callNoContent(ctx context.Context, method, path string, payload any) error {
	resp, err := s.client.doRequest(ctx, method, path, s.token, payload, nil)
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}

// Me returns the signed-in user's account summary.
func (s *Session) Me(ctx context.Context) (*AccountResponse, error) {
	var resp AccountResponse
	if err := s.call(ctx, http.MethodGet, "/me", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout records the sign-out. The client should discard the token afterwards.
func (s *Session) Logout(ctx context.Context) error {
	return s.callNoContent(ctx, http.MethodPost, "/logout", nil)
}
