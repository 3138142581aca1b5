package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ListUsers returns every panel user (requires admin role).
func (s *Session) ListUsers(ctx context.Context) ([]AdminUser, error) {
	var resp UserListResponse
	if err := s.call(ctx, http.MethodGet, "/admin/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// CreateUser provisions a user with a temporary password (requires admin role).
func (s *Session) CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResponse, error) {
	httpResp, err := s.client.doRequest(ctx, http.MethodPost, "/admin/users", s.token, req, nil)
	if err != nil {
		return nil, err
	}
	var resp CreateUserResponse
	if err := decodeJSON(httpResp, &resp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetUserActive activates or deactivates a user (requires admin role).
func (s *Session) SetUserActive(ctx context.Context, userID string, active bool) error {
	path := "/admin/users/" + url.PathEscape(userID) + "/active"
	return s.callNoContent(ctx, http.MethodPost, path, SetActiveRequest{Active: active})
}

// GetSecuritySettings returns the current security settings (requires admin role).
func (s *Session) GetSecuritySettings(ctx context.Context) (*SecuritySettings, error) {
	var resp SecuritySettings
	if err := s.call(ctx, http.MethodGet, "/admin/security-settings", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSecuritySettings replaces the security settings (requires admin role).
func (s *Session) UpdateSecuritySettings(ctx context.Context, settings SecuritySettings) (*SecuritySettings, error) {
	var resp SecuritySettings
	if err := s.call(ctx, http.MethodPut, "/admin/security-settings", settings, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAuditEvents returns the newest audit events first. A limit of zero
// uses the server default.
func (s *Session) ListAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	path := "/admin/audit"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp AuditListResponse
	if err := s.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}
