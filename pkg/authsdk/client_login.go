package authsdk

import (
	"context"
	"net/http"
)

// Setup creates the first superadmin. It fails with ErrorCodeAlreadyConfigured
// once any user exists. setupToken may be empty when the server has none.
func (c *SDKClient) Setup(ctx context.Context, setupToken string, req SetupRequest) (*User, error) {
	var headers map[string]string
	if setupToken != "" {
		headers = map[string]string{"X-Setup-Token": setupToken}
	}
	resp, err := c.doRequest(ctx, http.MethodPost, "/setup", "", req, headers)
	if err != nil {
		return nil, err
	}
	var user User
	if err := decodeJSON(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login submits email and password. The response either completes the login
// or asks for a second factor or a forced enrolment.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.call(ctx, http.MethodPost, "/login", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyTwoFactor completes a login with a second-factor or backup code.
func (c *SDKClient) VerifyTwoFactor(ctx context.Context, req VerifyTwoFactorRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.call(ctx, http.MethodPost, "/login/verify-2fa", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResendCode emails a fresh login code and extends the pending session.
func (c *SDKClient) ResendCode(ctx context.Context, sessionToken string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.call(ctx, http.MethodPost, "/login/resend-2fa", "", SessionTokenRequest{SessionToken: sessionToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendEmailFallback emails a login code to a user whose primary method is
// an authenticator app.
func (c *SDKClient) SendEmailFallback(ctx context.Context, sessionToken string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.call(ctx, http.MethodPost, "/login/send-email-fallback", "", SessionTokenRequest{SessionToken: sessionToken}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// BeginTwoFactorSetup picks the method during forced enrolment.
func (c *SDKClient) BeginTwoFactorSetup(ctx context.Context, req SetupTwoFactorRequest) (*SetupTwoFactorResponse, error) {
	var resp SetupTwoFactorResponse
	if err := c.call(ctx, http.MethodPost, "/login/setup-2fa", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyTwoFactorSetup confirms forced enrolment and completes the login.
func (c *SDKClient) VerifyTwoFactorSetup(ctx context.Context, req VerifySetupRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.call(ctx, http.MethodPost, "/login/verify-2fa-setup", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ForgotPassword requests a reset link. The response is the same whether or
// not the email belongs to an account.
func (c *SDKClient) ForgotPassword(ctx context.Context, email string) (*MessageResponse, error) {
	var resp MessageResponse
	err := c.call(ctx, http.MethodPost, "/forgot-password", "", ForgotPasswordRequest{Email: email}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetPassword sets a new password using a reset token.
func (c *SDKClient) ResetPassword(ctx context.Context, req ResetPasswordRequest) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.call(ctx, http.MethodPost, "/reset-password", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
