package authsdk

import (
	"context"
	"net/http"
)

// ChangePassword replaces the password after checking the current one.
func (s *Session) ChangePassword(ctx context.Context, req ChangePasswordRequest) error {
	return s.callNoContent(ctx, http.MethodPost, "/account/password", req)
}

// EnrollTOTP starts authenticator enrolment and returns the secret to show.
func (s *Session) EnrollTOTP(ctx context.Context) (*TOTPEnrollResponse, error) {
	var resp TOTPEnrollResponse
	if err := s.call(ctx, http.MethodPost, "/account/2fa/totp/enroll", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConfirmTOTP finishes enrolment and returns a fresh set of backup codes.
func (s *Session) ConfirmTOTP(ctx context.Context, req TOTPConfirmRequest) (*BackupCodesResponse, error) {
	var resp BackupCodesResponse
	if err := s.call(ctx, http.MethodPost, "/account/2fa/totp/confirm", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DisableTOTP removes the authenticator and every backup code.
func (s *Session) DisableTOTP(ctx context.Context, password string) error {
	return s.callNoContent(ctx, http.MethodPost, "/account/2fa/totp/disable", PasswordConfirmRequest{Password: password})
}

// SetEmailTwoFactor turns emailed login codes on or off.
func (s *Session) SetEmailTwoFactor(ctx context.Context, req EmailTwoFactorRequest) error {
	return s.callNoContent(ctx, http.MethodPost, "/account/2fa/email", req)
}

// RegenerateBackupCodes replaces every backup code with a new set.
func (s *Session) RegenerateBackupCodes(ctx context.Context, password string) (*BackupCodesResponse, error) {
	var resp BackupCodesResponse
	err := s.call(ctx, http.MethodPost, "/account/2fa/backup-codes", PasswordConfirmRequest{Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
