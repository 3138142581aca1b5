package http

import (
	"net/http"

	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
)

// AccountHandler serves self-service endpoints for the signed-in user.
type AccountHandler struct {
	AccountService *service.AccountService
}

// HandleMe handles GET /me
//
//	@Summary		Current user
//	@Description	Returns the signed-in user's profile and second-factor status.
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.AccountResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing or invalid session token"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Account deactivated"
//	@Router			/me [get]
func (h *AccountHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	profile, err := h.AccountService.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.AccountResponse{
		User:                 toUser(profile.Profile),
		TwoFactor:            toTwoFactor(profile.TwoFactor),
		BackupCodesRemaining: profile.BackupCodesRemaining,
	})
}

// HandleChangePassword handles POST /account/password
//
//	@Summary		Change password
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.ChangePasswordRequest	true	"Current and new password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Wrong current password or policy violation"
//	@Router			/account/password [post]
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.ChangePasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "currentPassword", req.CurrentPassword, "newPassword", req.NewPassword) {
		return
	}

	if err := h.AccountService.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleEnrollTOTP handles POST /account/2fa/totp/enroll
//
//	@Summary		Start authenticator enrolment
//	@Description	Returns a secret and QR code. Nothing is stored on the account until the enrolment is confirmed.
//	@Tags			Account
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse
//	@Failure		400	{object}	authsdk.ErrorResponse	"TOTP not allowed"
//	@Failure		409	{object}	authsdk.ErrorResponse	"Authenticator already enrolled"
//	@Router			/account/2fa/totp/enroll [post]
func (h *AccountHandler) HandleEnrollTOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	enrollment, err := h.AccountService.EnrollTOTP(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		EnrollToken: enrollment.EnrollToken,
		Secret:      enrollment.Secret,
		QRCode:      enrollment.QRCode,
		OTPAuthURL:  enrollment.URL,
	})
}

// HandleConfirmTOTP handles POST /account/2fa/totp/confirm
//
//	@Summary		Confirm authenticator enrolment
//	@Description	Enables the authenticator and returns backup codes, shown once.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TOTPConfirmRequest	true	"Enrolment token and code"
//	@Success		200		{object}	authsdk.BackupCodesResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid code or expired enrolment"
//	@Router			/account/2fa/totp/confirm [post]
func (h *AccountHandler) HandleConfirmTOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.TOTPConfirmRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "enrollToken", req.EnrollToken, "code", req.Code) {
		return
	}

	codes, err := h.AccountService.ConfirmTOTP(r.Context(), id, req.EnrollToken, req.Code, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{BackupCodes: codes})
}

// HandleDisableTOTP handles POST /account/2fa/totp/disable
//
//	@Summary		Remove the authenticator
//	@Description	Also deletes every backup code. Refused when the security settings require a second factor and none would remain.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.PasswordConfirmRequest	true	"Current password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Wrong password or second factor required"
//	@Router			/account/2fa/totp/disable [post]
func (h *AccountHandler) HandleDisableTOTP(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.PasswordConfirmRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "password", req.Password) {
		return
	}

	if err := h.AccountService.DisableTOTP(r.Context(), id, req.Password, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetEmailTwoFactor handles POST /account/2fa/email
//
//	@Summary		Turn emailed login codes on or off
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.EmailTwoFactorRequest	true	"Desired state and current password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Wrong password, method not allowed or second factor required"
//	@Router			/account/2fa/email [post]
func (h *AccountHandler) HandleSetEmailTwoFactor(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.EmailTwoFactorRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "password", req.Password) {
		return
	}

	if err := h.AccountService.SetEmailTwoFactor(r.Context(), id, req.Enabled, req.Password, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRegenerateBackupCodes handles POST /account/2fa/backup-codes
//
//	@Summary		Regenerate backup codes
//	@Description	Replaces every backup code. The old set stops working immediately.
//	@Tags			Account
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.PasswordConfirmRequest	true	"Current password"
//	@Success		200		{object}	authsdk.BackupCodesResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Wrong password or authenticator not enabled"
//	@Router			/account/2fa/backup-codes [post]
func (h *AccountHandler) HandleRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	var req authsdk.PasswordConfirmRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "password", req.Password) {
		return
	}

	codes, err := h.AccountService.RegenerateBackupCodes(r.Context(), id, req.Password, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.BackupCodesResponse{BackupCodes: codes})
}
