package http

import (
	"net/http"

	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
)

const msgPasswordReset = "Your password has been reset. You can now sign in."

// ResetHandler serves the forgotten-password flow.
type ResetHandler struct {
	ResetService *service.ResetService
}

// HandleForgotPassword handles POST /forgot-password
//
//	@Summary		Request a password reset link
//	@Description	Always answers with the same message so the response does not reveal whether the email has an account.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ForgotPasswordRequest	true	"Account email"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Router			/forgot-password [post]
func (h *ResetHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ForgotPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	msg := h.ResetService.RequestReset(r.Context(), req.Email, clientInfo(r))
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msg})
}

// HandleResetPassword handles POST /reset-password
//
//	@Summary		Set a new password with a reset token
//	@Description	Tokens are single use and expire after one hour.
//	@Tags			Password
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ResetPasswordRequest	true	"Reset token and new password"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Password does not meet the policy"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid, used or expired token"
//	@Router			/reset-password [post]
func (h *ResetHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ResetPasswordRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "token", req.Token, "password", req.Password) {
		return
	}

	if err := h.ResetService.ResetPassword(r.Context(), req.Token, req.Password, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgPasswordReset})
}
