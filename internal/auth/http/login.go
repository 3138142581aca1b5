package http

import (
	"net/http"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
)

const (
	msgCodeResent   = "A new verification code has been sent to your email."
	msgFallbackSent = "A verification code has been sent to your email."
)

// LoginHandler serves the password and second-factor login steps.
type LoginHandler struct {
	LoginService *service.LoginService
}

// HandleLogin handles POST /login
//
//	@Summary		Sign in with email and password
//	@Description	Checks credentials. Completes the login, asks for a second factor, or asks the user to enrol one.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	authsdk.LoginResponse	"Token, second-factor challenge or setup requirement"
//	@Failure		400		{object}	authsdk.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid email or password"
//	@Failure		403		{object}	authsdk.ErrorResponse	"Account deactivated"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Too many failed attempts"
//	@Router			/login [post]
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "email", req.Email, "password", req.Password) {
		return
	}

	res, err := h.LoginService.Login(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// HandleVerifyTwoFactor handles POST /login/verify-2fa
//
//	@Summary		Verify a second factor
//	@Description	Completes a pending login with an authenticator, emailed or backup code.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyTwoFactorRequest	true	"Pending session and code"
//	@Success		200		{object}	authsdk.LoginResponse			"Session token and user"
//	@Failure		401		{object}	authsdk.ErrorResponse			"Invalid code or expired session"
//	@Failure		429		{object}	authsdk.ErrorResponse			"Too many failed attempts"
//	@Router			/login/verify-2fa [post]
func (h *LoginHandler) HandleVerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyTwoFactorRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "sessionToken", req.SessionToken, "code", req.Code) {
		return
	}

	res, err := h.LoginService.VerifyTwoFactor(r.Context(),
		req.SessionToken, req.Code, req.UseBackupCode, domain.Method(req.Method), clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// HandleResendCode handles POST /login/resend-2fa
//
//	@Summary		Resend the emailed login code
//	@Description	Emails a fresh code, invalidates the previous one and extends the pending session within its lifetime cap.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SessionTokenRequest	true	"Pending session"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Expired session"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Resend limit reached"
//	@Router			/login/resend-2fa [post]
func (h *LoginHandler) HandleResendCode(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SessionTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "sessionToken", req.SessionToken) {
		return
	}

	if err := h.LoginService.ResendCode(r.Context(), req.SessionToken, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgCodeResent})
}

// HandleSendEmailFallback handles POST /login/send-email-fallback
//
//	@Summary		Fall back to an emailed code
//	@Description	Emails a login code to a user whose primary method is an authenticator app. Only available when email two-factor is also enabled.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SessionTokenRequest	true	"Pending session"
//	@Success		200		{object}	authsdk.MessageResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Email fallback not enabled"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Expired session"
//	@Router			/login/send-email-fallback [post]
func (h *LoginHandler) HandleSendEmailFallback(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SessionTokenRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "sessionToken", req.SessionToken) {
		return
	}

	if err := h.LoginService.SendEmailFallback(r.Context(), req.SessionToken, clientInfo(r)); err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.MessageResponse{Message: msgFallbackSent})
}

// HandleSetupTwoFactor handles POST /login/setup-2fa
//
//	@Summary		Choose a method during forced enrolment
//	@Description	Email sends a code. TOTP returns a secret and QR code that are only stored once verified.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.SetupTwoFactorRequest	true	"Setup session and method"
//	@Success		200		{object}	authsdk.SetupTwoFactorResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Method not allowed"
//	@Failure		401		{object}	authsdk.ErrorResponse	"Expired session"
//	@Router			/login/setup-2fa [post]
func (h *LoginHandler) HandleSetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req authsdk.SetupTwoFactorRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "setupToken", req.SetupToken, "method", req.Method) {
		return
	}

	start, err := h.LoginService.BeginSetup(r.Context(), req.SetupToken, domain.Method(req.Method))
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.SetupTwoFactorResponse{
		Message:    start.Message,
		Secret:     start.Secret,
		QRCode:     start.QRCode,
		OTPAuthURL: start.URL,
	})
}

// HandleVerifySetup handles POST /login/verify-2fa-setup
//
//	@Summary		Confirm forced enrolment
//	@Description	Verifies the code for the chosen method, enables it and completes the login. TOTP enrolment also returns backup codes.
//	@Tags			Login
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifySetupRequest	true	"Setup session, method and code"
//	@Success		200		{object}	authsdk.LoginResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid code or expired session"
//	@Router			/login/verify-2fa-setup [post]
func (h *LoginHandler) HandleVerifySetup(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifySetupRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if !required(w, "setupToken", req.SetupToken, "code", req.Code, "method", req.Method) {
		return
	}

	res, err := h.LoginService.VerifySetup(r.Context(), req.SetupToken, req.Code, domain.Method(req.Method), clientInfo(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res))
}

// HandleLogout handles POST /logout
//
//	@Summary		Sign out
//	@Description	Records the sign-out. Session tokens are stateless, so the client discards its token.
//	@Tags			Login
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"Missing or invalid session token"
//	@Router			/logout [post]
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrSessionExpired.WriteError(w)
		return
	}
	h.LoginService.Logout(r.Context(), claims, clientInfo(r))
	w.WriteHeader(http.StatusNoContent)
}
