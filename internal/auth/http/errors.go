package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// writeError maps a service error onto its response. Anything not in the
// service taxonomy is logged and reported as a bare server_error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *service.ValidationError
		blocked    *service.BlockedError
	)

	switch {
	case errors.As(err, &validation):
		details := make([]authsdk.FieldError, 0, len(validation.Fields))
		for _, f := range validation.Fields {
			details = append(details, authsdk.FieldError{Field: f.Field, Message: f.Message})
		}
		authsdk.NewValidationError(details).WriteError(w)
	case errors.As(err, &blocked):
		apiErr := *authsdk.ErrRateLimited
		apiErr.RetryAfter = time.Until(blocked.Until)
		apiErr.WriteError(w)
	case errors.Is(err, service.ErrRateLimited):
		authsdk.ErrRateLimited.WriteError(w)
	case errors.Is(err, service.ErrInvalidCredentials):
		authsdk.ErrInvalidCredentials.WriteError(w)
	case errors.Is(err, service.ErrInvalidCode):
		authsdk.ErrInvalidCode.WriteError(w)
	case errors.Is(err, service.ErrSessionExpired):
		authsdk.ErrSessionExpired.WriteError(w)
	case errors.Is(err, service.ErrAccountDeactivated):
		authsdk.ErrAccountDeactivated.WriteError(w)
	case errors.Is(err, service.ErrNotFound):
		authsdk.ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrMethodNotAllowed):
		authsdk.ErrMethodNotAllowed.WriteError(w)
	case errors.Is(err, service.ErrTwoFactorNotEnabled):
		authsdk.ErrTwoFactorNotEnabled.WriteError(w)
	case errors.Is(err, service.ErrAlreadyConfigured):
		authsdk.ErrAlreadyConfigured.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		authsdk.ErrServerError.WriteError(w)
	}
}

// decodeRequest reads a JSON body into v, writing invalid_request on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := httpx.DecodeJSON(w, r, v); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to parse request", "error", err)
		authsdk.ErrInvalidRequest.WithDescription(err.Error()).WriteError(w)
		return false
	}
	return true
}

// required reports missing fields as a validation error. pairs alternates
// field name and value.
func required(w http.ResponseWriter, pairs ...string) bool {
	var details []authsdk.FieldError
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			details = append(details, authsdk.FieldError{Field: pairs[i], Message: "is required"})
		}
	}
	if len(details) > 0 {
		authsdk.NewValidationError(details).WriteError(w)
		return false
	}
	return true
}

func clientInfo(r *http.Request) service.ClientInfo {
	return service.ClientInfo{
		IP:        httpx.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// userID returns the authenticated subject. AuthnMiddleware guarantees it
// on every route that calls this.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := httpx.UserIDFromContext(r.Context())
	if !ok || id == "" {
		httpx.WriteJSON(w, http.StatusUnauthorized, httpx.ErrorBody{
			Error:            authsdk.ErrorCodeUnauthorized,
			ErrorDescription: "missing session",
		})
		return "", false
	}
	return id, true
}
