package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeInvalidCredentials  = "invalid_credentials"
	ErrorCodeInvalidCode         = "invalid_code"
	ErrorCodeSessionExpired      = "session_expired"
	ErrorCodeAccountDeactivated  = "account_deactivated"
	ErrorCodeRateLimited         = "rate_limited"
	ErrorCodeValidation          = "validation_error"
	ErrorCodeNotFound            = "not_found"
	ErrorCodeMethodNotAllowed    = "method_not_allowed"
	ErrorCodeTwoFactorNotEnabled = "two_factor_not_enabled"
	ErrorCodeAlreadyConfigured   = "already_configured"
	ErrorCodeUnauthorized        = "unauthorized"
	ErrorCodeForbidden           = "forbidden"
	ErrorCodeServerError         = "server_error"
)

// ============================================================================
// APIError
// ============================================================================

// FieldError is a validation failure for one request field.
type FieldError = httpx.FieldError

// APIError is the error every endpoint returns. It implements the error
// interface and is used both by the server (to write responses) and by the
// SDK client (to represent them).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine readable error kind (e.g. "invalid_code")
	Code string `json:"error"`

	// Description is a human readable description of the error
	Description string `json:"error_description"`

	// Details lists field-level validation failures
	Details []FieldError `json:"details,omitempty"`

	// RetryAfter is set on rate limited responses
	RetryAfter time.Duration `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this error to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(max(int(e.RetryAfter.Seconds()), 1)))
	}
	httpx.WriteJSON(w, e.StatusCode, httpx.ErrorBody{
		Error:            e.Code,
		ErrorDescription: e.Description,
		Details:          e.Details,
	})
}

// WithDescription returns a copy of e with a different description.
func (e *APIError) WithDescription(desc string) *APIError {
	cp := *e
	cp.Description = desc
	return &cp
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned when the body is malformed or a required
	// field is missing.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidCredentials is returned for any email/password mismatch,
	// including unknown emails.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "invalid email or password",
	}

	// ErrInvalidCode is returned when a second-factor code does not verify.
	ErrInvalidCode = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCode,
		Description: "invalid or expired code",
	}

	// ErrSessionExpired is returned when a pending login, enrolment or reset
	// token is unknown, expired or already used.
	ErrSessionExpired = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeSessionExpired,
		Description: "session expired, please sign in again",
	}

	// ErrAccountDeactivated is returned when a correct password belongs to a
	// deactivated account.
	ErrAccountDeactivated = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeAccountDeactivated,
		Description: "this account has been deactivated",
	}

	// ErrRateLimited is returned when the caller is blocked or throttled.
	ErrRateLimited = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeRateLimited,
		Description: "too many attempts, please try again later",
	}

	// ErrNotFound is returned when the addressed resource does not exist.
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	// ErrMethodNotAllowed is returned when a second-factor method is not
	// permitted by the security settings.
	ErrMethodNotAllowed = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeMethodNotAllowed,
		Description: "two-factor method is not allowed",
	}

	// ErrTwoFactorNotEnabled is returned when a method is used that the
	// account has not enabled.
	ErrTwoFactorNotEnabled = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeTwoFactorNotEnabled,
		Description: "two-factor method is not enabled for this account",
	}

	// ErrAlreadyConfigured is returned by /setup once any user exists.
	ErrAlreadyConfigured = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeAlreadyConfigured,
		Description: "the panel has already been set up",
	}

	// ErrServerError is returned for anything unexpected. Details are logged,
	// never returned.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// NewValidationError builds a 400 response carrying field-level details.
func NewValidationError(details []FieldError) *APIError {
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeValidation,
		Description: "validation failed",
		Details:     details,
	}
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx HTTP response into an *APIError.
// Returns nil if the response indicates success (2xx status code).
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}

	var errResp httpx.ErrorBody
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Error
		apiErr.Description = errResp.ErrorDescription
		apiErr.Details = errResp.Details
		return apiErr
	}

	// Fallback: create generic error from status code
	apiErr.Code = ErrorCodeServerError
	apiErr.Description = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	return apiErr
}

// ErrorResponse is the JSON body of every error response.
type ErrorResponse = httpx.ErrorBody
