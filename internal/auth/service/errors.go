package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountDeactivated  = errors.New("account is deactivated")
	ErrRateLimited         = errors.New("too many attempts, try again later")
	ErrSessionExpired      = errors.New("session expired, start again")
	ErrInvalidCode         = errors.New("invalid or expired code")
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrMethodNotAllowed    = errors.New("two-factor method is not allowed")
	ErrTwoFactorNotEnabled = errors.New("two-factor method is not enabled")
	ErrAlreadyConfigured   = errors.New("already configured")
)

// FieldError is one field-level validation message.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries field-level details and matches ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// BlockedError reports a brute-force block and matches ErrRateLimited.
type BlockedError struct {
	Until  time.Time
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s until %s", e.Reason, e.Until.UTC().Format(time.RFC3339))
}

func (e *BlockedError) Is(target error) bool { return target == ErrRateLimited }
