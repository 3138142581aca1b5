package service

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
)

const (
	msgCurrentIncorrect = "current password is incorrect"
	msgMustDiffer       = "must differ from the current password"
)

// PolicyResult is the outcome of a password policy check.
type PolicyResult struct {
	Valid  bool
	Errors []string
}

// ValidatePassword checks pw against p. It never inspects anything but the
// candidate itself.
func ValidatePassword(p domain.PasswordPolicy, pw string) PolicyResult {
	var errs []string

	n := utf8.RuneCountInString(pw)
	if n < p.MinLength {
		errs = append(errs, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		errs = append(errs, fmt.Sprintf("must be at most %d characters", p.MaxLength))
	}

	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if p.RequireUpper && !upper {
		errs = append(errs, "must contain an uppercase letter")
	}
	if p.RequireLower && !lower {
		errs = append(errs, "must contain a lowercase letter")
	}
	if p.RequireDigit && !digit {
		errs = append(errs, "must contain a digit")
	}
	if p.RequireSymbol && !symbol {
		errs = append(errs, "must contain a symbol")
	}

	return PolicyResult{Valid: len(errs) == 0, Errors: errs}
}

// ValidatePasswordChange adds the change-password rules: the caller must
// prove the current password and the new one must differ from it.
func ValidatePasswordChange(p domain.PasswordPolicy, current, currentHash, next string) PolicyResult {
	res := ValidatePassword(p, next)

	if cryptox.VerifyPassword(current, currentHash) != nil {
		res.Errors = append(res.Errors, msgCurrentIncorrect)
	} else if cryptox.ConstantTimeEqual(current, next) {
		res.Errors = append(res.Errors, msgMustDiffer)
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// Err converts a failed result into a *ValidationError for field.
func (r PolicyResult) Err(field string) error {
	if r.Valid {
		return nil
	}
	ve := &ValidationError{}
	for _, msg := range r.Errors {
		f := field
		if msg == msgCurrentIncorrect {
			f = "currentPassword"
		}
		ve.Fields = append(ve.Fields, FieldError{Field: f, Message: msg})
	}
	return ve
}
