package domain

import (
	"fmt"
	"time"
)

// Enforcement decides who must have a second factor.
type Enforcement string

const (
	EnforcementDisabled       Enforcement = "disabled"        // never challenge
	EnforcementOptional       Enforcement = "optional"        // challenge users who opted in
	EnforcementRequiredAdmins Enforcement = "required_admins" // admins and above must enrol
	EnforcementRequiredAll    Enforcement = "required_all"
)

type PasswordPolicy struct {
	MinLength     int  `json:"minLength"`
	MaxLength     int  `json:"maxLength"`
	RequireUpper  bool `json:"requireUpper"`
	RequireLower  bool `json:"requireLower"`
	RequireDigit  bool `json:"requireDigit"`
	RequireSymbol bool `json:"requireSymbol"`
}

// LockoutPolicy configures the brute-force guard.
type LockoutPolicy struct {
	MaxFailures   int `json:"maxFailures"`
	WindowMinutes int `json:"windowMinutes"`
	BlockMinutes  int `json:"blockMinutes"`
}

func (l LockoutPolicy) Window() time.Duration { return time.Duration(l.WindowMinutes) * time.Minute }
func (l LockoutPolicy) Block() time.Duration  { return time.Duration(l.BlockMinutes) * time.Minute }

type SecuritySettings struct {
	TwoFactorEnforcement Enforcement    `json:"twoFactorEnforcement"`
	TwoFactorMethods     []Method       `json:"twoFactorMethods"`
	PasswordPolicy       PasswordPolicy `json:"passwordPolicy"`
	Lockout              LockoutPolicy  `json:"lockout"`
}

// DefaultSecuritySettings applies until an administrator saves their own.
func DefaultSecuritySettings() SecuritySettings {
	return SecuritySettings{
		TwoFactorEnforcement: EnforcementOptional,
		TwoFactorMethods:     []Method{MethodEmail, MethodTOTP},
		PasswordPolicy: PasswordPolicy{
			MinLength:    10,
			MaxLength:    128,
			RequireUpper: true,
			RequireLower: true,
			RequireDigit: true,
		},
		Lockout: LockoutPolicy{
			MaxFailures:   5,
			WindowMinutes: 15,
			BlockMinutes:  15,
		},
	}
}

// RequiresTwoFactor reports whether a user with role must have a second factor.
func (s SecuritySettings) RequiresTwoFactor(role Role) bool {
	switch s.TwoFactorEnforcement {
	case EnforcementRequiredAll:
		return true
	case EnforcementRequiredAdmins:
		return role.AtLeast(RoleAdmin)
	default:
		return false
	}
}

// ChallengesEnabled is false only when second factors are switched off entirely.
func (s SecuritySettings) ChallengesEnabled() bool {
	return s.TwoFactorEnforcement != EnforcementDisabled
}

// MethodAllowed reports whether m may be newly enrolled. Factors a user
// already has are challenged regardless.
func (s SecuritySettings) MethodAllowed(m Method) bool {
	return containsMethod(s.TwoFactorMethods, m)
}

// Validate checks settings submitted by an administrator.
func (s SecuritySettings) Validate() map[string]string {
	errs := make(map[string]string)

	switch s.TwoFactorEnforcement {
	case EnforcementDisabled, EnforcementOptional, EnforcementRequiredAdmins, EnforcementRequiredAll:
	default:
		errs["twoFactorEnforcement"] = fmt.Sprintf("unknown enforcement %q", s.TwoFactorEnforcement)
	}

	seen := make(map[Method]bool)
	for _, m := range s.TwoFactorMethods {
		if !m.Valid() {
			errs["twoFactorMethods"] = fmt.Sprintf("unknown method %q", m)
		}
		if seen[m] {
			errs["twoFactorMethods"] = fmt.Sprintf("duplicate method %q", m)
		}
		seen[m] = true
	}
	if s.TwoFactorEnforcement != EnforcementDisabled && len(s.TwoFactorMethods) == 0 {
		errs["twoFactorMethods"] = "at least one method is required unless two-factor is disabled"
	}

	p := s.PasswordPolicy
	if p.MinLength < 8 {
		errs["passwordPolicy.minLength"] = "must be at least 8"
	}
	if p.MaxLength < p.MinLength || p.MaxLength > 1024 {
		errs["passwordPolicy.maxLength"] = "must be between minLength and 1024"
	}

	l := s.Lockout
	if l.MaxFailures < 1 {
		errs["lockout.maxFailures"] = "must be at least 1"
	}
	if l.WindowMinutes < 1 {
		errs["lockout.windowMinutes"] = "must be at least 1"
	}
	if l.BlockMinutes < 1 {
		errs["lockout.blockMinutes"] = "must be at least 1"
	}

	return errs
}
