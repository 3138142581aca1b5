package domain

import "time"

type User struct {
	ID                 string
	Email              string
	Name               string
	PasswordHash       string // argon2id PHC string
	Role               Role
	IsActive           bool
	MustChangePassword bool

	// Legacy single-method configuration. Only consulted when neither of the
	// per-method flags below is set.
	TwoFactorEnabled bool
	TwoFactorMethod  Method

	EmailTwoFactorEnabled bool
	TOTPEnabled           bool
	TwoFactorSecret       string // base32 TOTP secret, empty when not enrolled

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TwoFactorState is the normalised view of a user's second factors.
type TwoFactorState struct {
	EmailEnabled bool
	TOTPEnabled  bool
	AnyEnabled   bool
}

// EffectiveTwoFactor folds the legacy and per-method fields into one state.
// TOTP never counts as enabled without a stored secret.
func EffectiveTwoFactor(u User) TwoFactorState {
	var st TwoFactorState

	switch {
	case u.EmailTwoFactorEnabled || u.TOTPEnabled:
		st.EmailEnabled = u.EmailTwoFactorEnabled
		st.TOTPEnabled = u.TOTPEnabled && u.TwoFactorSecret != ""
	case u.TwoFactorEnabled:
		switch u.TwoFactorMethod {
		case MethodEmail:
			st.EmailEnabled = true
		case MethodTOTP:
			st.TOTPEnabled = u.TwoFactorSecret != ""
		}
	}

	st.AnyEnabled = st.EmailEnabled || st.TOTPEnabled
	return st
}

// Primary is the method challenged first: the authenticator app when
// enrolled, email otherwise.
func (s TwoFactorState) Primary() Method {
	if s.TOTPEnabled {
		return MethodTOTP
	}
	return MethodEmail
}

// Has reports whether m is enabled. Backup codes ride on TOTP enrolment.
func (s TwoFactorState) Has(m Method) bool {
	switch m {
	case MethodEmail:
		return s.EmailEnabled
	case MethodTOTP, MethodBackup:
		return s.TOTPEnabled
	default:
		return false
	}
}

// HasEmailFallback is true when a TOTP user may fall back to an emailed code.
func (s TwoFactorState) HasEmailFallback() bool {
	return s.EmailEnabled && s.TOTPEnabled
}

// Profile is the user representation handed to clients.
type Profile struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               Role   `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Role:               u.Role,
		MustChangePassword: u.MustChangePassword,
	}
}
