package domain

import "time"

// PendingPurpose says what a pending session is waiting for.
type PendingPurpose string

const (
	PendingVerify PendingPurpose = "verify" // 2FA challenge
	PendingSetup  PendingPurpose = "setup"  // forced 2FA enrolment
	PendingEnroll PendingPurpose = "enroll" // voluntary TOTP enrolment by a signed-in user
)

// PendingSession is a password-verified but not yet authenticated login. It
// never grants access on its own.
type PendingSession struct {
	Token   string         `json:"token"`
	UserID  string         `json:"userId"`
	Email   string         `json:"email"`
	Name    string         `json:"name"`
	Role    Role           `json:"role"`
	Purpose PendingPurpose `json:"purpose"`

	// Set during setup once the user has picked a method. The TOTP secret
	// lives here until the first code is verified.
	SetupMethod Method `json:"setupMethod,omitempty"`
	TOTPSecret  string `json:"totpSecret,omitempty"`

	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Extensions int       `json:"extensions"`
}

// Expired reports whether the session is dead at now.
func (p PendingSession) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}
