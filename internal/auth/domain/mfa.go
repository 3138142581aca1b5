package domain

import "time"

// Method is a second-factor method.
type Method string

const (
	MethodEmail  Method = "email"
	MethodTOTP   Method = "totp"
	MethodBackup Method = "backup"
)

// Valid reports whether m can be enrolled (backup codes cannot on their own).
func (m Method) Valid() bool { return m == MethodEmail || m == MethodTOTP }

func containsMethod(list []Method, m Method) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}

// Purpose scopes a one-time code to the flow that issued it.
type Purpose string

const (
	PurposeLogin Purpose = "login"
	PurposeSetup Purpose = "2fa-setup"
)

// VerificationCode is an emailed one-time code. Only a fingerprint of the
// code is stored.
type VerificationCode struct {
	ID         string
	UserID     string
	CodeHash   string
	Purpose    Purpose
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Active reports whether the code can still be redeemed at now.
func (c VerificationCode) Active(now time.Time) bool {
	return c.ConsumedAt == nil && now.Before(c.ExpiresAt)
}

// BackupCode is one single-use recovery code, stored as a salted hash.
type BackupCode struct {
	ID        string
	UserID    string
	Salt      string
	CodeHash  string
	UsedAt    *time.Time
	CreatedAt time.Time
}
