package domain

import "time"

// LoginAttempt is one append-only record of a credential check.
type LoginAttempt struct {
	ID        string
	IP        string
	Email     string
	Success   bool
	UserAgent string
	CreatedAt time.Time
}
