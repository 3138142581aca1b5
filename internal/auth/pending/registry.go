// Package pending holds logins that passed the password check but still owe
// a second factor or a forced enrolment.
package pending

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
)

var (
	ErrNotFound       = errors.New("pending: session not found")
	ErrExpired        = errors.New("pending: session expired")
	ErrExtensionLimit = errors.New("pending: extension limit reached")
)

// Limits bounds how far Extend may push a session's expiry.
type Limits struct {
	TTL           time.Duration // nominal window restored by each extension
	MaxLifetime   time.Duration // absolute ceiling measured from CreatedAt
	MaxExtensions int
}

// Registry stores pending sessions by token. Implementations must be safe
// for concurrent use.
type Registry interface {
	// Put stores s, replacing any session with the same token.
	Put(ctx context.Context, s domain.PendingSession) error

	// Get returns the session. Expired sessions are removed and reported
	// as ErrExpired.
	Get(ctx context.Context, token string) (domain.PendingSession, error)

	// Update applies fn to a live session and stores the result atomically.
	// An error from fn aborts the update and is returned as is.
	Update(ctx context.Context, token string, fn func(s *domain.PendingSession) error) (domain.PendingSession, error)

	// Delete removes the session and reports whether this call removed it.
	// Only the caller that gets true may complete the login.
	Delete(ctx context.Context, token string) (bool, error)

	// Extend pushes the expiry back to now+TTL, never past
	// CreatedAt+MaxLifetime, and counts the extension.
	Extend(ctx context.Context, token string, lim Limits) (domain.PendingSession, error)

	// Sweep evicts every expired session and returns how many it removed.
	Sweep(ctx context.Context) (int, error)
}

// extend applies lim to s at now. The caller has already checked expiry.
func extend(s domain.PendingSession, now time.Time, lim Limits) (domain.PendingSession, error) {
	if s.Extensions >= lim.MaxExtensions {
		return s, ErrExtensionLimit
	}

	next := now.Add(lim.TTL)
	if ceiling := s.CreatedAt.Add(lim.MaxLifetime); next.After(ceiling) {
		next = ceiling
	}
	if next.After(s.ExpiresAt) {
		s.ExpiresAt = next
	}
	s.Extensions++
	return s, nil
}

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
