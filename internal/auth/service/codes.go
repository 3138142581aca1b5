package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
)

const (
	CodeDigits = 6
	CodeTTL    = 10 * time.Minute
)

// CodeService issues and redeems emailed one-time codes. Issuing a code
// consumes every earlier unconsumed code for the same user and purpose, so
// at most one code is ever redeemable.
type CodeService struct {
	Store store.Store
	Now   func() time.Time
}

// Generate returns a fresh random numeric code.
func (s *CodeService) Generate() (string, error) {
	return cryptox.GenerateNumericCode(CodeDigits)
}

// Save persists code for userID and purpose, valid for ttl.
func (s *CodeService) Save(ctx context.Context, userID, code string, purpose domain.Purpose, ttl time.Duration) error {
	now := s.now()
	c := domain.VerificationCode{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		CodeHash:  hashCode(userID, purpose, code),
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.VerificationCodes().CreateCode(ctx, c)
	})
}

// Issue generates and saves a code, returning the plaintext for delivery.
func (s *CodeService) Issue(ctx context.Context, userID string, purpose domain.Purpose, ttl time.Duration) (string, error) {
	code, err := s.Generate()
	if err != nil {
		return "", err
	}
	if err := s.Save(ctx, userID, code, purpose, ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Verify redeems code. It returns false for a wrong, expired, superseded or
// already consumed code; errors are reserved for store failures.
func (s *CodeService) Verify(ctx context.Context, userID, code string, purpose domain.Purpose) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}

	now := s.now()
	active, err := s.Store.VerificationCodes().GetLatestActiveCode(ctx, userID, purpose, now)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !cryptox.ConstantTimeEqual(hashCode(userID, purpose, code), active.CodeHash) {
		return false, nil
	}

	// A concurrent request may have consumed it between the read and here.
	err = s.Store.VerificationCodes().ConsumeCode(ctx, active.ID, now)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *CodeService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func hashCode(userID string, purpose domain.Purpose, code string) string {
	return cryptox.SaltedFingerprint(userID+":"+string(purpose), code)
}
