package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
)

const (
	BackupCodeCount = 10
	backupSaltBytes = cryptox.TokenSize128
)

// BackupCodeService manages single-use recovery codes. Only salted hashes
// are stored; plaintext codes are shown once when generated.
type BackupCodeService struct {
	Store store.Store
	Now   func() time.Time
}

// Generate replaces the user's codes with a fresh batch in one transaction.
func (s *BackupCodeService) Generate(ctx context.Context, userID string) ([]string, error) {
	plain, records, err := s.newBatch(userID)
	if err != nil {
		return nil, err
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.BackupCodes().ReplaceBackupCodes(ctx, userID, records)
	})
	if err != nil {
		return nil, err
	}
	return plain, nil
}

// GenerateTx is Generate inside the caller's transaction.
func (s *BackupCodeService) GenerateTx(ctx context.Context, tx store.Tx, userID string) ([]string, error) {
	plain, records, err := s.newBatch(userID)
	if err != nil {
		return nil, err
	}
	if err := tx.BackupCodes().ReplaceBackupCodes(ctx, userID, records); err != nil {
		return nil, err
	}
	return plain, nil
}

// Verify redeems code and marks only that code used.
func (s *BackupCodeService) Verify(ctx context.Context, userID, code string) (bool, error) {
	normalized := cryptox.NormalizeBackupCode(code)
	if normalized == "" {
		return false, nil
	}

	unused, err := s.Store.BackupCodes().ListUnusedBackupCodes(ctx, userID)
	if err != nil {
		return false, err
	}

	// Compare against every stored code so timing does not reveal position.
	var match string
	for _, c := range unused {
		if cryptox.ConstantTimeEqual(cryptox.SaltedFingerprint(c.Salt, normalized), c.CodeHash) {
			match = c.ID
		}
	}
	if match == "" {
		return false, nil
	}

	err = s.Store.BackupCodes().MarkBackupCodeUsed(ctx, match, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remaining counts unused codes.
func (s *BackupCodeService) Remaining(ctx context.Context, userID string) (int, error) {
	return s.Store.BackupCodes().CountUnusedBackupCodes(ctx, userID)
}

func (s *BackupCodeService) newBatch(userID string) ([]string, []domain.BackupCode, error) {
	now := s.now()
	plain := make([]string, 0, BackupCodeCount)
	records := make([]domain.BackupCode, 0, BackupCodeCount)

	for range BackupCodeCount {
		code, err := cryptox.GenerateBackupCode()
		if err != nil {
			return nil, nil, err
		}
		salt, err := cryptox.GenerateToken(backupSaltBytes)
		if err != nil {
			return nil, nil, err
		}
		plain = append(plain, code)
		records = append(records, domain.BackupCode{
			ID:        idx.NewAt(now).String(),
			UserID:    userID,
			Salt:      salt,
			CodeHash:  cryptox.SaltedFingerprint(salt, cryptox.NormalizeBackupCode(code)),
			CreatedAt: now,
		})
	}
	return plain, records, nil
}

func (s *BackupCodeService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
