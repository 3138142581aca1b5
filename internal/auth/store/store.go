package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so a transaction hands out the same repos bound to
// the transaction instead of the pool.
type Store interface {
	Users() Users
	LoginAttempts() LoginAttempts
	VerificationCodes() VerificationCodes
	BackupCodes() BackupCodes
	ResetTokens() ResetTokens
	Settings() Settings
	Audit() Audit

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Inside fn only use the repos of tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// TwoFactorUpdate is the full second-factor configuration written for a user.
type TwoFactorUpdate struct {
	EmailEnabled bool
	TOTPEnabled  bool
	Secret       string // cleared when TOTP is disabled
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser returns ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	ListUsers(ctx context.Context) ([]domain.User, error)

	// UpdatePasswordHash replaces the hash and clears must_change_password.
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error

	// UpdateTwoFactor writes the per-method flags and keeps the legacy
	// columns in step with them.
	UpdateTwoFactor(ctx context.Context, userID string, upd TwoFactorUpdate) error

	SetActive(ctx context.Context, userID string, active bool) error

	IsEmpty(ctx context.Context) (bool, error)
}

type LoginAttempts interface {
	RecordAttempt(ctx context.Context, a domain.LoginAttempt) error

	// RecentFailuresByIP returns up to limit failure timestamps, newest first.
	RecentFailuresByIP(ctx context.Context, ip string, limit int) ([]time.Time, error)

	// RecentFailuresByEmail returns up to limit failure timestamps, newest first.
	RecentFailuresByEmail(ctx context.Context, email string, limit int) ([]time.Time, error)

	DeleteAttemptsBefore(ctx context.Context, before time.Time) (int64, error)
}

type VerificationCodes interface {
	// CreateCode stores c after marking every unconsumed code for the same
	// user and purpose as consumed. Run it inside WithTx.
	CreateCode(ctx context.Context, c domain.VerificationCode) error

	// GetLatestActiveCode returns the newest unconsumed, unexpired code.
	GetLatestActiveCode(ctx context.Context, userID string, purpose domain.Purpose, now time.Time) (domain.VerificationCode, error)

	// ConsumeCode marks the code consumed. ErrNotFound when it already was.
	ConsumeCode(ctx context.Context, id string, now time.Time) error

	DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

type BackupCodes interface {
	// ReplaceBackupCodes deletes every code of the user and inserts codes.
	// Run it inside WithTx.
	ReplaceBackupCodes(ctx context.Context, userID string, codes []domain.BackupCode) error

	ListUnusedBackupCodes(ctx context.Context, userID string) ([]domain.BackupCode, error)

	// MarkBackupCodeUsed returns ErrNotFound when the code was already used.
	MarkBackupCodeUsed(ctx context.Context, id string, now time.Time) error

	DeleteAllBackupCodes(ctx context.Context, userID string) error

	CountUnusedBackupCodes(ctx context.Context, userID string) (int, error)
}

type ResetTokens interface {
	// CreateResetToken stores t and deletes any older unused tokens of the user.
	CreateResetToken(ctx context.Context, t domain.PasswordResetToken) error

	GetResetTokenByHash(ctx context.Context, hash string) (domain.PasswordResetToken, error)

	// MarkResetTokenUsed returns ErrNotFound when the token was already used.
	MarkResetTokenUsed(ctx context.Context, id string, now time.Time) error

	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type Settings interface {
	// GetSecuritySettings returns the defaults until settings are saved.
	GetSecuritySettings(ctx context.Context) (domain.SecuritySettings, error)

	SaveSecuritySettings(ctx context.Context, s domain.SecuritySettings, updatedBy string) error
}

type Audit interface {
	RecordEvent(ctx context.Context, e domain.AuditEvent) error

	// ListEvents returns the newest events first.
	ListEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error)
}
