package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op, the caller commits or rolls back and the pool stays open.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                         { return &usersRepo{db: t.tx} }
func (t *txStore) LoginAttempts() store.LoginAttempts         { return &loginAttemptsRepo{db: t.tx} }
func (t *txStore) VerificationCodes() store.VerificationCodes { return &verificationCodesRepo{db: t.tx} }
func (t *txStore) BackupCodes() store.BackupCodes             { return &backupCodesRepo{db: t.tx} }
func (t *txStore) ResetTokens() store.ResetTokens             { return &resetTokensRepo{db: t.tx} }
func (t *txStore) Settings() store.Settings                   { return &settingsRepo{db: t.tx} }
func (t *txStore) Audit() store.Audit                         { return &auditRepo{db: t.tx} }

// ApplyMigrations is a no-op; migrations run on the Store before any tx.
func (t *txStore) ApplyMigrations() error { return nil }
