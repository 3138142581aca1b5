package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type verificationCodesRepo struct{ db dbtx }

func (r *verificationCodesRepo) CreateCode(ctx context.Context, c domain.VerificationCode) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE verification_codes SET consumed_at = ?
		WHERE user_id = ? AND purpose = ? AND consumed_at IS NULL`,
		toMillis(c.CreatedAt), c.UserID, string(c.Purpose),
	); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_codes (id, user_id, code_hash, purpose, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.CodeHash, string(c.Purpose), toMillis(c.ExpiresAt), toMillis(c.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *verificationCodesRepo) GetLatestActiveCode(ctx context.Context, userID string, purpose domain.Purpose, now time.Time) (domain.VerificationCode, error) {
	var (
		c                domain.VerificationCode
		p                string
		expires, created int64
		consumed         sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, code_hash, purpose, expires_at, consumed_at, created_at
		FROM verification_codes
		WHERE user_id = ? AND purpose = ? AND consumed_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		userID, string(purpose), toMillis(now),
	).Scan(&c.ID, &c.UserID, &c.CodeHash, &p, &expires, &consumed, &created)
	if err != nil {
		return domain.VerificationCode{}, mapNotFound(err)
	}
	c.Purpose = domain.Purpose(p)
	c.ExpiresAt = fromMillis(expires)
	c.ConsumedAt = fromNullMillis(consumed)
	c.CreatedAt = fromMillis(created)
	return c, nil
}

func (r *verificationCodesRepo) ConsumeCode(ctx context.Context, id string, now time.Time) error {
	return requireOneRow(r.db.ExecContext(ctx,
		`UPDATE verification_codes SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		toMillis(now), id,
	))
}

func (r *verificationCodesRepo) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM verification_codes WHERE expires_at <= ? OR consumed_at IS NOT NULL`,
		toMillis(now),
	))
}

var _ store.VerificationCodes = (*verificationCodesRepo)(nil)
