package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type resetTokensRepo struct{ db dbtx }

func (r *resetTokensRepo) CreateResetToken(ctx context.Context, t domain.PasswordResetToken) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE user_id = ? AND used_at IS NULL`, t.UserID,
	); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.TokenHash, toMillis(t.ExpiresAt), toMillis(t.CreatedAt),
	)
	return mapConstraint(err)
}

func (r *resetTokensRepo) GetResetTokenByHash(ctx context.Context, hash string) (domain.PasswordResetToken, error) {
	var (
		t                domain.PasswordResetToken
		expires, created int64
		used             sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens WHERE token_hash = ?`, hash,
	).Scan(&t.ID, &t.UserID, &t.TokenHash, &expires, &used, &created)
	if err != nil {
		return domain.PasswordResetToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromMillis(expires)
	t.UsedAt = fromNullMillis(used)
	t.CreatedAt = fromMillis(created)
	return t, nil
}

func (r *resetTokensRepo) MarkResetTokenUsed(ctx context.Context, id string, now time.Time) error {
	return requireOneRow(r.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL AND expires_at > ?`,
		toMillis(now), id, toMillis(now),
	))
}

func (r *resetTokensRepo) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM password_reset_tokens WHERE expires_at <= ? OR used_at IS NOT NULL`,
		toMillis(now),
	))
}

var _ store.ResetTokens = (*resetTokensRepo)(nil)
