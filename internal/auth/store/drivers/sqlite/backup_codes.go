package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type backupCodesRepo struct{ db dbtx }

func (r *backupCodesRepo) ReplaceBackupCodes(ctx context.Context, userID string, codes []domain.BackupCode) error {
	if err := r.DeleteAllBackupCodes(ctx, userID); err != nil {
		return err
	}
	for _, c := range codes {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO backup_codes (id, user_id, salt, code_hash, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, userID, c.Salt, c.CodeHash, toMillis(c.CreatedAt),
		); err != nil {
			return mapConstraint(err)
		}
	}
	return nil
}

func (r *backupCodesRepo) ListUnusedBackupCodes(ctx context.Context, userID string) ([]domain.BackupCode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, salt, code_hash, used_at, created_at
		FROM backup_codes
		WHERE user_id = ? AND used_at IS NULL
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.BackupCode
	for rows.Next() {
		var (
			c       domain.BackupCode
			used    sql.NullInt64
			created int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Salt, &c.CodeHash, &used, &created); err != nil {
			return nil, err
		}
		c.UsedAt = fromNullMillis(used)
		c.CreatedAt = fromMillis(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *backupCodesRepo) MarkBackupCodeUsed(ctx context.Context, id string, now time.Time) error {
	return requireOneRow(r.db.ExecContext(ctx,
		`UPDATE backup_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`,
		toMillis(now), id,
	))
}

func (r *backupCodesRepo) DeleteAllBackupCodes(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM backup_codes WHERE user_id = ?`, userID)
	return err
}

func (r *backupCodesRepo) CountUnusedBackupCodes(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM backup_codes WHERE user_id = ? AND used_at IS NULL`, userID,
	).Scan(&n)
	return n, err
}

var _ store.BackupCodes = (*backupCodesRepo)(nil)
