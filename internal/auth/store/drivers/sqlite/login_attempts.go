package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type loginAttemptsRepo struct{ db dbtx }

func (r *loginAttemptsRepo) RecordAttempt(ctx context.Context, a domain.LoginAttempt) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO login_attempts (id, ip, email, success, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.IP, a.Email, a.Success, a.UserAgent, toMillis(a.CreatedAt),
	)
	return err
}

func (r *loginAttemptsRepo) RecentFailuresByIP(ctx context.Context, ip string, limit int) ([]time.Time, error) {
	return r.recentFailures(ctx, `
		SELECT created_at FROM login_attempts
		WHERE ip = ? AND success = 0
		ORDER BY created_at DESC
		LIMIT ?`, ip, limit)
}

func (r *loginAttemptsRepo) RecentFailuresByEmail(ctx context.Context, email string, limit int) ([]time.Time, error) {
	return r.recentFailures(ctx, `
		SELECT created_at FROM login_attempts
		WHERE email = ? AND success = 0
		ORDER BY created_at DESC
		LIMIT ?`, email, limit)
}

func (r *loginAttemptsRepo) recentFailures(ctx context.Context, query, key string, limit int) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			return nil, err
		}
		out = append(out, fromMillis(ms))
	}
	return out, rows.Err()
}

func (r *loginAttemptsRepo) DeleteAttemptsBefore(ctx context.Context, before time.Time) (int64, error) {
	return rowsAffected(r.db.ExecContext(ctx,
		`DELETE FROM login_attempts WHERE created_at < ?`, toMillis(before),
	))
}

var _ store.LoginAttempts = (*loginAttemptsRepo)(nil)
