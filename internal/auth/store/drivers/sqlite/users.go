package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type usersRepo struct{ db dbtx }

const userColumns = `id, email, name, password_hash, role, is_active, must_change_password,
	two_factor_enabled, two_factor_method, email_two_factor_enabled, totp_enabled,
	two_factor_secret, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u                domain.User
		role, method     string
		created, updated int64
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.IsActive, &u.MustChangePassword,
		&u.TwoFactorEnabled, &method, &u.EmailTwoFactorEnabled, &u.TOTPEnabled,
		&u.TwoFactorSecret, &created, &updated,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	u.TwoFactorMethod = domain.Method(method)
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	return u, mapNotFound(err)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, string(u.Role), u.IsActive, u.MustChangePassword,
		u.TwoFactorEnabled, string(u.TwoFactorMethod), u.EmailTwoFactorEnabled, u.TOTPEnabled,
		u.TwoFactorSecret, toMillis(u.CreatedAt), toMillis(u.UpdatedAt),
	)
	return mapConstraint(err)
}

func (r *usersRepo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return requireOneRow(r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, must_change_password = 0, updated_at = ?
		WHERE id = ?`,
		newHash, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) UpdateTwoFactor(ctx context.Context, userID string, upd store.TwoFactorUpdate) error {
	var method domain.Method
	switch {
	case upd.TOTPEnabled:
		method = domain.MethodTOTP
	case upd.EmailEnabled:
		method = domain.MethodEmail
	}
	secret := upd.Secret
	if !upd.TOTPEnabled {
		secret = ""
	}

	return requireOneRow(r.db.ExecContext(ctx, `
		UPDATE users SET
			email_two_factor_enabled = ?,
			totp_enabled = ?,
			two_factor_secret = ?,
			two_factor_enabled = ?,
			two_factor_method = ?,
			updated_at = ?
		WHERE id = ?`,
		upd.EmailEnabled, upd.TOTPEnabled, secret,
		upd.EmailEnabled || upd.TOTPEnabled, string(method),
		toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) SetActive(ctx context.Context, userID string, active bool) error {
	return requireOneRow(r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`,
		active, toMillis(time.Now()), userID,
	))
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

var _ store.Users = (*usersRepo)(nil)
