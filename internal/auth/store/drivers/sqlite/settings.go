package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type settingsRepo struct{ db dbtx }

func (r *settingsRepo) GetSecuritySettings(ctx context.Context) (domain.SecuritySettings, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM security_settings WHERE id = 1`).Scan(&data)
	if err != nil {
		if errors.Is(mapNotFound(err), store.ErrNotFound) {
			return domain.DefaultSecuritySettings(), nil
		}
		return domain.SecuritySettings{}, err
	}

	// Start from the defaults so fields added later keep a sane value.
	s := domain.DefaultSecuritySettings()
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return domain.SecuritySettings{}, err
	}
	return s, nil
}

func (r *settingsRepo) SaveSecuritySettings(ctx context.Context, s domain.SecuritySettings, updatedBy string) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO security_settings (id, data, updated_by, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			data = excluded.data,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		string(data), updatedBy, toMillis(time.Now()),
	)
	return err
}

var _ store.Settings = (*settingsRepo)(nil)
