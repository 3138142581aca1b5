package sqlite

import (
	"context"
	"encoding/json"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

type auditRepo struct{ db dbtx }

func (r *auditRepo) RecordEvent(ctx context.Context, e domain.AuditEvent) error {
	details := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return err
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, action, user_id, ip, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.UserID, e.IP, string(details), toMillis(e.CreatedAt),
	)
	return err
}

func (r *auditRepo) ListEvents(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action, user_id, ip, details, created_at
		FROM audit_events
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var (
			e       domain.AuditEvent
			action  string
			details string
			created int64
		)
		if err := rows.Scan(&e.ID, &action, &e.UserID, &e.IP, &details, &created); err != nil {
			return nil, err
		}
		e.Action = domain.AuditAction(action)
		e.CreatedAt = fromMillis(created)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ store.Audit = (*auditRepo)(nil)
