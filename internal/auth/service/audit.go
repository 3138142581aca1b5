package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// Auditor records security events. Recording never fails the caller.
type Auditor interface {
	Record(ctx context.Context, e domain.AuditEvent)
}

// StoreAuditor persists events through the store and logs each one.
type StoreAuditor struct {
	Store store.Store
	Now   func() time.Time
}

func (a *StoreAuditor) Record(ctx context.Context, e domain.AuditEvent) {
	now := time.Now()
	if a.Now != nil {
		now = a.Now()
	}
	if e.ID == "" {
		e.ID = idx.NewAt(now).String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}

	log := slogx.FromContext(ctx)
	log.Info("audit", slog.String("action", string(e.Action)), slog.String("user_id", e.UserID), slog.String("ip", e.IP))

	if err := a.Store.Audit().RecordEvent(ctx, e); err != nil {
		log.Error("failed to record audit event", slog.String("action", string(e.Action)), slog.Any("error", err))
	}
}

var _ Auditor = (*StoreAuditor)(nil)
