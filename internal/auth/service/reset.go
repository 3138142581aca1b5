package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/mail"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

const ResetTokenTTL = time.Hour

// ResetRequestedMessage is returned for every forgot-password request.
const ResetRequestedMessage = "If an account exists for that email, a password reset link has been sent."

// ResetService runs the forgot-password flow. Reset links are mailed in the
// background so an existing address takes no longer to answer than a
// missing one.
type ResetService struct {
	Store     store.Store
	Settings  *SettingsCache
	Mailer    mail.Mailer
	Audit     Auditor
	Metrics   *metrics.Metrics
	PublicURL string // base URL of the panel, reset links point at it
	Now       func() time.Time

	sends sync.WaitGroup
}

// RequestReset always returns ResetRequestedMessage. Failures are logged,
// never surfaced, so the response cannot tell whether the email is known.
func (s *ResetService) RequestReset(ctx context.Context, email string, client ClientInfo) string {
	log := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("password reset requested for unknown email", slog.String("ip", client.IP))
		s.Metrics.PasswordReset("request", "unknown")
		return ResetRequestedMessage
	case err != nil:
		log.Error("failed to look up user for password reset", slog.Any("error", err))
		return ResetRequestedMessage
	case !user.IsActive:
		log.Info("password reset requested for deactivated account", slog.String("user_id", user.ID))
		s.Metrics.PasswordReset("request", "deactivated")
		return ResetRequestedMessage
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate reset token", slog.Any("error", err))
		return ResetRequestedMessage
	}

	now := s.now()
	err = s.Store.ResetTokens().CreateResetToken(ctx, domain.PasswordResetToken{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(token),
		ExpiresAt: now.Add(ResetTokenTTL),
		CreatedAt: now,
	})
	if err != nil {
		log.Error("failed to store reset token", slog.Any("error", err))
		return ResetRequestedMessage
	}

	msg := mail.ResetLinkMessage(user.Email, s.resetLink(token), ResetTokenTTL)
	bg := context.WithoutCancel(ctx)
	s.sends.Add(1)
	go func() {
		defer s.sends.Done()
		deliver(bg, s.Mailer, msg)
	}()

	s.Metrics.PasswordReset("request", metrics.ResultSuccess)
	s.Audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditPasswordResetRequest,
		UserID: user.ID,
		IP:     client.IP,
	})
	return ResetRequestedMessage
}

// ResetPassword redeems token and sets newPassword. Consuming the token and
// replacing the hash happen in one transaction.
func (s *ResetService) ResetPassword(ctx context.Context, token, newPassword string, client ClientInfo) error {
	log := slogx.FromContext(ctx)
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrSessionExpired
	}

	now := s.now()
	t, err := s.Store.ResetTokens().GetResetTokenByHash(ctx, cryptox.FingerprintToken(token))
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.PasswordReset("reset", "invalid_token")
		return ErrSessionExpired
	}
	if err != nil {
		return err
	}
	if !t.Usable(now) {
		s.Metrics.PasswordReset("reset", "invalid_token")
		return ErrSessionExpired
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if err := ValidatePassword(settings.PasswordPolicy, newPassword).Err("password"); err != nil {
		s.Metrics.PasswordReset("reset", "policy")
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.ResetTokens().MarkResetTokenUsed(ctx, t.ID, now); err != nil {
			return err
		}
		return tx.Users().UpdatePasswordHash(ctx, t.UserID, hash)
	})
	if errors.Is(err, store.ErrNotFound) {
		s.Metrics.PasswordReset("reset", "invalid_token")
		return ErrSessionExpired
	}
	if err != nil {
		log.Error("failed to reset password", slog.String("user_id", t.UserID), slog.Any("error", err))
		return err
	}

	log.Info("password reset", slog.String("user_id", t.UserID))
	s.Metrics.PasswordReset("reset", metrics.ResultSuccess)
	s.Audit.Record(ctx, domain.AuditEvent{
		Action: domain.AuditPasswordReset,
		UserID: t.UserID,
		IP:     client.IP,
	})
	return nil
}

// Wait blocks until queued reset emails have been handed to the mailer.
func (s *ResetService) Wait() {
	s.sends.Wait()
}

func (s *ResetService) resetLink(token string) string {
	base := strings.TrimRight(s.PublicURL, "/")
	return base + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *ResetService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
