package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// SetupStart is returned when a user picks a method during forced setup.
type SetupStart struct {
	Message string
	Secret  string // TOTP only
	QRCode  string // TOTP only, PNG data URL
	URL     string // TOTP only, otpauth URI
}

// BeginSetup records the method chosen during forced enrolment. Email
// sends a code; TOTP returns a secret that is only persisted once verified.
func (s *LoginService) BeginSetup(ctx context.Context, setupToken string, method domain.Method) (SetupStart, error) {
	sess, err := s.session(ctx, setupToken, domain.PendingSetup)
	if err != nil {
		return SetupStart{}, err
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return SetupStart{}, err
	}
	if !method.Valid() || !settings.MethodAllowed(method) {
		return SetupStart{}, ErrMethodNotAllowed
	}
	user, err := s.activeUser(ctx, sess)
	if err != nil {
		return SetupStart{}, err
	}

	switch method {
	case domain.MethodEmail:
		if _, err := s.Pending.Update(ctx, sess.Token, func(p *domain.PendingSession) error {
			p.SetupMethod = domain.MethodEmail
			p.TOTPSecret = ""
			return nil
		}); err != nil {
			return SetupStart{}, pendingErr(err)
		}
		if err := s.sendSetupCode(ctx, user); err != nil {
			return SetupStart{}, err
		}
		return SetupStart{Message: "Verification code sent to your email"}, nil

	default:
		key, err := s.TOTP.GenerateSecret(user.Email)
		if err != nil {
			return SetupStart{}, err
		}
		if _, err := s.Pending.Update(ctx, sess.Token, func(p *domain.PendingSession) error {
			p.SetupMethod = domain.MethodTOTP
			p.TOTPSecret = key.Secret
			return nil
		}); err != nil {
			return SetupStart{}, pendingErr(err)
		}
		return SetupStart{Secret: key.Secret, QRCode: key.QRCode, URL: key.URL}, nil
	}
}

// VerifySetup confirms the chosen method, enables it on the account and
// completes the login. TOTP enrolment also returns a batch of backup codes.
func (s *LoginService) VerifySetup(ctx context.Context, setupToken, code string, method domain.Method, client ClientInfo) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	sess, err := s.session(ctx, setupToken, domain.PendingSetup)
	if err != nil {
		return LoginResult{}, err
	}
	if sess.SetupMethod == "" {
		return LoginResult{}, newValidationError("method", "choose a method before verifying")
	}
	if method == "" {
		method = sess.SetupMethod
	}
	if method != sess.SetupMethod {
		return LoginResult{}, newValidationError("method", "does not match the method being set up")
	}
	if err := s.checkAccountBlocked(ctx, client, sess.Email); err != nil {
		return LoginResult{}, err
	}

	user, err := s.activeUser(ctx, sess)
	if err != nil {
		return LoginResult{}, err
	}

	var ok bool
	switch method {
	case domain.MethodEmail:
		ok, err = s.Codes.Verify(ctx, user.ID, code, domain.PurposeSetup)
		if err != nil {
			return LoginResult{}, err
		}
	case domain.MethodTOTP:
		ok = s.TOTP.Validate(code, sess.TOTPSecret, s.now())
	}
	if !ok {
		s.Metrics.TwoFactor(string(method), metrics.ResultFailure)
		s.recordSecondFactorFailure(ctx, client, user, method)
		return LoginResult{}, ErrInvalidCode
	}

	if err := s.claim(ctx, sess.Token); err != nil {
		return LoginResult{}, err
	}

	current := domain.EffectiveTwoFactor(user)
	upd := store.TwoFactorUpdate{
		EmailEnabled: current.EmailEnabled || method == domain.MethodEmail,
		TOTPEnabled:  current.TOTPEnabled || method == domain.MethodTOTP,
		Secret:       user.TwoFactorSecret,
	}
	if method == domain.MethodTOTP {
		upd.Secret = sess.TOTPSecret
	}

	var backupCodes []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateTwoFactor(ctx, user.ID, upd); err != nil {
			return err
		}
		if method == domain.MethodTOTP {
			codes, err := s.Backup.GenerateTx(ctx, tx, user.ID)
			if err != nil {
				return err
			}
			backupCodes = codes
		}
		return nil
	})
	if err != nil {
		log.Error("failed to enable two-factor", slog.String("user_id", user.ID), slog.Any("error", err))
		s.release(ctx, sess)
		return LoginResult{}, err
	}

	s.Metrics.TwoFactor(string(method), metrics.ResultSuccess)
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditTwoFactorEnabled,
		UserID:  user.ID,
		IP:      client.IP,
		Details: map[string]string{"method": string(method), "flow": "login"},
	})

	return s.complete(ctx, user, client, amrFor(method), backupCodes)
}
