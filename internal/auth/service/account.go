package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// EnrollTTL is how long a signed-in user has to confirm a new authenticator.
const EnrollTTL = 15 * time.Minute

// AccountProfile is what a signed-in user sees about their own account.
type AccountProfile struct {
	domain.Profile
	TwoFactor            domain.TwoFactorState
	BackupCodesRemaining int
}

// TOTPEnrollment is handed to a user starting authenticator enrolment.
type TOTPEnrollment struct {
	EnrollToken string
	TOTPKey
}

// AccountService covers self-service account changes for signed-in users.
// Every change to credentials or second factors needs the current password.
type AccountService struct {
	Store    store.Store
	Settings *SettingsCache
	Pending  pending.Registry
	Backup   *BackupCodeService
	TOTP     TOTP
	Audit    Auditor
	Now      func() time.Time
}

func (s *AccountService) Profile(ctx context.Context, userID string) (AccountProfile, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return AccountProfile{}, err
	}
	remaining, err := s.Backup.Remaining(ctx, user.ID)
	if err != nil {
		return AccountProfile{}, err
	}
	return AccountProfile{
		Profile:              user.Profile(),
		TwoFactor:            domain.EffectiveTwoFactor(user),
		BackupCodesRemaining: remaining,
	}, nil
}

func (s *AccountService) ChangePassword(ctx context.Context, userID, current, next string, client ClientInfo) error {
	user, err := s.user(ctx, userID)
	if err != nil {
		return err
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if err := ValidatePasswordChange(settings.PasswordPolicy, current, user.PasswordHash, next).Err("newPassword"); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("password changed", slog.String("user_id", user.ID))
	s.Audit.Record(ctx, domain.AuditEvent{Action: domain.AuditPasswordChanged, UserID: user.ID, IP: client.IP})
	return nil
}

// EnrollTOTP starts authenticator enrolment. The secret stays in a pending
// session until ConfirmTOTP proves the user can produce codes.
func (s *AccountService) EnrollTOTP(ctx context.Context, userID string) (TOTPEnrollment, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	if !settings.MethodAllowed(domain.MethodTOTP) {
		return TOTPEnrollment{}, ErrMethodNotAllowed
	}
	if domain.EffectiveTwoFactor(user).TOTPEnabled {
		return TOTPEnrollment{}, ErrAlreadyConfigured
	}

	key, err := s.TOTP.GenerateSecret(user.Email)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return TOTPEnrollment{}, err
	}

	now := s.now()
	err = s.Pending.Put(ctx, domain.PendingSession{
		Token:       token,
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Role:        user.Role,
		Purpose:     domain.PendingEnroll,
		SetupMethod: domain.MethodTOTP,
		TOTPSecret:  key.Secret,
		CreatedAt:   now,
		ExpiresAt:   now.Add(EnrollTTL),
	})
	if err != nil {
		return TOTPEnrollment{}, err
	}
	return TOTPEnrollment{EnrollToken: token, TOTPKey: key}, nil
}

// ConfirmTOTP enables the authenticator and returns fresh backup codes.
func (s *AccountService) ConfirmTOTP(ctx context.Context, userID, enrollToken, code string, client ClientInfo) ([]string, error) {
	sess, err := s.Pending.Get(ctx, enrollToken)
	if err != nil {
		return nil, pendingErr(err)
	}
	if sess.Purpose != domain.PendingEnroll || sess.UserID != userID {
		return nil, ErrSessionExpired
	}
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !s.TOTP.Validate(code, sess.TOTPSecret, s.now()) {
		return nil, ErrInvalidCode
	}
	claimed, err := s.Pending.Delete(ctx, sess.Token)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrSessionExpired
	}

	current := domain.EffectiveTwoFactor(user)
	var codes []string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateTwoFactor(ctx, user.ID, store.TwoFactorUpdate{
			EmailEnabled: current.EmailEnabled,
			TOTPEnabled:  true,
			Secret:       sess.TOTPSecret,
		}); err != nil {
			return err
		}
		var err error
		codes, err = s.Backup.GenerateTx(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditTwoFactorEnabled,
		UserID:  user.ID,
		IP:      client.IP,
		Details: map[string]string{"method": string(domain.MethodTOTP), "flow": "account"},
	})
	return codes, nil
}

// DisableTOTP removes the authenticator and its backup codes.
func (s *AccountService) DisableTOTP(ctx context.Context, userID, password string, client ClientInfo) error {
	user, err := s.verifiedUser(ctx, userID, password)
	if err != nil {
		return err
	}
	current := domain.EffectiveTwoFactor(user)
	if !current.TOTPEnabled {
		return ErrTwoFactorNotEnabled
	}
	if err := s.checkStillCompliant(ctx, user, current.EmailEnabled, false); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdateTwoFactor(ctx, user.ID, store.TwoFactorUpdate{EmailEnabled: current.EmailEnabled}); err != nil {
			return err
		}
		return tx.BackupCodes().DeleteAllBackupCodes(ctx, user.ID)
	})
	if err != nil {
		return err
	}

	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditTwoFactorDisabled,
		UserID:  user.ID,
		IP:      client.IP,
		Details: map[string]string{"method": string(domain.MethodTOTP)},
	})
	return nil
}

// SetEmailTwoFactor turns emailed login codes on or off.
func (s *AccountService) SetEmailTwoFactor(ctx context.Context, userID string, enabled bool, password string, client ClientInfo) error {
	user, err := s.verifiedUser(ctx, userID, password)
	if err != nil {
		return err
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if enabled && !settings.MethodAllowed(domain.MethodEmail) {
		return ErrMethodNotAllowed
	}

	current := domain.EffectiveTwoFactor(user)
	if current.EmailEnabled == enabled {
		return nil
	}
	if !enabled {
		if err := s.checkStillCompliant(ctx, user, false, current.TOTPEnabled); err != nil {
			return err
		}
	}

	if err := s.Store.Users().UpdateTwoFactor(ctx, user.ID, store.TwoFactorUpdate{
		EmailEnabled: enabled,
		TOTPEnabled:  current.TOTPEnabled,
		Secret:       user.TwoFactorSecret,
	}); err != nil {
		return err
	}

	action := domain.AuditTwoFactorEnabled
	if !enabled {
		action = domain.AuditTwoFactorDisabled
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  action,
		UserID:  user.ID,
		IP:      client.IP,
		Details: map[string]string{"method": string(domain.MethodEmail)},
	})
	return nil
}

// RegenerateBackupCodes replaces every backup code of a TOTP user.
func (s *AccountService) RegenerateBackupCodes(ctx context.Context, userID, password string, client ClientInfo) ([]string, error) {
	user, err := s.verifiedUser(ctx, userID, password)
	if err != nil {
		return nil, err
	}
	if !domain.EffectiveTwoFactor(user).TOTPEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	codes, err := s.Backup.Generate(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.Audit.Record(ctx, domain.AuditEvent{Action: domain.AuditBackupCodesRegenerate, UserID: user.ID, IP: client.IP})
	return codes, nil
}

// checkStillCompliant refuses to leave a user without a second factor when
// their role requires one.
func (s *AccountService) checkStillCompliant(ctx context.Context, user domain.User, email, totp bool) error {
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if settings.ChallengesEnabled() && settings.RequiresTwoFactor(user.Role) && !email && !totp {
		return newValidationError("method", "two-factor authentication is required for your role")
	}
	return nil
}

func (s *AccountService) verifiedUser(ctx context.Context, userID, password string) (domain.User, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		return domain.User{}, newValidationError("password", msgCurrentIncorrect)
	}
	return user, nil
}

func (s *AccountService) user(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsActive {
		return domain.User{}, ErrAccountDeactivated
	}
	return user, nil
}

func (s *AccountService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
