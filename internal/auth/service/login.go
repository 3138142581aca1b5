package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/mail"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// Pending session windows. Each resend restores the nominal TTL but never
// pushes expiry past the lifetime ceiling or beyond MaxExtensions resends.
const (
	VerifyTTL         = 5 * time.Minute
	VerifyMaxLifetime = 15 * time.Minute
	SetupTTL          = 15 * time.Minute
	SetupMaxLifetime  = 45 * time.Minute
	MaxExtensions     = 5
)

// ClientInfo describes where a request came from.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginResult is the outcome of a login step. Exactly one of Token,
// SessionToken or SetupToken is set.
type LoginResult struct {
	Token string
	User  domain.Profile

	RequiresTwoFactor bool
	Method            domain.Method
	SessionToken      string
	HasEmailFallback  bool

	RequiresSetup    bool
	SetupToken       string
	AvailableMethods []domain.Method

	// Only set when TOTP setup completes.
	BackupCodes []string
}

// LoginService drives the password and second-factor login state machine.
type LoginService struct {
	Store    store.Store
	Settings *SettingsCache
	Guard    *Guard
	Pending  pending.Registry
	Codes    *CodeService
	Backup   *BackupCodeService
	TOTP     TOTP
	Tokens   *TokenService
	Mailer   mail.Mailer
	Audit    Auditor
	Metrics  *metrics.Metrics
	Now      func() time.Time

	// CompareDummy runs for unknown emails. Defaults to
	// cryptox.CompareDummyPassword.
	CompareDummy func(password string) error
}

// Login checks credentials and either completes the login or opens a
// pending session for a second factor or forced enrolment.
func (s *LoginService) Login(ctx context.Context, email, password string, client ClientInfo) (LoginResult, error) {
	log := slogx.FromContext(ctx)
	email = normalizeEmail(email)

	if err := s.checkBlocked(ctx, client, email); err != nil {
		return LoginResult{}, err
	}

	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return LoginResult{}, err
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Burn the same hashing time as a real mismatch.
		_ = s.compareDummy(password)
		s.recordFailure(ctx, client, email, "", "unknown_email")
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		s.recordFailure(ctx, client, email, user.ID, "bad_password")
		return LoginResult{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		s.recordFailure(ctx, client, email, user.ID, "deactivated")
		s.Metrics.Login(metrics.ResultDisabled)
		return LoginResult{}, ErrAccountDeactivated
	}

	// Enrolled factors are always challenged. The allowed method list only
	// gates new enrolment.
	state := domain.EffectiveTwoFactor(user)

	if settings.ChallengesEnabled() && settings.RequiresTwoFactor(user.Role) && !state.AnyEnabled {
		sess, err := s.openSession(ctx, user, domain.PendingSetup, SetupTTL)
		if err != nil {
			return LoginResult{}, err
		}
		log.Info("two-factor setup required", slog.String("user_id", user.ID))
		s.Metrics.Login(metrics.ResultSetup)
		return LoginResult{
			RequiresSetup:    true,
			SetupToken:       sess.Token,
			AvailableMethods: settings.TwoFactorMethods,
		}, nil
	}

	if settings.ChallengesEnabled() && state.AnyEnabled {
		sess, err := s.openSession(ctx, user, domain.PendingVerify, VerifyTTL)
		if err != nil {
			return LoginResult{}, err
		}

		primary := state.Primary()
		if primary == domain.MethodEmail {
			if err := s.sendLoginCode(ctx, user); err != nil {
				_, _ = s.Pending.Delete(ctx, sess.Token)
				return LoginResult{}, err
			}
		}

		log.Info("two-factor challenge issued", slog.String("user_id", user.ID), slog.String("method", string(primary)))
		s.Metrics.Login(metrics.ResultPending)
		return LoginResult{
			RequiresTwoFactor: true,
			Method:            primary,
			SessionToken:      sess.Token,
			HasEmailFallback:  state.HasEmailFallback(),
		}, nil
	}

	return s.complete(ctx, user, client, amrFor(""), nil)
}

// VerifyTwoFactor redeems a second factor against a verify session. A wrong
// code leaves the session in place so the user can retry until it expires.
func (s *LoginService) VerifyTwoFactor(ctx context.Context, sessionToken, code string, useBackupCode bool, method domain.Method, client ClientInfo) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	sess, err := s.session(ctx, sessionToken, domain.PendingVerify)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.checkAccountBlocked(ctx, client, sess.Email); err != nil {
		return LoginResult{}, err
	}

	user, err := s.activeUser(ctx, sess)
	if err != nil {
		return LoginResult{}, err
	}
	state := domain.EffectiveTwoFactor(user)

	switch {
	case useBackupCode:
		method = domain.MethodBackup
	case method == "":
		method = state.Primary()
	}
	if !state.Has(method) {
		return LoginResult{}, ErrTwoFactorNotEnabled
	}

	// Claim before redeeming so a code is only consumed by the request that
	// completes the login. A failed attempt puts the session back.
	if err := s.claim(ctx, sess.Token); err != nil {
		return LoginResult{}, err
	}

	var ok bool
	switch method {
	case domain.MethodBackup:
		ok, err = s.Backup.Verify(ctx, user.ID, code)
	case domain.MethodEmail:
		ok, err = s.Codes.Verify(ctx, user.ID, code, domain.PurposeLogin)
	case domain.MethodTOTP:
		ok = s.TOTP.Validate(code, user.TwoFactorSecret, s.now())
	}
	if err != nil {
		s.release(ctx, sess)
		return LoginResult{}, err
	}
	if !ok {
		s.release(ctx, sess)
		s.Metrics.TwoFactor(string(method), metrics.ResultFailure)
		s.recordSecondFactorFailure(ctx, client, user, method)
		return LoginResult{}, ErrInvalidCode
	}
	s.Metrics.TwoFactor(string(method), metrics.ResultSuccess)

	if method == domain.MethodBackup {
		remaining, _ := s.Backup.Remaining(ctx, user.ID)
		log.Warn("backup code used", slog.String("user_id", user.ID), slog.Int("remaining", remaining))
		s.Audit.Record(ctx, domain.AuditEvent{
			Action:  domain.AuditBackupCodeUsed,
			UserID:  user.ID,
			IP:      client.IP,
			Details: map[string]string{"remaining": fmt.Sprint(remaining)},
		})
	}

	return s.complete(ctx, user, client, amrFor(method), nil)
}

// ResendCode emails a new code for a verify session whose primary method is
// email, or for a setup session that chose email.
func (s *LoginService) ResendCode(ctx context.Context, sessionToken string, client ClientInfo) error {
	sess, err := s.session(ctx, sessionToken, "")
	if err != nil {
		return err
	}
	if sess.Extensions >= MaxExtensions {
		return fmt.Errorf("%w: code resend limit reached", ErrRateLimited)
	}

	user, err := s.activeUser(ctx, sess)
	if err != nil {
		return err
	}

	switch sess.Purpose {
	case domain.PendingSetup:
		if sess.SetupMethod != domain.MethodEmail {
			return ErrTwoFactorNotEnabled
		}
		if err := s.sendSetupCode(ctx, user); err != nil {
			return err
		}
	case domain.PendingVerify:
		if !domain.EffectiveTwoFactor(user).EmailEnabled {
			return ErrTwoFactorNotEnabled
		}
		if err := s.sendLoginCode(ctx, user); err != nil {
			return err
		}
	default:
		return ErrSessionExpired
	}

	slogx.FromContext(ctx).Info("verification code resent", slog.String("user_id", user.ID), slog.String("ip", client.IP))
	return s.extend(ctx, sess)
}

// SendEmailFallback lets a user enrolled in both methods receive an emailed
// code instead of using the authenticator app.
func (s *LoginService) SendEmailFallback(ctx context.Context, sessionToken string, client ClientInfo) error {
	sess, err := s.session(ctx, sessionToken, domain.PendingVerify)
	if err != nil {
		return err
	}
	if sess.Extensions >= MaxExtensions {
		return fmt.Errorf("%w: code resend limit reached", ErrRateLimited)
	}

	user, err := s.activeUser(ctx, sess)
	if err != nil {
		return err
	}
	if !domain.EffectiveTwoFactor(user).HasEmailFallback() {
		return ErrTwoFactorNotEnabled
	}

	if err := s.sendLoginCode(ctx, user); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("email fallback code sent", slog.String("user_id", user.ID), slog.String("ip", client.IP))
	return s.extend(ctx, sess)
}

// Logout records the sign-out. Session tokens are stateless, so the client
// discarding its token is what ends the session.
func (s *LoginService) Logout(ctx context.Context, claims jwtx.Claims, client ClientInfo) {
	slogx.FromContext(ctx).Info("logout", slog.String("user_id", claims.Subject))
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditLogout,
		UserID:  claims.Subject,
		IP:      client.IP,
		Details: map[string]string{"jti": claims.ID},
	})
}

func (s *LoginService) complete(ctx context.Context, user domain.User, client ClientInfo, amr []string, backupCodes []string) (LoginResult, error) {
	if err := s.Guard.RecordAttempt(ctx, client.IP, user.Email, true, client.UserAgent); err != nil {
		slogx.FromContext(ctx).Error("failed to record login attempt", slog.Any("error", err))
	}

	token, err := s.Tokens.Issue(user, amr...)
	if err != nil {
		return LoginResult{}, err
	}

	s.Metrics.Login(metrics.ResultSuccess)
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditLogin,
		UserID:  user.ID,
		IP:      client.IP,
		Details: map[string]string{"amr": fmt.Sprint(amr)},
	})
	slogx.FromContext(ctx).Info("login succeeded", slog.String("user_id", user.ID))

	return LoginResult{Token: token, User: user.Profile(), BackupCodes: backupCodes}, nil
}

func (s *LoginService) checkBlocked(ctx context.Context, client ClientInfo, email string) error {
	st, err := s.Guard.IsBlocked(ctx, client.IP)
	if err != nil {
		return err
	}
	if !st.Blocked {
		st, err = s.Guard.IsAccountBlocked(ctx, email)
		if err != nil {
			return err
		}
	}
	if st.Blocked {
		s.blocked(ctx, client, email, st)
		return st.Err()
	}
	return nil
}

func (s *LoginService) checkAccountBlocked(ctx context.Context, client ClientInfo, email string) error {
	st, err := s.Guard.IsAccountBlocked(ctx, email)
	if err != nil {
		return err
	}
	if st.Blocked {
		s.blocked(ctx, client, email, st)
		return st.Err()
	}
	return nil
}

func (s *LoginService) blocked(ctx context.Context, client ClientInfo, email string, st BlockStatus) {
	slogx.FromContext(ctx).Warn("login blocked",
		slog.String("ip", client.IP),
		slog.String("reason", st.Reason),
		slog.Time("until", st.Until),
	)
	s.Metrics.Login(metrics.ResultBlocked)
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditLoginBlocked,
		IP:      client.IP,
		Details: map[string]string{"email": email, "reason": st.Reason},
	})
}

func (s *LoginService) recordFailure(ctx context.Context, client ClientInfo, email, userID, reason string) {
	log := slogx.FromContext(ctx)
	if err := s.Guard.RecordAttempt(ctx, client.IP, email, false, client.UserAgent); err != nil {
		log.Error("failed to record login attempt", slog.Any("error", err))
	}
	log.Info("login failed", slog.String("ip", client.IP), slog.String("reason", reason))
	if reason != "deactivated" {
		s.Metrics.Login(metrics.ResultFailure)
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditLoginFailed,
		UserID:  userID,
		IP:      client.IP,
		Details: map[string]string{"email": email, "reason": reason},
	})
}

func (s *LoginService) recordSecondFactorFailure(ctx context.Context, client ClientInfo, user domain.User, method domain.Method) {
	if err := s.Guard.RecordAttempt(ctx, client.IP, user.Email, false, client.UserAgent); err != nil {
		slogx.FromContext(ctx).Error("failed to record login attempt", slog.Any("error", err))
	}
	s.Audit.Record(ctx, domain.AuditEvent{
		Action:  domain.AuditTwoFactorFailed,
		UserID:  user.ID,
		IP:      client.IP,
		Details: map[string]string{"method": string(method)},
	})
}

func (s *LoginService) openSession(ctx context.Context, user domain.User, purpose domain.PendingPurpose, ttl time.Duration) (domain.PendingSession, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.PendingSession{}, err
	}
	now := s.now()
	sess := domain.PendingSession{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := s.Pending.Put(ctx, sess); err != nil {
		return domain.PendingSession{}, err
	}
	return sess, nil
}

// session loads a live pending session. An empty purpose accepts either.
func (s *LoginService) session(ctx context.Context, token string, purpose domain.PendingPurpose) (domain.PendingSession, error) {
	if token == "" {
		return domain.PendingSession{}, ErrSessionExpired
	}
	sess, err := s.Pending.Get(ctx, token)
	if err != nil {
		return domain.PendingSession{}, pendingErr(err)
	}
	if purpose != "" && sess.Purpose != purpose {
		return domain.PendingSession{}, ErrSessionExpired
	}
	return sess, nil
}

// activeUser reloads the session's user. A vanished or deactivated account
// ends the session.
func (s *LoginService) activeUser(ctx context.Context, sess domain.PendingSession) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, sess.UserID)
	if errors.Is(err, store.ErrNotFound) {
		_, _ = s.Pending.Delete(ctx, sess.Token)
		return domain.User{}, ErrSessionExpired
	}
	if err != nil {
		return domain.User{}, err
	}
	if !user.IsActive {
		_, _ = s.Pending.Delete(ctx, sess.Token)
		return domain.User{}, ErrAccountDeactivated
	}
	return user, nil
}

// claim deletes the session; only the request that removes it may finish.
func (s *LoginService) claim(ctx context.Context, token string) error {
	ok, err := s.Pending.Delete(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionExpired
	}
	return nil
}

// release puts a claimed session back after an attempt that did not
// complete the login.
func (s *LoginService) release(ctx context.Context, sess domain.PendingSession) {
	err := s.Pending.Put(ctx, sess)
	if err != nil && !errors.Is(err, pending.ErrExpired) {
		slogx.FromContext(ctx).Error("failed to restore pending session", slog.String("user_id", sess.UserID), slog.Any("error", err))
	}
}

func (s *LoginService) compareDummy(password string) error {
	if s.CompareDummy != nil {
		return s.CompareDummy(password)
	}
	return cryptox.CompareDummyPassword(password)
}

func (s *LoginService) extend(ctx context.Context, sess domain.PendingSession) error {
	lim := pending.Limits{TTL: VerifyTTL, MaxLifetime: VerifyMaxLifetime, MaxExtensions: MaxExtensions}
	if sess.Purpose == domain.PendingSetup {
		lim = pending.Limits{TTL: SetupTTL, MaxLifetime: SetupMaxLifetime, MaxExtensions: MaxExtensions}
	}
	_, err := s.Pending.Extend(ctx, sess.Token, lim)
	return pendingErr(err)
}

func (s *LoginService) sendLoginCode(ctx context.Context, user domain.User) error {
	code, err := s.Codes.Issue(ctx, user.ID, domain.PurposeLogin, CodeTTL)
	if err != nil {
		return err
	}
	deliver(ctx, s.Mailer, mail.LoginCodeMessage(user.Email, code, CodeTTL))
	return nil
}

func (s *LoginService) sendSetupCode(ctx context.Context, user domain.User) error {
	code, err := s.Codes.Issue(ctx, user.ID, domain.PurposeSetup, CodeTTL)
	if err != nil {
		return err
	}
	deliver(ctx, s.Mailer, mail.SetupCodeMessage(user.Email, code, CodeTTL))
	return nil
}

// deliver sends msg and only logs a failure. Whatever the message carries
// already exists and the user can ask for it again.
func deliver(ctx context.Context, m mail.Mailer, msg mail.Message) {
	if err := m.Send(ctx, msg); err != nil {
		slogx.FromContext(ctx).Error("failed to send email", slog.String("subject", msg.Subject), slog.Any("error", err))
	}
}

func (s *LoginService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// pendingErr folds registry errors into the service taxonomy.
func pendingErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pending.ErrNotFound), errors.Is(err, pending.ErrExpired):
		return ErrSessionExpired
	case errors.Is(err, pending.ErrExtensionLimit):
		return fmt.Errorf("%w: code resend limit reached", ErrRateLimited)
	default:
		return err
	}
}
