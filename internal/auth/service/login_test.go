package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
)

func TestLoginWithoutTwoFactor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("correct password issues a token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		u := f.createUser(t, "alice@example.com")

		res, err := f.login.Login(ctx, "  Alice@Example.com ", testPassword, testClient)
		require.NoError(t, err)
		require.NotEmpty(t, res.Token)
		require.False(t, res.RequiresTwoFactor)
		require.False(t, res.RequiresSetup)
		require.Equal(t, u.ID, res.User.ID)
		require.Equal(t, []string{jwtx.AMRPassword}, tokenAMR(t, res.Token))
		require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LoginAttempts.WithLabelValues(metrics.ResultSuccess)))
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "bob@example.com")

		_, errWrong := f.login.Login(ctx, "bob@example.com", "WrongHorse1", testClient)
		_, errUnknown := f.login.Login(ctx, "nobody@example.com", testPassword, testClient)
		require.ErrorIs(t, errWrong, ErrInvalidCredentials)
		require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		require.Equal(t, errWrong.Error(), errUnknown.Error())

		failures, err := f.store.LoginAttempts().RecentFailuresByIP(ctx, testClient.IP, 10)
		require.NoError(t, err)
		require.Len(t, failures, 2)
	})

	t.Run("deactivated account is refused after the password check", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "carol@example.com", inactive())

		_, err := f.login.Login(ctx, "carol@example.com", "WrongHorse1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = f.login.Login(ctx, "carol@example.com", testPassword, testClient)
		require.ErrorIs(t, err, ErrAccountDeactivated)
	})

	t.Run("enabled factor is ignored when enforcement is disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "dave@example.com", withEmailTwoFactor())
		f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorEnforcement = domain.EnforcementDisabled })

		res, err := f.login.Login(ctx, "dave@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.NotEmpty(t, res.Token)
		require.Zero(t, f.mailer.Count())
	})

	t.Run("unknown email runs the dummy comparison", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "erin@example.com")

		var compared []string
		f.login.CompareDummy = func(password string) error {
			compared = append(compared, password)
			return cryptox.CompareDummyPassword(password)
		}

		_, err := f.login.Login(ctx, "erin@example.com", "WrongHorse1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Empty(t, compared, "known account verifies its own hash")

		_, err = f.login.Login(ctx, "nobody@example.com", "WrongHorse1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		require.Equal(t, []string{"WrongHorse1"}, compared)
	})
}

func TestLoginChallengesFactorsOutsideAllowedMethods(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("totp user when only email is allowed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		secret := newTOTPSecret(t)
		f.createUser(t, "alice@example.com", withTOTP(secret))
		f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorMethods = []domain.Method{domain.MethodEmail} })

		res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.Empty(t, res.Token)
		require.True(t, res.RequiresTwoFactor)
		require.Equal(t, domain.MethodTOTP, res.Method)

		done, err := f.login.VerifyTwoFactor(ctx, res.SessionToken, totpCode(t, secret, f.clock.Now()), false, "", testClient)
		require.NoError(t, err)
		require.Contains(t, tokenAMR(t, done.Token), jwtx.AMROTP)
	})

	t.Run("email user when only totp is allowed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "bob@example.com", withEmailTwoFactor())
		f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorMethods = []domain.Method{domain.MethodTOTP} })

		res, err := f.login.Login(ctx, "bob@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.Empty(t, res.Token)
		require.True(t, res.RequiresTwoFactor)
		require.Equal(t, domain.MethodEmail, res.Method)
		require.Equal(t, 1, f.mailer.Count())

		require.NoError(t, f.login.ResendCode(ctx, res.SessionToken, testClient))
		_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, f.mailer.LastCode(t), false, "", testClient)
		require.NoError(t, err)
	})
}

func TestLoginBruteForceGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("blocked address never reaches account lookup", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "alice@example.com")

		for i := range 5 {
			require.NoError(t, f.guard.RecordAttempt(ctx, testClient.IP, "user"+string(rune('a'+i))+"@example.com", false, ""))
		}
		before := f.store.userCalls.Load()

		_, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.ErrorIs(t, err, ErrRateLimited)

		var blocked *BlockedError
		require.True(t, errors.As(err, &blocked))
		require.Equal(t, f.clock.Now().Add(15*time.Minute), blocked.Until)
		require.Equal(t, before, f.store.userCalls.Load())

		other := ClientInfo{IP: "198.51.100.7"}
		_, err = f.login.Login(ctx, "alice@example.com", testPassword, other)
		require.NoError(t, err)

		f.clock.Advance(15 * time.Minute)
		_, err = f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.NoError(t, err)
	})

	t.Run("account is blocked across addresses", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "bob@example.com")

		for i := range 5 {
			client := ClientInfo{IP: "198.51.100." + string(rune('1'+i))}
			_, err := f.login.Login(ctx, "bob@example.com", "WrongHorse1", client)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}

		_, err := f.login.Login(ctx, "BOB@example.com", testPassword, ClientInfo{IP: "192.0.2.99"})
		require.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("successes do not reset the count", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "carol@example.com")

		for range 4 {
			_, err := f.login.Login(ctx, "carol@example.com", "WrongHorse1", testClient)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		}
		_, err := f.login.Login(ctx, "carol@example.com", testPassword, testClient)
		require.NoError(t, err)
		_, err = f.login.Login(ctx, "carol@example.com", "WrongHorse1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = f.login.Login(ctx, "carol@example.com", testPassword, testClient)
		require.ErrorIs(t, err, ErrRateLimited)
	})
}

func TestLoginEmailChallenge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, "alice@example.com", withEmailTwoFactor())

	res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
	require.NoError(t, err)
	require.True(t, res.RequiresTwoFactor)
	require.Equal(t, domain.MethodEmail, res.Method)
	require.False(t, res.HasEmailFallback)
	require.Empty(t, res.Token)
	require.NotEmpty(t, res.SessionToken)
	require.Equal(t, 1, f.mailer.Count())
	code := f.mailer.LastCode(t)

	_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, wrongCode(code), false, "", testClient)
	require.ErrorIs(t, err, ErrInvalidCode)

	done, err := f.login.VerifyTwoFactor(ctx, res.SessionToken, code, false, "", testClient)
	require.NoError(t, err)
	require.NotEmpty(t, done.Token)
	require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMREmail, jwtx.AMRMFA}, tokenAMR(t, done.Token))

	_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, code, false, "", testClient)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestLoginTOTPChallenge(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("authenticator code completes login without mail", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		secret := newTOTPSecret(t)
		f.createUser(t, "alice@example.com", withTOTP(secret))

		res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.Equal(t, domain.MethodTOTP, res.Method)
		require.False(t, res.HasEmailFallback)
		require.Zero(t, f.mailer.Count())

		done, err := f.login.VerifyTwoFactor(ctx, res.SessionToken, totpCode(t, secret, f.clock.Now()), false, "", testClient)
		require.NoError(t, err)
		require.Equal(t, []string{jwtx.AMRPassword, jwtx.AMROTP, jwtx.AMRMFA}, tokenAMR(t, done.Token))
	})

	t.Run("previous step is still accepted", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		secret := newTOTPSecret(t)
		f.createUser(t, "bob@example.com", withTOTP(secret))

		res, err := f.login.Login(ctx, "bob@example.com", testPassword, testClient)
		require.NoError(t, err)

		code := totpCode(t, secret, f.clock.Now().Add(-30*time.Second))
		_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, code, false, domain.MethodTOTP, testClient)
		require.NoError(t, err)
	})

	t.Run("email method is refused when only totp is enabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "carol@example.com", withTOTP(newTOTPSecret(t)))

		res, err := f.login.Login(ctx, "carol@example.com", testPassword, testClient)
		require.NoError(t, err)

		_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, "123456", false, domain.MethodEmail, testClient)
		require.ErrorIs(t, err, ErrTwoFactorNotEnabled)
		require.ErrorIs(t, f.login.SendEmailFallback(ctx, res.SessionToken, testClient), ErrTwoFactorNotEnabled)
	})

	t.Run("concurrent verification completes once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		secret := newTOTPSecret(t)
		f.createUser(t, "dave@example.com", withTOTP(secret))

		res, err := f.login.Login(ctx, "dave@example.com", testPassword, testClient)
		require.NoError(t, err)
		code := totpCode(t, secret, f.clock.Now())

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			expired   int
		)
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.login.VerifyTwoFactor(ctx, res.SessionToken, code, false, "", testClient)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrSessionExpired):
					expired++
				}
			}()
		}
		wg.Wait()
		require.Equal(t, 1, successes)
		require.Equal(t, 3, expired)
	})
}

func TestLoginDualMethodFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, "alice@example.com", withEmailTwoFactor(), withTOTP(newTOTPSecret(t)))

	res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
	require.NoError(t, err)
	require.Equal(t, domain.MethodTOTP, res.Method)
	require.True(t, res.HasEmailFallback)
	require.Zero(t, f.mailer.Count(), "primary method is totp")

	require.NoError(t, f.login.SendEmailFallback(ctx, res.SessionToken, testClient))
	require.Equal(t, 1, f.mailer.Count())

	done, err := f.login.VerifyTwoFactor(ctx, res.SessionToken, f.mailer.LastCode(t), false, domain.MethodEmail, testClient)
	require.NoError(t, err)
	require.Contains(t, tokenAMR(t, done.Token), jwtx.AMREmail)
}

func TestLoginBackupCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice@example.com", withTOTP(newTOTPSecret(t)))

	codes, err := f.backup.Generate(ctx, u.ID)
	require.NoError(t, err)

	res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
	require.NoError(t, err)
	done, err := f.login.VerifyTwoFactor(ctx, res.SessionToken, codes[3], true, "", testClient)
	require.NoError(t, err)
	require.Contains(t, tokenAMR(t, done.Token), jwtx.AMRBackup)

	remaining, err := f.backup.Remaining(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, BackupCodeCount-1, remaining)

	res, err = f.login.Login(ctx, "alice@example.com", testPassword, testClient)
	require.NoError(t, err)
	_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, codes[3], true, "", testClient)
	require.ErrorIs(t, err, ErrInvalidCode)
}

// lostClaimRegistry behaves as if another request already claimed every
// session.
type lostClaimRegistry struct {
	pending.Registry
}

func (lostClaimRegistry) Delete(context.Context, string) (bool, error) { return false, nil }

func TestBackupCodeKeptWhenClaimIsLost(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice@example.com", withTOTP(newTOTPSecret(t)))

	codes, err := f.backup.Generate(ctx, u.ID)
	require.NoError(t, err)

	res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
	require.NoError(t, err)

	f.login.Pending = lostClaimRegistry{Registry: f.pending}
	_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, codes[0], true, "", testClient)
	require.ErrorIs(t, err, ErrSessionExpired)

	remaining, err := f.backup.Remaining(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, BackupCodeCount, remaining)

	f.login.Pending = f.pending
	done, err := f.login.VerifyTwoFactor(ctx, res.SessionToken, codes[0], true, "", testClient)
	require.NoError(t, err)
	require.NotEmpty(t, done.Token)
}

func TestVerifyTwoFactorFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("wrong code keeps the session until it expires", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		secret := newTOTPSecret(t)
		f.createUser(t, "alice@example.com", withTOTP(secret))

		res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.NoError(t, err)

		wrong := totpCode(t, secret, f.clock.Now().Add(10*time.Minute))
		_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, wrong, false, "", testClient)
		require.ErrorIs(t, err, ErrInvalidCode)
		require.Equal(t, 1, f.pending.Len())

		f.clock.Advance(VerifyTTL + time.Second)
		_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, totpCode(t, secret, f.clock.Now()), false, "", testClient)
		require.ErrorIs(t, err, ErrSessionExpired)
		require.Zero(t, f.pending.Len())
	})

	t.Run("wrong codes count toward the account block", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "bob@example.com", withTOTP(newTOTPSecret(t)))

		res, err := f.login.Login(ctx, "bob@example.com", testPassword, testClient)
		require.NoError(t, err)
		for range 5 {
			_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, "not-a-code", false, "", testClient)
			require.ErrorIs(t, err, ErrInvalidCode)
		}

		_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, "not-a-code", false, "", testClient)
		require.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("setup token cannot be used to verify", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "carol@example.com")
		f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorEnforcement = domain.EnforcementRequiredAll })

		res, err := f.login.Login(ctx, "carol@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.True(t, res.RequiresSetup)

		_, err = f.login.VerifyTwoFactor(ctx, res.SetupToken, "123456", false, "", testClient)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("deactivation ends a pending login", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		secret := newTOTPSecret(t)
		u := f.createUser(t, "dave@example.com", withTOTP(secret))

		res, err := f.login.Login(ctx, "dave@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.NoError(t, f.store.Users().SetActive(ctx, u.ID, false))

		_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, totpCode(t, secret, f.clock.Now()), false, "", testClient)
		require.ErrorIs(t, err, ErrAccountDeactivated)
		require.Zero(t, f.pending.Len())
	})
}

func TestResendCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice@example.com", withEmailTwoFactor())

	res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
	require.NoError(t, err)
	first := f.mailer.LastCode(t)

	for i := range MaxExtensions {
		f.clock.Advance(time.Minute)
		require.NoError(t, f.login.ResendCode(ctx, res.SessionToken, testClient), "resend %d", i+1)
	}
	require.Equal(t, 1+MaxExtensions, f.mailer.Count())

	err = f.login.ResendCode(ctx, res.SessionToken, testClient)
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, 1+MaxExtensions, f.mailer.Count())

	sess, err := f.pending.Get(ctx, res.SessionToken)
	require.NoError(t, err)
	require.Equal(t, MaxExtensions, sess.Extensions)
	require.False(t, sess.ExpiresAt.After(sess.CreatedAt.Add(VerifyMaxLifetime)))

	// Only the newest code is redeemable.
	latest := f.mailer.LastCode(t)
	if first != latest {
		ok, err := f.codes.Verify(ctx, u.ID, first, domain.PurposeLogin)
		require.NoError(t, err)
		require.False(t, ok)
	}
	_, err = f.login.VerifyTwoFactor(ctx, res.SessionToken, latest, false, "", testClient)
	require.NoError(t, err)
}

func TestForcedSetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("email setup", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		u := f.createUser(t, "alice@example.com", withRole(domain.RoleAdmin))
		f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorEnforcement = domain.EnforcementRequiredAdmins })

		res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.True(t, res.RequiresSetup)
		require.Empty(t, res.Token)
		require.ElementsMatch(t, []domain.Method{domain.MethodEmail, domain.MethodTOTP}, res.AvailableMethods)

		_, err = f.login.VerifySetup(ctx, res.SetupToken, "123456", domain.MethodEmail, testClient)
		require.ErrorIs(t, err, ErrValidation, "method must be chosen first")

		start, err := f.login.BeginSetup(ctx, res.SetupToken, domain.MethodEmail)
		require.NoError(t, err)
		require.NotEmpty(t, start.Message)
		require.Empty(t, start.Secret)

		require.NoError(t, f.login.ResendCode(ctx, res.SetupToken, testClient))
		code := f.mailer.LastCode(t)

		_, err = f.login.VerifySetup(ctx, res.SetupToken, code, domain.MethodTOTP, testClient)
		require.ErrorIs(t, err, ErrValidation)

		done, err := f.login.VerifySetup(ctx, res.SetupToken, code, "", testClient)
		require.NoError(t, err)
		require.NotEmpty(t, done.Token)
		require.Empty(t, done.BackupCodes)

		state := domain.EffectiveTwoFactor(f.reload(t, u.ID))
		require.True(t, state.EmailEnabled)
		require.False(t, state.TOTPEnabled)

		next, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.True(t, next.RequiresTwoFactor)
	})

	t.Run("totp setup returns backup codes", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		u := f.createUser(t, "bob@example.com")
		f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorEnforcement = domain.EnforcementRequiredAll })

		res, err := f.login.Login(ctx, "bob@example.com", testPassword, testClient)
		require.NoError(t, err)

		start, err := f.login.BeginSetup(ctx, res.SetupToken, domain.MethodTOTP)
		require.NoError(t, err)
		require.NotEmpty(t, start.Secret)
		require.Contains(t, start.QRCode, "data:image/png;base64,")
		require.Contains(t, start.URL, "otpauth://totp/")
		require.Zero(t, f.mailer.Count())

		require.ErrorIs(t, f.login.ResendCode(ctx, res.SetupToken, testClient), ErrTwoFactorNotEnabled)

		done, err := f.login.VerifySetup(ctx, res.SetupToken, totpCode(t, start.Secret, f.clock.Now()), domain.MethodTOTP, testClient)
		require.NoError(t, err)
		require.NotEmpty(t, done.Token)
		require.Len(t, done.BackupCodes, BackupCodeCount)

		stored := f.reload(t, u.ID)
		require.True(t, domain.EffectiveTwoFactor(stored).TOTPEnabled)
		require.Equal(t, start.Secret, stored.TwoFactorSecret)

		_, err = f.login.VerifySetup(ctx, res.SetupToken, totpCode(t, start.Secret, f.clock.Now()), domain.MethodTOTP, testClient)
		require.ErrorIs(t, err, ErrSessionExpired)
	})

	t.Run("disallowed method is refused", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "carol@example.com")
		f.updateSettings(t, func(s *domain.SecuritySettings) {
			s.TwoFactorEnforcement = domain.EnforcementRequiredAll
			s.TwoFactorMethods = []domain.Method{domain.MethodTOTP}
		})

		res, err := f.login.Login(ctx, "carol@example.com", testPassword, testClient)
		require.NoError(t, err)
		require.Equal(t, []domain.Method{domain.MethodTOTP}, res.AvailableMethods)

		_, err = f.login.BeginSetup(ctx, res.SetupToken, domain.MethodEmail)
		require.ErrorIs(t, err, ErrMethodNotAllowed)
		_, err = f.login.BeginSetup(ctx, res.SetupToken, "sms")
		require.ErrorIs(t, err, ErrMethodNotAllowed)
	})

	t.Run("wrong setup code keeps the session", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "dave@example.com")
		f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorEnforcement = domain.EnforcementRequiredAll })

		res, err := f.login.Login(ctx, "dave@example.com", testPassword, testClient)
		require.NoError(t, err)
		start, err := f.login.BeginSetup(ctx, res.SetupToken, domain.MethodTOTP)
		require.NoError(t, err)

		wrong := totpCode(t, start.Secret, f.clock.Now().Add(5*time.Minute))
		_, err = f.login.VerifySetup(ctx, res.SetupToken, wrong, domain.MethodTOTP, testClient)
		require.ErrorIs(t, err, ErrInvalidCode)

		_, err = f.login.VerifySetup(ctx, res.SetupToken, totpCode(t, start.Secret, f.clock.Now()), domain.MethodTOTP, testClient)
		require.NoError(t, err)
	})
}

func TestSetupSurvivesStoreFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice@example.com")
	f.updateSettings(t, func(s *domain.SecuritySettings) { s.TwoFactorEnforcement = domain.EnforcementRequiredAll })

	res, err := f.login.Login(ctx, "alice@example.com", testPassword, testClient)
	require.NoError(t, err)
	start, err := f.login.BeginSetup(ctx, res.SetupToken, domain.MethodTOTP)
	require.NoError(t, err)
	code := totpCode(t, start.Secret, f.clock.Now())

	errDisk := errors.New("disk full")
	f.store.txErr.Store(&errDisk)
	_, err = f.login.VerifySetup(ctx, res.SetupToken, code, domain.MethodTOTP, testClient)
	require.ErrorIs(t, err, errDisk)
	require.False(t, domain.EffectiveTwoFactor(f.reload(t, u.ID)).TOTPEnabled)

	sess, err := f.pending.Get(ctx, res.SetupToken)
	require.NoError(t, err)
	require.Equal(t, start.Secret, sess.TOTPSecret)

	f.store.txErr.Store(nil)
	done, err := f.login.VerifySetup(ctx, res.SetupToken, code, domain.MethodTOTP, testClient)
	require.NoError(t, err)
	require.Len(t, done.BackupCodes, BackupCodeCount)
	require.True(t, domain.EffectiveTwoFactor(f.reload(t, u.ID)).TOTPEnabled)
}

func TestLogoutIsAudited(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	claims := jwtx.NewSessionClaims("user-1", "a@example.com", "A", "admin", nil, time.Hour, "hostdesk-test", f.clock.Now())
	f.login.Logout(ctx, claims, testClient)

	events, err := f.store.Audit().ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, domain.AuditLogout, events[0].Action)
	require.Equal(t, "user-1", events[0].UserID)
}
