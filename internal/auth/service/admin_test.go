package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
)

func TestAdminSetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	configured, err := f.admin.IsConfigured(ctx)
	require.NoError(t, err)
	require.False(t, configured)

	_, err = f.admin.Setup(ctx, "root@example.com", "Root", "weak", testClient)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.admin.Setup(ctx, "not-an-email", "", testPassword, testClient)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 2)

	p, err := f.admin.Setup(ctx, " Root@Example.com ", "Root", testPassword, testClient)
	require.NoError(t, err)
	require.Equal(t, domain.RoleSuperAdmin, p.Role)
	require.Equal(t, "root@example.com", p.Email)

	_, err = f.admin.Setup(ctx, "second@example.com", "Second", testPassword, testClient)
	require.ErrorIs(t, err, ErrAlreadyConfigured)

	configured, err = f.admin.IsConfigured(ctx)
	require.NoError(t, err)
	require.True(t, configured)

	res, err := f.login.Login(ctx, "root@example.com", testPassword, testClient)
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
}

func TestAdminCreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	admin := f.createUser(t, "admin@example.com", withRole(domain.RoleAdmin))

	_, err := f.admin.CreateUser(ctx, admin.ID, "boss@example.com", "Boss", domain.RoleSuperAdmin, testClient)
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.admin.CreateUser(ctx, admin.ID, "x@example.com", "X", "owner", testClient)
	require.ErrorIs(t, err, ErrValidation)

	created, err := f.admin.CreateUser(ctx, admin.ID, "new@example.com", "New Person", domain.RoleUser, testClient)
	require.NoError(t, err)
	require.True(t, created.MustChangePassword)
	require.NotEmpty(t, created.TemporaryPassword)

	f.admin.Wait()
	msg := f.mailer.Last(t)
	require.Equal(t, "new@example.com", msg.To)
	require.Contains(t, msg.Body, created.TemporaryPassword)
	require.Contains(t, msg.Body, "https://panel.example.com/login")

	res, err := f.login.Login(ctx, "new@example.com", created.TemporaryPassword, testClient)
	require.NoError(t, err)
	require.True(t, res.User.MustChangePassword)

	_, err = f.admin.CreateUser(ctx, admin.ID, "NEW@example.com", "Dup", domain.RoleUser, testClient)
	require.ErrorIs(t, err, ErrValidation)

	users, err := f.admin.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestAdminSetUserActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	admin := f.createUser(t, "admin@example.com", withRole(domain.RoleAdmin))
	root := f.createUser(t, "root@example.com", withRole(domain.RoleSuperAdmin))
	user := f.createUser(t, "user@example.com")

	require.ErrorIs(t, f.admin.SetUserActive(ctx, admin.ID, admin.ID, false, testClient), ErrValidation)
	require.ErrorIs(t, f.admin.SetUserActive(ctx, admin.ID, root.ID, false, testClient), ErrValidation)
	require.ErrorIs(t, f.admin.SetUserActive(ctx, admin.ID, "missing", false, testClient), ErrNotFound)

	require.NoError(t, f.admin.SetUserActive(ctx, admin.ID, user.ID, false, testClient))
	_, err := f.login.Login(ctx, "user@example.com", testPassword, testClient)
	require.ErrorIs(t, err, ErrAccountDeactivated)

	require.NoError(t, f.admin.SetUserActive(ctx, root.ID, user.ID, true, testClient))
	_, err = f.login.Login(ctx, "user@example.com", testPassword, testClient)
	require.NoError(t, err)
}

func TestAdminSecuritySettings(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	admin := f.createUser(t, "admin@example.com", withRole(domain.RoleAdmin))

	s, err := f.admin.GetSecuritySettings(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSecuritySettings(), s)

	// Prime the cache so the update has to invalidate it.
	_, err = f.settings.Get(ctx)
	require.NoError(t, err)

	bad := s
	bad.TwoFactorEnforcement = "sometimes"
	bad.Lockout.MaxFailures = 0
	err = f.admin.UpdateSecuritySettings(ctx, admin.ID, bad, testClient)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	require.Equal(t, "lockout.maxFailures", ve.Fields[0].Field)
	require.Equal(t, "twoFactorEnforcement", ve.Fields[1].Field)

	s.TwoFactorEnforcement = domain.EnforcementRequiredAll
	require.NoError(t, f.admin.UpdateSecuritySettings(ctx, admin.ID, s, testClient))

	cached, err := f.settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.EnforcementRequiredAll, cached.TwoFactorEnforcement)

	res, err := f.login.Login(ctx, "admin@example.com", testPassword, testClient)
	require.NoError(t, err)
	require.True(t, res.RequiresSetup)
}

func TestAdminListAuditEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, "alice@example.com")

	for range 3 {
		_, err := f.login.Login(ctx, "alice@example.com", "WrongHorse1", testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	events, err := f.admin.ListAuditEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, domain.AuditLoginFailed, events[0].Action)

	events, err = f.admin.ListAuditEvents(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	events, err = f.admin.ListAuditEvents(ctx, 10_000)
	require.NoError(t, err)
	require.Len(t, events, 3)
}
