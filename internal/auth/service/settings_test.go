package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
)

func TestSettingsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	s, err := f.settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.EnforcementOptional, s.TwoFactorEnforcement)

	changed := s
	changed.TwoFactorEnforcement = domain.EnforcementRequiredAll
	require.NoError(t, f.store.Settings().SaveSecuritySettings(ctx, changed, "test"))

	s, err = f.settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.EnforcementOptional, s.TwoFactorEnforcement, "served from cache")

	f.clock.Advance(defaultSettingsTTL)
	s, err = f.settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.EnforcementRequiredAll, s.TwoFactorEnforcement)

	changed.TwoFactorEnforcement = domain.EnforcementDisabled
	require.NoError(t, f.store.Settings().SaveSecuritySettings(ctx, changed, "test"))
	f.settings.Invalidate()
	s, err = f.settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.EnforcementDisabled, s.TwoFactorEnforcement)

}
