package service

import (
	"context"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var linkPattern = regexp.MustCompile(`https://\S+`)

func resetTokenFromMail(t *testing.T, m *captureMailer) string {
	t.Helper()
	link := linkPattern.FindString(m.Last(t).Body)
	require.NotEmpty(t, link)

	u, err := url.Parse(link)
	require.NoError(t, err)
	require.Equal(t, "/reset-password", u.Path)
	return u.Query().Get("token")
}

func TestRequestReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.createUser(t, "alice@example.com")
	f.createUser(t, "gone@example.com", inactive())

	known := f.reset.RequestReset(ctx, "Alice@Example.com", testClient)
	unknown := f.reset.RequestReset(ctx, "nobody@example.com", testClient)
	deactivated := f.reset.RequestReset(ctx, "gone@example.com", testClient)
	f.reset.Wait()

	require.Equal(t, ResetRequestedMessage, known)
	require.Equal(t, known, unknown)
	require.Equal(t, known, deactivated)
	require.Equal(t, 1, f.mailer.Count())
	require.Equal(t, "alice@example.com", f.mailer.Last(t).To)
}

func TestResetPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("token resets the password once", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "alice@example.com")

		f.reset.RequestReset(ctx, "alice@example.com", testClient)
		f.reset.Wait()
		token := resetTokenFromMail(t, f.mailer)

		err := f.reset.ResetPassword(ctx, token, "weak", testClient)
		require.ErrorIs(t, err, ErrValidation)

		require.NoError(t, f.reset.ResetPassword(ctx, token, "BatteryStaple2", testClient))
		require.ErrorIs(t, f.reset.ResetPassword(ctx, token, "BatteryStaple3", testClient), ErrSessionExpired)

		_, err = f.login.Login(ctx, "alice@example.com", testPassword, testClient)
		require.ErrorIs(t, err, ErrInvalidCredentials)
		res, err := f.login.Login(ctx, "alice@example.com", "BatteryStaple2", testClient)
		require.NoError(t, err)
		require.NotEmpty(t, res.Token)
	})

	t.Run("newer request invalidates the older link", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "bob@example.com")

		f.reset.RequestReset(ctx, "bob@example.com", testClient)
		f.reset.Wait()
		first := resetTokenFromMail(t, f.mailer)

		f.clock.Advance(time.Second)
		f.reset.RequestReset(ctx, "bob@example.com", testClient)
		f.reset.Wait()
		second := resetTokenFromMail(t, f.mailer)
		require.NotEqual(t, first, second)

		require.ErrorIs(t, f.reset.ResetPassword(ctx, first, "BatteryStaple2", testClient), ErrSessionExpired)
		require.NoError(t, f.reset.ResetPassword(ctx, second, "BatteryStaple2", testClient))
	})

	t.Run("token expired a second ago is refused", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.createUser(t, "carol@example.com")

		f.reset.RequestReset(ctx, "carol@example.com", testClient)
		f.reset.Wait()
		token := resetTokenFromMail(t, f.mailer)

		f.clock.Advance(ResetTokenTTL + time.Second)
		require.ErrorIs(t, f.reset.ResetPassword(ctx, token, "BatteryStaple2", testClient), ErrSessionExpired)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		require.ErrorIs(t, f.reset.ResetPassword(ctx, "made-up", "BatteryStaple2", testClient), ErrSessionExpired)
		require.ErrorIs(t, f.reset.ResetPassword(ctx, "", "BatteryStaple2", testClient), ErrSessionExpired)
	})
}
