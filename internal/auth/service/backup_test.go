package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBackupCodeService(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "a@example.com")

	codes, err := f.backup.Generate(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, codes, BackupCodeCount)

	seen := make(map[string]bool)
	for _, c := range codes {
		require.Regexp(t, `^[a-z2-9]{5}-[a-z2-9]{5}$`, c)
		require.False(t, seen[c], "duplicate code %s", c)
		seen[c] = true
	}

	t.Run("input is normalised", func(t *testing.T) {
		ok, err := f.backup.Verify(ctx, u.ID, strings.ToUpper(strings.ReplaceAll(codes[0], "-", " ")))
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("only the redeemed code is used", func(t *testing.T) {
		ok, err := f.backup.Verify(ctx, u.ID, codes[0])
		require.NoError(t, err)
		require.False(t, ok)

		remaining, err := f.backup.Remaining(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, BackupCodeCount-1, remaining)
	})

	t.Run("unknown code", func(t *testing.T) {
		ok, err := f.backup.Verify(ctx, u.ID, "aaaaa-aaaaa")
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = f.backup.Verify(ctx, u.ID, "  - ")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("regeneration replaces every code", func(t *testing.T) {
		fresh, err := f.backup.Generate(ctx, u.ID)
		require.NoError(t, err)

		ok, err := f.backup.Verify(ctx, u.ID, codes[1])
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = f.backup.Verify(ctx, u.ID, fresh[9])
		require.NoError(t, err)
		require.True(t, ok)
	})
}
