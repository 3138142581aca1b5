package cryptox

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"128-bit token", TokenSize128, 22},
		{"256-bit token", TokenSize256, 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, a, tt.wantLen)

			b, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, a, b)
		})
	}

	_, err := GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	require.Equal(t, FingerprintToken("abc"), FingerprintToken("abc"))
	require.NotEqual(t, FingerprintToken("abc"), FingerprintToken("abd"))
	require.Len(t, FingerprintToken("abc"), 43)

	require.NotEqual(t, SaltedFingerprint("s1", "code"), SaltedFingerprint("s2", "code"))
}

func TestGenerateNumericCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for range 200 {
		code, err := GenerateNumericCode(6)
		require.NoError(t, err)
		require.Regexp(t, pattern, code)
	}

	_, err := GenerateNumericCode(0)
	require.Error(t, err)
}

func TestBackupCodes(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z2-9]{5}-[a-z2-9]{5}$`)

	code, err := GenerateBackupCode()
	require.NoError(t, err)
	require.Regexp(t, pattern, code)

	upper := "ABCDE-FGHJK"
	require.Equal(t, "abcdefghjk", NormalizeBackupCode(upper))
	require.Equal(t, "abcdefghjk", NormalizeBackupCode(" abcde fghjk "))
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, ConstantTimeEqual("123456", "123456"))
	require.False(t, ConstantTimeEqual("123456", "123457"))
	require.False(t, ConstantTimeEqual("123456", "12345"))
}
