package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOSTDESK_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "hostdesk", cfg.Issuer)
	require.Equal(t, 8*time.Hour, cfg.TokenTTL)
	require.Equal(t, PendingStoreMemory, cfg.PendingStore)
	require.Equal(t, 10*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, 8080, cfg.Port)
	require.Empty(t, cfg.SMTPHost)
}

func TestLoadConfigEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hostdesk.env")
	content := "HOSTDESK_ISSUER=panel.example.com\nPORT=9090\nHOUSEKEEPING_INTERVAL=5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	t.Setenv("HOSTDESK_ENV_FILE", path)
	t.Setenv("PORT", "7070") // process env wins over the file

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "panel.example.com", cfg.Issuer)
	require.Equal(t, 7070, cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.HousekeepingInterval)

	// godotenv sets what it loads; clear it so other tests see defaults.
	require.NoError(t, os.Unsetenv("HOSTDESK_ISSUER"))
	require.NoError(t, os.Unsetenv("HOUSEKEEPING_INTERVAL"))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := Config{PendingStore: PendingStoreMemory, TokenTTL: time.Hour}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "memory", mutate: func(*Config) {}},
		{
			name:    "redis without address",
			mutate:  func(c *Config) { c.PendingStore = PendingStoreRedis },
			wantErr: "HOSTDESK_REDIS_ADDR",
		},
		{
			name: "redis with address",
			mutate: func(c *Config) {
				c.PendingStore = PendingStoreRedis
				c.RedisAddr = "localhost:6379"
			},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.PendingStore = "etcd" },
			wantErr: "memory or redis",
		},
		{
			name:    "zero token ttl",
			mutate:  func(c *Config) { c.TokenTTL = 0 },
			wantErr: "HOSTDESK_TOKEN_TTL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestInitSigningKeyStableKID(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Issuer:         "hostdesk-test",
		SigningKeyFile: filepath.Join(t.TempDir(), "keys", "signing.pem"),
	}

	first, verifier, err := InitSigningKey(cfg, slogx.Discard())
	require.NoError(t, err)
	require.NotEmpty(t, first.KID())

	second, _, err := InitSigningKey(cfg, slogx.Discard())
	require.NoError(t, err)
	require.Equal(t, first.KID(), second.KID(), "reloading the key file must keep the key id")

	// The verifier accepts what the reloaded signer issues.
	token, err := second.Sign(jwtx.NewSessionClaims(
		"01HZX3J5Q8V6T4N2M1K0P9R7S5", "ops@example.com", "Ops", "admin",
		[]string{jwtx.AMRPassword}, time.Minute, cfg.Issuer, time.Now(),
	))
	require.NoError(t, err)
	_, err = verifier.Verify(token)
	require.NoError(t, err)
}
