package app

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
)

// Pending session backends.
const (
	PendingStoreMemory = "memory"
	PendingStoreRedis  = "redis"
)

type Config struct {
	Issuer         string        // Optional: issuer claim for session tokens (default: hostdesk)
	TokenTTL       time.Duration // Optional: session token lifetime (default: 8h)
	SigningKeyFile string        // Optional: PEM Ed25519 key, created on first start (default: ./signing.pem)
	SetupToken     string        // Optional: token required to perform first-run setup
	PublicURL      string        // Optional: panel base URL used in mailed links

	DatabaseFile string // Optional: path to SQLite database file (default: ./hostdesk.db)
	PepperFile   string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	PendingStore  string // Optional: pending login sessions backend (memory, redis) (default: memory)
	RedisAddr     string // Required for the redis backend
	RedisPassword string
	RedisDB       int

	SMTPHost     string // Optional: mail relay; empty logs mail instead of sending it
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 10m)
}

// LoadConfig reads the environment. A .env file (HOSTDESK_ENV_FILE, default
// .env) is loaded first when present; variables already set win.
func LoadConfig() (Config, error) {
	envFile := getEnvOrDefault("HOSTDESK_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}

	cfg := Config{
		Issuer:         getEnvOrDefault("HOSTDESK_ISSUER", "hostdesk"),
		TokenTTL:       getEnvDurationOrDefault("HOSTDESK_TOKEN_TTL", jwtx.DefaultSessionTTL),
		SigningKeyFile: getEnvOrDefault("HOSTDESK_SIGNING_KEY_FILE", "signing.pem"),
		SetupToken:     os.Getenv("HOSTDESK_SETUP_TOKEN"),
		PublicURL:      getEnvOrDefault("HOSTDESK_PUBLIC_URL", "http://localhost:8080"),

		DatabaseFile: getEnvOrDefault("HOSTDESK_DATABASE_FILE", "hostdesk.db"),
		PepperFile:   getEnvOrDefault("HOSTDESK_PEPPER_FILE", "pepper"),

		PendingStore:  getEnvOrDefault("HOSTDESK_PENDING_STORE", PendingStoreMemory),
		RedisAddr:     os.Getenv("HOSTDESK_REDIS_ADDR"),
		RedisPassword: os.Getenv("HOSTDESK_REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("HOSTDESK_REDIS_DB", 0),

		SMTPHost:     os.Getenv("HOSTDESK_SMTP_HOST"),
		SMTPPort:     getEnvIntOrDefault("HOSTDESK_SMTP_PORT", 587),
		SMTPUsername: os.Getenv("HOSTDESK_SMTP_USERNAME"),
		SMTPPassword: os.Getenv("HOSTDESK_SMTP_PASSWORD"),
		SMTPFrom:     getEnvOrDefault("HOSTDESK_SMTP_FROM", "hostdesk@localhost"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.PendingStore {
	case PendingStoreMemory:
	case PendingStoreRedis:
		if c.RedisAddr == "" {
			return errors.New("HOSTDESK_REDIS_ADDR is required when HOSTDESK_PENDING_STORE=redis")
		}
	default:
		return errors.New("HOSTDESK_PENDING_STORE must be memory or redis")
	}
	if c.TokenTTL <= 0 {
		return errors.New("HOSTDESK_TOKEN_TTL must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
