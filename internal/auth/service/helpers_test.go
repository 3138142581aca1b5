package service

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/mail"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
)

const testPassword = "CorrectHorse1"

var testClient = ClientInfo{IP: "203.0.113.10", UserAgent: "go-test"}

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *captureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	return nil
}

func (m *captureMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *captureMailer) Last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// LastCode extracts the one-time code from the newest message.
func (m *captureMailer) LastCode(t *testing.T) string {
	t.Helper()
	code := codePattern.FindString(m.Last(t).Body)
	require.NotEmpty(t, code, "no code in mail body")
	return code
}

// countingStore counts user lookups so tests can prove a path never reads
// account data. Setting txErr makes WithTx fail without running fn.
type countingStore struct {
	store.Store
	userCalls atomic.Int32
	txErr     atomic.Pointer[error]
}

func (c *countingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := c.txErr.Load(); err != nil {
		return *err
	}
	return c.Store.WithTx(ctx, fn)
}

func (c *countingStore) Users() store.Users {
	c.userCalls.Add(1)
	return c.Store.Users()
}

type fixture struct {
	store    *countingStore
	clock    *fakeClock
	mailer   *captureMailer
	settings *SettingsCache
	guard    *Guard
	pending  *pending.MemoryRegistry
	codes    *CodeService
	backup   *BackupCodeService
	totp     TOTP
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	login   *LoginService
	reset   *ResetService
	account *AccountService
	admin   *AdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	st := &countingStore{Store: db}
	clock := newFakeClock()
	mailer := &captureMailer{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	settings := NewSettingsCache(st)
	settings.Now = clock.Now
	audit := &StoreAuditor{Store: st, Now: clock.Now}
	guard := &Guard{Store: st, Settings: settings, Now: clock.Now}
	registry := pending.NewMemoryRegistry(clock.Now)
	codes := &CodeService{Store: st, Now: clock.Now}
	backup := &BackupCodeService{Store: st, Now: clock.Now}
	totpSvc := TOTP{Issuer: "HostDesk"}

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test", pemKey)
	require.NoError(t, err)

	f := &fixture{
		store:    st,
		clock:    clock,
		mailer:   mailer,
		settings: settings,
		guard:    guard,
		pending:  registry,
		codes:    codes,
		backup:   backup,
		totp:     totpSvc,
		metrics:  m,
		registry: reg,
	}
	f.login = &LoginService{
		Store:    st,
		Settings: settings,
		Guard:    guard,
		Pending:  registry,
		Codes:    codes,
		Backup:   backup,
		TOTP:     totpSvc,
		Tokens:   &TokenService{Signer: signer, Issuer: "hostdesk-test", Now: clock.Now},
		Mailer:   mailer,
		Audit:    audit,
		Metrics:  m,
		Now:      clock.Now,
	}
	f.reset = &ResetService{
		Store:     st,
		Settings:  settings,
		Mailer:    mailer,
		Audit:     audit,
		Metrics:   m,
		PublicURL: "https://panel.example.com/",
		Now:       clock.Now,
	}
	f.account = &AccountService{
		Store:    st,
		Settings: settings,
		Pending:  registry,
		Backup:   backup,
		TOTP:     totpSvc,
		Audit:    audit,
		Now:      clock.Now,
	}
	f.admin = &AdminService{
		Store:     st,
		Settings:  settings,
		Mailer:    mailer,
		Audit:     audit,
		PublicURL: "https://panel.example.com",
		Now:       clock.Now,
	}
	return f
}

func (f *fixture) updateSettings(t *testing.T, fn func(s *domain.SecuritySettings)) {
	t.Helper()
	ctx := context.Background()

	s, err := f.store.Settings().GetSecuritySettings(ctx)
	require.NoError(t, err)
	fn(&s)
	require.NoError(t, f.store.Settings().SaveSecuritySettings(ctx, s, "test"))
	f.settings.Invalidate()
}

type userOpt func(u *domain.User)

func withRole(r domain.Role) userOpt { return func(u *domain.User) { u.Role = r } }

func withEmailTwoFactor() userOpt {
	return func(u *domain.User) { u.EmailTwoFactorEnabled = true }
}

func withTOTP(secret string) userOpt {
	return func(u *domain.User) {
		u.TOTPEnabled = true
		u.TwoFactorSecret = secret
	}
}

func inactive() userOpt { return func(u *domain.User) { u.IsActive = false } }

func (f *fixture) createUser(t *testing.T, email string, opts ...userOpt) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	now := f.clock.Now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(&u)
	}
	require.NoError(t, f.store.Users().CreateUser(context.Background(), u))
	return u
}

func (f *fixture) reload(t *testing.T, id string) domain.User {
	t.Helper()
	u, err := f.store.Users().GetUserByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func newTOTPSecret(t *testing.T) string {
	t.Helper()
	key, err := TOTP{Issuer: "HostDesk"}.GenerateSecret("user@example.com")
	require.NoError(t, err)
	return key.Secret
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

// wrongCode returns a code that differs from code in its last digit.
func wrongCode(code string) string {
	last := code[len(code)-1]
	if last == '9' {
		last = '0'
	} else {
		last++
	}
	return code[:len(code)-1] + string(last)
}

// tokenAMR reads the amr claim without verifying the signature.
func tokenAMR(t *testing.T, token string) []string {
	t.Helper()
	var claims jwtx.Claims
	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	require.NoError(t, err)
	return claims.AMR
}
