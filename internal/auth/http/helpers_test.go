package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	httpapi "github.com/aussiebroadwan/hostdesk/internal/auth/http"
	"github.com/aussiebroadwan/hostdesk/internal/auth/mail"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/hostdesk/pkg/authsdk"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

const (
	testIssuer     = "hostdesk-test"
	testPassword   = "CorrectHorse1"
	testSetupToken = "setup-token-for-tests"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
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

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func (m *captureMailer) LastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	code := codePattern.FindString(m.sent[len(m.sent)-1].Body)
	require.NotEmpty(t, code, "no code in mail body")
	return code
}

// testEnv is a fully wired router over an in-memory database.
type testEnv struct {
	router   *httpapi.Router
	store    store.Store
	settings *service.SettingsCache
	mailer   *captureMailer
	signer   *jwtx.EdDSASigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA("test", pemKey)
	require.NoError(t, err)
	verifier := jwtx.NewVerifierEdDSA("test", signer.PublicKey(), testIssuer)

	mailer := &captureMailer{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	registry := pending.NewMemoryRegistry(time.Now)

	settings := service.NewSettingsCache(db)
	audit := &service.StoreAuditor{Store: db, Now: time.Now}
	backup := &service.BackupCodeService{Store: db, Now: time.Now}
	totp := service.TOTP{Issuer: "HostDesk"}

	router := httpapi.NewRouter(signer, verifier, testIssuer, "test", db, slogx.Discard())
	router.Pending = registry
	router.Metrics = m
	router.Gatherer = reg
	router.SetupToken = testSetupToken

	router.LoginService = &service.LoginService{
		Store:    db,
		Settings: settings,
		Guard:    &service.Guard{Store: db, Settings: settings, Now: time.Now},
		Pending:  registry,
		Codes:    &service.CodeService{Store: db, Now: time.Now},
		Backup:   backup,
		TOTP:     totp,
		Tokens:   &service.TokenService{Signer: signer, Issuer: testIssuer, Now: time.Now},
		Mailer:   mailer,
		Audit:    audit,
		Metrics:  m,
		Now:      time.Now,
	}
	router.ResetService = &service.ResetService{
		Store:     db,
		Settings:  settings,
		Mailer:    mailer,
		Audit:     audit,
		Metrics:   m,
		PublicURL: "https://panel.example.com",
		Now:       time.Now,
	}
	router.AccountService = &service.AccountService{
		Store:    db,
		Settings: settings,
		Pending:  registry,
		Backup:   backup,
		TOTP:     totp,
		Audit:    audit,
		Now:      time.Now,
	}
	router.AdminService = &service.AdminService{
		Store:     db,
		Settings:  settings,
		Mailer:    mailer,
		Audit:     audit,
		PublicURL: "https://panel.example.com",
		Now:       time.Now,
	}
	router.ApplyRoutes()

	// Background mail must finish before the database closes.
	t.Cleanup(func() {
		router.ResetService.Wait()
		router.AdminService.Wait()
	})

	return &testEnv{
		router:   router,
		store:    db,
		settings: settings,
		mailer:   mailer,
		signer:   signer,
	}
}

type request struct {
	method string
	path   string
	body   any
	token  string
	ip     string
	header map[string]string
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	switch b := req.body.(type) {
	case nil:
	case string:
		body.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&body).Encode(b))
	}

	r := httptest.NewRequest(req.method, req.path, &body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.ip != "" {
		r.Header.Set("X-Forwarded-For", req.ip)
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) createUser(t *testing.T, email string, role domain.Role, opts ...func(u *domain.User)) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	now := time.Now()
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, opt := range opts {
		opt(&u)
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) updateSettings(t *testing.T, fn func(s *domain.SecuritySettings)) {
	t.Helper()
	ctx := context.Background()

	s, err := e.store.Settings().GetSecuritySettings(ctx)
	require.NoError(t, err)
	fn(&s)
	require.NoError(t, e.store.Settings().SaveSecuritySettings(ctx, s, "test"))
	e.settings.Invalidate()
}

// login signs in a user without a second factor and returns the session token.
func (e *testEnv) login(t *testing.T, email, ip string) string {
	t.Helper()

	rec := e.do(t, request{
		method: http.MethodPost,
		path:   "/login",
		body:   authsdk.LoginRequest{Email: email, Password: testPassword},
		ip:     ip,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp authsdk.LoginResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// requireError checks status and error kind of an error response.
func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) authsdk.ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())

	var body authsdk.ErrorResponse
	decode(t, rec, &body)
	require.Equal(t, kind, body.Error)
	return body
}
