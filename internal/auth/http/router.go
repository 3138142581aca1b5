package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/hostdesk/api/auth" // Swagger docs
	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/httpx"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	signer       jwtx.Signer
	verifier     jwtx.Verifier
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	Pending  pending.Registry
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer // serves /metrics when set

	// SetupToken, when set, guards POST /setup.
	SetupToken string

	LoginService   *service.LoginService
	ResetService   *service.ResetService
	AccountService *service.AccountService
	AdminService   *service.AdminService
}

func NewRouter(
	signer jwtx.Signer,
	verifier jwtx.Verifier,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		signer:       signer,
		verifier:     verifier,
		issuer:       issuer,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	// Metrics runs innermost so it sees the pattern the mux matched.
	r.middlewares = append(r.middlewares, r.Metrics.HTTPMiddleware)

	r.registerLogin()
	r.registerPassword()
	r.registerSetup()
	r.registerAccount()
	r.registerAdmin()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			HostDesk Admin Panel Authentication API
//	@version		0.1.0
//	@description	Password sign-in with second factors (authenticator app, emailed codes, backup codes), forced enrolment, password reset and panel administration.
//	@description
//	@description				Session tokens are EdDSA-signed JWTs sent as bearer tokens.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/hostdesk
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{LoginService: r.LoginService}

	// Pre-session steps: a strict per-IP limiter on each route.
	public := map[string]http.HandlerFunc{
		"POST /login":                     h.HandleLogin,
		"POST /login/verify-2fa":          h.HandleVerifyTwoFactor,
		"POST /login/resend-2fa":          h.HandleResendCode,
		"POST /login/send-email-fallback": h.HandleSendEmailFallback,
		"POST /login/setup-2fa":           h.HandleSetupTwoFactor,
		"POST /login/verify-2fa-setup":    h.HandleVerifySetup,
	}
	for pattern, handler := range public {
		r.Mux.Handle(pattern, httpx.Chain(handler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		))
	}

	r.Mux.Handle("POST /logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerPassword() {
	h := &ResetHandler{ResetService: r.ResetService}

	r.Mux.Handle("POST /forgot-password",
		httpx.Chain(http.HandlerFunc(h.HandleForgotPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /reset-password",
		httpx.Chain(http.HandlerFunc(h.HandleResetPassword),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSetup() {
	// POST /setup - very strict rate limit by IP (one-time setup endpoint)
	h := &SetupHandler{AdminService: r.AdminService, Token: r.SetupToken}
	r.Mux.Handle("POST /setup",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerAccount() {
	h := &AccountHandler{AccountService: r.AccountService}

	secured := func(handler http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(handler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(limit),
		)
	}

	r.Mux.Handle("GET /me", secured(h.HandleMe, httpx.LenientLimit))
	r.Mux.Handle("POST /account/password", secured(h.HandleChangePassword, httpx.StrictLimit))
	r.Mux.Handle("POST /account/2fa/totp/enroll", secured(h.HandleEnrollTOTP, httpx.ModerateLimit))
	// Confirm takes a code, so it is limited like the login steps
	r.Mux.Handle("POST /account/2fa/totp/confirm", secured(h.HandleConfirmTOTP, httpx.StrictLimit))
	r.Mux.Handle("POST /account/2fa/totp/disable", secured(h.HandleDisableTOTP, httpx.StrictLimit))
	r.Mux.Handle("POST /account/2fa/email", secured(h.HandleSetEmailTwoFactor, httpx.StrictLimit))
	r.Mux.Handle("POST /account/2fa/backup-codes", secured(h.HandleRegenerateBackupCodes, httpx.StrictLimit))
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{AdminService: r.AdminService}
	admins := domain.RolesAtLeast(domain.RoleAdmin)

	secured := func(handler http.HandlerFunc) http.Handler {
		return httpx.Chain(handler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(admins...),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /admin/users", secured(h.HandleListUsers))
	r.Mux.Handle("POST /admin/users", secured(h.HandleCreateUser))
	r.Mux.Handle("POST /admin/users/{id}/active", secured(h.HandleSetUserActive))
	r.Mux.Handle("GET /admin/security-settings", secured(h.HandleGetSecuritySettings))
	r.Mux.Handle("PUT /admin/security-settings", secured(h.HandleUpdateSecuritySettings))
	r.Mux.Handle("GET /admin/audit", secured(h.HandleListAuditEvents))
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.signer, r.verifier, r.issuer, r.Pending),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	if r.Gatherer != nil {
		r.Mux.Handle("GET /metrics",
			httpx.Chain(promhttp.HandlerFor(r.Gatherer, promhttp.HandlerOpts{}),
				httpx.RateLimitByIP(httpx.LenientLimit),
			),
		)
	}
}
