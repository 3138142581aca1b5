package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/hostdesk/internal/auth/http"
	"github.com/aussiebroadwan/hostdesk/internal/auth/mail"
	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/service"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/hostdesk/pkg/cryptox"
	"github.com/aussiebroadwan/hostdesk/pkg/jwtx"
	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the hostdesk service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	signer   *jwtx.EdDSASigner
	verifier *jwtx.EdDSAVerifier
	pending  pending.Registry
	redis    *redis.Client // nil unless the redis backend is selected
	mailer   mail.Mailer
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	// Services
	loginService        *service.LoginService
	resetService        *service.ResetService
	accountService      *service.AccountService
	adminService        *service.AdminService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "hostdesk",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, verifier, err := InitSigningKey(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.signer, app.verifier = signer, verifier

	if err := app.initPending(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initMailer()
	app.initMetrics()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("hostdesk starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down hostdesk...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	// Let queued reset and welcome mails finish before the store goes away.
	app.resetService.Wait()
	app.adminService.Wait()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("error closing redis client", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("hostdesk stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initPending selects where pending login sessions live. The in-memory
// registry only works for a single replica.
func (app *Application) initPending() error {
	switch app.cfg.PendingStore {
	case PendingStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     app.cfg.RedisAddr,
			Password: app.cfg.RedisPassword,
			DB:       app.cfg.RedisDB,
		})
		reg := pending.NewRedisRegistry(client, pending.DefaultRedisPrefix, time.Now)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reg.Ping(ctx); err != nil {
			_ = client.Close()
			return fmt.Errorf("failed to reach redis at %s: %w", app.cfg.RedisAddr, err)
		}

		app.redis = client
		app.pending = reg
		app.logger.Info("pending sessions stored in redis", "addr", app.cfg.RedisAddr, "db", app.cfg.RedisDB)
	default:
		app.pending = pending.NewMemoryRegistry(time.Now)
		app.logger.Info("pending sessions stored in memory")
	}
	return nil
}

func (app *Application) initMailer() {
	if app.cfg.SMTPHost == "" {
		app.mailer = mail.LogMailer{}
		app.logger.Warn("no SMTP host configured, mail will be logged instead of sent")
		return
	}
	app.mailer = mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	})
	app.logger.Info("SMTP mailer configured", "host", app.cfg.SMTPHost, "port", app.cfg.SMTPPort)
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	settings := service.NewSettingsCache(app.db)
	audit := &service.StoreAuditor{Store: app.db, Now: time.Now}
	backup := &service.BackupCodeService{Store: app.db, Now: time.Now}
	totp := service.TOTP{Issuer: app.cfg.Issuer}

	app.loginService = &service.LoginService{
		Store:    app.db,
		Settings: settings,
		Guard:    &service.Guard{Store: app.db, Settings: settings, Now: time.Now},
		Pending:  app.pending,
		Codes:    &service.CodeService{Store: app.db, Now: time.Now},
		Backup:   backup,
		TOTP:     totp,
		Tokens: &service.TokenService{
			Signer: app.signer,
			Issuer: app.cfg.Issuer,
			TTL:    app.cfg.TokenTTL,
			Now:    time.Now,
		},
		Mailer:  app.mailer,
		Audit:   audit,
		Metrics: app.metrics,
		Now:     time.Now,
	}
	app.resetService = &service.ResetService{
		Store:     app.db,
		Settings:  settings,
		Mailer:    app.mailer,
		Audit:     audit,
		Metrics:   app.metrics,
		PublicURL: app.cfg.PublicURL,
		Now:       time.Now,
	}
	app.accountService = &service.AccountService{
		Store:    app.db,
		Settings: settings,
		Pending:  app.pending,
		Backup:   backup,
		TOTP:     totp,
		Audit:    audit,
		Now:      time.Now,
	}
	app.adminService = &service.AdminService{
		Store:     app.db,
		Settings:  settings,
		Mailer:    app.mailer,
		Audit:     audit,
		PublicURL: app.cfg.PublicURL,
		Now:       time.Now,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.pending,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Metrics = app.metrics
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		app.verifier,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.Pending = app.pending
	router.Metrics = app.metrics
	router.Gatherer = app.registry
	router.SetupToken = app.cfg.SetupToken

	router.LoginService = app.loginService
	router.ResetService = app.resetService
	router.AccountService = app.accountService
	router.AdminService = app.adminService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
