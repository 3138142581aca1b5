package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/metrics"
	"github.com/aussiebroadwan/hostdesk/internal/auth/pending"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

const (
	DefaultHousekeepingInterval = 10 * time.Minute
	DefaultAttemptRetention     = 30 * 24 * time.Hour
)

// HousekeepingService periodically evicts expired pending sessions and
// prunes verification codes, reset tokens and old login attempts.
type HousekeepingService struct {
	Store     store.Store
	Pending   pending.Registry
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration // login attempts older than this are deleted
	Metrics   *metrics.Metrics
	Now       func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewHousekeepingService creates a housekeeping service. A non-positive
// interval falls back to DefaultHousekeepingInterval.
func NewHousekeepingService(st store.Store, reg pending.Registry, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = DefaultHousekeepingInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HousekeepingService{
		Store:     st,
		Pending:   reg,
		Logger:    logger,
		Interval:  interval,
		Retention: DefaultAttemptRetention,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", slog.Duration("interval", s.Interval))
}

// Stop shuts the worker down and waits for an in-progress cleanup. Safe to
// call more than once.
func (s *HousekeepingService) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.Logger.Info("housekeeping service stopped")
	})
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// CleanupReport counts what one pass removed.
type CleanupReport struct {
	PendingSessions int
	Codes           int64
	ResetTokens     int64
	LoginAttempts   int64
}

// Cleanup runs a single pass. Each step is independent; a failure is
// logged and the remaining steps still run.
func (s *HousekeepingService) Cleanup(ctx context.Context) CleanupReport {
	now := s.now()
	var rep CleanupReport

	if s.Pending != nil {
		n, err := s.Pending.Sweep(ctx)
		if err != nil {
			s.Logger.Error("failed to sweep pending sessions", slog.Any("error", err))
		} else {
			rep.PendingSessions = n
			s.Metrics.Swept(n)
		}
	}

	var err error
	if rep.Codes, err = s.Store.VerificationCodes().DeleteExpiredCodes(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired verification codes", slog.Any("error", err))
	}
	if rep.ResetTokens, err = s.Store.ResetTokens().DeleteExpiredResetTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired reset tokens", slog.Any("error", err))
	}

	retention := s.Retention
	if retention <= 0 {
		retention = DefaultAttemptRetention
	}
	if rep.LoginAttempts, err = s.Store.LoginAttempts().DeleteAttemptsBefore(ctx, now.Add(-retention)); err != nil {
		s.Logger.Error("failed to delete old login attempts", slog.Any("error", err))
	}

	s.Logger.Debug("housekeeping cleanup completed",
		slog.Int("pending_sessions", rep.PendingSessions),
		slog.Int64("codes", rep.Codes),
		slog.Int64("reset_tokens", rep.ResetTokens),
		slog.Int64("login_attempts", rep.LoginAttempts),
	)
	return rep
}

func (s *HousekeepingService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
