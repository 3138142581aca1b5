package service

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
	"github.com/aussiebroadwan/hostdesk/pkg/idx"
)

// BlockStatus is the guard's decision for one scope.
type BlockStatus struct {
	Blocked bool
	Until   time.Time
	Reason  string
}

// Err returns a *BlockedError when blocked, nil otherwise.
func (b BlockStatus) Err() error {
	if !b.Blocked {
		return nil
	}
	return &BlockedError{Until: b.Until, Reason: b.Reason}
}

// Guard decides brute-force blocks from the append-only login attempt log.
// A scope is blocked once the newest MaxFailures failures all fall inside
// the lockout window; the block lasts BlockMinutes from the newest failure.
// Successes are logged but never reset the count.
type Guard struct {
	Store    store.Store
	Settings *SettingsCache
	Now      func() time.Time
}

// IsBlocked checks the source address.
func (g *Guard) IsBlocked(ctx context.Context, ip string) (BlockStatus, error) {
	policy, err := g.policy(ctx)
	if err != nil {
		return BlockStatus{}, err
	}
	failures, err := g.Store.LoginAttempts().RecentFailuresByIP(ctx, ip, policy.MaxFailures)
	if err != nil {
		return BlockStatus{}, err
	}
	return g.decide(failures, policy, "too many failed attempts from this address"), nil
}

// IsAccountBlocked checks the account, so a distributed attack on one
// mailbox is throttled as well.
func (g *Guard) IsAccountBlocked(ctx context.Context, email string) (BlockStatus, error) {
	policy, err := g.policy(ctx)
	if err != nil {
		return BlockStatus{}, err
	}
	failures, err := g.Store.LoginAttempts().RecentFailuresByEmail(ctx, normalizeEmail(email), policy.MaxFailures)
	if err != nil {
		return BlockStatus{}, err
	}
	return g.decide(failures, policy, "too many failed attempts for this account"), nil
}

// RecordAttempt appends exactly one attempt record.
func (g *Guard) RecordAttempt(ctx context.Context, ip, email string, success bool, userAgent string) error {
	now := g.now()
	return g.Store.LoginAttempts().RecordAttempt(ctx, domain.LoginAttempt{
		ID:        idx.NewAt(now).String(),
		IP:        ip,
		Email:     normalizeEmail(email),
		Success:   success,
		UserAgent: truncate(userAgent, 512),
		CreatedAt: now,
	})
}

func (g *Guard) decide(failures []time.Time, policy domain.LockoutPolicy, reason string) BlockStatus {
	if policy.MaxFailures <= 0 || len(failures) < policy.MaxFailures {
		return BlockStatus{}
	}

	newest, oldest := failures[0], failures[len(failures)-1]
	if newest.Sub(oldest) > policy.Window() {
		return BlockStatus{}
	}

	until := newest.Add(policy.Block())
	if !g.now().Before(until) {
		return BlockStatus{}
	}
	return BlockStatus{Blocked: true, Until: until, Reason: reason}
}

func (g *Guard) policy(ctx context.Context) (domain.LockoutPolicy, error) {
	s, err := g.Settings.Get(ctx)
	if err != nil {
		return domain.LockoutPolicy{}, err
	}
	return s.Lockout, nil
}

func (g *Guard) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
