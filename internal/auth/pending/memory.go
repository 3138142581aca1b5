package pending

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
)

// MemoryRegistry keeps sessions in a mutex-guarded map. It suits a single
// process; sessions do not survive a restart.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]domain.PendingSession
	now      func() time.Time
}

func NewMemoryRegistry(now func() time.Time) *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]domain.PendingSession),
		now:      clockOrDefault(now),
	}
}

func (r *MemoryRegistry) Put(_ context.Context, s domain.PendingSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.Token] = s
	return nil
}

func (r *MemoryRegistry) Get(_ context.Context, token string) (domain.PendingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return domain.PendingSession{}, ErrNotFound
	}
	if s.Expired(r.now()) {
		delete(r.sessions, token)
		return domain.PendingSession{}, ErrExpired
	}
	return s, nil
}

func (r *MemoryRegistry) Delete(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[token]; !ok {
		return false, nil
	}
	delete(r.sessions, token)
	return true, nil
}

func (r *MemoryRegistry) Update(_ context.Context, token string, fn func(s *domain.PendingSession) error) (domain.PendingSession, error) {
	return r.update(token, func(s *domain.PendingSession, _ time.Time) error { return fn(s) })
}

func (r *MemoryRegistry) Extend(_ context.Context, token string, lim Limits) (domain.PendingSession, error) {
	return r.update(token, func(s *domain.PendingSession, now time.Time) error {
		next, err := extend(*s, now, lim)
		*s = next
		return err
	})
}

func (r *MemoryRegistry) update(token string, fn func(s *domain.PendingSession, now time.Time) error) (domain.PendingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return domain.PendingSession{}, ErrNotFound
	}
	now := r.now()
	if s.Expired(now) {
		delete(r.sessions, token)
		return domain.PendingSession{}, ErrExpired
	}

	if err := fn(&s, now); err != nil {
		return domain.PendingSession{}, err
	}
	s.Token = token
	r.sessions[token] = s
	return s, nil
}

func (r *MemoryRegistry) Sweep(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for token, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Len reports how many sessions are held, expired ones included.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

var _ Registry = (*MemoryRegistry)(nil)
