package service

import (
	"context"
	"sync"
	"time"

	"github.com/aussiebroadwan/hostdesk/internal/auth/domain"
	"github.com/aussiebroadwan/hostdesk/internal/auth/store"
)

const defaultSettingsTTL = 30 * time.Second

// SettingsCache serves security settings from memory and reloads them from
// the store at most once per TTL. Writers call Invalidate after saving.
type SettingsCache struct {
	Store store.Store
	TTL   time.Duration
	Now   func() time.Time

	mu       sync.RWMutex
	cached   domain.SecuritySettings
	loadedAt time.Time
	loaded   bool
}

func NewSettingsCache(st store.Store) *SettingsCache {
	return &SettingsCache{Store: st, TTL: defaultSettingsTTL, Now: time.Now}
}

func (c *SettingsCache) Get(ctx context.Context) (domain.SecuritySettings, error) {
	now := c.now()

	c.mu.RLock()
	if c.loaded && now.Sub(c.loadedAt) < c.TTL {
		s := c.cached
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	s, err := c.Store.Settings().GetSecuritySettings(ctx)
	if err != nil {
		return domain.SecuritySettings{}, err
	}

	c.mu.Lock()
	c.cached = s
	c.loadedAt = now
	c.loaded = true
	c.mu.Unlock()
	return s, nil
}

func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

func (c *SettingsCache) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
