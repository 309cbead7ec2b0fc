package cache

import (
	"context"
	"sync"
	"time"

	"breezerelay/internal/provider"
)

// Provider reuses the session acquired from P for TTL. Only sessions are
// cached; every quote call still reaches the vendor. Failed acquisitions
// are not cached.
type Provider struct {
	P   provider.SessionProvider
	TTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time

	mu        sync.Mutex
	session   provider.MarketData
	expiresAt time.Time
}

// Acquire returns the cached session while it is fresh, otherwise a new one.
func (c *Provider) Acquire(ctx context.Context) (provider.MarketData, error) {
	if c.TTL <= 0 {
		return c.P.Acquire(ctx)
	}

	// Holding the lock across the vendor call collapses concurrent refreshes
	// into one session login.
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.session != nil && now.Before(c.expiresAt) {
		return c.session, nil
	}
	s, err := c.P.Acquire(ctx)
	if err != nil {
		c.session = nil
		return nil, err
	}
	c.session = s
	c.expiresAt = now.Add(c.TTL)
	return s, nil
}

// Invalidate drops the cached session so the next Acquire logs in again.
func (c *Provider) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *Provider) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
