package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"breezerelay/internal/provider"
	"breezerelay/internal/provider/cache"
)

type stubSession struct{ id int }

func (stubSession) GetQuotes(context.Context, string, string) (provider.Response, error) {
	return provider.Response{}, nil
}

func (stubSession) GetOptionChainQuotes(context.Context, provider.OptionChainQuery) (provider.Response, error) {
	return provider.Response{}, nil
}

// countingProvider hands out a new session per call, or errs.
type countingProvider struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *countingProvider) Acquire(context.Context) (provider.MarketData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return stubSession{id: p.calls}, nil
}

func TestAcquire_ZeroTTLPassesThrough(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	c := &cache.Provider{P: inner}

	a, err := c.Acquire(t.Context())
	require.NoError(t, err)
	b, err := c.Acquire(t.Context())
	require.NoError(t, err)

	require.Equal(t, 2, inner.calls)
	require.NotEqual(t, a, b)
}

func TestAcquire_ReusesUntilExpiry(t *testing.T) {
	t.Parallel()

	// Arrange
	now := time.Date(2025, 6, 20, 9, 15, 0, 0, time.UTC)
	inner := &countingProvider{}
	c := &cache.Provider{P: inner, TTL: time.Minute, Now: func() time.Time { return now }}

	// Act
	first, err := c.Acquire(t.Context())
	require.NoError(t, err)
	now = now.Add(59 * time.Second)
	second, err := c.Acquire(t.Context())
	require.NoError(t, err)
	now = now.Add(time.Second)
	third, err := c.Acquire(t.Context())
	require.NoError(t, err)

	// Assert
	require.Equal(t, first, second)
	require.NotEqual(t, second, third)
	require.Equal(t, 2, inner.calls)
}

func TestAcquire_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{err: errors.New("session expired")}
	c := &cache.Provider{P: inner, TTL: time.Hour}

	_, err := c.Acquire(t.Context())
	require.EqualError(t, err, "session expired")

	inner.err = nil
	s, err := c.Acquire(t.Context())
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, 2, inner.calls)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	c := &cache.Provider{P: inner, TTL: time.Hour}

	_, err := c.Acquire(t.Context())
	require.NoError(t, err)
	c.Invalidate()
	_, err = c.Acquire(t.Context())
	require.NoError(t, err)

	require.Equal(t, 2, inner.calls)
}

func TestAcquire_ConcurrentCallersShareOneLogin(t *testing.T) {
	t.Parallel()

	inner := &countingProvider{}
	c := &cache.Provider{P: inner, TTL: time.Hour}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Acquire(context.Background())
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, inner.calls)
}
