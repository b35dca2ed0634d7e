package resilience_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-catalog/internal/resilience"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestBreakerTransitions(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := resilience.NewBreaker(2, 0.5, time.Minute).WithClock(clock.Now)
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)

	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")
	require.Equal(t, resilience.Open, breaker.State())

	clock.Advance(time.Minute)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	require.Equal(t, resilience.HalfOpen, breaker.State())
	require.False(t, breaker.Allow(ctx), "only one probe while half-open")

	breaker.Report(ctx, true)
	require.True(t, breaker.Allow(ctx), "breaker should close after successful probe")
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := resilience.NewBreaker(1, 0.5, time.Second).WithClock(clock.Now)
	ctx := context.Background()

	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	clock.Advance(time.Second)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
	require.False(t, breaker.Allow(ctx))
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}

func TestBreakerIgnoresOldFailuresOutsideWindow(t *testing.T) {
	breaker := resilience.NewBreaker(2, 0.5, time.Minute)
	ctx := context.Background()

	breaker.Report(ctx, true)
	breaker.Report(ctx, true)
	breaker.Report(ctx, false)
	// eight successes push the early failure out of the ring
	for i := 0; i < 8; i++ {
		breaker.Report(ctx, true)
	}
	breaker.Report(ctx, false)
	breaker.Report(ctx, false)
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Closed, breaker.State())
	breaker.Report(ctx, false)
	require.Equal(t, resilience.Open, breaker.State())
}
