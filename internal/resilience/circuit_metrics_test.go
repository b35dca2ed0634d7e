package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-catalog/internal/resilience"
)

func resetBreakerMetrics() {
	resilience.BreakerState.Reset()
	resilience.BreakerTransitions.Reset()
	resilience.BreakerOpenedTotal.Reset()
}

func TestBreakerPublishesStateGauge(t *testing.T) {
	resetBreakerMetrics()
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := resilience.NewBreaker(1, 0.5, 20*time.Millisecond).WithClock(clock.Now).WithTarget("store-api")
	ctx := context.Background()
	gauge := func() float64 { return testutil.ToFloat64(resilience.BreakerState.WithLabelValues("store-api")) }

	require.Zero(t, gauge())
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	require.Equal(t, 1.0, gauge())

	clock.Advance(20 * time.Millisecond)
	require.True(t, b.Allow(ctx))
	require.Equal(t, 2.0, gauge())

	b.Report(ctx, true)
	require.Zero(t, gauge())
}

func TestBreakerCountsEachTransitionOnce(t *testing.T) {
	resetBreakerMetrics()
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := resilience.NewBreaker(1, 0.5, time.Second).WithClock(clock.Now).WithTarget("store-api-worker")
	ctx := context.Background()

	b.Report(ctx, false)
	clock.Advance(time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, false)
	clock.Advance(time.Second)
	require.True(t, b.Allow(ctx))
	b.Report(ctx, true)

	transitions := func(from, to string) float64 {
		return testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("store-api-worker", from, to))
	}
	require.Equal(t, 1.0, transitions("closed", "open"))
	require.Equal(t, 2.0, transitions("open", "half_open"))
	require.Equal(t, 1.0, transitions("half_open", "open"))
	require.Equal(t, 1.0, transitions("half_open", "closed"))
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerOpenedTotal.WithLabelValues("store-api-worker")))
}
