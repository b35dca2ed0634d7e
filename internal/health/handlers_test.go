package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-catalog/internal/health"
)

type stubChecker struct {
	redisErr   error
	catalogErr error
}

func (s stubChecker) PingRedis(_ context.Context, _ time.Duration) error {
	return s.redisErr
}

func (s stubChecker) PingCatalog(_ context.Context, _ time.Duration) error {
	return s.catalogErr
}

func TestLive(t *testing.T) {
	handler := health.Handler{}
	rr := httptest.NewRecorder()
	handler.Live(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestReadySuccess(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{}, RedisTimeout: 50 * time.Millisecond}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	var status map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status["catalog"] != "ok" || status["redis"] != "ok" {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestReadyFailure(t *testing.T) {
	handler := health.Handler{Checker: stubChecker{catalogErr: errors.New("store api down")}}
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rr.Code)
	}
	var status map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if status["catalog"] != "store api down" {
		t.Fatalf("unexpected status %#v", status)
	}
}

func TestDepsProbes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	deps := health.Deps{Redis: client, Catalog: func(context.Context) error { return nil }}
	if err := deps.PingRedis(context.Background(), time.Second); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	if err := deps.PingCatalog(context.Background(), time.Second); err != nil {
		t.Fatalf("ping catalog: %v", err)
	}
	if err := (health.Deps{}).PingRedis(context.Background(), time.Second); err != nil {
		t.Fatalf("nil redis should be treated as disabled: %v", err)
	}
	if err := (health.Deps{}).PingCatalog(context.Background(), time.Second); err == nil {
		t.Fatal("expected error without catalog probe")
	}
}

type countingChecker struct{ catalogCalls int }

func (c *countingChecker) PingRedis(context.Context, time.Duration) error { return nil }

func (c *countingChecker) PingCatalog(context.Context, time.Duration) error {
	c.catalogCalls++
	return nil
}

func TestReadyDrainsWithoutProbingCatalog(t *testing.T) {
	t.Cleanup(func() { health.SetReady(true) })
	checker := &countingChecker{}
	handler := health.Handler{Checker: checker}

	health.SetReady(false)
	rr := httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Contains(t, rr.Body.String(), "shutting down")
	require.Zero(t, checker.catalogCalls, "draining must not hit the store api")

	health.SetReady(true)
	rr = httptest.NewRecorder()
	handler.Ready(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 1, checker.catalogCalls)
}
