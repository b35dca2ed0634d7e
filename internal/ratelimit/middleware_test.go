package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestHandlerLimitsPerClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limited := Handler{
		Limiter: SlidingWindow{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: ByClientIP("api:"), Window: time.Minute, Max: 1},
	}.Middleware(okHandler())

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, req)
		return rr
	}

	require.Equal(t, http.StatusOK, send("203.0.113.1").Code)

	rejected := send("203.0.113.1")
	require.Equal(t, http.StatusTooManyRequests, rejected.Code)
	require.Equal(t, "1", rejected.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rejected.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rejected.Header().Get("Retry-After"))
	require.Contains(t, rejected.Body.String(), "RATE_LIMITED")

	require.Equal(t, http.StatusOK, send("203.0.113.2").Code)
	require.True(t, mr.Exists("ratelimit:api:203.0.113.1"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (bool, int, time.Time, error) {
	return false, 0, time.Time{}, errors.New("redis unavailable")
}

func TestHandlerFailsOpen(t *testing.T) {
	var reported error
	limited := Handler{
		Limiter: failingLimiter{},
		Config:  Config{Key: ByClientIP("api:"), Window: time.Second, Max: 1},
		OnError: func(err error) { reported = err },
	}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	limited.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.EqualError(t, reported, "redis unavailable")
}

func TestHandlerWithoutLimiterPassesThrough(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler{}.Middleware(okHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlerAppliesWriteQuotaToMutations(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limited := Handler{
		Limiter: SlidingWindow{Client: client, Prefix: "ratelimit:"},
		Config:  Config{Key: ByClientIP("api:"), Window: time.Minute, Max: 10, WriteMax: 1},
	}.Middleware(okHandler())

	send := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/api/v1/carts/c1/items", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, req)
		return rr
	}

	first := send(http.MethodPost)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusTooManyRequests, send(http.MethodDelete).Code)

	read := send(http.MethodGet)
	require.Equal(t, http.StatusOK, read.Code)
	require.Equal(t, "10", read.Header().Get("X-RateLimit-Limit"))
	require.True(t, mr.Exists("ratelimit:api:198.51.100.7:w"))
}
