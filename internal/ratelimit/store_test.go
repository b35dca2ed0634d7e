package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryLimiterRejectsOverLimit(t *testing.T) {
	lim := NewMemoryLimiter("test")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, remaining, _, err := lim.Allow(ctx, "ip", time.Minute, 2)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !allowed {
			t.Fatalf("expected request %d to be allowed", i)
		}
		if remaining != 1-i {
			t.Fatalf("unexpected remaining: %d", remaining)
		}
	}
	allowed, _, reset, err := lim.Allow(ctx, "ip", time.Minute, 2)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("expected third request to be rejected")
	}
	if !reset.After(time.Now()) {
		t.Fatalf("expected reset in the future, got %v", reset)
	}

	allowed, _, _, err = lim.Allow(ctx, "other-ip", time.Minute, 2)
	if err != nil || !allowed {
		t.Fatalf("expected independent key to be allowed, err=%v", err)
	}
}

func TestRedisStoreLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	lim, err := NewRedisLimiter(client, "test")
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	ctx := context.Background()
	if allowed, _, _, err := lim.Allow(ctx, "k", time.Minute, 1); err != nil || !allowed {
		t.Fatalf("expected first request allowed, err=%v", err)
	}
	if allowed, _, _, err := lim.Allow(ctx, "k", time.Minute, 1); err != nil || allowed {
		t.Fatalf("expected second request rejected, err=%v", err)
	}
}

func TestHandlerWithMemoryLimiterWritesErrorEnvelope(t *testing.T) {
	handler := Handler{
		Limiter: NewMemoryLimiter("mw"),
		Config: Config{
			Key:    ByClientIP("api:"),
			Window: time.Minute,
			Max:    1,
		},
	}
	wrapped := handler.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.RemoteAddr = "198.51.100.4:1234"
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected first request allowed, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"RATE_LIMITED"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}
