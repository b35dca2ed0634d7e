package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/storefront-catalog/internal/common"
)

// Limiter decides whether one more event for key fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (allowed bool, remaining int, reset time.Time, err error)
}

// Config sets the per-client quota. Every request counts against Max;
// mutating requests (cart adds, quantity changes, removals) additionally
// count against WriteMax under a separate key when WriteMax > 0.
type Config struct {
	Key      func(*http.Request) string
	Window   time.Duration
	Max      int
	WriteMax int
}

// ByClientIP keys requests by the caller's address, scoped by prefix.
func ByClientIP(prefix string) func(*http.Request) string {
	return func(r *http.Request) string {
		return prefix + common.ClientIP(r)
	}
}

type quota struct {
	key string
	max int
}

func (c Config) quotas(r *http.Request) []quota {
	key := c.Key(r)
	q := []quota{{key: key, max: c.Max}}
	if c.WriteMax > 0 && isWrite(r.Method) {
		q = append(q, quota{key: key + ":w", max: c.WriteMax})
	}
	return q
}

func isWrite(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// Handler rejects requests over quota with 429 RATE_LIMITED.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
}

// Middleware reports the tightest quota in the X-RateLimit headers. When the
// limiter fails the error goes to OnError and the request proceeds.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Config.Key == nil || h.Limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			tightest quota
			left     = -1
			resetAt  time.Time
		)
		for _, q := range h.Config.quotas(r) {
			allowed, remaining, reset, err := h.Limiter.Allow(r.Context(), q.key, h.Config.Window, q.max)
			if err != nil {
				if h.OnError != nil {
					h.OnError(err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if left < 0 || remaining < left || !allowed {
				tightest, left, resetAt = q, remaining, reset
			}
			if !allowed {
				writeHeaders(w, tightest.max, 0, resetAt)
				reject(w, resetAt)
				return
			}
		}
		writeHeaders(w, tightest.max, left, resetAt)
		next.ServeHTTP(w, r)
	})
}

func writeHeaders(w http.ResponseWriter, limit, remaining int, reset time.Time) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(max(limit, 0)))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
}

func reject(w http.ResponseWriter, reset time.Time) {
	retryAfter := max(int(time.Until(reset).Seconds()), 0)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{"retryAfter": retryAfter})
}
