package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// maxRetryAfter caps how long a Retry-After from the store API may stall a
// catalog fetch.
const maxRetryAfter = 5 * time.Second

var errBodyNotReplayable = errors.New("resilience: request body cannot be replayed")

// HTTPClient calls the store API with per-attempt timeouts, retries on 5xx
// and 429, and a circuit breaker shared by every call to the same target.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	Target      string
	Logger      zerolog.Logger
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	// Fallback, when set, receives the final error instead of the caller.
	Fallback func(context.Context, *http.Request, error) (*http.Response, error)
}

// Do sends req until it gets a non-retryable response or runs out of
// attempts. Requests with a body must carry GetBody so attempts can replay it.
// Non-retryable responses, 404 included, are handed back untouched.
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, errBodyNotReplayable
	}

	attempts := max(cl.MaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			cl.count("rejected")
			lastErr = ErrOpenCircuit
			break
		}

		resp, err := cl.send(ctx, req)
		if err == nil && !retryable(resp.StatusCode) {
			cl.report(ctx, true, "ok")
			return resp, nil
		}
		cl.report(ctx, false, "error")

		wait := Backoff(cl.BaseBackoff, attempt, cl.Jitter)
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
			if hinted, ok := retryAfter(resp.Header.Get("Retry-After")); ok && hinted > wait {
				wait = hinted
			}
			discard(resp)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == attempts {
			break
		}

		cl.Logger.Warn().
			Err(lastErr).
			Str("target", cl.target()).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("upstream attempt failed")
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if cl.Fallback != nil {
		return cl.Fallback(ctx, req, lastErr)
	}
	return nil, lastErr
}

// send performs one attempt. The attempt deadline stays armed until the
// caller closes the response body.
func (cl HTTPClient) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	out := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, err
		}
		out.Body = body
	}
	resp, err := cl.Client.Do(out)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (cl HTTPClient) report(ctx context.Context, ok bool, result string) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, ok)
	}
	cl.count(result)
}

func (cl HTTPClient) count(result string) {
	UpstreamAttempts.WithLabelValues(cl.target(), result).Inc()
}

func (cl HTTPClient) target() string {
	if t := strings.TrimSpace(cl.Target); t != "" {
		return t
	}
	return "default"
}

func retryable(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// retryAfter reads the delta-seconds form of Retry-After.
func retryAfter(v string) (time.Duration, bool) {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0, false
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter), true
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
