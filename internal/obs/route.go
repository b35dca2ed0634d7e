package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routePatternKey struct{}

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the pattern stored by WithRoutePattern.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(routePatternKey{}).(string)
	return v
}

// routeOf resolves the low-cardinality route label for r. chi only knows the
// full pattern once routing has finished, so callers invoke it after next.
func routeOf(r *http.Request, fallback string) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if route := rc.RoutePattern(); route != "" {
			return route
		}
	}
	return fallback
}

// routeParams lists the chi URL params matched for r, skipping wildcards.
func routeParams(r *http.Request) [][2]string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return nil
	}
	out := make([][2]string, 0, len(rc.URLParams.Keys))
	for i, key := range rc.URLParams.Keys {
		if key == "*" || i >= len(rc.URLParams.Values) {
			continue
		}
		out = append(out, [2]string{key, rc.URLParams.Values[i]})
	}
	return out
}
