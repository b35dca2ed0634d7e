package security

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/cors"
)

const defaultHSTSMaxAge = 365 * 24 * 60 * 60

// Headers sets browser hardening headers. CacheControl, when non-empty, is
// written as-is: catalog routes advertise a public max-age, cart routes
// "no-store".
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	CacheControl          string
}

// PublicFor is the Cache-Control value for catalog reads cached maxAgeSeconds.
func PublicFor(maxAgeSeconds int) string {
	if maxAgeSeconds <= 0 {
		return "no-cache"
	}
	return "public, max-age=" + strconv.Itoa(maxAgeSeconds)
}

func (h Headers) hsts() string {
	age := h.HSTSMaxAge
	if age <= 0 {
		age = defaultHSTSMaxAge
	}
	v := "max-age=" + strconv.Itoa(age)
	if h.HSTSIncludeSubdomains {
		v += "; includeSubDomains"
	}
	return v
}

func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	static := http.Header{}
	static.Set("X-Content-Type-Options", "nosniff")
	static.Set("X-Frame-Options", "DENY")
	static.Set("Referrer-Policy", "no-referrer")
	static.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
	if h.CacheControl != "" {
		static.Set("Cache-Control", h.CacheControl)
	}
	hsts := h.hsts()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := w.Header()
		for k := range static {
			out.Set(k, static.Get(k))
		}
		if h.EnableHSTS && r.TLS != nil {
			out.Set("Strict-Transport-Security", hsts)
		}
		next.ServeHTTP(w, r)
	})
}

// CORS allows the comma-separated storefront origins. A "*" entry admits any
// origin and turns credentials off.
func CORS(originsCSV string) func(http.Handler) http.Handler {
	var origins []string
	credentials := true
	for origin := range strings.SplitSeq(originsCSV, ",") {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			credentials = false
		}
		origins = append(origins, origin)
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: credentials,
		MaxAge:           300,
	})
}
