package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestHeadersHSTSOnlyOverTLS(t *testing.T) {
	h := Headers{Enable: true, EnableHSTS: true, HSTSMaxAge: 600, HSTSIncludeSubdomains: true}

	secure := httptest.NewRequest(http.MethodGet, "https://shop.example.com/api/v1/products", nil)
	secure.TLS = &tls.ConnectionState{}
	rr := serve(t, h.Middleware, secure)
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "max-age=600; includeSubDomains", rr.Header().Get("Strict-Transport-Security"))

	plain := serve(t, h.Middleware, httptest.NewRequest(http.MethodGet, "http://shop.example.com/api/v1/products", nil))
	require.Empty(t, plain.Header().Get("Strict-Transport-Security"))
}

func TestHeadersDisabled(t *testing.T) {
	rr := serve(t, Headers{EnableHSTS: true, CacheControl: "no-store"}.Middleware, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Empty(t, rr.Header().Get("X-Content-Type-Options"))
	require.Empty(t, rr.Header().Get("Cache-Control"))
}

func TestHeadersCacheControlPerSurface(t *testing.T) {
	cart := serve(t, Headers{Enable: true, CacheControl: "no-store"}.Middleware, httptest.NewRequest(http.MethodGet, "/api/v1/carts/c1", nil))
	require.Equal(t, "no-store", cart.Header().Get("Cache-Control"))

	listing := serve(t, Headers{Enable: true, CacheControl: PublicFor(300)}.Middleware, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, "public, max-age=300", listing.Header().Get("Cache-Control"))

	require.Equal(t, "no-cache", PublicFor(0))
}

func TestCORSAllowlist(t *testing.T) {
	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "http://localhost/api/v1/carts", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return serve(t, CORS("https://shop.example.com, "), req)
	}

	require.Equal(t, "https://shop.example.com", preflight("https://shop.example.com").Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, preflight("https://malicious.example").Header().Get("Access-Control-Allow-Origin"))
}
