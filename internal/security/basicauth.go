package security

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BasicAuth guards the admin and pprof surfaces. An empty user leaves next
// unguarded so local setups work without credentials.
func BasicAuth(user, pass, realm string) func(http.Handler) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	challenge := `Basic realm="` + realm + `"`
	return func(next http.Handler) http.Handler {
		if user == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if ok && equal(u, user) && equal(p, pass) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", challenge)
			http.Error(w, "unauthorised", http.StatusUnauthorized)
		})
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
