package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// requireAuth wraps a handler with bearer-token authentication. An empty
// configured token leaves the API open; the daemon binds to loopback by
// default, so token-less setups stay usable for local control.
func (s *apiServer) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.token == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		supplied, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(supplied), []byte(s.token)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
