// Package api implements the doodle REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AccessTokenParam carries the token for event streams, since browser
// EventSource clients cannot set an Authorization header.
const AccessTokenParam = "access_token"

// AuthMiddleware returns middleware that validates a Bearer token.
// When enabled is false every request passes through.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			if subtle.ConstantTimeCompare([]byte(requestToken(r)), []byte(token)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="doodle"`)
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requestToken extracts the bearer token from the Authorization header, or
// from the query string of an event-stream request.
func requestToken(r *http.Request) string {
	if got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return got
	}
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return r.URL.Query().Get(AccessTokenParam)
	}
	return ""
}
