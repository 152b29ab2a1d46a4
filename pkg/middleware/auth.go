// Package middleware provides HTTP middleware for the proxy's operator
// API surface (C8).
package middleware

import (
	"log/slog"
	"net/http"
)

// APIKeyValidator is a function that validates an API key.
type APIKeyValidator func(key string) bool

// Auth creates an authentication middleware that validates API keys via
// the x-api-key header or an Authorization: Bearer token. Only the
// process health check (GET /health) is exempt, so dashboards can probe
// liveness without credentials; every other path, including the SSE
// event stream, must pass validation.
func Auth(validate APIKeyValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			apiKey := r.Header.Get("x-api-key")
			if apiKey == "" {
				auth := r.Header.Get("Authorization")
				if len(auth) > 7 && auth[:7] == "Bearer " {
					apiKey = auth[7:]
				}
			}

			if !validate(apiKey) {
				logger.Warn("rejected unauthenticated request",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"status":"error","errors":["missing or invalid API key"]}`))
}
