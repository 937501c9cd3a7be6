package middleware

import (
	"net/http"
	"strings"

	"parkly/pkg/auth"
	"parkly/pkg/logger"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer"
)

// publicRoutes may be called without a token. Everything else requires a
// valid bearer token whose identity is injected into the request context.
var publicRoutes = map[string]bool{
	"POST /api/v1/users/register": true,
	"POST /api/v1/users/login":    true,
	"GET /api/v1/spots":           true,
	"GET /api/v1/pricing/quote":   true,
	"GET /health":                 true,
	"GET /ready":                  true,
}

func Authentication(tokens *auth.TokenManager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicRoutes[r.Method+" "+r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get(authorizationHeader)
			if header == "" {
				unauthorized(w, "Missing authorization header")
				return
			}

			fields := strings.Fields(header)
			if len(fields) != 2 || !strings.EqualFold(fields[0], bearerPrefix) {
				unauthorized(w, "Authorization header must be 'Bearer <token>'")
				return
			}

			identity, err := tokens.Verify(fields[1])
			if err != nil {
				log.Warn("Token verification failed",
					"request_id", requestIDFromContext(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
