package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"bluecut/internal/ratelimit"
)

// RateLimit charges one hit per request against scope for the identity id
// returns. Requests without an identity pass. When the store fails the
// request is let through and the failure logged.
func RateLimit(l *ratelimit.Limiter, scope ratelimit.Scope, id func(*http.Request) string, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := id(r)
			if ident == "" {
				next.ServeHTTP(w, r)
				return
			}
			d, err := l.Consume(r.Context(), scope.Key(ident), scope.Config)
			if err != nil {
				logger.Error().Err(err).Str("scope", scope.Name).Msg("rate limit store failed")
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				logger.Info().Str("scope", scope.Name).Str("identity", ident).Int("retry_after", d.RetryAfterSeconds()).Msg("rate limited")
				w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP identifies a request by its client address: the first valid
// X-Forwarded-For entry, then X-Real-IP, then the connection's host.
func ClientIP(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip := strings.TrimSpace(part); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && net.ParseIP(host) != nil {
		return host
	}
	return r.RemoteAddr
}

// AuthenticatedUser identifies a request by the user AuthJWT attached.
func AuthenticatedUser(r *http.Request) string {
	return UserIDFromContext(r.Context())
}
