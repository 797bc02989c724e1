package auth

import (
	"log/slog"
	"net/http"

	"github.com/antwort-dev/auskunft/pkg/observability"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

// DefaultBypassEndpoints are served without credentials so probes and
// scrapers keep working when auth is on.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware wraps a handler with chain authentication, optional rate
// limiting, and tenant injection. A nil limiter disables rate limiting.
// Paths in bypassEndpoints skip the whole thing.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	skip := make(map[string]bool, len(bypassEndpoints))
	for _, path := range bypassEndpoints {
		skip[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			if result.Decision == No {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				writeAuthError(w, http.StatusUnauthorized, "invalid_request", "authentication required")
				return
			}
			if result.Decision != Yes || result.Identity == nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid_request", "authentication required")
				return
			}
			if result.Identity.Subject == "" {
				// A Yes vote must carry a subject; treat anything else
				// as an authenticator bug rather than a client error.
				slog.Error("authenticator returned identity with empty subject")
				writeAuthError(w, http.StatusInternalServerError, "server_error", "internal authentication error")
				return
			}

			slog.Debug("authentication succeeded",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.ServiceTier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(result.Identity.ServiceTier).Inc()
					writeAuthError(w, http.StatusTooManyRequests, "too_many_requests", "rate limit exceeded")
					return
				}
			}

			ctx := SetIdentity(r.Context(), result.Identity)
			if tenant := result.Identity.TenantID(); tenant != "" {
				ctx = storage.SetTenant(ctx, tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":{"type":"` + errType + `","message":"` + msg + `"}}`))
}
