package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/rea-backoffice/sessiongate/internal/ratelimit"
	pkghttp "github.com/rea-backoffice/sessiongate/pkg/http"
)

// BurstLimitConfig holds the outer per-IP burst limit for auth endpoints.
// This sits above the domain login limiter and only smooths raw request
// bursts; lockout semantics live in ratelimit.Limiter.
type BurstLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAuthBurstLimit returns the burst limit for auth endpoints
func DefaultAuthBurstLimit() BurstLimitConfig {
	return BurstLimitConfig{
		RequestsPerMinute: 30,
	}
}

// BurstLimitByIP creates a middleware that caps request bursts by client IP
func BurstLimitByIP(config BurstLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

// APIThrottle enforces the general API limiter (the looser of the two
// limiter singletons) on every request passing through it. Each request
// counts as one failed "attempt"; the fixed-window block applies per
// hashed client IP.
func APIThrottle(limiter *ratelimit.Limiter, ipConfig *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ipHash := pkghttp.HashIP(pkghttp.ExtractClientIP(r, ipConfig))

			status := limiter.RecordAttempt(ipHash, false)
			if !status.Allowed {
				pkghttp.WriteTooManyRequests(w, "Too many requests. Please slow down.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
