package api

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/render"

	"github.com/bimora/licensegate/internal/core/ports"
	"github.com/bimora/licensegate/internal/infrastructure/metrics"
)

// IssuanceRateLimit throttles issuance per client address. A nil limiter is a
// passthrough; a limiter error fails open, availability of issuance wins over
// strictness of the throttle.
func IssuanceRateLimit(limiter ports.IssuanceLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), clientAddr(r))
			if err != nil {
				logger.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				metrics.RateLimitedTotal.Inc()
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, StatusResponse{
					Status:  "rate_limited",
					Message: "Too many issuance requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	// chi's RealIP middleware has already folded X-Forwarded-For into RemoteAddr.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
