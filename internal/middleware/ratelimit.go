package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"social-backend/internal/ratelimit"

	"github.com/rs/zerolog/log"
)

// RateLimit limits requests per client address within scope
func RateLimit(limiter ratelimit.Limiter, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := scope + ":" + clientIP(r)
			ok, retryAfter := limiter.Allow(r.Context(), key, limit, window)
			if !ok {
				log.Warn().Str("key", key).Msg("Rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
				respondError(w, "Too many requests, please try again later", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP has
// already replaced with the forwarded address
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
