package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/opticfit/internal/logging"
	"github.com/JonMunkholm/opticfit/internal/ratelimit"
)

// RateLimit caps requests per client IP. A limiter failure lets the request
// through so a Redis outage does not take the public pages down.
func RateLimit(limiter ratelimit.Limiter, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			allowed, err := limiter.Allow(r.Context(), "ip:"+ip, limit, window)
			if err != nil {
				logging.FromContext(r.Context()).Warn("ratelimit: limiter unavailable", "ip", ip, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"rate limit exceeded","message":"Too many requests","code":"RATE001"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
