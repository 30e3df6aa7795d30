package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// RateCounter is the subset of pkg/cache's Redis-backed primitives the
// admin rate limiter needs: a fixed-window counter per client, grounded
// on the same Incr-then-Expire idiom the teacher's cache package uses
// for its own attempts-per-IP counter.
type RateCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) error
}

// RateLimit builds admin-surface per-IP rate limiting middleware: each
// client IP gets maxRequests within a fixed window-length bucket,
// counted in Redis so the limit holds across every gateway replica
// rather than per-process. A counter store failure fails open — the
// admin surface stays reachable for operators even if Redis is down —
// and is logged at warn.
func RateLimit(counter RateCounter, maxRequests int, window time.Duration, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxRequests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ratelimit:admin:" + clientIP(r)
			count, err := counter.Incr(r.Context(), key)
			if err != nil {
				logger.Warn("rate limit counter unavailable, allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				if err := counter.Expire(r.Context(), key, window); err != nil {
					logger.Warn("failed to set rate limit window expiry", zap.Error(err))
				}
			}
			if count > int64(maxRequests) {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the request's remote IP, stripping the port added by
// net/http's RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
