package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trailhead/tours-api/internal/apperror"
	"github.com/trailhead/tours-api/internal/http/response"
	"github.com/trailhead/tours-api/pkg/logger"
)

// RateLimit is a fixed-window counter per client IP backed by Redis.
// When Redis is unreachable the limiter fails open; losing rate limiting
// is better than losing the API.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, dev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rdb == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			key := "ratelimit:" + clientIP(r)

			count, err := rdb.Incr(r.Context(), key).Result()
			if err != nil {
				logger.WarnContext(r.Context(), "Rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				if err := rdb.Expire(r.Context(), key, window).Err(); err != nil {
					logger.WarnContext(r.Context(), "Failed to set rate limit window", "error", err)
				}
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				response.Error(w, r, apperror.New(http.StatusTooManyRequests, "Too many requests from this IP, please try again later"), dev)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
