package security

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	redis  redis.Cmdable
	limit  int64
	window time.Duration
}

func NewRateLimiter(rc redis.Cmdable, perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	return &RateLimiter{
		redis:  rc,
		limit:  int64(perMinute),
		window: time.Minute,
	}
}

// OrderRateLimit throttles order creation per client and turns away
// obvious crawlers. Redis errors let the request through.
func (r *RateLimiter) OrderRateLimit(e *core.RequestEvent) error {
	if r.isSuspiciousUserAgent(e.Request.UserAgent()) {
		return e.JSON(http.StatusForbidden, map[string]string{"error": "Access denied"})
	}

	ctx := e.Request.Context()
	key := fmt.Sprintf("ratelimit:orders:%s", clientKey(e))

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		slog.Warn("r.redis.Incr()", "key", key, "error", err)
		return e.Next()
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			slog.Warn("r.redis.Expire()", "key", key, "error", err)
		}
	}
	if count > r.limit {
		return e.JSON(http.StatusTooManyRequests, map[string]string{
			"error": "Rate limit exceeded. Please try again later.",
		})
	}
	return e.Next()
}

func clientKey(e *core.RequestEvent) string {
	if e.Auth != nil {
		return "user:" + e.Auth.Id
	}
	return "ip:" + e.RealIP()
}

func (r *RateLimiter) isSuspiciousUserAgent(ua string) bool {
	suspicious := []string{"bot", "crawler", "spider", "scraper"}
	lower := strings.ToLower(ua)
	for _, pattern := range suspicious {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
