package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window per-IP limiter backed by redis. When redis
// is unavailable it fails open: limiting is protection, not a dependency.
type RateLimiter struct {
	rdb    *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRateLimiter(rdb *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rdb == nil {
			c.Next()
			return
		}

		key := "ratelimit:" + rl.prefix + ":" + c.ClientIP()
		count, retryAfter, err := rl.hit(c.Request.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}

		if count > int64(rl.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "Too many requests, please try again later",
				"retry_after_seconds": int(retryAfter.Seconds()),
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) hit(ctx context.Context, key string) (int64, time.Duration, error) {
	count, err := rl.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := rl.rdb.Expire(ctx, key, rl.window).Err(); err != nil {
			return count, rl.window, err
		}
	}
	ttl, err := rl.rdb.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = rl.window
	}
	return count, ttl, nil
}
