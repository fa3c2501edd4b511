package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/cache"
	"github.com/zfogg/traveltweets/internal/logger"
	"go.uber.org/zap"
)

const redisRateLimitTimeout = 500 * time.Millisecond

// RedisRateLimitMiddleware is a fixed-window limiter shared by every API
// instance. Without Redis, or when a Redis call fails, it falls back to the
// in-memory token bucket so a cache outage never takes the API down.
func RedisRateLimitMiddleware(config RateLimitConfig, redisClient *cache.RedisClient) gin.HandlerFunc {
	local := newRateLimiter(config)

	return func(c *gin.Context) {
		key := local.config.KeyFunc(c)

		if redisClient == nil {
			allowed, retryAfter := local.Allow(key)
			if !allowed {
				rejectRateLimited(c, local.config, retryAfter)
				return
			}
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), redisRateLimitTimeout)
		count, ttl, err := redisClient.IncrWindow(ctx, cache.RateLimitKey(config.Scope, key), config.Window)
		cancel()

		if err != nil {
			logger.Log.Warn("Redis rate limit check failed, using local limiter",
				zap.String("scope", config.Scope),
				zap.Error(err),
			)
			allowed, retryAfter := local.Allow(key)
			if !allowed {
				rejectRateLimited(c, local.config, retryAfter)
				return
			}
			c.Next()
			return
		}

		if count > int64(config.Limit) {
			logger.Log.Debug("Rate limit exceeded",
				zap.String("scope", config.Scope),
				zap.String("client", key),
				zap.Int64("count", count),
			)
			rejectRateLimited(c, config, ttl)
			return
		}
		c.Next()
	}
}
