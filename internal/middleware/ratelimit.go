package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// RateLimit counts requests per route and client IP in fixed windows. The
// window starts with the first request and is not extended by later ones.
// A nil client disables limiting.
func RateLimit(redisClient *redis.Client, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return rateLimit(redisClient, maxRequests, window)
}

func rateLimit(store counter, maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := "timemate:ratelimit:" + c.FullPath() + ":" + c.ClientIP()

		n, err := store.Incr(ctx, key).Result()
		if err != nil {
			logrus.WithError(err).Error("rate limit: redis incr failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "rate limiting error"})
			return
		}
		if n == 1 {
			if err := store.Expire(ctx, key, window).Err(); err != nil {
				logrus.WithError(err).WithField("key", key).Warn("rate limit: set window expiry failed")
			}
		}

		if n > int64(maxRequests) {
			logrus.WithField("ip", c.ClientIP()).Warn("rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
