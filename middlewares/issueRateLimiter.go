package middlewares

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// IssueRateLimiter caps how many reports a user can submit per day using a
// per-user Redis counter that expires 24h after the first submission. A slot
// is reserved before the handler runs and given back when the request does
// not create a report.
func IssueRateLimiter(client *redis.Client, prefix string, limit int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDVal, _ := c.Get(userIDKey)
		userID, ok := userIDVal.(string)
		if !ok || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		userKey := prefix + ":" + userID

		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			logger.Error("redis error incrementing count", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Rate limiter unavailable"})
			return
		}

		// TTL starts with the first submission of the window.
		if count == 1 {
			if err := client.Expire(ctx, userKey, 24*time.Hour).Err(); err != nil {
				logger.Error("redis error setting TTL", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Rate limiter unavailable"})
				return
			}
		}

		release := func() {
			if err := client.Decr(context.WithoutCancel(ctx), userKey).Err(); err != nil {
				logger.Warn("redis error releasing slot", zap.String("user_id", userID), zap.Error(err))
			}
		}

		if count > int64(limit) {
			release()
			retryAfter, _ := client.TTL(ctx, userKey).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"kind":        "rate_limited",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			release()
		}
	}
}
