package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luxtick/luxtick_backend/config"
)

const rateLimitWindow = time.Minute

// RateLimitMiddleware throttles webhook traffic per Telegram sender,
// falling back to the client IP when no sender is identifiable. The
// counter lives in Redis with a fixed one-minute window.
func RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("x-telegram-id")
		if key == "" {
			key = c.ClientIP()
		}

		count, err := config.IncrWithWindow(c.Request.Context(), "ratelimit:"+key, rateLimitWindow)
		if err != nil {
			// Redis trouble must not take the bot down.
			logger := config.GetLogger()
			config.LogError(logger, "middlewares", "RateLimitMiddleware", "incr", key, err)
			c.Next()
			return
		}

		if count > config.GetRateLimitPerMinute() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": fmt.Sprintf("rate limit exceeded, try again in %d seconds", int(rateLimitWindow.Seconds())),
			})
			return
		}
		c.Next()
	}
}
