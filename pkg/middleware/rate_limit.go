package middleware

import (
	"net/http"
	"strconv"

	"github.com/mazbron/video-downloader/internal/model"
	"github.com/mazbron/video-downloader/internal/service"

	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware throttles requests per client IP. Rejections are logged
// by the rate limit service.
func RateLimitMiddleware(rateLimitService *service.RateLimitService) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()

		if !rateLimitService.IsAllowed(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, model.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Too many requests. Please try again later.",
				Code:    http.StatusTooManyRequests,
			})
			return
		}

		if remaining := rateLimitService.Remaining(key); remaining >= 0 {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		c.Next()
	}
}
