package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/desafio-dunas/registration-api/internal/handlers"
	"github.com/gin-gonic/gin"
)

var tooManyRequests = handlers.ErrorResponse{
	Error: "Too many requests, try again later",
	Kind:  handlers.KindRateLimited,
}

// WindowLimiter decides per key whether a request fits the current window
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// TokenLimiter is a process-wide limiter without keys
type TokenLimiter interface {
	Allow(ctx context.Context, operation string) bool
}

// RateLimitByIP rejects requests from a client IP once limiter says its window is spent
func RateLimitByIP(limiter WindowLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := limiter.Allow(c.Request.Context(), c.ClientIP())
		if !allowed {
			if retryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			}
			c.JSON(http.StatusTooManyRequests, tooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimit rejects requests while limiter has no tokens left for operation
func RateLimit(limiter TokenLimiter, operation string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.Request.Context(), operation) {
			c.JSON(http.StatusTooManyRequests, tooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
