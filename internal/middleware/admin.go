package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/desafio-dunas/registration-api/internal/handlers"
	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminKeyHeader carries the shared administrative key
const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey only lets requests through when AdminKeyHeader matches key.
// An empty key disables every route behind it.
func RequireAdminKey(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.JSON(http.StatusForbidden, handlers.ErrorResponse{Error: "Admin operations are disabled", Kind: handlers.KindForbidden})
			c.Abort()
			return
		}

		provided := c.GetHeader(AdminKeyHeader)
		if provided == "" {
			c.JSON(http.StatusUnauthorized, handlers.ErrorResponse{Error: "X-Admin-Key header is required", Kind: handlers.KindUnauthorized})
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			observability.Logger().Warn("admin key rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusForbidden, handlers.ErrorResponse{Error: "Admin privileges required", Kind: handlers.KindForbidden})
			c.Abort()
			return
		}

		c.Next()
	}
}
