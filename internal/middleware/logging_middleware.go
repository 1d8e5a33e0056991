// internal/middleware/logging_middleware.go
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"plc-monitor/internal/utils"
)

// LoggingMiddleware logs every request once it has been served
func LoggingMiddleware(logger *utils.ServiceLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		duration := time.Since(startTime)

		// route template keeps label cardinality low; unmatched paths fall back
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.LogAPIRequest(
			c.Request.Method,
			path,
			c.Request.UserAgent(),
			c.ClientIP(),
			c.GetString(RequestIDKey),
			c.Writer.Status(),
			duration,
		)
	}
}
