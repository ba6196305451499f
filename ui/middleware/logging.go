package middleware

import (
	"time"

	"rbpscan/internal"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request through the service logger
func RequestLogger(logger *internal.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		msg := "[HTTP] %s %s -> %d (%s)"
		args := []interface{}{c.Request.Method, c.Request.URL.Path, status, time.Since(start).Round(time.Millisecond)}
		switch {
		case status >= 500:
			logger.Error(msg, args...)
		case status >= 400:
			logger.Warn(msg, args...)
		default:
			logger.Info(msg, args...)
		}
	}
}
