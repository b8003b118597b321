package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/pkg/utils"
	"github.com/sirupsen/logrus"
)

// LoggerMiddleware tags each request with an ID and logs it on completion
func LoggerMiddleware(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = utils.NewRequestID()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		fields := logrus.Fields{
			"module":     "http",
			"request_id": requestID,
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if staff := c.GetString(StaffIDKey); staff != "" {
			fields["staff"] = staff
		}
		entry := log.WithFields(fields)

		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.WithField("errors", c.Errors.String()).Error("request failed")
		case status >= 400:
			entry.WithField("errors", c.Errors.String()).Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	}
}
