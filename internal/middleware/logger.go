package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wedhub/internal/logging"
)

// RequestLogger emits one logrus entry per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logging.Logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  status,
			"latency": time.Since(start).String(),
			"ip":      c.ClientIP(),
		})
		if actor, ok := ActorFrom(c); ok {
			entry = entry.WithField("user", actor.UserID.String())
		}
		switch {
		case status >= 500:
			entry.Error("[http] request failed")
		case status >= 400:
			entry.Warn("[http] request rejected")
		default:
			entry.Info("[http] request")
		}
	}
}
