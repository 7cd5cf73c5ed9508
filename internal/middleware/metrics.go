package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unihorario/registration-api/internal/service"
)

// Metrics records per-route duration and counts. Unmatched routes report
// the raw path so scrapes still see 404 traffic.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}
