package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/antriver/moodle-enrol-self-parents/internal/service"
)

// Metrics records method, route template, status and latency for every
// request. Unmatched requests are recorded under their raw path.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		start := time.Now()
		c.Next()

		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
