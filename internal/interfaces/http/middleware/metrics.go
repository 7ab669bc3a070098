package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/possales/backend/internal/infrastructure/telemetry"
)

// HTTPMetrics returns a Gin middleware that records request count, latency,
// response size and in-flight requests. A nil metrics set disables it.
func HTTPMetrics(metrics *telemetry.HTTPMetrics) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		start := time.Now()
		metrics.RequestStarted()

		c.Next()

		metrics.RequestFinished(
			c.Request.Method,
			getRoutePattern(c),
			c.Writer.Status(),
			time.Since(start),
			c.Writer.Size(),
		)
	}
}

// getRoutePattern returns the route pattern (e.g., "/category/list/:id")
// instead of the actual path to avoid high cardinality issues.
func getRoutePattern(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		return "unknown"
	}
	return route
}
