package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/leetclash/backend/internal/infrastructure"
)

// MetricsMiddleware records request count and latency per route. The
// route template is used so path parameters do not explode cardinality.
func MetricsMiddleware(metrics *infrastructure.TelemetryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
		)

		ctx := c.Request.Context()
		metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		metrics.HTTPRequestCount.Add(ctx, 1, attrs)
	}
}
