package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/disaster-training/training-registry/internal/telemetry"
)

// MetricsMiddleware records http_requests_total{method, path, status} and
// http_request_duration_seconds{method, path} for every request.
//
// The path label is the matched route template (/api/trainings/:id), not the
// raw URL, so training and partner ids do not become label values. Requests
// that match no route use "<no-route>".
//
// Register it after gin.Recovery() and RequestIDMiddleware so the status set
// by error handlers is captured.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		method := c.Request.Method

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
