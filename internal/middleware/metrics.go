// Package middleware provides the Gin HTTP middleware chain for the dotfile
// service. All middleware here is registered in internal/api/router.go before
// any route handlers, in this order:
//
//	Recovery → RequestID → Metrics → Logger → SecurityHeaders → RateLimit → Auth → Handler
//
// Security headers run on every response including errors. Rate limiting runs
// before auth so brute-force attempts are rejected without any database work.
// Auth populates the principal; handlers read it from the gin context.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samsonhsy/dot-backend/internal/telemetry"
)

// Metrics returns a handler that records request count and latency for every
// request passing through the router.
//
// The path label comes from c.FullPath(), the matched route template
// (e.g. /api/v1/collections/:id/archive) rather than the raw URL, so
// per-collection IDs do not explode label cardinality. Requests that match no
// registered route use the literal "<no-route>".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}

		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
