package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request ID is stored.
	RequestIDKey = "request_id"
)

// RequestID returns a handler that ensures every request carries a unique
// identifier. An inbound X-Request-ID header (set by a proxy or caller) is
// reused unchanged; otherwise a fresh UUID v4 is generated. The identifier is
// stored in the gin context under RequestIDKey and echoed back in the response
// header so clients can correlate requests with server-side log entries.
//
// Register this middleware first so all downstream logging includes the ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
