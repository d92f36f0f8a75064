// Package httperr translates service-layer errors into HTTP responses. All
// handler packages use Write so a given error kind always maps to the same
// status code and body shape.
package httperr

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samsonhsy/dot-backend/internal/services"
)

// Status returns the HTTP status code for a service error kind.
func Status(kind services.Kind) int {
	switch kind {
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindForbidden:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindValidationFailed:
		return http.StatusBadRequest
	case services.KindConflict:
		return http.StatusConflict
	case services.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case services.KindStorageFailure:
		return http.StatusBadGateway
	case services.KindPersistenceFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Write aborts the request with the status and message for err. Only the
// classified service message reaches the body; wrapped causes and foreign
// errors get a generic body so database or storage details cannot leak, and
// server-side failures are logged with the request context.
func Write(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status := Status(kind)

	message := "Internal server error"
	var svcErr *services.Error
	if errors.As(err, &svcErr) && kind != services.KindPersistenceFailure {
		message = svcErr.Message
	}

	if status >= http.StatusInternalServerError || kind == services.KindStorageFailure {
		requestID, _ := c.Get("request_id")
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"request_id", requestID,
			"error", err,
		)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
