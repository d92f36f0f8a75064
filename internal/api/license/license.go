// Package license implements the user-facing license key redemption endpoint.
// The admin key management surface lives in internal/api/admin.
package license

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samsonhsy/dot-backend/internal/api/httperr"
	"github.com/samsonhsy/dot-backend/internal/middleware"
	"github.com/samsonhsy/dot-backend/internal/services"
	"github.com/samsonhsy/dot-backend/internal/telemetry"
)

// Handlers serves /api/v1/license endpoints.
type Handlers struct {
	registry *services.LicenseRegistry
}

// NewHandlers creates the license handlers.
func NewHandlers(registry *services.LicenseRegistry) *Handlers {
	return &Handlers{registry: registry}
}

// RedeemRequest is the body for POST /api/v1/license/redeem.
type RedeemRequest struct {
	Key string `json:"key" binding:"required"`
}

// Redeem claims a license key for the caller and upgrades the account to
// pro. Unknown and already-used keys produce the same error body.
// POST /api/v1/license/redeem
func (h *Handlers) Redeem(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}

	if err := h.registry.Redeem(c.Request.Context(), user, req.Key); err != nil {
		telemetry.LicenseRedemptionsTotal.WithLabelValues("rejected").Inc()
		httperr.Write(c, err)
		return
	}

	telemetry.LicenseRedemptionsTotal.WithLabelValues("upgraded").Inc()
	c.JSON(http.StatusOK, gin.H{"message": "account upgraded to pro"})
}
