// Package admin implements the admin-only HTTP surface: license key
// management, user management, and tier promotion. Every route in this
// package sits behind middleware.RequireAdmin.
package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samsonhsy/dot-backend/internal/api/httperr"
	"github.com/samsonhsy/dot-backend/internal/services"
)

// Handlers serves /api/v1/admin and /api/v1/users endpoints.
type Handlers struct {
	users   *services.UserService
	license *services.LicenseRegistry
}

// NewHandlers creates the admin handlers.
func NewHandlers(users *services.UserService, license *services.LicenseRegistry) *Handlers {
	return &Handlers{users: users, license: license}
}

// ListUsers returns every account.
// GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// DeleteUser removes an account by id. The user's collections and blobs are
// not cascaded; see the orchestrator for per-collection deletion.
// DELETE /api/v1/users/:id
func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "user deleted"})
}

// PromoteRequest is the body for POST /api/v1/admin/promote-user.
type PromoteRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Tier   string `json:"tier" binding:"required"`
}

// PromoteUser changes the target account's tier. Promoting to the tier the
// account already holds is a 400.
// POST /api/v1/admin/promote-user
func (h *Handlers) PromoteUser(c *gin.Context) {
	var req PromoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and tier are required"})
		return
	}

	user, err := h.users.Promote(c.Request.Context(), req.UserID, req.Tier)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ListLicenseKeys returns all keys with their redemption audit fields.
// GET /api/v1/admin/license
func (h *Handlers) ListLicenseKeys(c *gin.Context) {
	keys, err := h.license.List(c.Request.Context())
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// GenerateRequest is the body for POST /api/v1/admin/license.
type GenerateRequest struct {
	Count int `json:"count" binding:"required"`
}

// GenerateLicenseKeys mints a batch of unredeemed keys.
// POST /api/v1/admin/license
func (h *Handlers) GenerateLicenseKeys(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count is required"})
		return
	}

	keys, err := h.license.Generate(c.Request.Context(), req.Count)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"keys": keys})
}

// DeleteLicenseKey removes a key by id.
// DELETE /api/v1/admin/license/:id
func (h *Handlers) DeleteLicenseKey(c *gin.Context) {
	if err := h.license.Delete(c.Request.Context(), c.Param("id")); err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "license key deleted"})
}
