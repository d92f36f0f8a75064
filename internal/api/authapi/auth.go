// Package authapi implements the public registration and login endpoints.
package authapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/samsonhsy/dot-backend/internal/api/httperr"
	"github.com/samsonhsy/dot-backend/internal/auth"
	"github.com/samsonhsy/dot-backend/internal/services"
)

// Handlers serves /api/v1/auth endpoints.
type Handlers struct {
	users  *services.UserService
	tokens *auth.Tokens
}

// NewHandlers creates the auth handlers.
func NewHandlers(users *services.UserService, tokens *auth.Tokens) *Handlers {
	return &Handlers{users: users, tokens: tokens}
}

// RegisterRequest is the body for POST /api/v1/auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Register creates a new free-tier account.
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username, email and password are required"})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// LoginRequest is the body for POST /api/v1/auth/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and issues a bearer token.
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		httperr.Write(c, err)
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		httperr.Write(c, services.ErrPersistence(err, "failed to issue token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"user":         user,
	})
}

// Me returns the authenticated principal.
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
