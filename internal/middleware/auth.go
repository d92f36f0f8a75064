// auth.go validates bearer tokens and attaches the authenticated principal to
// the gin context. Tier checks (admin-only surfaces) live here too; per-object
// ownership checks belong to the services layer, not middleware.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/samsonhsy/dot-backend/internal/auth"
	"github.com/samsonhsy/dot-backend/internal/db/models"
	"github.com/samsonhsy/dot-backend/internal/services"
)

const (
	// UserContextKey is the gin.Context key holding the authenticated *models.User.
	UserContextKey = "user"

	// UserIDContextKey is the gin.Context key holding the authenticated user's ID.
	UserIDContextKey = "user_id"
)

// CurrentUser returns the authenticated user from the gin context, or nil for
// an anonymous request.
func CurrentUser(c *gin.Context) *models.User {
	val, exists := c.Get(UserContextKey)
	if !exists {
		return nil
	}
	user, ok := val.(*models.User)
	if !ok {
		return nil
	}
	return user
}

// Auth validates the Authorization bearer token and loads the corresponding
// user. Requests without a valid token are rejected with 401. A token whose
// user no longer exists is also a 401: deleting an account revokes its
// outstanding tokens in practice.
func Auth(tokens *auth.Tokens, users services.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set(UserContextKey, user)
		c.Set(UserIDContextKey, user.ID)

		c.Next()
	}
}

// OptionalAuth behaves like Auth but lets unauthenticated requests through
// without a principal. Used on read endpoints where public collections are
// visible to anyone while private ones still need an owner.
func OptionalAuth(tokens *auth.Tokens, users services.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			c.Next()
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err == nil && user != nil {
			c.Set(UserContextKey, user)
			c.Set(UserIDContextKey, user.ID)
		}

		c.Next()
	}
}

// RequireAdmin rejects requests whose principal does not hold the admin tier.
// Must be registered after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Administrator access required",
			})
			return
		}

		c.Next()
	}
}

// bearerToken extracts the token from the Authorization header. Returns false
// when the header is absent, uses a different scheme, or carries an empty token.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
