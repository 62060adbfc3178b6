package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/stackit/backend/internal/auth"
	"github.com/emilythestrangee/stackit/backend/internal/logging"
	"github.com/emilythestrangee/stackit/backend/internal/models"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

type TokenParser interface {
	Parse(raw string) (auth.Identity, error)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func setIdentity(c *gin.Context, id auth.Identity) {
	c.Set(ContextUserID, id.UserID)
	c.Set(ContextUsername, id.Username)
	c.Set(ContextRole, id.Role)
	c.Request = c.Request.WithContext(logging.ContextWithUserID(c.Request.Context(), id.UserID))
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := tokens.Parse(bearerToken(c))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		setIdentity(c, id)
		c.Next()
	}
}

// OptionalAuth resolves the identity when a valid token is present and lets
// anonymous requests through untouched.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if id, err := tokens.Parse(raw); err == nil {
				setIdentity(c, id)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id, or false for anonymous requests.
func UserID(c *gin.Context) (int64, bool) {
	raw, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := raw.(int64)
	return id, ok && id != 0
}

// Role returns the authenticated user's role, defaulting to models.RoleUser.
func Role(c *gin.Context) string {
	if role, ok := c.Get(ContextRole); ok {
		if r, ok := role.(string); ok && r != "" {
			return r
		}
	}
	return models.RoleUser
}
