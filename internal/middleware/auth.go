package middleware

import (
	"errors"
	"net/http"
	"slices"

	"github.com/emmanuel-dcoder/teevil-api/config"
	"github.com/emmanuel-dcoder/teevil-api/internal/auth"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthRequired.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// AuthRequired admits requests carrying a valid access token for a client,
// freelancer or admin.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			unauthorized(c, "missing authorization header")
			return
		}
		token, ok := auth.BearerToken(header)
		if !ok {
			unauthorized(c, "invalid authorization format")
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if errors.Is(err, auth.ErrTokenExpired) {
			unauthorized(c, "token expired")
			return
		}
		if err != nil {
			unauthorized(c, "invalid token")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="teevil"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
}

// RequireRole runs after AuthRequired. A caller with no role is treated as
// unauthenticated.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			unauthorized(c, "unauthorized")
			return
		}
		if !slices.Contains(allowed, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
