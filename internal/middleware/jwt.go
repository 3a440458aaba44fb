package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vowcast/backend/internal/auth"
	"github.com/vowcast/backend/pkg/response"
)

const (
	// ContextHostID is the key for the authenticated host ID in gin context.
	ContextHostID = "host_id"
	// ContextHostRole is the key for the host role in gin context.
	ContextHostRole = "host_role"
	// ContextHostEmail is the key for the host email in gin context.
	ContextHostEmail = "host_email"
)

// JWT returns a middleware that validates JWT and sets host claims in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextHostID, claims.HostID)
		c.Set(ContextHostRole, claims.Role)
		c.Set(ContextHostEmail, claims.Email)
		c.Next()
	}
}
