package middleware

import (
	"strings"

	"github.com/ZeremItay/autohub/internal/services"
	"github.com/ZeremItay/autohub/internal/utils"
	"github.com/ZeremItay/autohub/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
)

// SessionValidator confirms a token's profile is still active and returns its current role.
type SessionValidator interface {
	ValidateSession(userID uint) (role string, err error)
}

// AuthRequired is a middleware that checks for a valid JWT token.
// With a validator the role claim is refreshed from the store on every request.
func AuthRequired(validators ...SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "authorization header required")
			c.Abort()
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			response.Unauthorized(c, "invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		role := claims.Role
		for _, v := range validators {
			current, err := v.ValidateSession(claims.UserID)
			if err != nil {
				response.Unauthorized(c, "session is no longer valid")
				c.Abort()
				return
			}
			role = current
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, role)

		c.Next()
	}
}

// OptionalAuth sets the caller identity when a valid token is present and
// lets anonymous requests through otherwise. A session rejected by a
// validator is treated as anonymous.
func OptionalAuth(validators ...SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c.GetHeader("Authorization")); ok {
			if claims, err := utils.ParseToken(tokenString); err == nil {
				role, valid := claims.Role, true
				for _, v := range validators {
					current, err := v.ValidateSession(claims.UserID)
					if err != nil {
						valid = false
						break
					}
					role = current
				}
				if valid {
					c.Set(ContextUserID, claims.UserID)
					c.Set(ContextEmail, claims.Email)
					c.Set(ContextRole, role)
				}
			}
		}
		c.Next()
	}
}

// AdminRequired is a middleware that checks for admin role
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists || role != "admin" {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// GetUserID gets the current profile ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(uint)
	}
	return 0
}

// GetEmail gets the current email from context
func GetEmail(c *gin.Context) string {
	if email, exists := c.Get(ContextEmail); exists {
		return email.(string)
	}
	return ""
}

// GetRole gets the current role from context
func GetRole(c *gin.Context) string {
	if role, exists := c.Get(ContextRole); exists {
		return role.(string)
	}
	return ""
}

// CurrentActor returns the caller as seen by the services' ownership checks.
func CurrentActor(c *gin.Context) services.Actor {
	return services.Actor{ID: GetUserID(c), Role: GetRole(c)}
}
