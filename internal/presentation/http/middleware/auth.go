package middleware

import (
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/smartbill/internal/domain/entity"
	"github.com/sangkips/smartbill/internal/domain/enum"
	"github.com/sangkips/smartbill/internal/presentation/http/dto/response"
	"github.com/sangkips/smartbill/pkg/apperror"
)

// Context keys set by AuthMiddleware
const (
	SessionKey   = "session"
	SessionIDKey = "session_id"
	RoleKey      = "role"
	StaffIDKey   = "staff_id"
)

// Authenticator resolves bearer tokens to sessions
type Authenticator interface {
	Authenticate(token string) (*entity.Session, error)
}

// AuthMiddleware validates the bearer token and stores the session in the context
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		token := ""
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				response.Unauthorized(c, "Invalid authorization header format")
				c.Abort()
				return
			}
			token = parts[1]
		} else {
			// EventSource clients cannot set headers
			token = c.Query("access_token")
		}
		if token == "" {
			response.Unauthorized(c, "Authorization header is required")
			c.Abort()
			return
		}

		session, err := auth.Authenticate(token)
		if err != nil {
			response.Error(c, apperror.ErrInvalidToken)
			c.Abort()
			return
		}

		c.Set(SessionKey, session)
		c.Set(SessionIDKey, session.ID)
		c.Set(RoleKey, session.Role)
		c.Set(StaffIDKey, session.StaffID)

		c.Next()
	}
}

// RequireRole rejects sessions whose role is not one of roles
func RequireRole(roles ...enum.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := enum.Role(c.GetString(RoleKey))
		if !slices.Contains(roles, role) {
			response.Forbidden(c, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
