package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/conreg/backend/internal/auth"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates JWT and sets user claims in context.
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
		setClaims(c, jwtService, parts[1])
	}
}

// JWTQuery is JWT for websocket handshakes, which cannot carry headers from a
// browser: the token comes from the token query parameter.
func JWTQuery(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "token required")
			c.Abort()
			return
		}
		setClaims(c, jwtService, token)
	}
}

func setClaims(c *gin.Context, jwtService *auth.JWTService, token string) {
	claims, err := jwtService.Validate(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		c.Abort()
		return
	}
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, claims.Role)
	c.Set(ContextUserEmail, claims.Email)
	c.Next()
}

// ActorFromContext builds the acting staff identity set by JWT.
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	idVal, ok := c.Get(ContextUserID)
	if !ok {
		return models.Actor{}, false
	}
	id, ok := idVal.(uuid.UUID)
	if !ok {
		return models.Actor{}, false
	}
	return models.Actor{
		UserID:   id,
		Username: c.GetString(ContextUserEmail),
		Role:     models.Role(c.GetString(ContextUserRole)),
	}, true
}
