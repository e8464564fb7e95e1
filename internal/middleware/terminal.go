package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/conreg/backend/internal/auth"
	"github.com/conreg/backend/internal/models"
	"github.com/conreg/backend/pkg/response"
)

// TerminalCookie holds the signed terminal authorization.
const TerminalCookie = "terminal-auth"

// ContextTerminalAuthorizedBy is the gin key for the lead who authorized the terminal.
const ContextTerminalAuthorizedBy = "terminal_authorized_by"

// DeskRoles may work the check-in desk.
var DeskRoles = []models.Role{models.RoleSuperuser, models.RoleRegLead, models.RoleRegRAF, models.RoleRegistration}

// Desk is the chain in front of every check-in desk endpoint, including the
// terminal websocket: authenticate, require a desk role, require an authorized terminal.
func Desk(authenticate gin.HandlerFunc, jwtService *auth.JWTService, ttl time.Duration, logger *zap.Logger) []gin.HandlerFunc {
	return []gin.HandlerFunc{authenticate, RequireRole(DeskRoles...), RequireTerminal(jwtService, ttl, logger)}
}

// RequireTerminal admits check-in staff on authorized terminals. Leads and
// superusers authorize the browser they are using by receiving a fresh
// terminal cookie; rank-and-file staff must already carry a valid one.
// Must run after JWT.
func RequireTerminal(jwtService *auth.JWTService, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}

		if token, err := c.Cookie(TerminalCookie); err == nil && token != "" {
			if claims, err := jwtService.ValidateTerminal(token); err == nil {
				c.Set(ContextTerminalAuthorizedBy, claims.AuthorizedBy)
				c.Next()
				return
			}
		}

		switch actor.Role {
		case models.RoleSuperuser, models.RoleRegLead:
			token, err := jwtService.GenerateTerminal(actor.Username, ttl)
			if err != nil {
				response.Internal(c, "failed to authorize terminal")
				c.Abort()
				return
			}
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(TerminalCookie, token, int(ttl.Seconds()), "/", "", true, true)
			logger.Info("terminal authorized", zap.String("authorized_by", actor.Username), zap.String("client_ip", c.ClientIP()))
			c.Set(ContextTerminalAuthorizedBy, actor.Username)
			c.Next()
		case models.RoleRegRAF:
			logger.Warn("unauthorized terminal", zap.String("user", actor.Username), zap.String("client_ip", c.ClientIP()))
			response.Forbidden(c, "this terminal has not been authorized by a registration lead")
			c.Abort()
		default:
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
		}
	}
}
