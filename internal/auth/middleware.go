package auth

import (
	"net/http"
	"strings"

	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	subjectKey     = "subject"
	roleKey        = "role"
	permissionsKey = "permissions"
)

// Authenticator checks bearer tokens on protected routes
type Authenticator struct {
	jwt     *JWTHandler
	enabled bool
	logger  *zap.Logger
}

// NewAuthenticator creates an authenticator. When disabled every request
// is treated as an admin.
func NewAuthenticator(jwt *JWTHandler, enabled bool, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		jwt:     jwt,
		enabled: enabled,
		logger:  logger,
	}
}

// Middleware validates tokens and enforces authentication
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.enabled {
			c.Set(roleKey, RoleAdmin)
			c.Set(permissionsKey, RoleAdmin.Permissions())
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			// Browsers cannot set headers on websocket upgrades
			if token := c.Query("access_token"); token != "" {
				authHeader = "Bearer " + token
			}
		}
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "missing authorization header", nil))
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid authorization header format", nil))
			return
		}

		claims, err := a.jwt.ValidateAccessToken(parts[1])
		if err != nil {
			a.logger.Debug("Rejected access token",
				zap.String("remote_addr", c.ClientIP()),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				types.NewErrorResponse("UNAUTHORIZED", "invalid or expired token", nil))
			return
		}

		c.Set(subjectKey, claims.Subject)
		c.Set(roleKey, claims.Role)
		c.Set(permissionsKey, claims.Role.Permissions())
		c.Next()
	}
}

// RequirePermission checks if the caller has the required permission
func RequirePermission(required Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		perms, exists := c.Get(permissionsKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden,
				types.NewErrorResponse("FORBIDDEN", "no permissions found", nil))
			return
		}

		permissions, _ := perms.([]Permission)
		for _, p := range permissions {
			if p == required {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden,
			types.NewErrorResponse("FORBIDDEN", "insufficient permissions",
				gin.H{"required": string(required)}))
	}
}

// Subject returns the token subject of an authenticated request
func Subject(c *gin.Context) string {
	return c.GetString(subjectKey)
}
