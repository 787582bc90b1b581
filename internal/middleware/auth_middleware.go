package middleware

import (
	"context"
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/bookstore-backend/internal/app/model"
	"github.com/ikkim/bookstore-backend/internal/errors"
	"github.com/ikkim/bookstore-backend/pkg/util"
)

// Context keys for user information
const (
	UserIDKey      = "user_id"
	UsernameKey    = "username"
	UserRoleKey    = "user_role"
	AccessTokenKey = "access_token"
)

// TokenChecker reports revoked tokens; *redis.Store satisfies it.
type TokenChecker interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

type AuthMiddleware struct {
	jwtSecret string
	revoked   TokenChecker
}

// NewAuthMiddleware builds the JWT guard. revoked may be nil.
func NewAuthMiddleware(jwtSecret string, revoked TokenChecker) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
		revoked:   revoked,
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// Browsers cannot set headers on websocket upgrades.
		return c.Query("token"), true
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// Authenticate validates an access token (required)
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		token, ok := bearerToken(c)
		if !ok {
			log.Warn("Invalid authorization header format", map[string]interface{}{
				"path": c.Request.URL.Path,
			})
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Invalid authorization header format")
			return
		}
		if token == "" {
			errors.Unauthorized(c, "Authentication required")
			return
		}

		claims, err := util.ValidateToken(token, m.jwtSecret)
		if err != nil {
			log.Warn("Token validation failed", map[string]interface{}{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			if stdErrors.Is(err, util.ErrExpiredToken) {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenExpired, "Token has expired")
			} else {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Invalid token")
			}
			return
		}
		if claims.TokenType != util.TokenTypeAccess {
			errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Invalid token")
			return
		}

		if m.revoked != nil {
			revoked, err := m.revoked.IsTokenBlacklisted(c.Request.Context(), token)
			if err != nil {
				// A cache outage should not lock every user out.
				log.Warn("Token blacklist check failed", map[string]interface{}{
					"error": err.Error(),
				})
			} else if revoked {
				errors.RespondWithError(c, http.StatusUnauthorized, errors.AuthTokenInvalid, "Token has been revoked")
				return
			}
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)
		c.Set(UserRoleKey, model.UserRole(claims.Role))
		c.Set(AccessTokenKey, token)

		log.Debug("User authenticated successfully", map[string]interface{}{
			"user_id": claims.UserID,
			"role":    claims.Role,
		})

		c.Next()
	}
}

// RequireRole checks if user has required role
func (m *AuthMiddleware) RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := GetLoggerFromContext(c)

		role, ok := GetUserRole(c)
		if !ok {
			errors.RespondWithError(c, http.StatusForbidden, errors.AuthzForbidden, "Access denied")
			return
		}

		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}

		userID, _ := GetUserID(c)
		log.Warn("Insufficient permissions", map[string]interface{}{
			"user_id":        userID,
			"user_role":      role,
			"required_roles": roles,
			"path":           c.Request.URL.Path,
		})
		errors.RespondWithError(c, http.StatusForbidden, errors.AuthzAdminOnly, "Admin access required")
	}
}

// GetUserID extracts user ID from context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

func GetUsername(c *gin.Context) (string, bool) {
	name, exists := c.Get(UsernameKey)
	if !exists {
		return "", false
	}
	s, ok := name.(string)
	return s, ok
}

// GetUserRole extracts user role from context
func GetUserRole(c *gin.Context) (model.UserRole, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(model.UserRole)
	return r, ok
}

// GetAccessToken returns the raw token the request authenticated with
func GetAccessToken(c *gin.Context) string {
	return c.GetString(AccessTokenKey)
}
