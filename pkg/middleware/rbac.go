package middleware

import (
	"strings"

	"fraud-advisor/backend/pkg/errors"
	"fraud-advisor/backend/pkg/jwt"
	"fraud-advisor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Context keys set by the auth middlewares
const (
	ClaimsKey = "claims"
	UserIDKey = "userId"
)

// RequireRole returns a middleware that requires the user to have a specific role
func RequireRole(role jwt.Role) gin.HandlerFunc {
	return RequireAnyRole(role)
}

// RequireAnyRole returns middleware that requires the user to have at least one of the specified roles
func RequireAnyRole(roles ...jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authentication required"))
			c.Abort()
			return
		}

		for _, role := range roles {
			if claims.HasRole(role) {
				c.Next()
				return
			}
		}

		c.Error(errors.NewForbiddenError("INSUFFICIENT_ROLE", "Your role does not allow this operation"))
		c.Abort()
	}
}

// JWTAuthMiddleware checks that the request has a valid JWT and adds claims to the context
func JWTAuthMiddleware(jwtService *jwt.Service, logger *logger.Logger) gin.HandlerFunc {
	return authenticate(jwtService, logger, true)
}

// OptionalJWTAuth attaches the caller when a bearer token is present.
// Requests without a token pass through anonymously; a bad token is still rejected.
func OptionalJWTAuth(jwtService *jwt.Service, logger *logger.Logger) gin.HandlerFunc {
	return authenticate(jwtService, logger, false)
}

func authenticate(jwtService *jwt.Service, log *logger.Logger, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			if required {
				c.Error(errors.NewUnauthorizedError("AUTH_REQUIRED", "Authorization header is required"))
				c.Abort()
				return
			}
			c.Next()
			return
		}

		token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			log.Warn("Invalid JWT token", "error", err.Error())
			c.Error(errors.NewUnauthorizedError("INVALID_TOKEN", "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(UserIDKey, claims.UserID)

		c.Next()
	}
}

// Claims returns the verified token claims, if any
func Claims(c *gin.Context) (*jwt.JWTClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.JWTClaims)
	return claims, ok
}
