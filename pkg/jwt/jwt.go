package jwt

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrInvalidRole  = errors.New("invalid role")
)

// Role is the coarse authorization level carried in a token
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole validates a role string. Empty means RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", ErrInvalidRole
}

// JWTClaims represents the claims in a JWT token
type JWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry the given role. Admins hold every role.
func (c *JWTClaims) HasRole(role Role) bool {
	return c.Role == role || c.Role == RoleAdmin
}

// IsAdmin reports whether the token belongs to an administrator
func (c *JWTClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
