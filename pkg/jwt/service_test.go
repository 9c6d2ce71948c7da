package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewService("test-secret", time.Hour)

	token, err := svc.GenerateToken(42, "ana@example.com", RoleAdmin)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.True(t, claims.IsAdmin())
	assert.True(t, claims.HasRole(RoleUser))
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, err := NewService("one", time.Hour).GenerateToken(1, "a@b.c", RoleUser)
	require.NoError(t, err)

	_, err = NewService("two", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	svc := NewService("s", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.GenerateToken(1, "a@b.c", RoleUser)
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestGenerateRejectsUnknownRole(t *testing.T) {
	_, err := NewService("s", time.Hour).GenerateToken(1, "a@b.c", Role("root"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestUserDoesNotHoldAdmin(t *testing.T) {
	c := &JWTClaims{Role: RoleUser}
	assert.False(t, c.HasRole(RoleAdmin))
	assert.False(t, c.IsAdmin())
}
