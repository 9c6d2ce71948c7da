package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fraud-advisor/backend/pkg/errors"
	"fraud-advisor/backend/pkg/jwt"
	"fraud-advisor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(logger.Middleware(logger.NewNop()), errors.ErrorHandler())
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) {
		uid, _ := c.Get(UserIDKey)
		c.JSON(http.StatusOK, gin.H{"user": uid})
	})
	return r
}

func TestRateLimiterReturns429(t *testing.T) {
	rl := NewRateLimiter(logger.NewNop(), RateLimiterOptions{Limit: 1, Burst: 1, ExpiryDuration: time.Minute})
	defer rl.Stop()
	r := newEngine(rl.Middleware())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestOptionalAuth(t *testing.T) {
	svc := jwt.NewService("secret", time.Hour)
	r := newEngine(OptionalJWTAuth(svc, logger.NewNop()))

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":null}`, w.Body.String())
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := svc.GenerateToken(7, "u@example.com", jwt.RoleUser)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"user":7}`, w.Body.String())
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})
}

func TestRequireRole(t *testing.T) {
	svc := jwt.NewService("secret", time.Hour)
	r := newEngine(JWTAuthMiddleware(svc, logger.NewNop()), RequireRole(jwt.RoleAdmin))

	userToken, _ := svc.GenerateToken(1, "u@example.com", jwt.RoleUser)
	adminToken, _ := svc.GenerateToken(2, "a@example.com", jwt.RoleAdmin)

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"user", userToken, http.StatusForbidden},
		{"admin", adminToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}
