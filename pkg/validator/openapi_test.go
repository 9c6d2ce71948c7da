package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fraud-advisor/backend/api"
	"fraud-advisor/backend/pkg/errors"
	"fraud-advisor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	v, err := NewOpenAPIValidatorFromData(api.OpenAPI)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(logger.Middleware(logger.NewNop()), errors.ErrorHandler(), v.Middleware())
	r.POST("/api/v1/sessions/:id/messages", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/sessions/:id/messages/:message_id/feedback", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/sessions/:id/ws", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestValidBodyPasses(t *testing.T) {
	r := newEngine(t)
	w := do(r, http.MethodPost, "/api/v1/sessions/chat_1/messages", `{"content":"hello"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMissingContentRejected(t *testing.T) {
	r := newEngine(t)
	w := do(r, http.MethodPost, "/api/v1/sessions/chat_1/messages", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestUnknownFeedbackRejected(t *testing.T) {
	r := newEngine(t)
	w := do(r, http.MethodPost, "/api/v1/sessions/chat_1/messages/3/feedback", `{"feedback":"meh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUndocumentedRoutePassesThrough(t *testing.T) {
	r := newEngine(t)
	w := do(r, http.MethodGet, "/api/v1/sessions/chat_1/ws", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
