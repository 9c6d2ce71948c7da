package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fraud-advisor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(c *Checker) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", c.Handler())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	return w
}

func TestHealthyWhenDegradedOnly(t *testing.T) {
	c := NewChecker(logger.NewNop(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return nil })
	c.RegisterCacheCheck("redis", func(context.Context) error { return errors.New("refused") })
	c.RegisterAvailabilityCheck("generation", func() bool { return false }, "up", "templates only")

	w := serve(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status     string                `json:"status"`
		Components map[string]*Component `json:"components"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, StatusUp, body.Components["database"].Status)
	assert.Equal(t, StatusDegraded, body.Components["redis"].Status)
	assert.Equal(t, StatusDegraded, body.Components["generation"].Status)
}

func TestUnhealthyWhenDatabaseDown(t *testing.T) {
	c := NewChecker(logger.NewNop(), time.Minute)
	c.RegisterDatabaseCheck(func(context.Context) error { return errors.New("no route") })

	var last *bool
	c.OnChange(func(h bool) { last = &h })

	w := serve(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, last)
	assert.False(t, *last)
}
