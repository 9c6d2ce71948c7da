package logger

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey is the gin context key holding the request-scoped logger
const ContextKey = "logger"

// Middleware returns a Gin middleware function that logs requests
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("requestID", requestID)

		reqLogger := logger.WithRequestID(requestID)
		c.Set(ContextKey, reqLogger)
		c.Request = c.Request.WithContext(IntoContext(c.Request.Context(), reqLogger))

		start := time.Now()
		c.Next()

		// auth runs after this middleware, so the user is only known now
		final := reqLogger
		if userID, ok := c.Get("userId"); ok && userID != nil {
			final = final.WithUserID(fmt.Sprintf("%v", userID))
		}

		final.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// FromGin returns the request-scoped logger, falling back to the global one
func FromGin(c *gin.Context) *Logger {
	if l, ok := c.Get(ContextKey); ok {
		if lg, ok := l.(*Logger); ok {
			return lg
		}
	}
	return GetGlobal()
}
