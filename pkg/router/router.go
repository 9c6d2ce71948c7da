package router

import (
	"net/http"
	"time"

	"fraud-advisor/backend/internal/api"
	"fraud-advisor/backend/pkg/di"
	"fraud-advisor/backend/pkg/errors"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	rateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		_ = engine.SetTrustedProxies(nil)
	}

	// Use the logger middleware first to capture all requests
	engine.Use(logger.Middleware(container.Logger))

	// Add custom error handler middleware
	engine.Use(errors.ErrorHandler())

	// Add custom recovery middleware with structured logging instead of default
	engine.Use(errors.RecoveryWithLogger())

	engine.Use(middleware.Tracing())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	engine.Use(maxBodySize(cfg.Security.MaxBodySize))

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit:          rate.Limit(cfg.Security.RateLimit),
		Burst:          cfg.Security.RateLimitBurst,
		ExpiryDuration: time.Hour,
		KeyFunc:        middleware.ClientKey,
	})

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		rateLimiter: rateLimiter,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	r.setupHealthRoutes()
	r.setupMetricsRoute()
	r.AddOpenAPIValidation()

	optionalAuth := middleware.OptionalJWTAuth(c.JWTService, r.Logger)
	requireAuth := middleware.JWTAuthMiddleware(c.JWTService, r.Logger)

	// API version 1 routes
	v1 := r.Engine.Group("/api/v1")
	v1.Use(r.rateLimiter.Middleware())

	api.NewAuthHandler(c.UserService, r.Logger).RegisterRoutes(v1, requireAuth)
	api.NewChatController(c.ChatService).RegisterRoutes(v1, optionalAuth)
	api.NewFraudReportController(c.FraudReportService).RegisterRoutes(v1, optionalAuth)
	api.NewAdvisorController(c.AdvisorService).RegisterRoutes(v1, optionalAuth)
	api.NewReputationController(c.Reputation).RegisterRoutes(v1, optionalAuth)

	if c.Hub != nil {
		c.Hub.RegisterRoutes(v1, optionalAuth)
	}
}

// Stop releases the rate limiter's sweeper
func (r *Router) Stop() {
	r.rateLimiter.Stop()
}

// Enhance CORS middleware to explicitly allow WebSocket-specific headers
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin == "":
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowAll || set[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Idempotency-Key, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Trace-ID, Idempotent-Replayed")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// maxBodySize caps request bodies; oversized reads fail inside the handlers
func maxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
