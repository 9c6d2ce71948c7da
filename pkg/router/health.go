package router

import (
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
)

// setupHealthRoutes registers the aggregated health endpoint and a liveness probe
func (r *Router) setupHealthRoutes() {
	checker := r.Container.Health
	hub := r.Container.Hub

	healthHandler := checker.Handler()

	// Register both health endpoint paths for compatibility
	r.Engine.GET("/health", healthHandler)
	r.Engine.GET("/api/health", healthHandler)

	r.Engine.GET("/health/live", func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		body := gin.H{
			"status": "ok",
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
			"goroutines": runtime.NumGoroutine(),
		}
		if hub != nil {
			body["websocket"] = gin.H{"enabled": true}
		}
		c.JSON(http.StatusOK, body)
	})
}

// setupMetricsRoute serves Prometheus metrics when enabled
func (r *Router) setupMetricsRoute() {
	if r.Container.Metrics == nil {
		return
	}
	r.Engine.GET("/metrics", gin.WrapH(r.Container.Metrics.Handler()))
}
