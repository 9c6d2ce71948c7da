package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"fraud-advisor/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
	// StatusDegraded indicates a component is working but with reduced functionality
	StatusDegraded Status = "degraded"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Description string    `json:"description,omitempty"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func(ctx context.Context) (Status, string, error)

type registered struct {
	check    Check
	critical bool
}

// Checker manages health checks for the system
type Checker struct {
	checks      map[string]registered
	components  map[string]*Component
	checkPeriod time.Duration
	timeout     time.Duration
	mutex       sync.RWMutex
	log         *logger.Logger
	listeners   []func(healthy bool)
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger, checkPeriod time.Duration) *Checker {
	return &Checker{
		checks:      make(map[string]registered),
		components:  make(map[string]*Component),
		checkPeriod: checkPeriod,
		timeout:     3 * time.Second,
		log:         log,
	}
}

// RegisterCheck registers a new health check. Critical checks that report
// down make the whole system unhealthy.
func (c *Checker) RegisterCheck(name string, critical bool, check Check) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.checks[name] = registered{check: check, critical: critical}
	c.components[name] = &Component{
		Name:        name,
		Status:      StatusDown,
		Description: "Not checked yet",
	}
}

// OnChange registers a callback invoked after every run with the overall result
func (c *Checker) OnChange(fn func(healthy bool)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RunChecks executes all registered health checks
func (c *Checker) RunChecks(ctx context.Context) {
	c.mutex.RLock()
	checks := make(map[string]registered, len(c.checks))
	for k, v := range c.checks {
		checks[k] = v
	}
	c.mutex.RUnlock()

	results := make(map[string]Component, len(checks))
	for name, reg := range checks {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		status, description, err := reg.check(cctx)
		cancel()

		comp := Component{Name: name, Status: status, Description: description, LastChecked: time.Now()}
		if err != nil {
			comp.Error = err.Error()
			c.log.Warn("Health check failed",
				"component", name,
				"status", string(status),
				"error", err.Error(),
			)
		}
		results[name] = comp
	}

	c.mutex.Lock()
	for name, comp := range results {
		comp := comp
		c.components[name] = &comp
	}
	listeners := append([]func(bool){}, c.listeners...)
	c.mutex.Unlock()

	healthy := c.IsSystemHealthy()
	for _, fn := range listeners {
		fn(healthy)
	}
}

// Start runs the checks immediately and then periodically until ctx ends
func (c *Checker) Start(ctx context.Context) {
	go func() {
		c.RunChecks(ctx)

		ticker := time.NewTicker(c.checkPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunChecks(ctx)
			}
		}
	}()
}

// GetStatus returns the current health status
func (c *Checker) GetStatus() map[string]*Component {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := make(map[string]*Component, len(c.components))
	for k, v := range c.components {
		componentCopy := *v
		result[k] = &componentCopy
	}

	return result
}

// IsSystemHealthy returns true if all critical components are up
func (c *Checker) IsSystemHealthy() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	for name, component := range c.components {
		if component.Status == StatusDown && c.checks[name].critical {
			return false
		}
	}

	return true
}

// Handler serves the aggregated status; 503 when a critical component is down
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		c.RunChecks(ctx.Request.Context())

		status, code := "ok", http.StatusOK
		if !c.IsSystemHealthy() {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}

		ctx.JSON(code, gin.H{
			"status":     status,
			"timestamp":  time.Now().UTC(),
			"components": c.GetStatus(),
		})
	}
}

// RegisterDatabaseCheck registers a critical database ping check
func (c *Checker) RegisterDatabaseCheck(ping func(ctx context.Context) error) {
	c.RegisterCheck("database", true, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDown, "Database connection failed", err
		}
		return StatusUp, "Database connection is established", nil
	})
}

// RegisterCacheCheck registers a non-critical cache ping check
func (c *Checker) RegisterCacheCheck(name string, ping func(ctx context.Context) error) {
	c.RegisterCheck(name, false, func(ctx context.Context) (Status, string, error) {
		if err := ping(ctx); err != nil {
			return StatusDegraded, fmt.Sprintf("%s unreachable, using fallback", name), err
		}
		return StatusUp, fmt.Sprintf("%s is responding", name), nil
	})
}

// RegisterAvailabilityCheck reports degraded when an optional dependency is unavailable
func (c *Checker) RegisterAvailabilityCheck(name string, available func() bool, upMsg, downMsg string) {
	c.RegisterCheck(name, false, func(context.Context) (Status, string, error) {
		if available() {
			return StatusUp, upMsg, nil
		}
		return StatusDegraded, downMsg, nil
	})
}
