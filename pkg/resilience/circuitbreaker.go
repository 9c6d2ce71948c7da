package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"fraud-advisor/backend/pkg/logger"
)

// ErrOpen is returned while the breaker short-circuits calls
var ErrOpen = errors.New("circuit open")

// State represents the current state of a circuit breaker
type State string

const (
	// StateClosed means requests pass through
	StateClosed State = "closed"
	// StateOpen means requests are short-circuited until the cool-down elapses
	StateOpen State = "open"
	// StateHalfOpen lets a limited number of probe requests through
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	Cooldown         time.Duration
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
	}
}

// Stats is a point-in-time snapshot of breaker counters
type Stats struct {
	Name           string    `json:"name"`
	State          State     `json:"state"`
	TotalRequests  uint64    `json:"total_requests"`
	TotalFailures  uint64    `json:"total_failures"`
	TotalSuccesses uint64    `json:"total_successes"`
	OpenCount      uint64    `json:"open_count"`
	LastFailure    time.Time `json:"last_failure,omitempty"`
}

// CircuitBreaker implements the Circuit Breaker pattern
type CircuitBreaker struct {
	cfg   Config
	log   *logger.Logger
	now   func() time.Time
	mutex sync.Mutex

	state           State
	failureCount    uint
	successCount    uint
	inFlightProbes  uint
	nextAttemptTime time.Time
	stats           Stats
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		state: StateClosed,
		stats: Stats{Name: cfg.Name},
	}
}

// Execute runs fn through the circuit breaker.
// A cancelled context is not counted as a failure of the protected dependency.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.acquire() {
		cb.log.Debug("Circuit breaker preventing request", "name", cb.cfg.Name)
		return ErrOpen
	}

	start := cb.now()
	err := fn(ctx)

	switch {
	case err == nil:
		cb.recordSuccess()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		cb.releaseProbe()
	default:
		cb.recordFailure()
		cb.log.Warn("Circuit breaker recorded failure",
			"name", cb.cfg.Name,
			"error", err.Error(),
			"duration", cb.now().Sub(start).String(),
		)
	}
	return err
}

// Ready reports whether a call would currently be let through
func (cb *CircuitBreaker) Ready() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		return !cb.now().Before(cb.nextAttemptTime)
	case StateHalfOpen:
		return cb.inFlightProbes < cb.cfg.SuccessThreshold
	}
	return true
}

func (cb *CircuitBreaker) acquire() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttemptTime) {
			return false
		}
		cb.toHalfOpen()
		fallthrough
	case StateHalfOpen:
		if cb.inFlightProbes >= cb.cfg.SuccessThreshold {
			return false
		}
		cb.inFlightProbes++
	}
	cb.stats.TotalRequests++
	return true
}

func (cb *CircuitBreaker) releaseProbe() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	if cb.state == StateHalfOpen && cb.inFlightProbes > 0 {
		cb.inFlightProbes--
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalSuccesses++

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.cfg.SuccessThreshold {
			cb.toClosed()
		}
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.stats.TotalFailures++
	cb.stats.LastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.toOpen()
		}
	case StateHalfOpen:
		cb.toOpen()
	}
}

func (cb *CircuitBreaker) toOpen() {
	cb.state = StateOpen
	cb.inFlightProbes = 0
	cb.stats.OpenCount++
	cb.nextAttemptTime = cb.now().Add(cb.cfg.Cooldown)

	cb.log.Info("Circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.failureCount,
		"nextAttempt", cb.nextAttemptTime.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) toHalfOpen() {
	cb.state = StateHalfOpen
	cb.successCount = 0
	cb.inFlightProbes = 0

	cb.log.Info("Circuit breaker half-open", "name", cb.cfg.Name)
}

func (cb *CircuitBreaker) toClosed() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.inFlightProbes = 0

	cb.log.Info("Circuit breaker closed", "name", cb.cfg.Name)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// Stats returns the current counters
func (cb *CircuitBreaker) Stats() Stats {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	s := cb.stats
	s.State = cb.state
	return s
}
