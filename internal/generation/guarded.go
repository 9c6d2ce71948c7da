package generation

import (
	"context"
	"errors"
	"time"

	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/pkg/resilience"
)

// Observer receives the latency of every attempted call
type Observer func(ctx context.Context, backend string, d time.Duration, ok bool)

// Guarded adds a per-call timeout and a circuit breaker to a backend
type Guarded struct {
	inner    Backend
	breaker  *resilience.CircuitBreaker
	timeout  time.Duration
	observer Observer
	log      *logger.Logger
}

// GuardOptions configures Guarded
type GuardOptions struct {
	Timeout          time.Duration
	FailureThreshold uint
	Cooldown         time.Duration
	Observer         Observer
}

// NewGuarded wraps inner
func NewGuarded(inner Backend, opts GuardOptions, log *logger.Logger) *Guarded {
	if log == nil {
		log = logger.GetGlobal()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	cfg := resilience.DefaultConfig("generation-" + inner.Name())
	if opts.FailureThreshold > 0 {
		cfg.FailureThreshold = opts.FailureThreshold
	}
	if opts.Cooldown > 0 {
		cfg.Cooldown = opts.Cooldown
	}
	return &Guarded{
		inner:    inner,
		breaker:  resilience.NewCircuitBreaker(cfg, log),
		timeout:  opts.Timeout,
		observer: opts.Observer,
		log:      log,
	}
}

func (g *Guarded) Name() string { return g.inner.Name() }

// IsAvailable is false while the breaker is open
func (g *Guarded) IsAvailable() bool {
	return g.inner.IsAvailable() && g.breaker.Ready()
}

// Generate runs the call under the timeout and breaker.
// ErrUnavailable is returned for a short-circuited call.
func (g *Guarded) Generate(ctx context.Context, messages []Message) (*Response, error) {
	if !g.inner.IsAvailable() {
		return nil, ErrUnavailable
	}

	var resp *Response
	start := time.Now()
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		r, err := g.inner.Generate(cctx, messages)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	if errors.Is(err, resilience.ErrOpen) {
		return nil, ErrUnavailable
	}
	if g.observer != nil {
		g.observer(ctx, g.inner.Name(), time.Since(start), err == nil)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Breaker exposes the breaker for health reporting
func (g *Guarded) Breaker() *resilience.CircuitBreaker {
	return g.breaker
}
