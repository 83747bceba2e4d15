package reasoning

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker rejects a call without
// attempting it.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig holds the configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip the circuit.
	// Default: 3
	MaxFailures uint32

	// Timeout is how long the circuit stays open before going half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of successes in half-open state
	// needed to close the circuit again.
	// Default: 2
	HalfOpenMaxSuccesses uint32
}

// BreakerStats counts calls made through the breaker.
type BreakerStats struct {
	Calls     uint64 `json:"calls"`
	Failures  uint64 `json:"failures"`
	Rejected  uint64 `json:"rejected"`
	LastState string `json:"state"`
}

// CircuitBreaker wraps gobreaker to keep a failing remote backend from
// stalling every worker tick.
//
// Closed: calls pass through. After MaxFailures consecutive failures the
// circuit opens and calls fail fast with ErrCircuitOpen. After Timeout the
// circuit goes half-open and lets trial calls through.
type CircuitBreaker struct {
	breaker  *gobreaker.CircuitBreaker
	calls    atomic.Uint64
	failures atomic.Uint64
	rejected atomic.Uint64
}

// NewCircuitBreaker creates a circuit breaker with the default configuration.
func NewCircuitBreaker() *CircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{})
}

// NewCircuitBreakerWithConfig creates a circuit breaker; zero fields take defaults.
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HalfOpenMaxSuccesses == 0 {
		config.HalfOpenMaxSuccesses = 2
	}

	settings := gobreaker.Settings{
		Name:        "reasoning",
		MaxRequests: config.HalfOpenMaxSuccesses,
		Interval:    0, // Don't clear counts periodically
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("WARNING: %s circuit breaker %s -> %s", name, from, to)
		},
	}

	return &CircuitBreaker{breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. It returns ErrCircuitOpen when the
// circuit rejects the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cb.calls.Add(1)
	result, err := cb.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			cb.rejected.Add(1)
			return nil, ErrCircuitOpen
		}
		cb.failures.Add(1)
		return nil, err
	}
	return result, nil
}

// State returns "closed", "open" or "half-open".
func (cb *CircuitBreaker) State() string {
	switch cb.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats returns call counters and the current state.
func (cb *CircuitBreaker) Stats() BreakerStats {
	return BreakerStats{
		Calls:     cb.calls.Load(),
		Failures:  cb.failures.Load(),
		Rejected:  cb.rejected.Load(),
		LastState: cb.State(),
	}
}
