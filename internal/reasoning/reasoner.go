// Package reasoning provides the capability that turns an incoming update
// into a structured ReasoningResult for the decision controller.
//
// The local heuristic is always available. A remote semantic backend may be
// configured; it is never required and every remote call is guarded by a
// circuit breaker that falls back to the local implementation.
package reasoning

import (
	"context"
	"fmt"

	"github.com/scrypster/mneme/internal/config"
	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/pkg/types"
)

// Reasoner assesses an incoming update against surrounding context.
type Reasoner interface {
	Summarize(ctx context.Context, input string, related []string) (types.ReasoningResult, error)
}

// New creates the Reasoner and ContradictionChecker selected by cfg.
func New(cfg config.ReasoningConfig) (Reasoner, distill.ContradictionChecker, error) {
	switch cfg.Provider {
	case "local", "":
		return NewLocalReasoner(), distill.LocalChecker{}, nil
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, nil, fmt.Errorf("remote reasoning requires a URL")
		}
		breaker := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
			MaxFailures:          uint32(cfg.BreakerMaxFailures),
			Timeout:              cfg.BreakerTimeout,
			HalfOpenMaxSuccesses: 2,
		})
		remote := NewRemoteReasoner(RemoteConfig{BaseURL: cfg.RemoteURL, Timeout: cfg.Timeout}, breaker)
		return NewGuarded(remote, NewLocalReasoner()), NewRemoteChecker(remote), nil
	default:
		return nil, nil, fmt.Errorf("unsupported reasoning provider: %q", cfg.Provider)
	}
}
