package reasoning

import (
	"context"
	"log"

	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/pkg/types"
)

// Guarded tries the primary reasoner and falls back when it fails,
// including when its circuit breaker is open.
type Guarded struct {
	primary  Reasoner
	fallback Reasoner
}

// NewGuarded creates a Guarded reasoner.
func NewGuarded(primary, fallback Reasoner) *Guarded {
	return &Guarded{primary: primary, fallback: fallback}
}

// Summarize implements Reasoner.
func (g *Guarded) Summarize(ctx context.Context, input string, related []string) (types.ReasoningResult, error) {
	result, err := g.primary.Summarize(ctx, input, related)
	if err == nil {
		return result, nil
	}
	log.Printf("WARNING: remote reasoning failed, using local fallback: %v", err)
	return g.fallback.Summarize(ctx, input, related)
}

// RemoteChecker is a ContradictionChecker backed by the remote backend.
// Backend failures degrade to "not contradictory".
type RemoteChecker struct {
	remote   *RemoteReasoner
	fallback distill.ContradictionChecker
}

// NewRemoteChecker creates a RemoteChecker.
func NewRemoteChecker(remote *RemoteReasoner) *RemoteChecker {
	return &RemoteChecker{remote: remote, fallback: distill.LocalChecker{}}
}

// Check implements distill.ContradictionChecker.
func (c *RemoteChecker) Check(ctx context.Context, candidate *types.Memory, existing []*types.Memory) (distill.Contradiction, error) {
	result, err := c.remote.CheckContradiction(ctx, candidate, existing)
	if err != nil {
		log.Printf("WARNING: remote contradiction check failed, using local fallback: %v", err)
		return c.fallback.Check(ctx, candidate, existing)
	}
	if result.IsContradictory && result.ConflictingID == "" {
		log.Printf("WARNING: remote contradiction without a conflicting id ignored for %s", candidate.ID)
		return distill.Contradiction{Reasoning: result.Reasoning}, nil
	}
	return result, nil
}
