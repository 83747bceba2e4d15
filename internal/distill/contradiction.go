package distill

import (
	"context"

	"github.com/scrypster/mneme/pkg/types"
)

// Contradiction is the result of a contradiction check.
type Contradiction struct {
	IsContradictory bool   `json:"is_contradictory"`
	Reasoning       string `json:"reasoning"`
	ConflictingID   string `json:"conflicting_id,omitempty"`
}

// ContradictionChecker compares a candidate with existing memories.
type ContradictionChecker interface {
	Check(ctx context.Context, candidate *types.Memory, existing []*types.Memory) (Contradiction, error)
}

// LocalChecker is the offline checker. It never reports a contradiction.
type LocalChecker struct{}

// Check always returns a non-contradictory result.
func (LocalChecker) Check(ctx context.Context, candidate *types.Memory, existing []*types.Memory) (Contradiction, error) {
	return Contradiction{Reasoning: "local check: no semantic backend configured"}, nil
}
