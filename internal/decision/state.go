// Package decision implements the adaptive controller that decides whether
// an assessed update is stored, answered with clarifying questions, or
// ignored, and that drifts its own thresholds from recent outcomes.
package decision

import (
	"strings"

	"github.com/scrypster/mneme/pkg/types"
)

// maxNotes bounds the bias-adjustment notes kept in State.
const maxNotes = 10

// State is the controller's owned, injectable state. It is never shared
// between controllers.
type State struct {
	Bias    types.BiasState        `json:"bias"`
	History []types.DecisionRecord `json:"history"`
	Notes   []string               `json:"notes,omitempty"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := State{Bias: s.Bias}
	out.History = append([]types.DecisionRecord(nil), s.History...)
	out.Notes = append([]string(nil), s.Notes...)
	return out
}

func (s *State) appendNotes(notes ...string) {
	s.Notes = append(s.Notes, notes...)
	if len(s.Notes) > maxNotes {
		s.Notes = s.Notes[len(s.Notes)-maxNotes:]
	}
}

// similar reports whether one summary is a case-insensitive substring of
// the other. Empty summaries are never similar.
func similar(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
