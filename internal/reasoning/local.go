package reasoning

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/pkg/types"
)

// maxSummaryRunes bounds SummaryOfChange.
const maxSummaryRunes = 200

var hedges = []string{
	"maybe", "perhaps", "might", "probably", "possibly",
	"i think", "not sure", "i guess", "kind of", "sort of",
}

var revisionCues = []string{
	"actually", "instead", "no longer", "not anymore", "correction", "changed",
}

// LocalReasoner is the offline heuristic Reasoner. Confidence follows
// sentence shape and hedging; ambiguity follows unresolved referents,
// questions, and hedges.
type LocalReasoner struct{}

// NewLocalReasoner creates a LocalReasoner.
func NewLocalReasoner() *LocalReasoner {
	return &LocalReasoner{}
}

// Summarize implements Reasoner.
func (r *LocalReasoner) Summarize(ctx context.Context, input string, related []string) (types.ReasoningResult, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return types.ReasoningResult{}, fmt.Errorf("input is empty")
	}
	lower := strings.ToLower(text)
	words := strings.Fields(text)

	confidence := 0.7
	ambiguity := 0.1
	var questions []string

	switch {
	case len(words) < 3:
		confidence -= 0.25
		ambiguity += 0.2
		questions = append(questions, "Could you say a little more about that?")
	case len(words) > 60:
		confidence -= 0.1
	}

	hedgeCount := 0
	for _, h := range hedges {
		if containsWord(lower, h) {
			hedgeCount++
		}
	}
	if hedgeCount > 0 {
		confidence -= 0.15 * float64(min(hedgeCount, 3))
		ambiguity += 0.15 * float64(min(hedgeCount, 2))
		questions = append(questions, "How sure are you about this?")
	}

	if p := distill.BareReferent(" " + text + " "); p != "" {
		ambiguity += 0.3
		questions = append(questions, fmt.Sprintf("Who or what does %q refer to?", p))
	}

	if strings.HasSuffix(text, "?") {
		ambiguity += 0.2
		confidence -= 0.1
	}

	if hasSpecifics(text) {
		confidence += 0.1
	}

	summary := summarize(text)
	for _, c := range related {
		if c != "" && strings.Contains(strings.ToLower(c), strings.ToLower(summary)) {
			confidence += 0.05
			break
		}
	}

	effects := []string{"remember: " + summary}
	for _, cue := range revisionCues {
		if containsWord(lower, cue) {
			effects = append(effects, "revise earlier memory")
			break
		}
	}

	return types.ReasoningResult{
		SummaryOfChange:  summary,
		Confidence:       types.ClampUnit(confidence),
		Ambiguity:        types.ClampUnit(ambiguity),
		QuestionsToAsk:   questions,
		SuggestedEffects: effects,
	}, nil
}

// summarize returns the first sentence of text, bounded in length.
func summarize(text string) string {
	if segs := distill.Segments(text); len(segs) > 0 {
		text = segs[0]
	}
	runes := []rune(text)
	if len(runes) > maxSummaryRunes {
		return string(runes[:maxSummaryRunes])
	}
	return text
}

// hasSpecifics reports whether text carries a digit or a capitalised word
// past the first, which usually means a concrete name, date, or amount.
func hasSpecifics(text string) bool {
	for i, w := range strings.Fields(text) {
		for _, r := range w {
			if unicode.IsDigit(r) {
				return true
			}
		}
		if i > 0 && w != "I" && unicode.IsUpper([]rune(w)[0]) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase appears in s on word boundaries.
func containsWord(s, phrase string) bool {
	padded := " " + strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, s) + " "
	return strings.Contains(padded, " "+phrase+" ")
}
