package decision

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/scrypster/mneme/pkg/types"
)

const (
	baseThreshold = 0.7
	minThreshold  = 0.5
	maxThreshold  = 0.9

	// similarBonus is added to the clarity score when a similar decision
	// is in the feedback window.
	similarBonus = 0.1

	// decayPerMinute is 0.01 per hour so a correction every few minutes
	// still accumulates.
	decayPerMinute = 0.01 / 60
	maxDecayStep   = 0.05

	correctionStep    = 0.02
	reinforcementStep = 0.01
	unansweredStep    = 0.02
	nudgeStep         = 0.005

	// DefaultFeedbackWindow is the number of recent decisions examined.
	DefaultFeedbackWindow = 10

	// DefaultHistorySize is the number of decisions retained.
	DefaultHistorySize = 50
)

// revisionCues mark a summary as correcting an earlier one.
var revisionCues = []string{
	"actually", "instead", "correction", "no longer", "not anymore",
	"changed", "wrong", "update:", "rather",
}

// Recorder durably stores post-adjustment bias snapshots.
type Recorder interface {
	RecordBias(ctx context.Context, snap types.BiasSnapshot) error
}

// Options configures a Controller.
type Options struct {
	FeedbackWindow int
	HistorySize    int
	Clock          func() time.Time
	Recorder       Recorder
}

// Outcome is the result of one Decide call.
type Outcome struct {
	Decision          types.Decision  `json:"decision"`
	ClarityScore      float64         `json:"clarity_score"`
	Threshold         float64         `json:"threshold"`
	QuestionThreshold float64         `json:"question_threshold"`
	Questions         []string        `json:"questions,omitempty"`
	Explanation       string          `json:"explanation"`
	Bias              types.BiasState `json:"bias"`
}

// Controller decides what to do with an assessed update.
type Controller struct {
	mu       sync.Mutex
	state    State
	window   int
	history  int
	clock    func() time.Time
	recorder Recorder
}

// NewController creates a controller that owns a copy of state.
func NewController(state State, opts Options) *Controller {
	if opts.FeedbackWindow <= 0 {
		opts.FeedbackWindow = DefaultFeedbackWindow
	}
	if opts.HistorySize < opts.FeedbackWindow {
		opts.HistorySize = max(DefaultHistorySize, opts.FeedbackWindow)
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	c := &Controller{
		state:    state.Clone(),
		window:   opts.FeedbackWindow,
		history:  opts.HistorySize,
		clock:    opts.Clock,
		recorder: opts.Recorder,
	}
	c.state.Bias.Clamp()
	return c
}

// State returns a copy of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Decide runs one controller tick: decay, recalibrate, decide, record.
func (c *Controller) Decide(ctx context.Context, result types.ReasoningResult) Outcome {
	c.mu.Lock()
	now := c.clock()
	c.decay(now)
	notes := c.recalibrate()
	c.state.appendNotes(notes...)

	out := c.evaluate(result)
	if len(notes) == 0 && len(c.state.Notes) > 0 {
		notes = c.state.Notes[len(c.state.Notes)-1:]
	}
	out.Explanation = explain(out, notes)
	out.Bias = c.state.Bias

	c.state.History = append(c.state.History, types.DecisionRecord{
		Timestamp:    now,
		Decision:     out.Decision,
		Result:       result,
		ClarityScore: out.ClarityScore,
		Threshold:    out.Threshold,
		Explanation:  out.Explanation,
	})
	if len(c.state.History) > c.history {
		c.state.History = c.state.History[len(c.state.History)-c.history:]
	}

	snap := types.BiasSnapshot{
		Bias:       c.state.Bias,
		Notes:      append([]string(nil), notes...),
		Decision:   out.Decision,
		RecordedAt: now,
	}
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.RecordBias(ctx, snap); err != nil {
			log.Printf("WARNING: failed to record bias snapshot: %v", err)
		}
	}
	return out
}

// decay moves every bias term toward zero by min(0.01 * hours, 0.05).
func (c *Controller) decay(now time.Time) {
	b := &c.state.Bias
	if b.LastUpdated.IsZero() {
		b.LastUpdated = now
		return
	}
	minutes := now.Sub(b.LastUpdated).Minutes()
	if minutes <= 0 {
		return
	}
	step := min(decayPerMinute*minutes, maxDecayStep)
	b.ClarityThresholdBias = towardZero(b.ClarityThresholdBias, step)
	b.AmbiguityToleranceBias = towardZero(b.AmbiguityToleranceBias, step)
	b.QuestioningBias = towardZero(b.QuestioningBias, step)
	b.LastUpdated = now
}

func towardZero(v, step float64) float64 {
	switch {
	case v > 0:
		return max(0, v-step)
	case v < 0:
		return min(0, v+step)
	}
	return 0
}

// signals counts the feedback observed in the recent window.
type signals struct {
	corrections    int
	reinforcements int
	unanswered     int
	answered       int
	stable         int
}

func (c *Controller) recent() []types.DecisionRecord {
	h := c.state.History
	if len(h) > c.window {
		return h[len(h)-c.window:]
	}
	return h
}

func collectSignals(records []types.DecisionRecord) signals {
	var s signals
	for j := 1; j < len(records); j++ {
		later := records[j]
		for i := j - 1; i >= 0; i-- {
			earlier := records[i]
			if !similar(earlier.Result.SummaryOfChange, later.Result.SummaryOfChange) {
				continue
			}
			switch {
			case earlier.Decision == types.DecisionStoreMemory:
				improved := later.Result.Confidence > earlier.Result.Confidence ||
					later.Result.Ambiguity < earlier.Result.Ambiguity
				if hasRevisionCue(later.Result.SummaryOfChange) || !improved {
					s.corrections++
				} else if later.Decision == types.DecisionStoreMemory {
					s.reinforcements++
				}
			case earlier.Decision == later.Decision:
				s.stable++
			}
			break
		}
	}

	for i, rec := range records {
		if rec.Decision != types.DecisionAskQuestion {
			continue
		}
		followed := false
		for _, later := range records[i+1:] {
			if later.Decision == types.DecisionStoreMemory &&
				similar(rec.Result.SummaryOfChange, later.Result.SummaryOfChange) {
				followed = true
				break
			}
		}
		if followed {
			s.answered++
		} else {
			s.unanswered++
		}
	}
	return s
}

// recalibrate adjusts the bias from the feedback window and returns notes
// describing the adjustments.
func (c *Controller) recalibrate() []string {
	s := collectSignals(c.recent())
	b := &c.state.Bias
	var notes []string

	if s.corrections > 0 {
		b.ClarityThresholdBias += correctionStep
		b.AmbiguityToleranceBias -= correctionStep
		notes = append(notes, fmt.Sprintf("%d correction(s): raising clarity threshold, lowering ambiguity tolerance", s.corrections))
	}
	if s.reinforcements > 0 {
		b.ClarityThresholdBias -= reinforcementStep
		b.AmbiguityToleranceBias += reinforcementStep
		notes = append(notes, fmt.Sprintf("%d reinforcement(s): relaxing clarity threshold", s.reinforcements))
	}
	if s.unanswered > 0 {
		b.QuestioningBias -= unansweredStep
		notes = append(notes, fmt.Sprintf("%d unanswered clarification(s): asking less", s.unanswered))
	}
	if s.answered > 0 {
		b.QuestioningBias += nudgeStep
		b.AmbiguityToleranceBias += nudgeStep
		notes = append(notes, fmt.Sprintf("%d answered clarification(s): small questioning nudge", s.answered))
	}
	if s.stable > 0 {
		b.ClarityThresholdBias -= nudgeStep
		b.AmbiguityToleranceBias += nudgeStep
		notes = append(notes, fmt.Sprintf("%d stable repeat(s): small tolerance nudge", s.stable))
	}

	b.Clamp()
	return notes
}

// evaluate applies the decision rule to result under the current bias.
func (c *Controller) evaluate(result types.ReasoningResult) Outcome {
	b := c.state.Bias

	similarRecent := false
	askedRecent := false
	for _, rec := range c.recent() {
		if !similar(rec.Result.SummaryOfChange, result.SummaryOfChange) {
			continue
		}
		similarRecent = true
		if rec.Decision == types.DecisionAskQuestion {
			askedRecent = true
		}
	}

	clarity := result.Confidence * (1 - max(0, result.Ambiguity-b.AmbiguityToleranceBias))
	if similarRecent {
		clarity += similarBonus
	}

	out := Outcome{
		ClarityScore:      clarity,
		Threshold:         clampThreshold(baseThreshold + b.ClarityThresholdBias),
		QuestionThreshold: clampThreshold(baseThreshold + b.QuestioningBias),
	}

	switch {
	case clarity >= out.Threshold:
		out.Decision = types.DecisionStoreMemory
	case len(result.QuestionsToAsk) > 0 && clarity < out.QuestionThreshold && !askedRecent:
		out.Decision = types.DecisionAskQuestion
		out.Questions = append([]string(nil), result.QuestionsToAsk...)
	default:
		out.Decision = types.DecisionNoAction
	}
	return out
}

func clampThreshold(v float64) float64 {
	return min(maxThreshold, max(minThreshold, v))
}

func hasRevisionCue(s string) bool {
	lower := strings.ToLower(s)
	for _, cue := range revisionCues {
		if strings.Contains(lower, cue) {
			return true
		}
	}
	return false
}

func explain(out Outcome, notes []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: clarity %.2f against threshold %.2f (question threshold %.2f)",
		out.Decision, out.ClarityScore, out.Threshold, out.QuestionThreshold)
	if len(notes) > 0 {
		sb.WriteString("; ")
		sb.WriteString(strings.Join(notes, "; "))
	}
	return sb.String()
}
