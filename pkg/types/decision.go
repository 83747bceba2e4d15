package types

import "time"

// DecisionLog is an append-only audit record of one query-answering or
// ingestion episode.
type DecisionLog struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Query              string    `json:"query"`
	MemoriesConsidered int       `json:"memories_considered"`
	MemoriesInjected   int       `json:"memories_injected"`
	InjectedIDs        []string  `json:"injected_ids"`
	DecisionReason     string    `json:"decision_reason"`
	RetrievalLatencyMS float64   `json:"retrieval_latency_ms"`
	CognitiveLoad      string    `json:"cognitive_load"`
	Assumptions        []string  `json:"assumptions,omitempty"`
	AnomalyScore       *float64  `json:"anomaly_score,omitempty"`
	CloudCalled        bool      `json:"cloud_called"`
}

// Bias bounds for every BiasState term.
const (
	BiasMin = -0.15
	BiasMax = 0.15
)

// BiasState holds the decision controller's self-adjusted offsets.
type BiasState struct {
	ClarityThresholdBias   float64   `json:"clarity_threshold_bias"`
	AmbiguityToleranceBias float64   `json:"ambiguity_tolerance_bias"`
	QuestioningBias        float64   `json:"questioning_bias"`
	LastUpdated            time.Time `json:"last_updated"`
}

// ClampBias clamps v to [BiasMin, BiasMax].
func ClampBias(v float64) float64 {
	if v < BiasMin {
		return BiasMin
	}
	if v > BiasMax {
		return BiasMax
	}
	return v
}

// Clamp clamps every bias term in place.
func (b *BiasState) Clamp() {
	b.ClarityThresholdBias = ClampBias(b.ClarityThresholdBias)
	b.AmbiguityToleranceBias = ClampBias(b.AmbiguityToleranceBias)
	b.QuestioningBias = ClampBias(b.QuestioningBias)
}

// ReasoningResult is the structured assessment of an incoming update,
// produced by a Reasoner.
type ReasoningResult struct {
	SummaryOfChange  string   `json:"summary_of_change"`
	Confidence       float64  `json:"confidence"`
	Ambiguity        float64  `json:"ambiguity"`
	QuestionsToAsk   []string `json:"questions_to_ask,omitempty"`
	SuggestedEffects []string `json:"suggested_effects,omitempty"`
}

// Decision is the controller's verdict on a ReasoningResult.
type Decision string

// Decision constants
const (
	DecisionStoreMemory Decision = "storeMemory"
	DecisionAskQuestion Decision = "askClarifyingQuestions"
	DecisionNoAction    Decision = "noAction"
)

// DecisionRecord is one entry of the controller's rolling history.
type DecisionRecord struct {
	Timestamp    time.Time       `json:"timestamp"`
	Decision     Decision        `json:"decision"`
	Result       ReasoningResult `json:"result"`
	ClarityScore float64         `json:"clarity_score"`
	Threshold    float64         `json:"threshold"`
	Explanation  string          `json:"explanation"`
}

// BiasSnapshot is the durably recorded post-adjustment controller state.
type BiasSnapshot struct {
	Bias       BiasState `json:"bias"`
	Notes      []string  `json:"notes,omitempty"`
	Decision   Decision  `json:"decision"`
	RecordedAt time.Time `json:"recorded_at"`
}
