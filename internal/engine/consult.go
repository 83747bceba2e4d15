package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/scrypster/mneme/internal/decision"
	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/internal/intent"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/retrieval"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

const (
	noMemoriesReply = "I don't have anything stored about that yet."

	// relatedContextSize bounds the memories passed to the reasoner as context.
	relatedContextSize = 5

	// busyHistoryTurns marks a conversation long enough to count as medium load.
	busyHistoryTurns = 10
)

// ConsultBrain answers message from stored memories. Special intents are
// handled first and bypass ranking. Observers are read-only: intents are
// not applied and access counts are not incremented for them. Every call
// writes exactly one decision log.
func (e *Engine) ConsultBrain(ctx context.Context, history []string, message string, isObserver bool, status types.SystemStatus) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", storage.ErrInvalidInput)
	}
	if status == "" {
		status = e.Status()
	}

	now := e.clock()
	if !isObserver {
		e.RecordActivity(now)

		res, err := e.intents.Handle(ctx, message)
		if err != nil {
			return nil, fmt.Errorf("failed to apply intent: %w", err)
		}
		if res != nil {
			return e.intentReply(ctx, message, res, history, status, now), nil
		}
	}

	start := time.Now()
	ranked := retrieval.Rank(message, e.records.ListMemories(ctx), status, e.config.Retrieval)
	ids := ranked.IDs()

	reply := &Reply{
		Reply:       composeReply(ranked.Selected),
		Explanation: fmt.Sprintf("Selected %d of %d matching memories from a pool of %d (budget %d, %s load).",
			len(ranked.Selected), ranked.Candidates, ranked.PoolSize, e.config.Retrieval.Budget(status), status),
		Citations:   ids,
		Assumptions: assumptions(ranked, status),
	}

	e.writeLog(ctx, &types.DecisionLog{
		Timestamp:          now,
		Query:              message,
		MemoriesConsidered: ranked.PoolSize,
		MemoriesInjected:   len(ids),
		InjectedIDs:        ids,
		DecisionReason:     fmt.Sprintf("retrieval: tokens %v", ranked.Tokens),
		RetrievalLatencyMS: float64(time.Since(start).Microseconds()) / 1000,
		CognitiveLoad:      cognitiveLoad(history, status),
		Assumptions:        reply.Assumptions,
	})

	if !isObserver && len(ids) > 0 {
		if err := e.records.TouchMemories(ctx, ids, now); err != nil {
			log.Printf("ERROR: Failed to record access on %d memories: %v", len(ids), err)
		}
	}
	return reply, nil
}

func (e *Engine) intentReply(ctx context.Context, message string, res *intent.Result, history []string, status types.SystemStatus, now time.Time) *Reply {
	ids := make([]string, 0, len(res.Memories))
	for _, m := range res.Memories {
		ids = append(ids, m.ID)
	}

	e.writeLog(ctx, &types.DecisionLog{
		Timestamp:        now,
		Query:            message,
		MemoriesInjected: len(ids),
		InjectedIDs:      ids,
		DecisionReason:   fmt.Sprintf("intent %s: %s", res.Kind, res.Justification),
		CognitiveLoad:    cognitiveLoad(history, status),
		CloudCalled:      false,
	})

	for _, id := range ids {
		e.emit(notify.EventMemoryCreated, id)
	}
	return &Reply{
		Reply:       res.Reply,
		Explanation: res.Justification,
		Citations:   ids,
		Assumptions: []string{},
	}
}

func (e *Engine) writeLog(ctx context.Context, entry *types.DecisionLog) {
	if entry.InjectedIDs == nil {
		entry.InjectedIDs = []string{}
	}
	if err := e.records.AppendDecisionLog(ctx, entry); err != nil {
		log.Printf("ERROR: Failed to write decision log: %v", err)
	}
}

func composeReply(selected []*types.Memory) string {
	if len(selected) == 0 {
		return noMemoriesReply
	}
	var b strings.Builder
	b.WriteString("Here is what I remember:")
	for _, m := range selected {
		b.WriteString("\n- ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func assumptions(res retrieval.Result, status types.SystemStatus) []string {
	out := []string{}
	for _, s := range res.Scopes {
		out = append(out, "limited to folder "+s)
	}
	if status != types.SystemNominal {
		out = append(out, fmt.Sprintf("retrieval depth reduced under %s load", status))
	}
	if res.Candidates > len(res.Selected) {
		out = append(out, fmt.Sprintf("%d lower-ranked matches omitted", res.Candidates-len(res.Selected)))
	}
	return out
}

func cognitiveLoad(history []string, status types.SystemStatus) string {
	switch {
	case status != types.SystemNominal:
		return "high"
	case len(history) > busyHistoryTurns:
		return "medium"
	default:
		return "low"
	}
}

// Evaluation is the outcome of EvaluateUpdate.
type Evaluation struct {
	Result  types.ReasoningResult `json:"result"`
	Outcome decision.Outcome      `json:"outcome"`
	Memory  *types.Memory         `json:"memory,omitempty"`
}

// EvaluateUpdate assesses a conversational update with the reasoner and
// lets the decision controller choose to store it, ask about it, or
// ignore it. A stored memory still passes validation.
func (e *Engine) EvaluateUpdate(ctx context.Context, input string) (*Evaluation, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("%w: input is required", storage.ErrInvalidInput)
	}
	e.RecordActivity(e.clock())

	memories := e.records.ListMemories(ctx)
	ranked := retrieval.Rank(input, memories, types.SystemNominal, retrieval.Options{
		NominalBudget: relatedContextSize,
		ActiveCluster: e.activeCluster(),
	})
	related := make([]string, 0, len(ranked.Selected))
	for _, m := range ranked.Selected {
		related = append(related, m.Content)
	}

	result, err := e.reasoner.Summarize(ctx, input, related)
	if err != nil {
		return nil, fmt.Errorf("failed to assess update: %w", err)
	}

	controller := e.Controller()
	out := controller.Decide(ctx, result)
	eval := &Evaluation{Result: result, Outcome: out}

	if out.Decision == types.DecisionStoreMemory {
		m, err := e.storeEvaluated(ctx, input, result, out, memories)
		if err != nil {
			return nil, err
		}
		eval.Memory = m
	}

	st := controller.State()
	if err := e.records.SaveControllerState(ctx, storage.ControllerState{
		Bias:    st.Bias,
		History: st.History,
		Notes:   st.Notes,
	}); err != nil {
		log.Printf("ERROR: Failed to persist controller state: %v", err)
	}
	return eval, nil
}

func (e *Engine) storeEvaluated(ctx context.Context, input string, result types.ReasoningResult, out decision.Outcome, existing []*types.Memory) (*types.Memory, error) {
	content := strings.TrimSpace(result.SummaryOfChange)
	if content == "" {
		content = input
	}

	m := types.NewMemory(types.MemoryInput{
		Content:       content,
		Domain:        types.DomainGeneral,
		Type:          types.TypeFact,
		Entity:        distill.DefaultEntity,
		Speaker:       types.SpeakerUser,
		Confidence:    result.Confidence,
		Salience:      0.6,
		TrustScore:    result.Confidence,
		Cluster:       e.activeCluster(),
		Justification: out.Explanation,
	}, e.clock())

	if err := e.validator.Validate(m); err != nil {
		var rejection *distill.RejectionError
		if errors.As(err, &rejection) {
			log.Printf("WARNING: Dropping evaluated update: %v", rejection)
			return nil, nil
		}
		return nil, err
	}
	if err := e.flagContradiction(ctx, m, existing); err != nil {
		return nil, err
	}
	if err := e.records.AddMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	e.emit(notify.EventMemoryCreated, m.ID)
	return m, nil
}
