package engine

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/pkg/types"
)

const (
	// minInsightGroup is the smallest domain group summarised into an insight.
	minInsightGroup = 2

	insightSnippetRunes = 80
)

// LastMaintenance returns when maintenance last completed, or the zero time.
func (e *Engine) LastMaintenance(ctx context.Context) time.Time {
	return e.records.Mark(ctx, lastMaintenanceMark)
}

// MaintenanceTick enqueues a maintenance item when more than
// MaintenanceInterval passed since the last run, or when the user has been
// idle longer than IdleThreshold and more than IdleInterval passed. At most
// one maintenance item is queued at a time.
func (e *Engine) MaintenanceTick(ctx context.Context, now, lastActivity time.Time) (bool, error) {
	if !e.maintenanceDue(ctx, now, lastActivity) {
		return false, nil
	}

	queued, err := e.hasQueued(ctx, types.QueueMaintenance)
	if err != nil {
		return false, err
	}
	if queued {
		return false, nil
	}

	item, err := e.enqueue(ctx, "", types.QueueMaintenance)
	if err != nil {
		return false, err
	}
	log.Printf("Scheduled maintenance %s", item.ID)
	return true, nil
}

func (e *Engine) maintenanceDue(ctx context.Context, now, lastActivity time.Time) bool {
	last := e.LastMaintenance(ctx)
	if last.IsZero() {
		return true
	}
	since := now.Sub(last)
	if since > e.config.MaintenanceInterval {
		return true
	}
	return now.Sub(lastActivity) > e.config.IdleThreshold && since > e.config.IdleInterval
}

// hasQueued reports whether an item of type t is waiting or running.
func (e *Engine) hasQueued(ctx context.Context, t types.QueueItemType) (bool, error) {
	items, err := e.records.Queue.All(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read queue: %w", err)
	}
	for _, item := range items {
		if item.Type != t {
			continue
		}
		if item.Status == types.QueueProcessing || item.Eligible(e.config.MaxRetries) {
			return true, nil
		}
	}
	return false, nil
}

// runMaintenance tiers inactive memories, prunes decision logs and queues
// an insight pass.
func (e *Engine) runMaintenance(ctx context.Context) error {
	now := e.clock()

	moved, err := e.TierColdMemories(ctx, now)
	if err != nil {
		return err
	}

	pruned, err := e.records.PruneDecisionLogs(ctx, now, e.config.LogTTL, e.config.MaxDecisionLogs)
	if err != nil {
		return fmt.Errorf("failed to prune decision logs: %w", err)
	}

	if _, err := e.enqueue(ctx, "", types.QueueInsightGen); err != nil {
		return err
	}

	if err := e.records.SetMark(ctx, lastMaintenanceMark, now); err != nil {
		log.Printf("ERROR: Failed to record maintenance time: %v", err)
	}

	log.Printf("Maintenance complete: %d memories moved to cold storage, %d decision logs pruned", moved, pruned)
	e.emit(notify.EventMaintenanceDone, "")
	return nil
}

// coldEligible reports whether m has been inactive long enough to move to
// cold storage. Pinned and locked memories stay active.
func coldEligible(m *types.Memory, now time.Time, coldAfter time.Duration) bool {
	if m.Status != types.StatusActive || m.IsPinned || m.IsLocked {
		return false
	}
	ref := m.LastAccessedAt
	if ref.IsZero() {
		ref = m.CreatedAt
	}
	return now.Sub(ref) > coldAfter
}

// TierColdMemories moves every eligible memory to cold storage and returns
// how many moved.
func (e *Engine) TierColdMemories(ctx context.Context, now time.Time) (int, error) {
	memories, err := e.records.Memories.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load memories: %w", err)
	}

	moved := 0
	for _, m := range memories {
		if !coldEligible(m, now, e.config.ColdAfter) {
			continue
		}
		if _, err := e.records.SetMemoryStatus(ctx, m.ID, types.StatusColdStorage); err != nil {
			return moved, fmt.Errorf("failed to tier memory %s: %w", m.ID, err)
		}
		moved++
	}
	return moved, nil
}

// synthesizeInsights summarises a bounded sample of recently used active
// memories, grouped by domain, into insight memories.
func (e *Engine) synthesizeInsights(ctx context.Context) error {
	memories, err := e.records.Memories.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memories: %w", err)
	}

	var sample []*types.Memory
	known := make(map[string]bool)
	for _, m := range memories {
		if m.Type == types.TypeInsight {
			known[m.Content] = true
			continue
		}
		if m.Status == types.StatusActive && m.Cluster == e.activeCluster() {
			sample = append(sample, m)
		}
	}
	sort.SliceStable(sample, func(i, j int) bool {
		return sample[i].LastAccessedAt.After(sample[j].LastAccessedAt)
	})
	if len(sample) > e.config.InsightSampleSize {
		sample = sample[:e.config.InsightSampleSize]
	}

	var domains []types.Domain
	groups := make(map[types.Domain][]*types.Memory)
	for _, m := range sample {
		if _, ok := groups[m.Domain]; !ok {
			domains = append(domains, m.Domain)
		}
		groups[m.Domain] = append(groups[m.Domain], m)
	}

	now := e.clock()
	created := 0
	for _, d := range domains {
		group := groups[d]
		if len(group) < minInsightGroup {
			continue
		}
		insight := buildInsight(d, group, e.activeCluster(), now)
		if known[insight.Content] {
			continue
		}
		if err := e.records.AddMemory(ctx, insight); err != nil {
			return fmt.Errorf("failed to store insight: %w", err)
		}
		known[insight.Content] = true
		created++
		e.emit(notify.EventMemoryCreated, insight.ID)
	}

	log.Printf("Insight pass sampled %d memories, created %d insights", len(sample), created)
	return nil
}

func buildInsight(domain types.Domain, group []*types.Memory, cluster types.Cluster, now time.Time) *types.Memory {
	snippets := make([]string, 0, len(group))
	ids := make([]string, 0, len(group))
	var confidence, trust float64
	for _, m := range group {
		snippets = append(snippets, snippet(m.Content))
		ids = append(ids, m.ID)
		confidence += m.Confidence
		trust += m.TrustScore
	}
	n := float64(len(group))

	insight := types.NewMemory(types.MemoryInput{
		Content:        fmt.Sprintf("Recurring %s themes: %s", domain, strings.Join(snippets, "; ")),
		Domain:         domain,
		Type:           types.TypeInsight,
		Entity:         "system",
		Speaker:        types.SpeakerUnknown,
		Confidence:     confidence / n,
		Salience:       0.4,
		TrustScore:     trust / n,
		RecallPriority: types.PriorityLow,
		Cluster:        cluster,
		Justification:  fmt.Sprintf("synthesized from %d memories: %s", len(ids), strings.Join(ids, ", ")),
	}, now)
	insight.SetMeta(types.MetaProvenance, types.ProvenanceMetacognition)
	insight.SetMeta(types.MetaTopic, string(domain))
	return insight
}

func (e *Engine) activeCluster() types.Cluster {
	if e.config.Retrieval.ActiveCluster == "" {
		return types.ClusterMain
	}
	return e.config.Retrieval.ActiveCluster
}

func snippet(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= insightSnippetRunes {
		return string(r)
	}
	return string(r[:insightSnippetRunes]) + "..."
}
