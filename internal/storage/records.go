package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/scrypster/mneme/pkg/types"
)

// biasStateKey is the single key of the persisted controller state.
const biasStateKey = "state"

// maxBiasSnapshots caps the bias snapshot collection.
const maxBiasSnapshots = 200

// ControllerState is the persisted form of the decision controller's state.
type ControllerState struct {
	Bias    types.BiasState        `json:"bias"`
	History []types.DecisionRecord `json:"history"`
	Notes   []string               `json:"notes,omitempty"`
}

// Mark is a named timestamp kept in the system collection.
type Mark struct {
	Key  string    `json:"key"`
	Time time.Time `json:"time"`
}

// Records is the typed repository over every collection. No other component
// touches the KVStore directly.
type Records struct {
	kv    KVStore
	cache *Cache

	Memories       *Collection[types.Memory]
	People         *Collection[types.Person]
	Reminders      *Collection[types.Reminder]
	Places         *Collection[types.Place]
	Queue          *Collection[types.QueueItem]
	DecisionLogs   *Collection[types.DecisionLog]
	BiasSnapshots  *Collection[types.BiasSnapshot]
	Clarifications *Collection[types.PendingClarification]
	Transcriptions *Collection[types.TranscriptionLog]
	Devices        *Collection[types.SmartDevice]
	controller     *Collection[ControllerState]
	marks          *Collection[Mark]
}

// NewRecords wraps kv with typed collections. cache may be nil.
func NewRecords(kv KVStore, cache *Cache) *Records {
	return &Records{
		kv:             kv,
		cache:          cache,
		Memories:       NewCollection(kv, CollectionMemories, func(m *types.Memory) string { return m.ID }, cache),
		People:         NewCollection(kv, CollectionPeople, func(p *types.Person) string { return p.ID }, cache),
		Reminders:      NewCollection(kv, CollectionReminders, func(r *types.Reminder) string { return r.ID }, cache),
		Places:         NewCollection(kv, CollectionPlaces, func(p *types.Place) string { return p.ID }, cache),
		Queue:          NewCollection(kv, CollectionQueue, func(q *types.QueueItem) string { return q.ID }, cache),
		DecisionLogs:   NewCollection(kv, CollectionDecisionLogs, func(l *types.DecisionLog) string { return l.ID }, cache),
		BiasSnapshots:  NewCollection(kv, CollectionBiasSnapshots, func(s *types.BiasSnapshot) string { return s.RecordedAt.UTC().Format(time.RFC3339Nano) }, cache),
		Clarifications: NewCollection(kv, CollectionClarifications, func(c *types.PendingClarification) string { return c.ID }, cache),
		Transcriptions: NewCollection(kv, CollectionTranscriptions, func(t *types.TranscriptionLog) string { return t.ID }, cache),
		Devices:        NewCollection(kv, CollectionDevices, func(d *types.SmartDevice) string { return d.ID }, cache),
		controller:     NewCollection(kv, CollectionBias, func(*ControllerState) string { return biasStateKey }, nil),
		marks:          NewCollection(kv, CollectionSystem, func(m *Mark) string { return m.Key }, nil),
	}
}

// KV exposes the underlying store for health probes.
func (r *Records) KV() KVStore { return r.kv }

// AddMemory stores a new memory.
func (r *Records) AddMemory(ctx context.Context, m *types.Memory) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: memory ID is required", ErrInvalidInput)
	}
	if m.Content == "" {
		return fmt.Errorf("%w: memory content is required", ErrInvalidInput)
	}
	return r.Memories.Upsert(ctx, m)
}

// ListMemories returns every memory, or an empty slice when the collection
// cannot be read.
func (r *Records) ListMemories(ctx context.Context) []*types.Memory {
	return r.Memories.AllOr(ctx, []*types.Memory{})
}

// UpdateMemory replaces a stored memory with m.
//
// Content changes on a locked memory are rejected with ErrLocked. The
// cluster is fixed at creation and access counts never go backwards.
func (r *Records) UpdateMemory(ctx context.Context, m *types.Memory) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: memory ID is required", ErrInvalidInput)
	}

	stored, err := r.Memories.Get(ctx, m.ID)
	if err != nil {
		return err
	}

	if stored.IsLocked && stored.Content != m.Content {
		return fmt.Errorf("%w: %s", ErrLocked, m.ID)
	}
	if stored.Cluster != m.Cluster {
		return fmt.Errorf("%w: cluster of %s cannot change", ErrInvalidInput, m.ID)
	}
	if m.AccessCount < stored.AccessCount {
		m.AccessCount = stored.AccessCount
	}
	if m.Status == types.StatusContradictory && m.ConflictingID() == "" {
		return fmt.Errorf("%w: contradictory memory %s needs a conflicting reference", ErrInvalidInput, m.ID)
	}

	m.Confidence = types.ClampUnit(m.Confidence)
	m.UpdatedAt = time.Now()
	return r.Memories.Upsert(ctx, m)
}

// SetMemoryStatus moves a memory to status if the transition is allowed.
func (r *Records) SetMemoryStatus(ctx context.Context, id string, status types.MemoryStatus) (*types.Memory, error) {
	return r.Memories.Update(ctx, id, func(m *types.Memory) error {
		if !types.IsValidStatusTransition(m.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidInput, m.Status, status)
		}
		if status == types.StatusContradictory && m.ConflictingID() == "" {
			return fmt.Errorf("%w: use MarkContradictory to flag %s", ErrInvalidInput, id)
		}
		m.Status = status
		m.UpdatedAt = time.Now()
		return nil
	})
}

// DeleteMemory permanently removes a memory.
func (r *Records) DeleteMemory(ctx context.Context, id string) error {
	return r.Memories.Delete(ctx, id)
}

// TouchMemories increments the access count of every listed memory.
// Missing ids are skipped.
func (r *Records) TouchMemories(ctx context.Context, ids []string, now time.Time) error {
	for _, id := range ids {
		_, err := r.Memories.Update(ctx, id, func(m *types.Memory) error {
			m.Touch(now)
			return nil
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// AppendDecisionLog adds an audit entry, assigning an id when missing.
func (r *Records) AppendDecisionLog(ctx context.Context, entry *types.DecisionLog) error {
	if entry.ID == "" {
		entry.ID = types.NewID("log")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	return r.DecisionLogs.Upsert(ctx, entry)
}

// PruneDecisionLogs drops logs older than ttl and keeps at most max of the
// most recent ones. It returns the number of logs removed.
func (r *Records) PruneDecisionLogs(ctx context.Context, now time.Time, ttl time.Duration, max int) (int, error) {
	logs, err := r.DecisionLogs.All(ctx)
	if err != nil {
		return 0, err
	}

	kept := make([]*types.DecisionLog, 0, len(logs))
	for _, l := range logs {
		if ttl > 0 && now.Sub(l.Timestamp) > ttl {
			continue
		}
		kept = append(kept, l)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Timestamp.Before(kept[j].Timestamp)
	})
	if max > 0 && len(kept) > max {
		kept = kept[len(kept)-max:]
	}

	removed := len(logs) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := r.DecisionLogs.ReplaceAll(ctx, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// LoadControllerState returns the persisted controller state, or a zero
// state when none has been stored or the stored one is unreadable.
func (r *Records) LoadControllerState(ctx context.Context) ControllerState {
	st, err := r.controller.Get(ctx, biasStateKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("WARNING: controller state unreadable, starting cold: %v", err)
		}
		return ControllerState{}
	}
	return *st
}

// SaveControllerState persists the controller state.
func (r *Records) SaveControllerState(ctx context.Context, st ControllerState) error {
	return r.controller.Upsert(ctx, &st)
}

// RecordBiasSnapshot appends a bias snapshot, trimming the oldest beyond the cap.
func (r *Records) RecordBiasSnapshot(ctx context.Context, snap types.BiasSnapshot) error {
	if err := r.BiasSnapshots.Upsert(ctx, &snap); err != nil {
		return err
	}
	n, err := r.BiasSnapshots.Count(ctx)
	if err != nil || n <= maxBiasSnapshots {
		return err
	}
	all, err := r.BiasSnapshots.All(ctx)
	if err != nil {
		return err
	}
	return r.BiasSnapshots.ReplaceAll(ctx, all[len(all)-maxBiasSnapshots:])
}

// Mark returns the timestamp stored under key, or the zero time.
func (r *Records) Mark(ctx context.Context, key string) time.Time {
	m, err := r.marks.Get(ctx, key)
	if err != nil {
		return time.Time{}
	}
	return m.Time
}

// SetMark stores t under key.
func (r *Records) SetMark(ctx context.Context, key string, t time.Time) error {
	return r.marks.Upsert(ctx, &Mark{Key: key, Time: t})
}

// FactoryReset clears every collection.
func (r *Records) FactoryReset(ctx context.Context) error {
	for _, name := range AllCollections {
		if err := r.kv.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("factory reset failed on %s: %w", name, err)
		}
		if r.cache != nil {
			r.cache.invalidate(name)
		}
	}
	return nil
}
