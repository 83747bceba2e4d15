package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

func newRecords(t *testing.T) *storage.Records {
	t.Helper()
	return storage.NewRecords(storage.NewMemoryKV(), nil)
}

func addMemory(t *testing.T, r *storage.Records, content string) *types.Memory {
	t.Helper()
	m := types.NewMemory(types.MemoryInput{
		Content:    content,
		Domain:     types.DomainWork,
		Confidence: 0.8,
		Salience:   0.5,
		TrustScore: 0.5,
	}, time.Now())
	require.NoError(t, r.AddMemory(context.Background(), m))
	return m
}

func TestAddMemory_Validation(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()

	assert.ErrorIs(t, r.AddMemory(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, r.AddMemory(ctx, &types.Memory{ID: "x"}), storage.ErrInvalidInput)
}

func TestListMemories_EmptyStore(t *testing.T) {
	r := newRecords(t)
	mems := r.ListMemories(context.Background())
	assert.NotNil(t, mems)
	assert.Empty(t, mems)
}

func TestUpdateMemory_LockedContentRejected(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()
	m := addMemory(t, r, "Atlas ships in March")

	m.IsLocked = true
	require.NoError(t, r.UpdateMemory(ctx, m))

	m.Content = "Atlas ships in April"
	assert.ErrorIs(t, r.UpdateMemory(ctx, m), storage.ErrLocked)

	stored, err := r.Memories.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Atlas ships in March", stored.Content)

	stored.IsPinned = true
	assert.NoError(t, r.UpdateMemory(ctx, stored), "flag toggles stay allowed on locked memories")
}

func TestUpdateMemory_ClusterImmutableAndAccessMonotonic(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()
	m := addMemory(t, r, "prefers tea")

	moved := *m
	moved.Cluster = types.ClusterExperimental
	assert.ErrorIs(t, r.UpdateMemory(ctx, &moved), storage.ErrInvalidInput)

	stale := *m
	stale.AccessCount = 0
	require.NoError(t, r.UpdateMemory(ctx, &stale))
	stored, err := r.Memories.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AccessCount)
}

func TestUpdateMemory_ContradictoryNeedsReference(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()
	m := addMemory(t, r, "lives in Lisbon")

	m.Status = types.StatusContradictory
	assert.ErrorIs(t, r.UpdateMemory(ctx, m), storage.ErrInvalidInput)

	m.MarkContradictory("mem:work:other", "says Porto elsewhere")
	assert.NoError(t, r.UpdateMemory(ctx, m))
}

func TestSetMemoryStatus_Transitions(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()
	m := addMemory(t, r, "finish report")

	got, err := r.SetMemoryStatus(ctx, m.ID, types.StatusSuperseded)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuperseded, got.Status)

	_, err = r.SetMemoryStatus(ctx, m.ID, types.StatusActive)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = r.SetMemoryStatus(ctx, "mem:work:missing", types.StatusArchived)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTouchMemories(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()
	m := addMemory(t, r, "gym on tuesdays")
	later := time.Now().Add(time.Hour)

	require.NoError(t, r.TouchMemories(ctx, []string{m.ID, "mem:work:gone"}, later))

	stored, err := r.Memories.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.AccessCount)
	assert.True(t, stored.LastAccessedAt.Equal(later))
}

func TestPruneDecisionLogs(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.AppendDecisionLog(ctx, &types.DecisionLog{Query: "old", Timestamp: now.Add(-40 * 24 * time.Hour)}))
	for i := 0; i < 5; i++ {
		require.NoError(t, r.AppendDecisionLog(ctx, &types.DecisionLog{
			Query:     "recent",
			Timestamp: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	removed, err := r.PruneDecisionLogs(ctx, now.Add(10*time.Minute), 30*24*time.Hour, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	logs, err := r.DecisionLogs.All(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	for _, l := range logs {
		assert.Equal(t, "recent", l.Query)
		assert.NotEmpty(t, l.ID)
	}
	assert.True(t, logs[2].Timestamp.After(logs[0].Timestamp))
}

func TestControllerStateRoundTrip(t *testing.T) {
	r := newRecords(t)
	ctx := context.Background()

	assert.Equal(t, storage.ControllerState{}, r.LoadControllerState(ctx))

	st := storage.ControllerState{
		Bias:  types.BiasState{ClarityThresholdBias: 0.04},
		Notes: []string{"correction"},
		History: []types.DecisionRecord{
			{Decision: types.DecisionStoreMemory, ClarityScore: 0.9},
		},
	}
	require.NoError(t, r.SaveControllerState(ctx, st))

	got := r.LoadControllerState(ctx)
	assert.InDelta(t, 0.04, got.Bias.ClarityThresholdBias, 1e-9)
	require.Len(t, got.History, 1)
	assert.Equal(t, types.DecisionStoreMemory, got.History[0].Decision)
}

func TestFactoryReset(t *testing.T) {
	cache, err := storage.NewCache(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	r := storage.NewRecords(storage.NewMemoryKV(), cache)
	ctx := context.Background()
	addMemory(t, r, "something")
	require.NoError(t, r.People.Upsert(ctx, &types.Person{ID: "person:1", Name: "Ana"}))
	require.Len(t, r.ListMemories(ctx), 1)

	require.NoError(t, r.FactoryReset(ctx))

	assert.Empty(t, r.ListMemories(ctx))
	n, err := r.People.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
