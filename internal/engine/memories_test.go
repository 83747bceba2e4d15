package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

func TestRemember(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	events := &eventLog{}
	e.AddObserver(events)
	ctx := context.Background()

	m, err := e.Remember(ctx, types.MemoryInput{Content: "Dentist appointment every March", Confidence: 0.8})
	require.NoError(t, err)

	assert.Equal(t, types.DomainGeneral, m.Domain)
	assert.Equal(t, distill.DefaultEntity, m.Entity)
	assert.Equal(t, types.ClusterMain, m.Cluster)
	assert.Equal(t, types.StatusActive, m.Status)
	assert.Equal(t, 1, events.count(notify.EventMemoryCreated))

	stored, err := e.records.Memories.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dentist appointment every March", stored.Content)
}

func TestRemember_RejectsPII(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	_, err := e.Remember(context.Background(), types.MemoryInput{Content: "the card is 4111 1111 1111 1111"})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
	assert.Empty(t, e.records.ListMemories(context.Background()))
}

func TestRemember_FlagsContradiction(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	prior := seedMemory(t, e, types.MemoryInput{Content: "Standup is at 9:30"}, nil)

	e.checker = checkerFunc(func(candidate *types.Memory, existing []*types.Memory) (distill.Contradiction, error) {
		return distill.Contradiction{IsContradictory: true, ConflictingID: prior.ID, Reasoning: "time changed"}, nil
	})

	m, err := e.Remember(ctx, types.MemoryInput{Content: "Standup is at 10:00"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusContradictory, m.Status)
	assert.Equal(t, prior.ID, m.ConflictingID())
}

func TestUpdateMemory_Toggles(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	events := &eventLog{}
	e.AddObserver(events)
	ctx := context.Background()
	m := seedMemory(t, e, types.MemoryInput{Content: "Parking spot is B12"}, func(m *types.Memory) {
		m.IsPendingApproval = true
	})

	on, off := true, false
	updated, err := e.UpdateMemory(ctx, m.ID, MemoryPatch{IsPinned: &on, IsLocked: &on, IsPendingApproval: &off})
	require.NoError(t, err)
	assert.True(t, updated.IsPinned)
	assert.True(t, updated.IsLocked)
	assert.False(t, updated.IsPendingApproval)
	assert.Equal(t, 1, events.count(notify.EventMemoryUpdated))

	stored, err := e.records.Memories.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPinned)
	assert.Equal(t, m.Cluster, stored.Cluster)
}

func TestUpdateMemory_LockedContent(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	m := seedMemory(t, e, types.MemoryInput{Content: "Parking spot is B12"}, func(m *types.Memory) {
		m.IsLocked = true
	})

	content := "Parking spot is C7"
	off := false
	_, err := e.UpdateMemory(ctx, m.ID, MemoryPatch{Content: &content, IsLocked: &off})
	assert.ErrorIs(t, err, storage.ErrLocked)

	_, err = e.UpdateMemory(ctx, m.ID, MemoryPatch{IsLocked: &off})
	require.NoError(t, err)
	updated, err := e.UpdateMemory(ctx, m.ID, MemoryPatch{Content: &content})
	require.NoError(t, err)
	assert.Equal(t, content, updated.Content)
}

func TestUpdateMemory_Rejects(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	m := seedMemory(t, e, types.MemoryInput{Content: "Parking spot is B12"}, nil)

	pii := "the card is 4111 1111 1111 1111"
	_, err := e.UpdateMemory(ctx, m.ID, MemoryPatch{Content: &pii})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	archived, completed := types.StatusArchived, types.StatusCompleted
	_, err = e.UpdateMemory(ctx, m.ID, MemoryPatch{Status: &archived})
	require.NoError(t, err)
	_, err = e.UpdateMemory(ctx, m.ID, MemoryPatch{Status: &completed})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = e.UpdateMemory(ctx, "mem_missing", MemoryPatch{})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestForget(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()
	m := seedMemory(t, e, types.MemoryInput{Content: "Parking spot is B12"}, nil)

	require.NoError(t, e.Forget(ctx, m.ID))
	assert.Empty(t, e.records.ListMemories(ctx))
	assert.ErrorIs(t, e.Forget(ctx, m.ID), storage.ErrNotFound)
}

func TestStoreReplaced(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	events := &eventLog{}
	e.AddObserver(events)

	e.StoreReplaced(context.Background(), notify.EventStoreReset)
	assert.Equal(t, 1, events.count(notify.EventStoreReset))
}
