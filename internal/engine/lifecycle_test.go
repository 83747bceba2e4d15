package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

// TestEngine_DoubleStart verifies that calling Start() twice returns an error.
// The second call should fail gracefully without panicking or corrupting state.
func TestEngine_DoubleStart(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))

	err := e.Start(ctx)
	require.Error(t, err)
	assert.Equal(t, "engine already started", err.Error())

	_, err = e.AddToQueue(ctx, "still usable after double start", types.QueueText)
	assert.NoError(t, err)

	assert.NoError(t, e.Shutdown(ctx))
}

// TestEngine_ShutdownBeforeStart verifies that Shutdown() before Start()
// returns ErrNotStarted.
func TestEngine_ShutdownBeforeStart(t *testing.T) {
	e, _ := newTestEngine(t, nil)

	assert.ErrorIs(t, e.Shutdown(context.Background()), ErrNotStarted)
}

// TestEngine_RestartAfterShutdown verifies the engine can be started again.
func TestEngine_RestartAfterShutdown(t *testing.T) {
	e, _ := newTestEngine(t, func(_ *Deps, c *Config) {
		c.WorkerInterval = 5 * time.Millisecond
	})
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Shutdown(ctx))
	require.NoError(t, e.Start(ctx))
	require.NoError(t, e.Shutdown(ctx))
}

// TestEngine_WorkerLoopDrainsQueue verifies the ticking worker processes
// queued items without explicit Tick calls.
func TestEngine_WorkerLoopDrainsQueue(t *testing.T) {
	e, _ := newTestEngine(t, func(_ *Deps, c *Config) {
		c.WorkerInterval = 5 * time.Millisecond
		c.SchedulerInterval = time.Hour
	})
	ctx := context.Background()

	require.NoError(t, e.Start(ctx))
	defer func() { _ = e.Shutdown(ctx) }()

	_, err := e.AddToQueue(ctx, "The recycling goes out on Wednesday", types.QueueText)
	require.NoError(t, err)
	_, err = e.AddToQueue(ctx, "Lunch with Priya next week", types.QueueText)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		items, err := e.ListQueue(ctx)
		return err == nil && len(items) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, e.records.ListMemories(ctx), 2)
}

// TestEngine_StartRecoversInterruptedItems verifies that items left in
// processing by a crash count as one failed attempt.
func TestEngine_StartRecoversInterruptedItems(t *testing.T) {
	e, _ := newTestEngine(t, func(_ *Deps, c *Config) {
		c.WorkerInterval = time.Hour
		c.SchedulerInterval = time.Hour
	})
	ctx := context.Background()

	stuck := &types.QueueItem{ID: "queue:crashed", Content: "x", Type: types.QueueText, Status: types.QueueProcessing, RetryCount: 2}
	require.NoError(t, e.records.Queue.Upsert(ctx, stuck))

	require.NoError(t, e.Start(ctx))
	defer func() { _ = e.Shutdown(ctx) }()

	got, err := e.records.Queue.Get(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, types.QueueFailed, got.Status)
	assert.True(t, got.IsAbandoned(e.config.MaxRetries))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Deps{}, DefaultConfig())
	assert.Error(t, err, "records are required")

	cfg := DefaultConfig()
	cfg.MaxRetries = 0
	_, err = New(Deps{Records: createTestRecords(t)}, cfg)
	assert.Error(t, err)
}

func TestRunSystemBootCheck(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		e, _ := newTestEngine(t, nil)
		assert.Empty(t, e.RunSystemBootCheck(context.Background()))
	})

	t.Run("fallback_storage", func(t *testing.T) {
		e, _ := newTestEngine(t, func(d *Deps, _ *Config) {
			d.Records = storage.NewRecords(storage.NewMemoryKV(), nil)
			d.Durable = false
		})
		warnings := e.RunSystemBootCheck(context.Background())
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "non-durable")
	})

	t.Run("open_warnings_are_reported", func(t *testing.T) {
		e, _ := newTestEngine(t, func(d *Deps, _ *Config) {
			d.Durable = false
			d.BootWarnings = []string{"storage unreachable: disk full"}
		})
		assert.Equal(t, []string{"storage unreachable: disk full"}, e.RunSystemBootCheck(context.Background()))
	})

	t.Run("pressure_encryption_and_abandoned", func(t *testing.T) {
		e, _ := newTestEngine(t, func(_ *Deps, c *Config) {
			c.QuotaBytes = 1
			c.EncryptionAtRest = true
		})
		ctx := context.Background()
		require.NoError(t, e.records.Queue.Upsert(ctx, &types.QueueItem{
			ID: "queue:dead", Content: "x", Type: types.QueueText, Status: types.QueueFailed, RetryCount: 3,
		}))

		warnings := strings.Join(e.RunSystemBootCheck(ctx), "\n")
		assert.Contains(t, warnings, "storage pressure")
		assert.Contains(t, warnings, "encryption at rest")
		assert.Contains(t, warnings, "1 queue items abandoned")
	})
}
