package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/internal/storage/sqlite"
	"github.com/scrypster/mneme/pkg/types"
)

var testEpoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// fakeClock is a settable clock shared by the engine under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testEpoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// createTestRecords returns a record store on an in-memory SQLite database.
func createTestRecords(t *testing.T) *storage.Records {
	t.Helper()
	kv, err := sqlite.NewKVStore(":memory:")
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { _ = kv.Close() })
	return storage.NewRecords(kv, nil)
}

// newTestEngine creates an unstarted engine over a fresh store. mutate may
// adjust the deps before construction.
func newTestEngine(t *testing.T, mutate func(*Deps, *Config)) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	deps := Deps{
		Records:   createTestRecords(t),
		Validator: distill.NewValidator(true),
		Clock:     clock.Now,
		Durable:   true,
	}
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&deps, &cfg)
	}
	e, err := New(deps, cfg)
	require.NoError(t, err)
	return e, clock
}

// failingChecker fails every contradiction check.
type failingChecker struct{}

func (failingChecker) Check(ctx context.Context, candidate *types.Memory, existing []*types.Memory) (distill.Contradiction, error) {
	return distill.Contradiction{}, errors.New("semantic backend unreachable")
}

// checkerFunc adapts a function to distill.ContradictionChecker.
type checkerFunc func(candidate *types.Memory, existing []*types.Memory) (distill.Contradiction, error)

func (f checkerFunc) Check(ctx context.Context, candidate *types.Memory, existing []*types.Memory) (distill.Contradiction, error) {
	return f(candidate, existing)
}

// fixedReasoner returns a canned assessment.
type fixedReasoner struct {
	result types.ReasoningResult
}

func (r fixedReasoner) Summarize(ctx context.Context, input string, related []string) (types.ReasoningResult, error) {
	res := r.result
	if res.SummaryOfChange == "" {
		res.SummaryOfChange = input
	}
	return res, nil
}

// eventLog collects observer events.
type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) StoreUpdated(evt notify.Event) {
	l.mu.Lock()
	l.events = append(l.events, evt)
	l.mu.Unlock()
}

func (l *eventLog) count(eventType string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// seedMemory stores a memory built from in at the engine clock.
func seedMemory(t *testing.T, e *Engine, in types.MemoryInput, mutate func(*types.Memory)) *types.Memory {
	t.Helper()
	if in.Domain == "" {
		in.Domain = types.DomainGeneral
	}
	if in.Entity == "" {
		in.Entity = "user"
	}
	m := types.NewMemory(in, e.clock())
	if mutate != nil {
		mutate(m)
	}
	require.NoError(t, e.records.AddMemory(context.Background(), m))
	return m
}

func queueItems(t *testing.T, e *Engine) []*types.QueueItem {
	t.Helper()
	items, err := e.ListQueue(context.Background())
	require.NoError(t, err)
	return items
}
