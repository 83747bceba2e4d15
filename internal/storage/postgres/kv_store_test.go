package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/internal/storage/postgres"
)

// postgresTestDSN returns the DSN for the test database.
// If POSTGRES_TEST_DSN is not set, tests are skipped.
func postgresTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh KVStore connected to the test database.
func newTestStore(t *testing.T) *postgres.KVStore {
	t.Helper()

	store, err := postgres.NewKVStore(postgresTestDSN(t))
	require.NoError(t, err, "NewKVStore should succeed")
	require.NoError(t, store.TruncateForTest(context.Background()))

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestPutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "memories", "m1", []byte("one")))
	require.NoError(t, store.Put(ctx, "memories", "m1", []byte("uno")))

	got, err := store.Get(ctx, "memories", "m1")
	require.NoError(t, err)
	assert.Equal(t, "uno", string(got))
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "memories", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDelete_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.Delete(context.Background(), "memories", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestList_InsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"z", "y", "x"} {
		require.NoError(t, store.Put(ctx, "queue", k, []byte(k)))
	}
	require.NoError(t, store.Put(ctx, "queue", "z", []byte("z2")))

	entries, err := store.List(ctx, "queue")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"z", "y", "x"}, []string{entries[0].Key, entries[1].Key, entries[2].Key})
}

func TestReplaceCollection_Rollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "people", "p1", []byte("one")))
	err := store.ReplaceCollection(ctx, "people", []storage.Entry{
		{Key: "p2", Value: []byte("two")},
		{Key: "", Value: []byte("bad")},
	})
	require.Error(t, err)

	entries, err := store.List(ctx, "people")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "p1", entries[0].Key)
}

func TestUsage(t *testing.T) {
	store := newTestStore(t)
	used, err := store.Usage(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, used, int64(0))
}
