package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/mneme/internal/storage"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *KVStore {
	t.Helper()
	store, err := NewKVStore(":memory:")
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "memories", "a", []byte(`{"id":"a"}`)))

	got, err := store.Get(ctx, "memories", "a")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a"}`, string(got))

	_, err = store.Get(ctx, "people", "a")
	assert.ErrorIs(t, err, storage.ErrNotFound, "collections are isolated")

	require.NoError(t, store.Delete(ctx, "memories", "a"))
	_, err = store.Get(ctx, "memories", "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "memories", "a"), storage.ErrNotFound)
}

func TestPutRequiresKey(t *testing.T) {
	store := newTestStore(t)
	err := store.Put(context.Background(), "memories", "", []byte("x"))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestListKeepsInsertionOrderAcrossUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, store.Put(ctx, "queue", k, []byte(k)))
	}
	require.NoError(t, store.Put(ctx, "queue", "c", []byte("c2")))

	entries, err := store.List(ctx, "queue")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[0].Key)
	assert.Equal(t, "c2", string(entries[0].Value))
	assert.Equal(t, "a", entries[1].Key)
	assert.Equal(t, "b", entries[2].Key)
}

func TestReplaceCollectionIsAllOrNothing(t *testing.T) {
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
	require.Len(t, entries, 1, "failed replace must leave the collection untouched")
	assert.Equal(t, "p1", entries[0].Key)

	require.NoError(t, store.ReplaceCollection(ctx, "people", []storage.Entry{
		{Key: "p3", Value: []byte("three")},
		{Key: "p2", Value: []byte("two")},
	}))
	entries, err = store.List(ctx, "people")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "p3", entries[0].Key)
	assert.Equal(t, "p2", entries[1].Key)
}

func TestDeleteCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "places", "x", []byte("x")))
	require.NoError(t, store.Put(ctx, "people", "y", []byte("y")))
	require.NoError(t, store.DeleteCollection(ctx, "places"))

	entries, err := store.List(ctx, "places")
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.Get(ctx, "people", "y")
	assert.NoError(t, err)
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mneme.db")
	ctx := context.Background()

	store, err := NewKVStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "memories", "m1", []byte("hello")))
	require.NoError(t, store.Close())

	reopened, err := NewKVStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "memories", "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	used, err := reopened.Usage(ctx)
	require.NoError(t, err)
	assert.Greater(t, used, int64(0))
}

func TestProbeSucceedsOnSQLite(t *testing.T) {
	assert.NoError(t, storage.Probe(context.Background(), newTestStore(t)))
}

func TestDBPathFromDSN(t *testing.T) {
	cases := map[string]string{
		":memory:":                    "",
		"":                            "",
		"/tmp/mneme.db":               "/tmp/mneme.db",
		"file:/tmp/mneme.db?mode=rwc": "/tmp/mneme.db",
		"file::memory:?cache=shared":  "",
	}
	for dsn, want := range cases {
		assert.Equal(t, want, dbPathFromDSN(dsn), dsn)
	}
}
