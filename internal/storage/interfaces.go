// Package storage provides the durable record store for mneme.
//
// The layer is split in two. KVStore is the byte-level medium: one logical
// collection per entity kind, each record addressable by key, with a
// whole-collection replace for callers that need "no partial write"
// semantics. Collection and Records sit on top and give typed, per-record
// upsert/delete so concurrent writers never overwrite a whole collection by
// accident.
package storage

import "context"

// Entry is one stored record in a collection.
type Entry struct {
	Key   string
	Value []byte
}

// KVStore is a durable key-value byte store partitioned into collections.
// List returns entries in insertion order; upserting an existing key keeps
// its position.
type KVStore interface {
	// Get returns the value stored under key.
	// Returns ErrNotFound if the key doesn't exist.
	Get(ctx context.Context, collection, key string) ([]byte, error)

	// Put creates or replaces the value stored under key (upsert semantics).
	Put(ctx context.Context, collection, key string, value []byte) error

	// Delete removes the value stored under key.
	// Returns ErrNotFound if the key doesn't exist.
	Delete(ctx context.Context, collection, key string) error

	// List returns every entry of a collection in insertion order.
	List(ctx context.Context, collection string) ([]Entry, error)

	// ReplaceCollection atomically replaces the whole collection with entries.
	// Either every entry is written or the collection is left untouched.
	ReplaceCollection(ctx context.Context, collection string, entries []Entry) error

	// DeleteCollection removes every entry of a collection.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases any resources held by the store.
	Close() error
}

// UsageReporter is implemented by stores that can report their footprint.
type UsageReporter interface {
	// Usage returns the number of bytes currently used by the store.
	Usage(ctx context.Context) (int64, error)
}
