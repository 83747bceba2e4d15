package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// Collection is a typed view over one KVStore collection. Records are JSON
// encoded. Reads skip corrupt records (logged) instead of failing the whole
// collection.
type Collection[T any] struct {
	kv    KVStore
	name  string
	keyOf func(*T) string
	cache *Cache
}

// NewCollection creates a typed collection. keyOf extracts the record key.
// cache may be nil.
func NewCollection[T any](kv KVStore, name string, keyOf func(*T) string, cache *Cache) *Collection[T] {
	return &Collection[T]{kv: kv, name: name, keyOf: keyOf, cache: cache}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Key returns the key item is stored under.
func (c *Collection[T]) Key(item *T) string { return c.keyOf(item) }

func (c *Collection[T]) entries(ctx context.Context) ([]Entry, error) {
	if c.cache == nil {
		return c.kv.List(ctx, c.name)
	}
	if entries, ok := c.cache.load(c.name); ok {
		return entries, nil
	}
	gen := c.cache.generation(c.name)
	entries, err := c.kv.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	c.cache.store(c.name, entries, gen)
	return entries, nil
}

func (c *Collection[T]) invalidate() {
	if c.cache != nil {
		c.cache.invalidate(c.name)
	}
}

// All returns every record in insertion order.
func (c *Collection[T]) All(ctx context.Context) ([]*T, error) {
	entries, err := c.entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.name, err)
	}

	items := make([]*T, 0, len(entries))
	for _, e := range entries {
		var item T
		if err := json.Unmarshal(e.Value, &item); err != nil {
			log.Printf("WARNING: skipping corrupt record %s/%s: %v", c.name, e.Key, err)
			continue
		}
		items = append(items, &item)
	}
	return items, nil
}

// AllOr returns every record, or def when the collection cannot be read.
func (c *Collection[T]) AllOr(ctx context.Context, def []*T) []*T {
	items, err := c.All(ctx)
	if err != nil {
		log.Printf("ERROR: %v", err)
		return def
	}
	return items
}

// Get returns the record stored under key.
// Returns ErrNotFound if the key doesn't exist.
func (c *Collection[T]) Get(ctx context.Context, key string) (*T, error) {
	data, err := c.kv.Get(ctx, c.name, key)
	if err != nil {
		return nil, err
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode %s/%s: %w", c.name, key, err)
	}
	return &item, nil
}

// Upsert creates or replaces a single record.
// An encoding failure is logged and the record is not written.
func (c *Collection[T]) Upsert(ctx context.Context, item *T) error {
	if item == nil {
		return ErrInvalidInput
	}
	key := c.keyOf(item)
	if key == "" {
		return fmt.Errorf("%w: %s record key is required", ErrInvalidInput, c.name)
	}

	data, err := json.Marshal(item)
	if err != nil {
		log.Printf("ERROR: failed to encode %s/%s, write skipped: %v", c.name, key, err)
		return nil
	}

	defer c.invalidate()
	if err := c.kv.Put(ctx, c.name, key, data); err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", c.name, key, err)
	}
	return nil
}

// Delete removes a single record.
// Returns ErrNotFound if the key doesn't exist.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	defer c.invalidate()
	if err := c.kv.Delete(ctx, c.name, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete %s/%s: %w", c.name, key, err)
	}
	return nil
}

// ReplaceAll replaces the whole collection with items, in order.
// Nothing is written if any item fails to encode.
func (c *Collection[T]) ReplaceAll(ctx context.Context, items []*T) error {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		data, err := json.Marshal(item)
		if err != nil {
			log.Printf("ERROR: failed to encode %s record, collection write skipped: %v", c.name, err)
			return nil
		}
		entries = append(entries, Entry{Key: c.keyOf(item), Value: data})
	}

	defer c.invalidate()
	if err := c.kv.ReplaceCollection(ctx, c.name, entries); err != nil {
		return fmt.Errorf("failed to replace %s: %w", c.name, err)
	}
	return nil
}

// Update loads the record under key, applies fn, and writes it back.
// If fn returns an error nothing is written.
func (c *Collection[T]) Update(ctx context.Context, key string, fn func(*T) error) (*T, error) {
	item, err := c.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := fn(item); err != nil {
		return nil, err
	}
	if err := c.Upsert(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Clear removes every record.
func (c *Collection[T]) Clear(ctx context.Context) error {
	defer c.invalidate()
	if err := c.kv.DeleteCollection(ctx, c.name); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c.name, err)
	}
	return nil
}

// Count returns the number of stored records.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	entries, err := c.entries(ctx)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}
