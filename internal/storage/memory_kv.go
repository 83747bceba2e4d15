package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryKV is the non-durable in-process KVStore. It backs tests and is the
// fallback when the durable medium fails its boot probe.
type MemoryKV struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	keys   []string
	values map[string][]byte
}

// NewMemoryKV returns an empty in-process store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{collections: make(map[string]*memCollection)}
}

func (m *MemoryKV) collection(name string, create bool) *memCollection {
	c, ok := m.collections[name]
	if !ok && create {
		c = &memCollection{values: make(map[string][]byte)}
		m.collections[name] = c
	}
	return c
}

// Get returns the value stored under key.
func (m *MemoryKV) Get(ctx context.Context, collection, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.collection(collection, false)
	if c == nil {
		return nil, ErrNotFound
	}
	v, ok := c.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put creates or replaces the value stored under key.
func (m *MemoryKV) Put(ctx context.Context, collection, key string, value []byte) error {
	if collection == "" || key == "" {
		return fmt.Errorf("%w: collection and key are required", ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection, true)
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes the value stored under key.
func (m *MemoryKV) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection, false)
	if c == nil {
		return ErrNotFound
	}
	if _, ok := c.values[key]; !ok {
		return ErrNotFound
	}
	delete(c.values, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return nil
}

// List returns every entry of a collection in insertion order.
func (m *MemoryKV) List(ctx context.Context, collection string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c := m.collection(collection, false)
	if c == nil {
		return nil, nil
	}
	entries := make([]Entry, 0, len(c.keys))
	for _, k := range c.keys {
		entries = append(entries, Entry{Key: k, Value: append([]byte(nil), c.values[k]...)})
	}
	return entries, nil
}

// ReplaceCollection replaces the whole collection with entries.
func (m *MemoryKV) ReplaceCollection(ctx context.Context, collection string, entries []Entry) error {
	next := &memCollection{values: make(map[string][]byte, len(entries))}
	for _, e := range entries {
		if e.Key == "" {
			return fmt.Errorf("%w: empty key in %s", ErrInvalidInput, collection)
		}
		if _, dup := next.values[e.Key]; !dup {
			next.keys = append(next.keys, e.Key)
		}
		next.values[e.Key] = append([]byte(nil), e.Value...)
	}

	m.mu.Lock()
	m.collections[collection] = next
	m.mu.Unlock()
	return nil
}

// DeleteCollection removes every entry of a collection.
func (m *MemoryKV) DeleteCollection(ctx context.Context, collection string) error {
	m.mu.Lock()
	delete(m.collections, collection)
	m.mu.Unlock()
	return nil
}

// Usage returns the approximate number of bytes held.
func (m *MemoryKV) Usage(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, c := range m.collections {
		for k, v := range c.values {
			n += int64(len(k) + len(v))
		}
	}
	return n, nil
}

// Close is a no-op.
func (m *MemoryKV) Close() error { return nil }
