package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// probeKey is written and deleted by Probe.
const probeKey = "__probe__"

// Opened is the result of OpenWithFallback.
type Opened struct {
	// KV is the store to use. It is a MemoryKV when the durable medium failed.
	KV KVStore

	// Durable is false when running on the in-process fallback.
	Durable bool

	// Warnings lists human-readable boot problems.
	Warnings []string
}

// Probe verifies the medium accepts a write and a delete.
func Probe(ctx context.Context, kv KVStore) error {
	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	if err := kv.Put(ctx, CollectionSystem, probeKey, stamp); err != nil {
		return fmt.Errorf("%w: probe write failed: %v", ErrUnavailable, err)
	}
	if err := kv.Delete(ctx, CollectionSystem, probeKey); err != nil {
		return fmt.Errorf("%w: probe delete failed: %v", ErrUnavailable, err)
	}
	return nil
}

// OpenWithFallback opens the durable store with open and probes it. If
// opening or probing fails the whole store switches to a non-durable
// MemoryKV and the failure is reported as a boot warning.
func OpenWithFallback(ctx context.Context, open func() (KVStore, error)) Opened {
	kv, err := open()
	if err == nil {
		if err = Probe(ctx, kv); err == nil {
			return Opened{KV: kv, Durable: true}
		}
		_ = kv.Close()
	}

	log.Printf("ERROR: durable storage unavailable, falling back to in-process store: %v", err)
	return Opened{
		KV:      NewMemoryKV(),
		Durable: false,
		Warnings: []string{
			fmt.Sprintf("storage unreachable: %v", err),
			"running on non-durable in-memory storage; changes will be lost on exit",
		},
	}
}
