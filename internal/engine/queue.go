package engine

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

// AddToQueue enqueues raw content for the worker. An empty type means text.
func (e *Engine) AddToQueue(ctx context.Context, content string, itemType types.QueueItemType) (*types.QueueItem, error) {
	if itemType == "" {
		itemType = types.QueueText
	}
	if !types.IsValidQueueItemType(itemType) {
		return nil, fmt.Errorf("%w: unknown queue item type %q", storage.ErrInvalidInput, itemType)
	}
	content = strings.TrimSpace(content)
	if content == "" && needsContent(itemType) {
		return nil, fmt.Errorf("%w: content is required", storage.ErrInvalidInput)
	}
	if e.limiter != nil && !e.limiter.Allow() {
		return nil, ErrRateLimited
	}

	item, err := e.enqueue(ctx, content, itemType)
	if err != nil {
		return nil, err
	}
	e.RecordActivity(item.Timestamp)
	return item, nil
}

func needsContent(t types.QueueItemType) bool {
	return t != types.QueueMaintenance && t != types.QueueInsightGen
}

// enqueue appends an item without rate limiting.
func (e *Engine) enqueue(ctx context.Context, content string, itemType types.QueueItemType) (*types.QueueItem, error) {
	item := &types.QueueItem{
		ID:        types.NewID("queue"),
		Content:   content,
		Type:      itemType,
		Status:    types.QueuePending,
		Timestamp: e.clock(),
	}
	if err := e.records.Queue.Upsert(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s item: %w", itemType, err)
	}
	return item, nil
}

// ListQueue returns every queue item in insertion order.
func (e *Engine) ListQueue(ctx context.Context) ([]*types.QueueItem, error) {
	return e.records.Queue.All(ctx)
}

// QueueStats counts queue items by state. Failed items that exhausted
// their retries are counted as abandoned, not failed.
func (e *Engine) QueueStats(ctx context.Context) (QueueStats, error) {
	items, err := e.records.Queue.All(ctx)
	if err != nil {
		return QueueStats{}, err
	}

	var stats QueueStats
	for _, item := range items {
		switch {
		case item.Status == types.QueuePending:
			stats.Pending++
		case item.Status == types.QueueProcessing:
			stats.Processing++
		case item.IsAbandoned(e.config.MaxRetries):
			stats.Abandoned++
		case item.Status == types.QueueFailed:
			stats.Failed++
		}
	}
	stats.Total = len(items)
	return stats, nil
}

// nextItem returns the first pending item, else the first failed item
// with retries left, else nil.
func (e *Engine) nextItem(ctx context.Context) (*types.QueueItem, error) {
	items, err := e.records.Queue.All(ctx)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if item.Status == types.QueuePending {
			return item, nil
		}
	}
	for _, item := range items {
		if item.Status == types.QueueFailed && item.Eligible(e.config.MaxRetries) {
			return item, nil
		}
	}
	return nil, nil
}

// RecoverInterrupted marks items left in processing by a previous run as
// failed attempts, so that the retry bound still applies to them.
func (e *Engine) RecoverInterrupted(ctx context.Context) error {
	items, err := e.records.Queue.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}

	recovered := 0
	for _, item := range items {
		if item.Status != types.QueueProcessing {
			continue
		}
		item.Status = types.QueueFailed
		item.RetryCount++
		item.Error = "interrupted before completion"
		if err := e.records.Queue.Upsert(ctx, item); err != nil {
			return fmt.Errorf("failed to recover queue item %s: %w", item.ID, err)
		}
		recovered++
	}

	if recovered > 0 {
		log.Printf("Recovered %d interrupted queue items", recovered)
	}
	return nil
}
