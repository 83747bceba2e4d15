package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/pkg/types"
)

// Tick processes at most one queue item. It does nothing while another
// tick is in flight, and returns ErrSafeMode while safe mode is enabled.
// processed reports whether an item was picked. A non-nil error with
// processed=true is the item's failure, already recorded on the item.
//
// Once an item is picked it runs to completion: cancelling ctx does not
// interrupt it.
func (e *Engine) Tick(ctx context.Context) (processed bool, err error) {
	if !e.ticking.CompareAndSwap(false, true) {
		return false, nil
	}
	defer e.ticking.Store(false)

	if e.safeMode.Load() {
		return false, ErrSafeMode
	}

	ctx = context.WithoutCancel(ctx)

	item, err := e.nextItem(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read queue: %w", err)
	}
	if item == nil {
		return false, nil
	}

	item.Status = types.QueueProcessing
	if err := e.records.Queue.Upsert(ctx, item); err != nil {
		return false, fmt.Errorf("failed to mark queue item %s processing: %w", item.ID, err)
	}

	if runErr := e.run(ctx, item); runErr != nil {
		e.fail(ctx, item, runErr)
		return true, runErr
	}

	if err := e.records.Queue.Delete(ctx, item.ID); err != nil {
		log.Printf("ERROR: Failed to remove completed queue item %s: %v", item.ID, err)
	}
	e.emit(notify.EventQueueItemDone, item.ID)
	return true, nil
}

// run dispatches item, converting a panic into an error.
func (e *Engine) run(ctx context.Context, item *types.QueueItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s item: %v", item.Type, r)
		}
	}()
	return e.dispatch(ctx, item)
}

func (e *Engine) dispatch(ctx context.Context, item *types.QueueItem) error {
	switch item.Type {
	case types.QueueMaintenance:
		return e.runMaintenance(ctx)
	case types.QueueInsightGen:
		return e.synthesizeInsights(ctx)
	default:
		return e.ingest(ctx, item)
	}
}

// fail records a failed attempt on item.
func (e *Engine) fail(ctx context.Context, item *types.QueueItem, cause error) {
	item.Status = types.QueueFailed
	item.RetryCount++
	item.Error = cause.Error()

	if err := e.records.Queue.Upsert(ctx, item); err != nil {
		log.Printf("ERROR: Failed to record failure of queue item %s: %v", item.ID, err)
	}

	if item.IsAbandoned(e.config.MaxRetries) {
		log.Printf("ERROR: Queue item %s abandoned after %d attempts: %v", item.ID, item.RetryCount, cause)
	} else {
		log.Printf("WARNING: Queue item %s failed (attempt %d/%d): %v",
			item.ID, item.RetryCount, e.config.MaxRetries, cause)
	}
	e.emit(notify.EventQueueItemFailed, item.ID)
}

// ingest distills raw content into memories. Rejected candidates are
// dropped with a warning; contradictory ones are stored flagged.
func (e *Engine) ingest(ctx context.Context, item *types.QueueItem) error {
	existing, err := e.records.Memories.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to load memories: %w", err)
	}

	now := e.clock()
	stored := 0
	for _, candidate := range distill.Distill(item.Content, now) {
		candidate.SetMeta(types.MetaQueueItemID, item.ID)
		if item.Type == types.QueueImage || item.Type == types.QueueDiarization {
			candidate.SetMeta(types.MetaTopic, string(item.Type))
		}

		if err := e.validator.Validate(candidate); err != nil {
			var rejection *distill.RejectionError
			if !errors.As(err, &rejection) {
				return err
			}
			log.Printf("WARNING: Dropping candidate from queue item %s: %v", item.ID, rejection)
			continue
		}

		if err := e.flagContradiction(ctx, candidate, existing); err != nil {
			return err
		}

		if err := e.records.AddMemory(ctx, candidate); err != nil {
			return fmt.Errorf("failed to store memory: %w", err)
		}
		existing = append(existing, candidate)
		stored++
		e.emit(notify.EventMemoryCreated, candidate.ID)
	}

	log.Printf("Queue item %s distilled into %d memories", item.ID, stored)
	return nil
}

// flagContradiction marks candidate contradictory when the checker finds a
// conflict with a known record.
func (e *Engine) flagContradiction(ctx context.Context, candidate *types.Memory, existing []*types.Memory) error {
	verdict, err := e.checker.Check(ctx, candidate, existing)
	if err != nil {
		return fmt.Errorf("contradiction check failed: %w", err)
	}
	if !verdict.IsContradictory {
		return nil
	}
	if verdict.ConflictingID == "" {
		log.Printf("WARNING: Contradiction reported for %s without a conflicting record, storing as active", candidate.ID)
		candidate.Justification = verdict.Reasoning
		return nil
	}
	candidate.MarkContradictory(verdict.ConflictingID, verdict.Reasoning)
	return nil
}
