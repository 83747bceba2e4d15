package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrypster/mneme/internal/distill"
	"github.com/scrypster/mneme/internal/notify"
	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

// Remember stores a caller-supplied memory after the same validation and
// contradiction check the worker applies. A rejected candidate returns an
// error wrapping storage.ErrInvalidInput.
func (e *Engine) Remember(ctx context.Context, in types.MemoryInput) (*types.Memory, error) {
	if in.Entity == "" {
		in.Entity = distill.DefaultEntity
	}
	if in.Domain == "" {
		in.Domain = types.DomainGeneral
	}
	if in.Cluster == "" {
		in.Cluster = e.activeCluster()
	}
	m := types.NewMemory(in, e.clock())

	if err := e.validator.Validate(m); err != nil {
		var rejection *distill.RejectionError
		if errors.As(err, &rejection) {
			return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, rejection)
		}
		return nil, err
	}

	existing, err := e.records.Memories.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load memories: %w", err)
	}
	if err := e.flagContradiction(ctx, m, existing); err != nil {
		return nil, err
	}
	if err := e.records.AddMemory(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store memory: %w", err)
	}
	e.RecordActivity(m.CreatedAt)
	e.emit(notify.EventMemoryCreated, m.ID)
	return m, nil
}

// MemoryPatch lists the user-editable fields of a stored memory. Nil fields
// are left unchanged.
type MemoryPatch struct {
	Content           *string
	Status            *types.MemoryStatus
	RecallPriority    *types.RecallPriority
	Salience          *float64
	IsPinned          *bool
	IsLocked          *bool
	IsPendingApproval *bool
}

// UpdateMemory applies the approval, lock and pin toggles and content or
// status edits in patch. Content changes are validated like new memories
// and rejected with storage.ErrLocked while the stored memory is locked,
// so unlocking and editing take two calls.
func (e *Engine) UpdateMemory(ctx context.Context, id string, patch MemoryPatch) (*types.Memory, error) {
	stored, err := e.records.Memories.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m := *stored

	if patch.Content != nil && *patch.Content != stored.Content {
		if stored.IsLocked {
			return nil, fmt.Errorf("%w: %s", storage.ErrLocked, id)
		}
		m.Content = *patch.Content
		if err := e.validator.Validate(&m); err != nil {
			var rejection *distill.RejectionError
			if errors.As(err, &rejection) {
				return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, rejection)
			}
			return nil, err
		}
	}
	if patch.Status != nil && *patch.Status != stored.Status {
		if !types.IsValidStatusTransition(stored.Status, *patch.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", storage.ErrInvalidInput, stored.Status, *patch.Status)
		}
		m.Status = *patch.Status
	}
	if patch.RecallPriority != nil {
		m.RecallPriority = *patch.RecallPriority
	}
	if patch.Salience != nil {
		m.Salience = types.ClampUnit(*patch.Salience)
	}
	if patch.IsPinned != nil {
		m.IsPinned = *patch.IsPinned
	}
	if patch.IsLocked != nil {
		m.IsLocked = *patch.IsLocked
	}
	if patch.IsPendingApproval != nil {
		m.IsPendingApproval = *patch.IsPendingApproval
	}

	if err := e.records.UpdateMemory(ctx, &m); err != nil {
		return nil, err
	}
	e.RecordActivity(e.clock())
	e.emit(notify.EventMemoryUpdated, m.ID)
	return &m, nil
}

// Forget permanently deletes a memory.
func (e *Engine) Forget(ctx context.Context, id string) error {
	if _, err := e.records.Memories.Get(ctx, id); err != nil {
		return err
	}
	return e.records.DeleteMemory(ctx, id)
}

// StoreReplaced reloads engine state after the store was imported or reset
// underneath it and notifies observers with eventType.
func (e *Engine) StoreReplaced(ctx context.Context, eventType string) {
	e.ReloadState(ctx)
	e.emit(eventType, "")
}
