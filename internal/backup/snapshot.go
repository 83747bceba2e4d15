package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scrypster/mneme/internal/storage"
)

// Export reads every collection into a Snapshot.
func Export(ctx context.Context, records *storage.Records) (*Snapshot, error) {
	s := &Snapshot{Version: SnapshotVersion, ExportedAt: time.Now().UTC()}

	var err error
	if s.Memories, err = records.Memories.All(ctx); err != nil {
		return nil, fmt.Errorf("export memories: %w", err)
	}
	if s.People, err = records.People.All(ctx); err != nil {
		return nil, fmt.Errorf("export people: %w", err)
	}
	if s.Reminders, err = records.Reminders.All(ctx); err != nil {
		return nil, fmt.Errorf("export reminders: %w", err)
	}
	if s.Places, err = records.Places.All(ctx); err != nil {
		return nil, fmt.Errorf("export places: %w", err)
	}
	if s.Queue, err = records.Queue.All(ctx); err != nil {
		return nil, fmt.Errorf("export queue: %w", err)
	}
	if s.DecisionLogs, err = records.DecisionLogs.All(ctx); err != nil {
		return nil, fmt.Errorf("export decision logs: %w", err)
	}
	if s.Clarifications, err = records.Clarifications.All(ctx); err != nil {
		return nil, fmt.Errorf("export clarifications: %w", err)
	}
	if s.Transcriptions, err = records.Transcriptions.All(ctx); err != nil {
		return nil, fmt.Errorf("export transcriptions: %w", err)
	}
	if s.Devices, err = records.Devices.All(ctx); err != nil {
		return nil, fmt.Errorf("export devices: %w", err)
	}

	st := records.LoadControllerState(ctx)
	s.Bias = &st
	return s, nil
}

// Import replaces every collection with the contents of s. Each collection
// is replaced as a whole; collections absent from s end up empty.
func Import(ctx context.Context, records *storage.Records, s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("%w: snapshot is required", storage.ErrInvalidInput)
	}
	if s.Version < 1 || s.Version > SnapshotVersion {
		return fmt.Errorf("%w: unsupported snapshot version %d", storage.ErrInvalidInput, s.Version)
	}
	keyed := []error{
		checkKeys(records.Memories, s.Memories),
		checkKeys(records.People, s.People),
		checkKeys(records.Reminders, s.Reminders),
		checkKeys(records.Places, s.Places),
		checkKeys(records.Queue, s.Queue),
		checkKeys(records.DecisionLogs, s.DecisionLogs),
		checkKeys(records.Clarifications, s.Clarifications),
		checkKeys(records.Transcriptions, s.Transcriptions),
		checkKeys(records.Devices, s.Devices),
	}
	if err := errors.Join(keyed...); err != nil {
		return err
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"memories", func() error { return records.Memories.ReplaceAll(ctx, s.Memories) }},
		{"people", func() error { return records.People.ReplaceAll(ctx, s.People) }},
		{"reminders", func() error { return records.Reminders.ReplaceAll(ctx, s.Reminders) }},
		{"places", func() error { return records.Places.ReplaceAll(ctx, s.Places) }},
		{"queue", func() error { return records.Queue.ReplaceAll(ctx, s.Queue) }},
		{"decision logs", func() error { return records.DecisionLogs.ReplaceAll(ctx, s.DecisionLogs) }},
		{"clarifications", func() error { return records.Clarifications.ReplaceAll(ctx, s.Clarifications) }},
		{"transcriptions", func() error { return records.Transcriptions.ReplaceAll(ctx, s.Transcriptions) }},
		{"devices", func() error { return records.Devices.ReplaceAll(ctx, s.Devices) }},
		{"bias", func() error {
			st := storage.ControllerState{}
			if s.Bias != nil {
				st = *s.Bias
			}
			return records.SaveControllerState(ctx, st)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("import %s: %w", step.name, err)
		}
	}
	return nil
}

// checkKeys rejects records that would be stored under an empty key.
func checkKeys[T any](c *storage.Collection[T], items []*T) error {
	for _, item := range items {
		if item != nil && c.Key(item) == "" {
			return fmt.Errorf("%w: snapshot contains a %s record without an id", storage.ErrInvalidInput, c.Name())
		}
	}
	return nil
}

// FactoryReset clears every collection.
func FactoryReset(ctx context.Context, records *storage.Records) error {
	return records.FactoryReset(ctx)
}

// Encode writes s as indented JSON.
func Encode(s *Snapshot) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Decode parses a snapshot document.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: invalid snapshot: %v", storage.ErrInvalidInput, err)
	}
	return &s, nil
}

// WriteFile writes s to path atomically.
func WriteFile(path string, s *Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return nil
}

// ReadFile reads a snapshot written by WriteFile.
func ReadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return Decode(data)
}
