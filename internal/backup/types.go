// Package backup exports the whole record set to a single portable JSON
// document, imports it back, and keeps periodic snapshot files on disk.
package backup

import (
	"time"

	"github.com/scrypster/mneme/internal/storage"
	"github.com/scrypster/mneme/pkg/types"
)

// SnapshotVersion is the document format written by Export.
const SnapshotVersion = 1

// Snapshot is the portable document holding every collection.
type Snapshot struct {
	Version        int                           `json:"version"`
	ExportedAt     time.Time                     `json:"exported_at"`
	Memories       []*types.Memory               `json:"memories"`
	People         []*types.Person               `json:"people"`
	Reminders      []*types.Reminder             `json:"reminders"`
	Places         []*types.Place                `json:"places"`
	Queue          []*types.QueueItem            `json:"queue"`
	DecisionLogs   []*types.DecisionLog          `json:"decision_logs"`
	Bias           *storage.ControllerState      `json:"bias,omitempty"`
	Clarifications []*types.PendingClarification `json:"clarifications"`
	Transcriptions []*types.TranscriptionLog     `json:"transcriptions,omitempty"`
	Devices        []*types.SmartDevice          `json:"devices,omitempty"`
}

// Config holds backup service configuration.
type Config struct {
	// Dir is the directory where snapshot files are stored.
	Dir string

	// Interval is the duration between automated snapshots (default: 1 hour).
	Interval time.Duration

	// Keep is the number of newest snapshot files retained (default: 24).
	Keep int
}

// Info contains metadata about a snapshot file.
type Info struct {
	// Path is the full path to the snapshot file
	Path string `json:"path"`

	// Timestamp is when the snapshot was written
	Timestamp time.Time `json:"timestamp"`

	// Size is the file size in bytes
	Size int64 `json:"size"`
}

// Result contains the result of a snapshot operation.
type Result struct {
	// Path is the path to the created snapshot file
	Path string

	// Duration is how long the snapshot took
	Duration time.Duration

	// Size is the file size in bytes
	Size int64

	// Memories is the number of memories written
	Memories int
}
