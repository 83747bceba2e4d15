package storage

import "errors"

var (
	// ErrNotFound indicates that the requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable indicates that the storage medium failed its probe.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrLocked indicates an attempt to change the content of a locked memory.
	ErrLocked = errors.New("memory is locked")
)

// Collection names. Each is stored as its own addressable blob set.
const (
	CollectionMemories       = "memories"
	CollectionPeople         = "people"
	CollectionReminders      = "reminders"
	CollectionPlaces         = "places"
	CollectionQueue          = "queue"
	CollectionDecisionLogs   = "decision_logs"
	CollectionBias           = "bias"
	CollectionBiasSnapshots  = "bias_snapshots"
	CollectionClarifications = "clarifications"
	CollectionTranscriptions = "transcriptions"
	CollectionDevices        = "devices"
	CollectionSystem         = "system"
)

// AllCollections lists every collection cleared by a factory reset.
var AllCollections = []string{
	CollectionMemories,
	CollectionPeople,
	CollectionReminders,
	CollectionPlaces,
	CollectionQueue,
	CollectionDecisionLogs,
	CollectionBias,
	CollectionBiasSnapshots,
	CollectionClarifications,
	CollectionTranscriptions,
	CollectionDevices,
	CollectionSystem,
}
