package notify

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// EventWriter writes notification event files to a shared directory so
// that other processes on the same data path see store updates.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Notify writes an event file for evt.
// Safe to call concurrently. Errors are returned but not fatal.
func (w *EventWriter) Notify(evt Event) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	filename := fmt.Sprintf("%d-%s.event", evt.Time.UnixNano(), sanitizeID(evt.ID))
	return os.WriteFile(filepath.Join(w.dir, filename), data, 0o600)
}

// StoreUpdated implements Observer. Write failures are logged.
func (w *EventWriter) StoreUpdated(evt Event) {
	if err := w.Notify(evt); err != nil {
		log.Printf("WARNING: notify: %v", err)
	}
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	if id == "" {
		return "store"
	}
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = id[i]
		}
	}
	return string(out)
}
