// Package notify carries store-updated signals from the engine to its
// observers, in process and across processes through event files.
package notify

import (
	"sync"
	"time"
)

// Event types raised by the engine.
const (
	EventMemoryCreated   = "memory_created"
	EventMemoryUpdated   = "memory_updated"
	EventQueueItemDone   = "queue_item_done"
	EventQueueItemFailed = "queue_item_failed"
	EventMaintenanceDone = "maintenance_done"
	EventStoreReset      = "store_reset"
	EventStoreImported   = "store_imported"
)

// Event describes one store mutation.
type Event struct {
	Type string    `json:"type"`
	ID   string    `json:"id,omitempty"`
	Time time.Time `json:"time"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, id string) Event {
	return Event{Type: eventType, ID: id, Time: time.Now()}
}

// Observer is told about every store mutation. Implementations must not
// block for long; the engine calls them from the worker loop.
type Observer interface {
	StoreUpdated(evt Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(evt Event)

// StoreUpdated calls f(evt).
func (f ObserverFunc) StoreUpdated(evt Event) { f(evt) }

// Fanout delivers each event to every registered observer in order.
type Fanout struct {
	mu        sync.RWMutex
	observers []Observer
}

// Add registers o. Nil observers are ignored.
func (f *Fanout) Add(o Observer) {
	if o == nil {
		return
	}
	f.mu.Lock()
	f.observers = append(f.observers, o)
	f.mu.Unlock()
}

// Len returns the number of registered observers.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.observers)
}

// StoreUpdated forwards evt to every observer.
func (f *Fanout) StoreUpdated(evt Event) {
	f.mu.RLock()
	observers := append([]Observer(nil), f.observers...)
	f.mu.RUnlock()

	for _, o := range observers {
		o.StoreUpdated(evt)
	}
}
