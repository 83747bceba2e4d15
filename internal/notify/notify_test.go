package notify

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	if err := w.Notify(NewEvent(EventQueueItemDone, "queue:abc123")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".event" {
		t.Errorf("expected .event extension, got %s", entries[0].Name())
	}
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	dir := t.TempDir()

	received := make(chan Event, 1)
	watcher := NewEventWatcher(dir, func(evt Event) {
		received <- evt
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	writer := NewEventWriter(dir)
	if err := writer.Notify(NewEvent(EventMemoryCreated, "mem:general:test123")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case evt := <-received:
		if evt.Type != EventMemoryCreated {
			t.Errorf("expected event type memory_created, got %s", evt.Type)
		}
		if evt.ID != "mem:general:test123" {
			t.Errorf("expected mem:general:test123, got %s", evt.ID)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEventWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	// Write events BEFORE starting watcher
	writer := NewEventWriter(dir)
	_ = writer.Notify(NewEvent(EventMemoryCreated, "mem:general:drain1"))
	_ = writer.Notify(NewEvent(EventMaintenanceDone, ""))

	received := make(chan Event, 10)
	watcher := NewEventWatcher(dir, func(evt Event) {
		received <- evt
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Drain processes both files synchronously during Start
	if len(received) != 2 {
		t.Fatalf("expected 2 drained events, got %d", len(received))
	}
}

func TestEventWatcherStopWithoutStart(t *testing.T) {
	watcher := NewEventWatcher(t.TempDir(), nil)

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a watcher that never started")
	}
}

func TestFanoutDeliversInOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	record := func(name string) Observer {
		return ObserverFunc(func(evt Event) {
			mu.Lock()
			got = append(got, name+":"+evt.Type)
			mu.Unlock()
		})
	}

	var f Fanout
	f.Add(record("a"))
	f.Add(nil)
	f.Add(record("b"))

	if f.Len() != 2 {
		t.Fatalf("expected 2 observers, got %d", f.Len())
	}

	f.StoreUpdated(NewEvent(EventQueueItemFailed, "queue:1"))

	want := []string{"a:queue_item_failed", "b:queue_item_failed"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}

func TestSanitizeID(t *testing.T) {
	if got := sanitizeID("mem:general:abc/def"); got != "mem_general_abc_def" {
		t.Errorf("expected mem_general_abc_def, got %s", got)
	}
	if got := sanitizeID(""); got != "store" {
		t.Errorf("expected store, got %s", got)
	}
}
