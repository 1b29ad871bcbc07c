package hub

import "sync"

// emitter is a small named-event callback registry. Connections and the
// server each carry their own; there is no global dispatcher. Handlers for
// one event fire in registration order.
type emitter struct {
	mu     sync.RWMutex
	nextID int
	lists  map[string][]handlerEntry
}

type handlerEntry struct {
	id int
	fn func(any)
}

// on registers fn for the named event and returns an unsubscribe func.
// Unsubscribing twice is a no-op.
func (e *emitter) on(event string, fn func(any)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lists == nil {
		e.lists = make(map[string][]handlerEntry)
	}
	e.nextID++
	id := e.nextID
	e.lists[event] = append(e.lists[event], handlerEntry{id: id, fn: fn})
	return func() { e.off(event, id) }
}

func (e *emitter) off(event string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entries := e.lists[event]
	for i, entry := range entries {
		if entry.id == id {
			e.lists[event] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// emit calls every handler registered for the event with the payload.
// Handlers run on the caller's goroutine; a snapshot is taken under the
// read lock so handlers may subscribe or unsubscribe while firing.
func (e *emitter) emit(event string, payload any) {
	e.mu.RLock()
	entries := e.lists[event]
	snapshot := make([]handlerEntry, len(entries))
	copy(snapshot, entries)
	e.mu.RUnlock()
	for _, entry := range snapshot {
		entry.fn(payload)
	}
}

// removeAll detaches every handler. Called once, when a connection reaches
// the closed state.
func (e *emitter) removeAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lists = nil
}
