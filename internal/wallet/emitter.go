package wallet

import (
	"encoding/json"
	"slices"
	"sync"
)

// Emitter is a listener set keyed by event name. Listeners are invoked
// outside the emitter's lock so they may call back into the provider.
type Emitter struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[string]map[ListenerID]Listener
}

// On registers fn for event and returns its id.
func (e *Emitter) On(event string, fn Listener) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listeners == nil {
		e.listeners = make(map[string]map[ListenerID]Listener)
	}
	if e.listeners[event] == nil {
		e.listeners[event] = make(map[ListenerID]Listener)
	}
	e.nextID++
	e.listeners[event][e.nextID] = fn
	return e.nextID
}

// RemoveListener unregisters a listener
func (e *Emitter) RemoveListener(event string, id ListenerID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	set := e.listeners[event]
	delete(set, id)
	if len(set) == 0 {
		delete(e.listeners, event)
	}
}

// Emit delivers payload to every listener of event, in registration order.
func (e *Emitter) Emit(event string, payload json.RawMessage) {
	e.mu.Lock()
	set := e.listeners[event]
	ids := make([]ListenerID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	fns := make([]Listener, 0, len(set))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, set[id])
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// ListenerCount returns how many listeners are registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}
