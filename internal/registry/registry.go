// Package registry multiplexes asynchronous network response fragments back
// to per-event callers. Fragments accumulate until the event id is
// unregistered, which is the signal that no more fragments will arrive.
package registry

import (
	"sync"

	"github.com/telemetry-sdk/edge-delivery/internal/domain/entity"
)

// CompletionCallback receives every fragment collected for one event id, in
// arrival order. It is invoked exactly once per registration.
type CompletionCallback func(handles []entity.EventHandle)

type registration struct {
	callback CompletionCallback
	handles  []entity.EventHandle
}

// Completion is the registry of pending callbacks. The single mutex is
// deliberate: the number of in-flight event ids is bounded by the queue depth.
type Completion struct {
	mu      sync.Mutex
	pending map[string]*registration
}

func NewCompletion() *Completion {
	return &Completion{
		pending: make(map[string]*registration),
	}
}

// Register stores a callback for the given event id, silently superseding any
// prior registration. Empty ids and nil callbacks are ignored.
func (c *Completion) Register(eventID string, callback CompletionCallback) {
	if eventID == "" || callback == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[eventID] = &registration{callback: callback}
}

// AddFragment appends a response fragment for the given event id. Fragments
// for unregistered ids are discarded.
func (c *Completion) AddFragment(eventID string, handle entity.EventHandle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reg, found := c.pending[eventID]
	if !found {
		return
	}

	reg.handles = append(reg.handles, handle)
}

// Unregister removes the registration for the given event id and invokes its
// callback exactly once with the accumulated fragments, possibly none.
// Unregistering an unknown or empty id is a no-op. The callback runs outside
// the registry lock so it may safely call back into the registry.
func (c *Completion) Unregister(eventID string) {
	c.mu.Lock()
	reg, found := c.pending[eventID]
	delete(c.pending, eventID)
	c.mu.Unlock()

	if !found {
		return
	}

	reg.callback(reg.handles)
}

// Pending returns the number of registered event ids.
func (c *Completion) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}
