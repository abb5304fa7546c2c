package bridge

import (
	"sync"

	"github.com/media-bridge/backend/internal/session"
)

// Handler receives one bridge event. Handlers run on the bridge's dispatch
// goroutine and must not call Subscribe, Unsubscribe, or Shutdown for
// their own kind from inside the handler.
type Handler func(session.Event)

// slot holds at most one live handler for a single event kind. The mutex
// is held across handler invocation, so remove() returning means no
// delivery for this kind is in flight and none can start.
type slot struct {
	mu   sync.Mutex
	fn   Handler
	live bool
}

// slotTable is the fixed table of callback slots, one per event kind.
type slotTable struct {
	slots [session.KindCount]slot
}

// install swaps in the new handler. The previous handler, if any, is
// returned so the caller drops the reference outside the slot lock; an
// invoke racing with install either completes with the old handler or
// runs the new one, never a half-released slot.
func (t *slotTable) install(kind session.EventKind, fn Handler) {
	s := &t.slots[kind]
	s.mu.Lock()
	prev := s.fn
	s.fn = fn
	s.live = true
	s.mu.Unlock()
	_ = prev // released here, outside the lock
}

// remove marks the slot dead and takes the handler out. Because the slot
// lock is held during invocation, remove blocks until any in-flight
// delivery for this kind finishes; after it returns no handler for the
// kind can run.
func (t *slotTable) remove(kind session.EventKind) {
	s := &t.slots[kind]
	s.mu.Lock()
	fn := s.fn
	s.fn = nil
	s.live = false
	s.mu.Unlock()
	_ = fn // released outside the lock
}

// invoke delivers one event to the slot's handler, if live. The liveness
// check and the handler fetch happen under the slot lock as a single
// serialized step.
func (t *slotTable) invoke(kind session.EventKind, ev session.Event) {
	s := &t.slots[kind]
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live || s.fn == nil {
		return
	}
	s.fn(ev)
}

// isLive reports whether the slot currently has a live handler.
func (t *slotTable) isLive(kind session.EventKind) bool {
	s := &t.slots[kind]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// livePerSessionKinds returns the per-session kinds that currently need
// wiring for newly registered sessions.
func (t *slotTable) livePerSessionKinds() []session.EventKind {
	var kinds []session.EventKind
	for _, k := range session.PerSessionKinds() {
		if t.isLive(k) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// removeAll kills every slot; used only during teardown.
func (t *slotTable) removeAll() {
	for k := session.EventKind(0); k < session.KindCount; k++ {
		t.remove(k)
	}
}
