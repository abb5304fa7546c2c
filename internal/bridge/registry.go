package bridge

import (
	"log"
	"sort"
	"sync"

	"github.com/media-bridge/backend/internal/session"
	"github.com/media-bridge/backend/internal/source"
)

// unsubFunc cancels one per-session subscription at the source.
type unsubFunc func() error

// regEntry is the bookkeeping for one tracked session: its latest handle
// and the unsubscribe closures for each wired event kind. pending marks
// kinds whose source subscribe call is in flight, so concurrent
// registration passes can't double-wire a kind.
type regEntry struct {
	handle  source.Handle
	subs    map[session.EventKind]unsubFunc
	pending map[session.EventKind]bool
}

// tokenRegistry owns the per-session subscription set. The registry lock
// guards only the maps; source (un)subscribe calls always happen outside
// it, so a notification goroutine can never block on a slow OS call made
// under this lock.
type tokenRegistry struct {
	mu      sync.Mutex
	entries map[string]*regEntry
}

func newTokenRegistry() *tokenRegistry {
	return &tokenRegistry{
		entries: make(map[string]*regEntry),
	}
}

// register tracks the session and wires any of the wanted kinds that are
// not wired yet. Calling it again with the same kinds is a no-op, so a
// registration pass over an already-tracked session never duplicates
// subscriptions; calling it with additional kinds tops the session up.
// Per-kind subscribe failures are logged and skipped — a session with
// partially-available properties still surfaces the events it supports.
func (r *tokenRegistry) register(id string, h source.Handle, kinds []session.EventKind, subscribe func(session.EventKind) (unsubFunc, error)) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &regEntry{
			subs:    make(map[session.EventKind]unsubFunc),
			pending: make(map[session.EventKind]bool),
		}
		r.entries[id] = e
	}
	e.handle = h // refresh to the latest enumeration's handle
	var missing []session.EventKind
	for _, k := range kinds {
		if _, wired := e.subs[k]; !wired && !e.pending[k] {
			e.pending[k] = true
			missing = append(missing, k)
		}
	}
	r.mu.Unlock()

	for _, k := range missing {
		unsub, err := subscribe(k) // source call, outside the lock
		r.mu.Lock()
		delete(e.pending, k)
		if err != nil {
			r.mu.Unlock()
			log.Printf("[bridge] subscribe %s failed for %s: %v", k, id, err)
			continue
		}
		if cur, tracked := r.entries[id]; tracked && cur == e {
			e.subs[k] = unsub
			r.mu.Unlock()
			continue
		}
		// The session was unregistered while we subscribed; undo.
		r.mu.Unlock()
		if err := unsub(); err != nil {
			log.Printf("[bridge] undo subscribe %s for %s: %v", k, id, err)
		}
	}
}

// unregister invokes every stored unsubscribe handle for id and forgets
// the session. Failures are swallowed — the OS may have torn the session
// down before we got to the explicit unsubscribe. Never errors outward.
func (r *tokenRegistry) unregister(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	unsubs := make([]unsubFunc, 0, len(e.subs))
	for _, f := range e.subs {
		unsubs = append(unsubs, f)
	}
	r.mu.Unlock()

	for _, f := range unsubs {
		if err := f(); err != nil {
			log.Printf("[bridge] unsubscribe for %s: %v (session likely gone)", id, err)
		}
	}
}

// unregisterAll evicts every tracked session; used only during teardown.
func (r *tokenRegistry) unregisterAll() {
	for _, id := range r.identities() {
		r.unregister(id)
	}
}

// tracked reports whether id currently has a registry entry.
func (r *tokenRegistry) tracked(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// lookup returns the latest handle stored for id.
func (r *tokenRegistry) lookup(id string) (source.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.handle == nil {
		return nil, false
	}
	return e.handle, true
}

// identities returns the tracked session identities, sorted.
func (r *tokenRegistry) identities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// wiredKinds returns the kinds currently wired for id, sorted. Test hook.
func (r *tokenRegistry) wiredKinds(id string) []session.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	kinds := make([]session.EventKind, 0, len(e.subs))
	for k := range e.subs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
