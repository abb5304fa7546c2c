// Package bridge connects an OS media session source to a single
// subscriber surface. It discovers sessions, detects add/remove
// transitions by diffing successive enumerations, deduplicates
// per-session subscriptions, and funnels every notification — whatever
// goroutine the source raised it on — through one delivery channel with
// at most one live callback per event kind.
package bridge

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/media-bridge/backend/internal/session"
	"github.com/media-bridge/backend/internal/source"
)

// notice is the message OS-side callbacks push into the delivery channel:
// the event kind plus the session identity, nothing else. Raw handles are
// never sent across goroutines.
type notice struct {
	kind session.EventKind
	id   string
}

const dropLogInterval = 10 * time.Second

// Options tunes bridge construction.
type Options struct {
	// EventBuffer is the delivery channel capacity. Notifications fired
	// while the buffer is full are dropped (and counted), never blocked
	// on — a slow subscriber must not stall the source's threads.
	// Zero means the default of 256.
	EventBuffer int
}

// Bridge is the session event bridge. All methods are safe for concurrent
// use. Handlers run on the bridge's single dispatch goroutine.
type Bridge struct {
	src      source.Source
	slots    slotTable
	registry *tokenRegistry

	// reconcileMu serializes the fetch-snapshot → diff → react → store
	// sequence so two near-simultaneous manager notifications can't both
	// react to the same stale snapshot. prev is only touched under it.
	reconcileMu sync.Mutex
	prev        identitySet

	// managerMu guards the refcounted manager-level subscription, shared
	// by the sessionadded and sessionremoved kinds.
	managerMu     sync.Mutex
	managerNeeds  [2]bool
	managerRefs   int
	managerActive bool
	managerToken  source.Token

	events chan notice
	stop   chan struct{}
	done   chan struct{}

	closeMu sync.RWMutex
	closed  bool

	dropMu      sync.Mutex
	dropped     int64
	lastDropLog time.Time
}

// New builds a bridge over src and starts its dispatch goroutine. The
// source is checked with one enumeration; failure means the source is
// unavailable and the bridge is not constructed.
func New(src source.Source, opts Options) (*Bridge, error) {
	if src == nil {
		return nil, ErrSourceUnavailable
	}
	buffer := opts.EventBuffer
	if buffer <= 0 {
		buffer = 256
	}
	b := &Bridge{
		src:      src,
		registry: newTokenRegistry(),
		events:   make(chan notice, buffer),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	handles, err := src.Sessions()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	// Track the sessions that exist at construction so the first manager
	// notification diffs against reality, not an empty set.
	for _, h := range handles {
		b.registerSession(h)
	}
	b.prev = identitiesOf(handles)

	go b.dispatch()
	return b, nil
}

// Subscribe installs the handler for kind, superseding any previous
// handler for the same kind, then ensures the prerequisite source
// subscriptions exist: the shared manager-level registration for the
// add/remove kinds, and per-session registrations for every currently
// live session, so a late subscriber still observes sessions that existed
// before it subscribed.
func (b *Bridge) Subscribe(kind session.EventKind, fn Handler) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	if fn == nil {
		return ErrNilHandler
	}
	if b.isClosed() {
		return ErrTornDown
	}

	b.slots.install(kind, fn)

	if kind.ManagerLevel() {
		b.acquireManager(kind)
	}
	b.catchUp()
	return nil
}

// SubscribeName is Subscribe keyed by the event kind's wire name.
func (b *Bridge) SubscribeName(kind string, fn Handler) error {
	k, ok := session.ParseEventKind(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return b.Subscribe(k, fn)
}

// Unsubscribe removes the handler for kind. When it returns, no further
// delivery for the kind can occur: a delivery in flight at the moment of
// the call finishes first (Unsubscribe waits for it), and later deliveries
// observe the dead slot and no-op. Per-session source subscriptions are
// left in place — they become no-ops against the dead slot and are evicted
// with the session.
func (b *Bridge) Unsubscribe(kind session.EventKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, kind)
	}
	if b.isClosed() {
		return ErrTornDown
	}

	b.slots.remove(kind)

	if kind.ManagerLevel() {
		b.releaseManager(kind)
	}
	return nil
}

// UnsubscribeName is Unsubscribe keyed by the event kind's wire name.
func (b *Bridge) UnsubscribeName(kind string) error {
	k, ok := session.ParseEventKind(kind)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return b.Unsubscribe(k)
}

// GetSessions enumerates the source and returns a record per session.
// Every freshly seen session is passed through registration, so a plain
// read also keeps subscriptions current for installed handler kinds.
func (b *Bridge) GetSessions() ([]*session.Record, error) {
	if b.isClosed() {
		return nil, ErrTornDown
	}
	handles, err := b.src.Sessions()
	if err != nil {
		return nil, fmt.Errorf("enumerate sessions: %w", err)
	}
	records := make([]*session.Record, 0, len(handles))
	for _, h := range handles {
		b.registerSession(h)
		records = append(records, snapshotRecord(h))
	}
	return records, nil
}

// GetCurrentSession returns the source's current session, or nil when
// there is none.
func (b *Bridge) GetCurrentSession() (*session.Record, error) {
	if b.isClosed() {
		return nil, ErrTornDown
	}
	h, err := b.src.Current()
	if err != nil {
		return nil, fmt.Errorf("current session: %w", err)
	}
	if h == nil {
		return nil, nil
	}
	b.registerSession(h)
	return snapshotRecord(h), nil
}

// GetSessionByID returns the record for the session with the given
// identity, or nil when no such session is active.
func (b *Bridge) GetSessionByID(id string) (*session.Record, error) {
	if b.isClosed() {
		return nil, ErrTornDown
	}
	handles, err := b.src.Sessions()
	if err != nil {
		return nil, fmt.Errorf("enumerate sessions: %w", err)
	}
	var found *session.Record
	for _, h := range handles {
		b.registerSession(h)
		if found == nil && h.ID() == id {
			found = snapshotRecord(h)
		}
	}
	return found, nil
}

// Shutdown tears the bridge down: evicts every per-session subscription,
// releases the manager-level subscription, kills every callback slot,
// stops the dispatcher, and closes the source. It is idempotent and never
// fails — teardown errors are logged and swallowed. When it returns, no
// handler can run again.
func (b *Bridge) Shutdown() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return
	}
	b.closed = true
	b.closeMu.Unlock()

	b.registry.unregisterAll()

	b.managerMu.Lock()
	tok, active := b.managerToken, b.managerActive
	b.managerActive = false
	b.managerRefs = 0
	b.managerNeeds = [2]bool{}
	b.managerMu.Unlock()
	if active {
		if err := b.src.Unsubscribe(tok); err != nil {
			log.Printf("[bridge] teardown: manager unsubscribe: %v", err)
		}
	}

	b.slots.removeAll()

	close(b.stop)
	<-b.done

	if err := b.src.Close(); err != nil {
		log.Printf("[bridge] teardown: source close: %v", err)
	}
}

func (b *Bridge) isClosed() bool {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	return b.closed
}

// reconcile is the serialized diff-and-react pass driven by manager-level
// change notifications. The fresh snapshot replaces the stored one
// unconditionally so the same transition is never re-reported, even when
// part of the reaction failed.
func (b *Bridge) reconcile() {
	b.reconcileMu.Lock()
	defer b.reconcileMu.Unlock()
	if b.isClosed() {
		return
	}

	handles, err := b.src.Sessions()
	if err != nil {
		// No snapshot to store; keep prev so the next notification
		// reports the transition.
		log.Printf("[bridge] reconcile: enumerate sessions: %v", err)
		return
	}
	cur := identitiesOf(handles)
	added, removed := diffIdentities(b.prev, cur)

	// Register before notifying additions, so a handler reacting to
	// sessionadded can immediately receive later property events.
	for _, h := range handles {
		b.registerSession(h)
	}
	for _, id := range added {
		b.enqueue(session.SessionAdded, id)
	}
	// Notify before unregistering removals — consumers may want to query
	// the session one last time.
	for _, id := range removed {
		b.enqueue(session.SessionRemoved, id)
		b.registry.unregister(id)
	}

	b.prev = cur
}

// catchUp registers every currently enumerated session without diffing —
// the mechanism by which Subscribe and the read projections pick up
// sessions created before them.
func (b *Bridge) catchUp() {
	handles, err := b.src.Sessions()
	if err != nil {
		log.Printf("[bridge] catch-up: enumerate sessions: %v", err)
		return
	}
	for _, h := range handles {
		b.registerSession(h)
	}
}

// registerSession tracks the session and wires the per-session kinds that
// currently have a live slot. Idempotent per kind.
func (b *Bridge) registerSession(h source.Handle) {
	id := h.ID()
	kinds := b.slots.livePerSessionKinds()
	b.registry.register(id, h, kinds, func(k session.EventKind) (unsubFunc, error) {
		cb := func() { b.enqueue(k, id) }
		var tok source.Token
		var err error
		switch k {
		case session.PlaybackStateChanged:
			tok, err = h.OnPlaybackChanged(cb)
		case session.TimelinePropertiesChanged:
			tok, err = h.OnTimelineChanged(cb)
		case session.MediaPropertiesChanged:
			tok, err = h.OnMediaChanged(cb)
		default:
			return nil, fmt.Errorf("%w: %d", ErrInvalidKind, k)
		}
		if err != nil {
			return nil, err
		}
		return func() error { return h.Unsubscribe(tok) }, nil
	})
}

// acquireManager takes kind's reference on the shared manager-level
// subscription, creating it when the count rises from zero.
func (b *Bridge) acquireManager(kind session.EventKind) {
	idx := managerIdx(kind)
	b.managerMu.Lock()
	defer b.managerMu.Unlock()
	if b.managerNeeds[idx] {
		return
	}
	b.managerNeeds[idx] = true
	b.managerRefs++
	if !b.managerActive {
		tok, err := b.src.OnSessionsChanged(b.reconcile)
		if err != nil {
			log.Printf("[bridge] manager subscribe: %v", err)
			return
		}
		b.managerActive = true
		b.managerToken = tok
	}
}

// releaseManager drops kind's reference and tears the manager-level
// subscription down when the count reaches zero.
func (b *Bridge) releaseManager(kind session.EventKind) {
	idx := managerIdx(kind)
	b.managerMu.Lock()
	if !b.managerNeeds[idx] {
		b.managerMu.Unlock()
		return
	}
	b.managerNeeds[idx] = false
	b.managerRefs--
	var tok source.Token
	release := false
	if b.managerRefs == 0 && b.managerActive {
		tok = b.managerToken
		b.managerActive = false
		release = true
	}
	b.managerMu.Unlock()

	if release {
		if err := b.src.Unsubscribe(tok); err != nil {
			log.Printf("[bridge] manager unsubscribe: %v", err)
		}
	}
}

func managerIdx(kind session.EventKind) int {
	if kind == session.SessionAdded {
		return 0
	}
	return 1
}

// enqueue pushes one notification into the delivery channel. The send is
// non-blocking: when the subscriber falls behind, events are dropped and
// counted, with a log line at most every ten seconds.
func (b *Bridge) enqueue(kind session.EventKind, id string) {
	if b.isClosed() {
		return
	}
	select {
	case b.events <- notice{kind: kind, id: id}:
	default:
		b.dropMu.Lock()
		b.dropped++
		now := time.Now()
		if b.lastDropLog.IsZero() || now.Sub(b.lastDropLog) >= dropLogInterval {
			log.Printf("[bridge] events dropped: %d (channel full)", b.dropped)
			b.dropped = 0
			b.lastDropLog = now
		}
		b.dropMu.Unlock()
	}
}

// dispatch is the single consumer of the delivery channel. All handler
// invocations happen here, in the order notifications were enqueued —
// the bridge introduces no reordering within a session.
func (b *Bridge) dispatch() {
	defer close(b.done)
	for {
		select {
		case <-b.stop:
			return
		case n := <-b.events:
			b.deliver(n)
		}
	}
}

// deliver resolves a notice into an Event and invokes the kind's slot.
// The record snapshot is taken at delivery time; for sessionremoved the
// session is gone and the event carries the identity only.
func (b *Bridge) deliver(n notice) {
	if !b.slots.isLive(n.kind) {
		return
	}
	ev := session.Event{Kind: n.kind, SessionID: n.id}
	if n.kind != session.SessionRemoved {
		if h, ok := b.registry.lookup(n.id); ok {
			ev.Record = snapshotRecord(h)
		}
	}
	b.slots.invoke(n.kind, ev)
}
