package ws

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/media-bridge/backend/internal/session"
)

// ErrTooManyConnections is returned by AddClient when the connection
// limit is reached.
var ErrTooManyConnections = errors.New("too many websocket connections")

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// trySend queues msg for the write pump without blocking. It reports
// false when the client's buffer is full. Sends racing a close are
// silently dropped rather than panicking on the closed channel.
func (c *client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Broadcaster fans session records out to every connected WebSocket
// client: a full filtered snapshot on connect and on a slow interval,
// throttled deltas for property churn, and immediate event messages for
// session transitions.
type Broadcaster struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	store      *session.Store
	filter     *session.AppFilter
	maxClients int

	throttle       time.Duration
	snapshotTicker *time.Ticker
	stop           chan struct{}
	stopOnce       sync.Once

	flushMu        sync.Mutex
	pendingUpdates []*session.Record
	pendingRemoved []string
	flushTimer     *time.Timer
}

// NewBroadcaster starts the snapshot loop. maxClients of 0 means no
// connection limit.
func NewBroadcaster(store *session.Store, throttle, snapshotInterval time.Duration, maxClients int) *Broadcaster {
	b := &Broadcaster{
		clients:    make(map[*client]bool),
		store:      store,
		filter:     &session.AppFilter{},
		maxClients: maxClients,
		throttle:   throttle,
		stop:       make(chan struct{}),
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

// Stop halts the snapshot loop and disconnects every client.
func (b *Broadcaster) Stop() {
	b.stopOnce.Do(func() {
		b.snapshotTicker.Stop()
		close(b.stop)
	})

	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// SetAppFilter replaces the exposure filter. A nil filter exposes
// everything.
func (b *Broadcaster) SetAppFilter(f *session.AppFilter) {
	if f == nil {
		f = &session.AppFilter{}
	}
	b.mu.Lock()
	b.filter = f
	b.mu.Unlock()
}

// FilterRecords applies the current exposure filter.
func (b *Broadcaster) FilterRecords(records []*session.Record) []*session.Record {
	b.mu.RLock()
	f := b.filter
	b.mu.RUnlock()
	return f.FilterRecords(records)
}

func (b *Broadcaster) allowed(id string) bool {
	b.mu.RLock()
	f := b.filter
	b.mu.RUnlock()
	return f.IsAllowed(id)
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxClients > 0 && len(b.clients) >= b.maxClients {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := newClient(conn)
	b.clients[c] = true
	b.mu.Unlock()

	snapshot := WSMessage{
		Type: MsgSnapshot,
		Payload: SnapshotPayload{
			Sessions: b.FilterRecords(b.store.GetAll()),
		},
	}
	data, _ := json.Marshal(snapshot)
	c.trySend(data)

	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// QueueUpdate batches changed records into the next throttled delta.
func (b *Broadcaster) QueueUpdate(records []*session.Record) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingUpdates = append(b.pendingUpdates, records...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueRemoval batches removed session identities into the next delta.
func (b *Broadcaster) QueueRemoval(ids []string) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingRemoved = append(b.pendingRemoved, ids...)

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// QueueEvent sends one session transition immediately, bypassing the
// delta throttle. Events for filtered-out sessions are suppressed.
func (b *Broadcaster) QueueEvent(ev session.Event) {
	if !b.allowed(ev.SessionID) {
		return
	}
	msg := WSMessage{
		Type: MsgEvent,
		Payload: EventPayload{
			Kind:      ev.Kind,
			SessionID: ev.SessionID,
			Session:   ev.Record,
		},
	}
	b.broadcast(msg)
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	updates := b.pendingUpdates
	removed := b.pendingRemoved
	b.pendingUpdates = nil
	b.pendingRemoved = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	updates = b.FilterRecords(updates)
	kept := removed[:0:0]
	for _, id := range removed {
		if b.allowed(id) {
			kept = append(kept, id)
		}
	}
	removed = kept

	if len(updates) == 0 && len(removed) == 0 {
		return
	}

	msg := WSMessage{
		Type: MsgDelta,
		Payload: DeltaPayload{
			Updates: updates,
			Removed: removed,
		},
	}
	b.broadcast(msg)
}

func (b *Broadcaster) snapshotLoop() {
	for {
		select {
		case <-b.stop:
			return
		case <-b.snapshotTicker.C:
			msg := WSMessage{
				Type: MsgSnapshot,
				Payload: SnapshotPayload{
					Sessions: b.FilterRecords(b.store.GetAll()),
				},
			}
			b.broadcast(msg)
		}
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !c.trySend(data) {
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
