// Package mock provides a fully scripted session source for demo mode and
// tests. Fake sessions can be added and removed at will, and property
// mutations fire change callbacks the same way a real OS source would —
// from whatever goroutine performed the mutation.
package mock

import (
	"fmt"
	"sync"

	"github.com/media-bridge/backend/internal/session"
	"github.com/media-bridge/backend/internal/source"
)

type fakeSession struct {
	media       session.MediaProps
	timeline    session.TimelineProps
	playback    session.PlaybackInfo
	mediaErr    error
	timelineErr error
	playbackErr error
}

type propSub struct {
	id   string
	kind session.EventKind
	fn   func()
}

type Source struct {
	mu        sync.Mutex
	sessions  map[string]*fakeSession
	order     []string
	currentID string
	listSubs  map[source.Token]func()
	propSubs  map[source.Token]propSub
	nextToken source.Token
	closed    bool
}

func NewSource() *Source {
	return &Source{
		sessions: make(map[string]*fakeSession),
		listSubs: make(map[source.Token]func()),
		propSubs: make(map[source.Token]propSub),
	}
}

// Add creates a fake session with sensible defaults and fires the
// list-changed callbacks. Adding an existing id is a no-op.
func (s *Source) Add(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return
	}
	s.sessions[id] = &fakeSession{
		media: session.MediaProps{
			Title:        "Untitled",
			PlaybackType: session.PlaybackTypeMusic,
		},
		playback: session.PlaybackInfo{
			Status:       session.StatusPlaying,
			PlaybackType: session.PlaybackTypeMusic,
			RepeatMode:   session.RepeatNone,
			Controls:     session.ControlPlay | session.ControlPause | session.ControlNext | session.ControlPrevious,
		},
	}
	s.order = append(s.order, id)
	if s.currentID == "" {
		s.currentID = id
	}
	fns := s.listCallbacks()
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Remove deletes a fake session and fires the list-changed callbacks.
// Per-session subscriptions for the id are dropped, as a real source would
// when the producing app exits.
func (s *Source) Remove(id string) {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	for tok, sub := range s.propSubs {
		if sub.id == id {
			delete(s.propSubs, tok)
		}
	}
	if s.currentID == id {
		s.currentID = ""
		if len(s.order) > 0 {
			s.currentID = s.order[0]
		}
	}
	fns := s.listCallbacks()
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// SetCurrent marks the session the source reports as current.
func (s *Source) SetCurrent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentID = id
}

// SetMedia replaces a session's media properties and fires its
// media-changed callbacks.
func (s *Source) SetMedia(id string, props session.MediaProps) {
	s.setAndFire(id, session.MediaPropertiesChanged, func(fs *fakeSession) { fs.media = props })
}

// SetTimeline replaces a session's timeline and fires its timeline-changed
// callbacks.
func (s *Source) SetTimeline(id string, props session.TimelineProps) {
	s.setAndFire(id, session.TimelinePropertiesChanged, func(fs *fakeSession) { fs.timeline = props })
}

// SetPlayback replaces a session's playback info and fires its
// playback-changed callbacks.
func (s *Source) SetPlayback(id string, info session.PlaybackInfo) {
	s.setAndFire(id, session.PlaybackStateChanged, func(fs *fakeSession) { fs.playback = info })
}

// FailMedia makes subsequent media reads for id fail with the given
// message, simulating a producing app that crashed mid-read.
func (s *Source) FailMedia(id, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.sessions[id]; ok {
		fs.mediaErr = fmt.Errorf("%s", msg)
	}
}

// FailTimeline makes subsequent timeline reads for id fail.
func (s *Source) FailTimeline(id, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.sessions[id]; ok {
		fs.timelineErr = fmt.Errorf("%s", msg)
	}
}

// FailPlayback makes subsequent playback reads for id fail.
func (s *Source) FailPlayback(id, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.sessions[id]; ok {
		fs.playbackErr = fmt.Errorf("%s", msg)
	}
}

// ListSubCount reports the number of active list-changed subscriptions.
func (s *Source) ListSubCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listSubs)
}

// PropSubCount reports the number of active per-session subscriptions for
// id, across all kinds. id == "" counts every per-session subscription.
func (s *Source) PropSubCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sub := range s.propSubs {
		if id == "" || sub.id == id {
			count++
		}
	}
	return count
}

func (s *Source) listCallbacks() []func() {
	fns := make([]func(), 0, len(s.listSubs))
	for _, fn := range s.listSubs {
		fns = append(fns, fn)
	}
	return fns
}

func (s *Source) setAndFire(id string, kind session.EventKind, mutate func(*fakeSession)) {
	s.mu.Lock()
	fs, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	mutate(fs)
	var fns []func()
	for _, sub := range s.propSubs {
		if sub.id == id && sub.kind == kind {
			fns = append(fns, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Source) Sessions() ([]source.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("mock source closed")
	}
	handles := make([]source.Handle, len(s.order))
	for i, id := range s.order {
		handles[i] = &handle{src: s, id: id}
	}
	return handles, nil
}

func (s *Source) Current() (source.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("mock source closed")
	}
	if s.currentID == "" {
		return nil, nil
	}
	if _, ok := s.sessions[s.currentID]; !ok {
		return nil, nil
	}
	return &handle{src: s, id: s.currentID}, nil
}

func (s *Source) OnSessionsChanged(fn func()) (source.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("mock source closed")
	}
	s.nextToken++
	s.listSubs[s.nextToken] = fn
	return s.nextToken, nil
}

func (s *Source) Unsubscribe(tok source.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listSubs, tok)
	delete(s.propSubs, tok)
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.listSubs = make(map[source.Token]func())
	s.propSubs = make(map[source.Token]propSub)
	return nil
}

func (s *Source) subscribeProp(id string, kind session.EventKind, fn func()) (source.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("mock source closed")
	}
	if _, ok := s.sessions[id]; !ok {
		return 0, source.ErrSessionGone
	}
	s.nextToken++
	s.propSubs[s.nextToken] = propSub{id: id, kind: kind, fn: fn}
	return s.nextToken, nil
}

type handle struct {
	src *Source
	id  string
}

func (h *handle) ID() string { return h.id }

func (h *handle) Media() (session.MediaProps, error) {
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	fs, ok := h.src.sessions[h.id]
	if !ok {
		return session.MediaProps{}, source.ErrSessionGone
	}
	if fs.mediaErr != nil {
		return session.MediaProps{}, fs.mediaErr
	}
	return fs.media, nil
}

func (h *handle) Timeline() (session.TimelineProps, error) {
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	fs, ok := h.src.sessions[h.id]
	if !ok {
		return session.TimelineProps{}, source.ErrSessionGone
	}
	if fs.timelineErr != nil {
		return session.TimelineProps{}, fs.timelineErr
	}
	return fs.timeline, nil
}

func (h *handle) Playback() (session.PlaybackInfo, error) {
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	fs, ok := h.src.sessions[h.id]
	if !ok {
		return session.PlaybackInfo{}, source.ErrSessionGone
	}
	if fs.playbackErr != nil {
		return session.PlaybackInfo{}, fs.playbackErr
	}
	return fs.playback, nil
}

func (h *handle) OnPlaybackChanged(fn func()) (source.Token, error) {
	return h.src.subscribeProp(h.id, session.PlaybackStateChanged, fn)
}

func (h *handle) OnTimelineChanged(fn func()) (source.Token, error) {
	return h.src.subscribeProp(h.id, session.TimelinePropertiesChanged, fn)
}

func (h *handle) OnMediaChanged(fn func()) (source.Token, error) {
	return h.src.subscribeProp(h.id, session.MediaPropertiesChanged, fn)
}

func (h *handle) Unsubscribe(tok source.Token) error {
	return h.src.Unsubscribe(tok)
}
