package bridge

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/media-bridge/backend/internal/session"
	"github.com/media-bridge/backend/internal/source"
)

// stubHandle is the minimal Handle for registry tests; the registry only
// stores it, property reads never happen here.
type stubHandle struct {
	id string
}

func (h *stubHandle) ID() string { return h.id }
func (h *stubHandle) Media() (session.MediaProps, error) { return session.MediaProps{}, nil }
func (h *stubHandle) Timeline() (session.TimelineProps, error) {
	return session.TimelineProps{}, nil
}
func (h *stubHandle) Playback() (session.PlaybackInfo, error) {
	return session.PlaybackInfo{}, nil
}
func (h *stubHandle) OnPlaybackChanged(func()) (source.Token, error) { return 0, nil }
func (h *stubHandle) OnTimelineChanged(func()) (source.Token, error) { return 0, nil }
func (h *stubHandle) OnMediaChanged(func()) (source.Token, error) { return 0, nil }
func (h *stubHandle) Unsubscribe(source.Token) error { return nil }

// subRecorder counts subscribe and unsubscribe calls per event kind.
type subRecorder struct {
	mu      sync.Mutex
	subbed  map[session.EventKind]int
	unsub   map[session.EventKind]int
	failFor map[session.EventKind]error
}

func newSubRecorder() *subRecorder {
	return &subRecorder{
		subbed:  make(map[session.EventKind]int),
		unsub:   make(map[session.EventKind]int),
		failFor: make(map[session.EventKind]error),
	}
}

func (s *subRecorder) subscribe(k session.EventKind) (unsubFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[k]; err != nil {
		return nil, err
	}
	s.subbed[k]++
	return func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.unsub[k]++
		return nil
	}, nil
}

func (s *subRecorder) subCount(k session.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subbed[k]
}

func (s *subRecorder) unsubCount(k session.EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsub[k]
}

func TestRegisterIsIdempotentPerKind(t *testing.T) {
	r := newTokenRegistry()
	rec := newSubRecorder()
	h := &stubHandle{id: "spotify"}
	kinds := []session.EventKind{session.PlaybackStateChanged, session.MediaPropertiesChanged}

	r.register("spotify", h, kinds, rec.subscribe)
	r.register("spotify", h, kinds, rec.subscribe)
	r.register("spotify", h, kinds, rec.subscribe)

	for _, k := range kinds {
		if got := rec.subCount(k); got != 1 {
			t.Errorf("subscribe(%s) called %d times, want 1", k, got)
		}
	}
	if got := r.wiredKinds("spotify"); !reflect.DeepEqual(got, kinds) {
		t.Errorf("wiredKinds = %v, want %v", got, kinds)
	}
}

func TestRegisterTopsUpNewKinds(t *testing.T) {
	r := newTokenRegistry()
	rec := newSubRecorder()
	h := &stubHandle{id: "vlc"}

	r.register("vlc", h, []session.EventKind{session.PlaybackStateChanged}, rec.subscribe)
	r.register("vlc", h, []session.EventKind{
		session.PlaybackStateChanged,
		session.TimelinePropertiesChanged,
	}, rec.subscribe)

	if got := rec.subCount(session.PlaybackStateChanged); got != 1 {
		t.Errorf("playback subscribed %d times, want 1", got)
	}
	if got := rec.subCount(session.TimelinePropertiesChanged); got != 1 {
		t.Errorf("timeline subscribed %d times, want 1", got)
	}
}

func TestRegisterSkipsFailedKind(t *testing.T) {
	r := newTokenRegistry()
	rec := newSubRecorder()
	rec.failFor[session.TimelinePropertiesChanged] = errors.New("timeline not observable")
	h := &stubHandle{id: "mpv"}
	kinds := []session.EventKind{session.PlaybackStateChanged, session.TimelinePropertiesChanged}

	r.register("mpv", h, kinds, rec.subscribe)

	if !r.tracked("mpv") {
		t.Fatal("session not tracked after a partial subscribe failure")
	}
	want := []session.EventKind{session.PlaybackStateChanged}
	if got := r.wiredKinds("mpv"); !reflect.DeepEqual(got, want) {
		t.Errorf("wiredKinds = %v, want %v", got, want)
	}

	// A later pass may retry the failed kind once the failure clears.
	delete(rec.failFor, session.TimelinePropertiesChanged)
	r.register("mpv", h, kinds, rec.subscribe)
	want = kinds
	if got := r.wiredKinds("mpv"); !reflect.DeepEqual(got, want) {
		t.Errorf("wiredKinds after retry = %v, want %v", got, want)
	}
}

func TestUnregisterReleasesEverySubscription(t *testing.T) {
	r := newTokenRegistry()
	rec := newSubRecorder()
	h := &stubHandle{id: "spotify"}
	kinds := []session.EventKind{
		session.PlaybackStateChanged,
		session.TimelinePropertiesChanged,
		session.MediaPropertiesChanged,
	}
	r.register("spotify", h, kinds, rec.subscribe)

	r.unregister("spotify")

	if r.tracked("spotify") {
		t.Error("session still tracked after unregister")
	}
	for _, k := range kinds {
		if got := rec.unsubCount(k); got != 1 {
			t.Errorf("unsubscribe(%s) called %d times, want 1", k, got)
		}
	}
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	r := newTokenRegistry()
	r.unregister("never-registered")
}

func TestUnregisterSwallowsUnsubscribeErrors(t *testing.T) {
	r := newTokenRegistry()
	h := &stubHandle{id: "gone"}
	r.register("gone", h, []session.EventKind{session.PlaybackStateChanged},
		func(session.EventKind) (unsubFunc, error) {
			return func() error { return errors.New("session already closed") }, nil
		})

	// Must complete without panicking or surfacing the error.
	r.unregister("gone")
	if r.tracked("gone") {
		t.Error("session still tracked")
	}
}

func TestUnregisterAll(t *testing.T) {
	r := newTokenRegistry()
	rec := newSubRecorder()
	for _, id := range []string{"a", "b", "c"} {
		r.register(id, &stubHandle{id: id},
			[]session.EventKind{session.MediaPropertiesChanged}, rec.subscribe)
	}

	r.unregisterAll()

	if got := r.identities(); len(got) != 0 {
		t.Errorf("identities after unregisterAll = %v, want none", got)
	}
	if got := rec.unsubCount(session.MediaPropertiesChanged); got != 3 {
		t.Errorf("unsubscribe called %d times, want 3", got)
	}
}

func TestLookupReturnsLatestHandle(t *testing.T) {
	r := newTokenRegistry()
	first := &stubHandle{id: "spotify"}
	second := &stubHandle{id: "spotify"}
	none := func(session.EventKind) (unsubFunc, error) { return func() error { return nil }, nil }

	r.register("spotify", first, nil, none)
	r.register("spotify", second, nil, none)

	h, ok := r.lookup("spotify")
	if !ok {
		t.Fatal("lookup failed for tracked session")
	}
	if h != source.Handle(second) {
		t.Error("lookup did not return the most recent handle")
	}

	if _, ok := r.lookup("unknown"); ok {
		t.Error("lookup succeeded for untracked session")
	}
}
