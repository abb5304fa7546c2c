package source

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/media-bridge/backend/internal/session"
)

// playerSample is one poll observation of a media player process group.
type playerSample struct {
	pid int32
	cpu float64
}

// playerState is the retained state for one tracked player identity.
type playerState struct {
	pid    int32
	cpu    float64
	status int
}

type propSub struct {
	id   string
	kind session.EventKind
	fn   func()
}

// ProcessSource exposes running media-player processes as sessions. The
// identity is the lowercased executable name; playback status is derived
// from CPU activity (a decoding player burns CPU, a paused one doesn't).
// Track metadata is not observable at the process level, so timeline reads
// report a transient error and media properties carry the identity only.
//
// Change notifications are generated by a poll loop that diffs the process
// set and status flips against the previous observation, so callbacks fire
// on the source's own goroutine — never the caller's.
type ProcessSource struct {
	mu        sync.Mutex
	targets   map[string]bool
	threshold float64
	players   map[string]*playerState
	listSubs  map[Token]func()
	propSubs  map[Token]propSub
	nextToken Token
	closed    bool

	stop chan struct{}
	done chan struct{}
}

// NewProcessSource starts a process source watching the given executable
// names (case-insensitive, ".exe" suffixes ignored), polling at interval.
// playingCPU is the CPU-percent threshold above which a player counts as
// playing.
func NewProcessSource(names []string, interval time.Duration, playingCPU float64) *ProcessSource {
	targets := make(map[string]bool, len(names))
	for _, n := range names {
		targets[normalizeProcName(n)] = true
	}
	if interval <= 0 {
		interval = time.Second
	}
	if playingCPU <= 0 {
		playingCPU = 5.0
	}
	s := &ProcessSource{
		targets:   targets,
		threshold: playingCPU,
		players:   make(map[string]*playerState),
		listSubs:  make(map[Token]func()),
		propSubs:  make(map[Token]propSub),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go s.pollLoop(interval)
	return s
}

// normalizeProcName lowercases a process name and strips a trailing ".exe"
// so that configured names match across platforms.
func normalizeProcName(name string) string {
	return strings.TrimSuffix(strings.ToLower(name), ".exe")
}

func (s *ProcessSource) pollLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.poll()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *ProcessSource) poll() {
	procs, err := process.Processes()
	if err != nil {
		log.Printf("[process-source] enumeration error: %v", err)
		return
	}

	current := make(map[string]playerSample)
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		id := normalizeProcName(name)
		if !s.targets[id] {
			continue
		}
		cpu, _ := p.CPUPercent()
		// Multiple processes with the same name collapse into one
		// session; keep the busiest one.
		if existing, ok := current[id]; !ok || cpu > existing.cpu {
			current[id] = playerSample{pid: p.Pid, cpu: cpu}
		}
	}

	s.apply(current)
}

// apply diffs one poll observation against the tracked player set and
// fires the affected callbacks. Callbacks run outside the lock.
func (s *ProcessSource) apply(current map[string]playerSample) {
	var fire []func()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	listChanged := false
	for id, sample := range current {
		status := session.StatusPaused
		if sample.cpu >= s.threshold {
			status = session.StatusPlaying
		}
		st, ok := s.players[id]
		if !ok {
			s.players[id] = &playerState{pid: sample.pid, cpu: sample.cpu, status: status}
			listChanged = true
			continue
		}
		flipped := st.status != status
		st.pid = sample.pid
		st.cpu = sample.cpu
		st.status = status
		if flipped {
			for _, sub := range s.propSubs {
				if sub.id == id && sub.kind == session.PlaybackStateChanged {
					fire = append(fire, sub.fn)
				}
			}
		}
	}
	for id := range s.players {
		if _, ok := current[id]; !ok {
			delete(s.players, id)
			listChanged = true
		}
	}
	if listChanged {
		for _, fn := range s.listSubs {
			fire = append(fire, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

func (s *ProcessSource) Sessions() ([]Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("process source closed")
	}
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	handles := make([]Handle, len(ids))
	for i, id := range ids {
		handles[i] = &processHandle{src: s, id: id}
	}
	return handles, nil
}

// Current returns the busiest playing player, or nil when nothing plays.
func (s *ProcessSource) Current() (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("process source closed")
	}
	var best string
	var bestCPU float64
	for id, st := range s.players {
		if st.status != session.StatusPlaying {
			continue
		}
		if best == "" || st.cpu > bestCPU || (st.cpu == bestCPU && id < best) {
			best = id
			bestCPU = st.cpu
		}
	}
	if best == "" {
		return nil, nil
	}
	return &processHandle{src: s, id: best}, nil
}

func (s *ProcessSource) OnSessionsChanged(fn func()) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("process source closed")
	}
	s.nextToken++
	s.listSubs[s.nextToken] = fn
	return s.nextToken, nil
}

func (s *ProcessSource) Unsubscribe(tok Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listSubs, tok)
	delete(s.propSubs, tok)
	return nil
}

// Close stops the poll loop and drops all subscriptions. Idempotent.
func (s *ProcessSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.listSubs = make(map[Token]func())
	s.propSubs = make(map[Token]propSub)
	s.mu.Unlock()

	close(s.stop)
	<-s.done
	return nil
}

// subscribeProp registers a per-session property subscription.
func (s *ProcessSource) subscribeProp(id string, kind session.EventKind, fn func()) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("process source closed")
	}
	if _, ok := s.players[id]; !ok {
		return 0, ErrSessionGone
	}
	s.nextToken++
	s.propSubs[s.nextToken] = propSub{id: id, kind: kind, fn: fn}
	return s.nextToken, nil
}

type processHandle struct {
	src *ProcessSource
	id  string
}

func (h *processHandle) ID() string { return h.id }

func (h *processHandle) Media() (session.MediaProps, error) {
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	if _, ok := h.src.players[h.id]; !ok {
		return session.MediaProps{}, ErrSessionGone
	}
	// The process exposes no track metadata; the identity is all we have.
	return session.MediaProps{
		Title:        h.id,
		PlaybackType: session.PlaybackTypeNone,
	}, nil
}

func (h *processHandle) Timeline() (session.TimelineProps, error) {
	return session.TimelineProps{}, fmt.Errorf("timeline not observable for process %q", h.id)
}

func (h *processHandle) Playback() (session.PlaybackInfo, error) {
	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	st, ok := h.src.players[h.id]
	if !ok {
		return session.PlaybackInfo{}, ErrSessionGone
	}
	return session.PlaybackInfo{
		Status:        st.status,
		PlaybackType:  session.PlaybackTypeNone,
		RepeatMode:    session.RepeatNone,
		Controls:      session.ControlPlay | session.ControlPause | session.ControlStop,
		ShuffleActive: false,
	}, nil
}

func (h *processHandle) OnPlaybackChanged(fn func()) (Token, error) {
	return h.src.subscribeProp(h.id, session.PlaybackStateChanged, fn)
}

func (h *processHandle) OnTimelineChanged(fn func()) (Token, error) {
	return h.src.subscribeProp(h.id, session.TimelinePropertiesChanged, fn)
}

func (h *processHandle) OnMediaChanged(fn func()) (Token, error) {
	return h.src.subscribeProp(h.id, session.MediaPropertiesChanged, fn)
}

func (h *processHandle) Unsubscribe(tok Token) error {
	return h.src.Unsubscribe(tok)
}
