package mock

import (
	"context"
	"time"

	"github.com/media-bridge/backend/internal/session"
)

// mockPlayer scripts one fake media player's behavior over time.
type mockPlayer struct {
	id        string
	tracks    []session.MediaProps
	trackIdx  int
	duration  float64
	position  float64
	pattern   string // "steady", "pauser", "comeandgo"
	joinTick  int
	leaveTick int // 0 = never leaves
	rejoinAt  int
	present   bool
	paused    bool
}

// Generator drives a scripted set of fake players against a mock Source,
// producing realistic add/remove churn and property-change traffic for
// demo mode.
type Generator struct {
	src     *Source
	players []*mockPlayer
}

func NewGenerator(src *Source) *Generator {
	return &Generator{
		src: src,
		players: []*mockPlayer{
			{
				id:       "spotify",
				pattern:  "steady",
				duration: 214,
				tracks: []session.MediaProps{
					{Title: "Weightless", Artist: "Marconi Union", AlbumTitle: "Weightless", AlbumArtist: "Marconi Union", TrackNumber: 1, Genre: "Ambient", PlaybackType: session.PlaybackTypeMusic},
					{Title: "Intro", Artist: "The xx", AlbumTitle: "xx", AlbumArtist: "The xx", TrackNumber: 1, Genre: "Indie", PlaybackType: session.PlaybackTypeMusic},
					{Title: "Midnight City", Artist: "M83", AlbumTitle: "Hurry Up, We're Dreaming", AlbumArtist: "M83", TrackNumber: 3, Genre: "Electronic", PlaybackType: session.PlaybackTypeMusic},
				},
			},
			{
				id:        "vlc",
				pattern:   "comeandgo",
				duration:  5400,
				joinTick:  6,
				leaveTick: 40,
				rejoinAt:  70,
				tracks: []session.MediaProps{
					{Title: "Documentary.mkv", PlaybackType: session.PlaybackTypeVideo},
				},
			},
			{
				id:       "mpv",
				pattern:  "pauser",
				duration: 372,
				joinTick: 3,
				tracks: []session.MediaProps{
					{Title: "Concerto in D minor", Artist: "Academy Chamber Orchestra", AlbumTitle: "Baroque Essentials", AlbumArtist: "Various", TrackNumber: 7, Genre: "Classical", PlaybackType: session.PlaybackTypeMusic},
				},
			},
		},
	}
}

func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			for _, p := range g.players {
				g.advance(p, tick)
			}
		}
	}
}

func (g *Generator) advance(p *mockPlayer, tick int) {
	if !p.present {
		if tick >= p.joinTick && (p.rejoinAt == 0 || tick >= p.rejoinAt || tick < p.leaveTick) {
			g.join(p)
		}
		return
	}

	if p.leaveTick > 0 && tick == p.leaveTick {
		p.present = false
		g.src.Remove(p.id)
		return
	}

	switch p.pattern {
	case "pauser":
		// Toggle pause every 20 ticks.
		if tick%20 == 0 {
			p.paused = !p.paused
			status := session.StatusPlaying
			if p.paused {
				status = session.StatusPaused
			}
			g.src.SetPlayback(p.id, session.PlaybackInfo{
				Status:       status,
				PlaybackType: p.tracks[p.trackIdx].PlaybackType,
				RepeatMode:   session.RepeatNone,
				Controls:     session.ControlPlay | session.ControlPause | session.ControlStop,
			})
		}
	}

	if p.paused {
		return
	}

	// Advance the timeline by one tick's worth of playback.
	p.position += 0.5
	if p.position >= p.duration {
		p.position = 0
		p.trackIdx = (p.trackIdx + 1) % len(p.tracks)
		g.src.SetMedia(p.id, p.tracks[p.trackIdx])
	}
	g.src.SetTimeline(p.id, session.TimelineProps{
		EndSeconds:      p.duration,
		PositionSeconds: p.position,
		MaxSeekSeconds:  p.duration,
	})
}

func (g *Generator) join(p *mockPlayer) {
	p.present = true
	p.position = 0
	g.src.Add(p.id)
	g.src.SetMedia(p.id, p.tracks[p.trackIdx])
	g.src.SetPlayback(p.id, session.PlaybackInfo{
		Status:       session.StatusPlaying,
		PlaybackType: p.tracks[p.trackIdx].PlaybackType,
		RepeatMode:   session.RepeatNone,
		Controls:     session.ControlPlay | session.ControlPause | session.ControlStop | session.ControlNext | session.ControlPrevious,
	})
}
