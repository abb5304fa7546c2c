// Package source defines the boundary to the OS-provided media session
// manager. The bridge consumes sessions through these interfaces and never
// assumes anything about which goroutine a change notification arrives on.
package source

import (
	"errors"

	"github.com/media-bridge/backend/internal/session"
)

// ErrSessionGone is returned by property reads and subscriptions on a
// handle whose underlying session has disappeared.
var ErrSessionGone = errors.New("source: session no longer present")

// Token identifies one registered change subscription. Tokens are opaque
// to callers and only meaningful to the Source that issued them.
type Token uint64

// Source is the OS session manager. Implementations may fire change
// callbacks from any goroutine, concurrently with calls into the Source.
type Source interface {
	// Sessions enumerates the currently active sessions. The returned
	// handles are snapshots of the live set; a later enumeration may
	// return distinct Handle values for the same logical session.
	Sessions() ([]Handle, error)

	// Current returns the session the OS considers current, or nil if
	// there is none.
	Current() (Handle, error)

	// OnSessionsChanged registers a callback fired whenever sessions are
	// added or removed. The callback carries no payload; the subscriber
	// re-enumerates to find out what changed.
	OnSessionsChanged(fn func()) (Token, error)

	// Unsubscribe cancels a subscription issued by this source. It must
	// tolerate tokens whose session or subscription is already gone.
	Unsubscribe(tok Token) error

	// Close releases the source. No callbacks fire after Close returns.
	Close() error
}

// Handle is one live session. Two handles with equal IDs refer to the same
// logical session even if the handle values differ between enumerations.
type Handle interface {
	// ID is the stable identity of the session: the source application's
	// identifier, unique among currently active sessions.
	ID() string

	Media() (session.MediaProps, error)
	Timeline() (session.TimelineProps, error)
	Playback() (session.PlaybackInfo, error)

	OnPlaybackChanged(fn func()) (Token, error)
	OnTimelineChanged(fn func()) (Token, error)
	OnMediaChanged(fn func()) (Token, error)

	// Unsubscribe cancels a per-session subscription. Must tolerate the
	// session being already gone.
	Unsubscribe(tok Token) error
}
