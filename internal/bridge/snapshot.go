package bridge

import (
	"github.com/media-bridge/backend/internal/session"
	"github.com/media-bridge/backend/internal/source"
)

// snapshotRecord flattens a live session's property objects into a
// copy-by-value Record safe to hand across goroutines. A failing section
// read marks that section's error field and leaves the rest populated —
// a producing app crashing mid-read must not abort the whole projection.
func snapshotRecord(h source.Handle) *session.Record {
	rec := &session.Record{ID: h.ID()}

	if media, err := h.Media(); err != nil {
		rec.MediaError = err.Error()
		rec.Media.PlaybackType = session.PlaybackTypeNone
	} else {
		rec.Media = media
	}

	if timeline, err := h.Timeline(); err != nil {
		rec.TimelineError = err.Error()
	} else {
		rec.Timeline = timeline
	}

	if playback, err := h.Playback(); err != nil {
		rec.PlaybackError = err.Error()
		rec.Playback.PlaybackType = session.PlaybackTypeNone
		rec.Playback.RepeatMode = session.RepeatNone
	} else {
		rec.Playback = playback
	}

	return rec
}
