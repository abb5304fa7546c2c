package session

// Playback status codes as reported by the session source.
const (
	StatusClosed = iota
	StatusOpened
	StatusChanging
	StatusStopped
	StatusPlaying
	StatusPaused
)

// Playback type codes. PlaybackTypeNone (-1) means the source did not
// report a type for the session.
const (
	PlaybackTypeNone    = -1
	PlaybackTypeUnknown = 0
	PlaybackTypeMusic   = 1
	PlaybackTypeVideo   = 2
	PlaybackTypeImage   = 3
)

// RepeatNone (-1) means the source did not report a repeat mode.
const RepeatNone = -1

// Transport control bits for PlaybackInfo.Controls.
const (
	ControlPlay = 1 << iota
	ControlPause
	ControlStop
	ControlNext
	ControlPrevious
)

// MediaProps holds the descriptive metadata of the currently playing item.
type MediaProps struct {
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	AlbumTitle   string `json:"albumTitle"`
	AlbumArtist  string `json:"albumArtist"`
	TrackNumber  int    `json:"trackNumber"`
	Genre        string `json:"genre"` // first genre, or empty
	PlaybackType int    `json:"playbackType"`
}

// TimelineProps holds the session's timeline position, all in seconds.
type TimelineProps struct {
	StartSeconds    float64 `json:"startTimeInSeconds"`
	EndSeconds      float64 `json:"endTimeInSeconds"`
	PositionSeconds float64 `json:"positionInSeconds"`
	MinSeekSeconds  float64 `json:"minSeekTimeInSeconds"`
	MaxSeekSeconds  float64 `json:"maxSeekTimeInSeconds"`
}

// PlaybackInfo holds the session's transport state.
type PlaybackInfo struct {
	Status        int  `json:"playbackStatus"`
	PlaybackType  int  `json:"playbackType"`
	ShuffleActive bool `json:"isShuffleActive"`
	RepeatMode    int  `json:"autoRepeatMode"`
	Controls      int  `json:"controls"`
}

// Record is a flat, copy-by-value projection of one live session, safe to
// hand to subscribers on any goroutine. A failed property read populates
// the matching *Error field and leaves the other sections intact.
type Record struct {
	ID            string        `json:"id"`
	Media         MediaProps    `json:"mediaProperties"`
	Timeline      TimelineProps `json:"timelineProperties"`
	Playback      PlaybackInfo  `json:"playbackInfo"`
	MediaError    string        `json:"mediaError,omitempty"`
	TimelineError string        `json:"timelineError,omitempty"`
	PlaybackError string        `json:"playbackError,omitempty"`
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	return &c
}

// Playing reports whether the session is actively playing.
func (r *Record) Playing() bool {
	return r.PlaybackError == "" && r.Playback.Status == StatusPlaying
}
