package session

import (
	"encoding/json"
	"fmt"
)

// EventKind identifies one of the closed set of bridge event types.
type EventKind int

const (
	SessionAdded EventKind = iota
	SessionRemoved
	PlaybackStateChanged
	TimelinePropertiesChanged
	MediaPropertiesChanged

	// KindCount is the number of event kinds; usable as an array size.
	KindCount
)

var kindNames = map[EventKind]string{
	SessionAdded:              "sessionadded",
	SessionRemoved:            "sessionremoved",
	PlaybackStateChanged:      "playbackstatechanged",
	TimelinePropertiesChanged: "timelinepropertieschanged",
	MediaPropertiesChanged:    "mediapropertieschanged",
}

var kindFromName = map[string]EventKind{
	"sessionadded":              SessionAdded,
	"sessionremoved":            SessionRemoved,
	"playbackstatechanged":      PlaybackStateChanged,
	"timelinepropertieschanged": TimelinePropertiesChanged,
	"mediapropertieschanged":    MediaPropertiesChanged,
}

func (k EventKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Valid reports whether k is one of the defined event kinds.
func (k EventKind) Valid() bool {
	return k >= 0 && k < KindCount
}

// ManagerLevel reports whether k is driven by the source's session-list
// change notification rather than a per-session subscription.
func (k EventKind) ManagerLevel() bool {
	return k == SessionAdded || k == SessionRemoved
}

func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, ok := kindFromName[s]
	if !ok {
		return fmt.Errorf("unknown event kind %q", s)
	}
	*k = v
	return nil
}

// ParseEventKind maps an event kind name to its EventKind value.
func ParseEventKind(s string) (EventKind, bool) {
	k, ok := kindFromName[s]
	return k, ok
}

// PerSessionKinds lists the kinds wired via per-session subscriptions.
func PerSessionKinds() []EventKind {
	return []EventKind{PlaybackStateChanged, TimelinePropertiesChanged, MediaPropertiesChanged}
}

// Event carries one bridge notification to a subscriber. Record is a
// snapshot taken at delivery time; it is nil for sessionremoved (the
// session is already gone) and may be nil for other kinds if the session
// vanished between the notification and its delivery.
type Event struct {
	Kind      EventKind `json:"kind"`
	SessionID string    `json:"sessionId"`
	Record    *Record   `json:"record,omitempty"`
}
