package session

import (
	"encoding/json"
	"testing"
)

func TestEventKindString(t *testing.T) {
	tests := []struct {
		kind EventKind
		want string
	}{
		{SessionAdded, "sessionadded"},
		{SessionRemoved, "sessionremoved"},
		{PlaybackStateChanged, "playbackstatechanged"},
		{TimelinePropertiesChanged, "timelinepropertieschanged"},
		{MediaPropertiesChanged, "mediapropertieschanged"},
		{EventKind(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestParseEventKind(t *testing.T) {
	for k := EventKind(0); k < KindCount; k++ {
		got, ok := ParseEventKind(k.String())
		if !ok {
			t.Errorf("ParseEventKind(%q) not ok", k.String())
		}
		if got != k {
			t.Errorf("ParseEventKind(%q) = %v, want %v", k.String(), got, k)
		}
	}

	if _, ok := ParseEventKind("volumechanged"); ok {
		t.Error("ParseEventKind accepted an unknown kind")
	}
	if _, ok := ParseEventKind(""); ok {
		t.Error("ParseEventKind accepted an empty kind")
	}
}

func TestEventKindValid(t *testing.T) {
	for k := EventKind(0); k < KindCount; k++ {
		if !k.Valid() {
			t.Errorf("EventKind(%d).Valid() = false, want true", k)
		}
	}
	if EventKind(-1).Valid() {
		t.Error("EventKind(-1).Valid() = true")
	}
	if KindCount.Valid() {
		t.Error("KindCount.Valid() = true")
	}
}

func TestEventKindManagerLevel(t *testing.T) {
	manager := map[EventKind]bool{
		SessionAdded:   true,
		SessionRemoved: true,
	}
	for k := EventKind(0); k < KindCount; k++ {
		if got := k.ManagerLevel(); got != manager[k] {
			t.Errorf("%v.ManagerLevel() = %v, want %v", k, got, manager[k])
		}
	}
}

func TestPerSessionKinds(t *testing.T) {
	kinds := PerSessionKinds()
	if len(kinds) != 3 {
		t.Fatalf("PerSessionKinds() returned %d kinds, want 3", len(kinds))
	}
	for _, k := range kinds {
		if k.ManagerLevel() {
			t.Errorf("PerSessionKinds() includes manager-level kind %v", k)
		}
	}
}

func TestEventKindJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(PlaybackStateChanged)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"playbackstatechanged"` {
		t.Errorf("Marshal = %s, want %q", data, "playbackstatechanged")
	}

	var k EventKind
	if err := json.Unmarshal(data, &k); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if k != PlaybackStateChanged {
		t.Errorf("round-trip = %v, want %v", k, PlaybackStateChanged)
	}
}

func TestEventKindUnmarshalUnknown(t *testing.T) {
	var k EventKind
	if err := json.Unmarshal([]byte(`"volumechanged"`), &k); err == nil {
		t.Error("Unmarshal accepted an unknown kind")
	}
}
