package bridge

import (
	"testing"
	"time"

	"github.com/media-bridge/backend/internal/session"
)

func TestSlotInstallSupersedes(t *testing.T) {
	var table slotTable
	firstCalls, secondCalls := 0, 0
	table.install(session.PlaybackStateChanged, func(session.Event) { firstCalls++ })
	table.install(session.PlaybackStateChanged, func(session.Event) { secondCalls++ })

	table.invoke(session.PlaybackStateChanged, session.Event{Kind: session.PlaybackStateChanged})

	if firstCalls != 0 {
		t.Errorf("superseded handler called %d times", firstCalls)
	}
	if secondCalls != 1 {
		t.Errorf("live handler called %d times, want 1", secondCalls)
	}
}

func TestSlotRemoveStopsDelivery(t *testing.T) {
	var table slotTable
	calls := 0
	table.install(session.MediaPropertiesChanged, func(session.Event) { calls++ })
	table.remove(session.MediaPropertiesChanged)

	if table.isLive(session.MediaPropertiesChanged) {
		t.Error("slot still live after remove")
	}
	table.invoke(session.MediaPropertiesChanged, session.Event{Kind: session.MediaPropertiesChanged})
	if calls != 0 {
		t.Errorf("dead slot invoked %d times", calls)
	}
}

func TestSlotRemoveWaitsForInFlight(t *testing.T) {
	var table slotTable
	entered := make(chan struct{})
	release := make(chan struct{})
	table.install(session.TimelinePropertiesChanged, func(session.Event) {
		close(entered)
		<-release
	})

	go table.invoke(session.TimelinePropertiesChanged, session.Event{Kind: session.TimelinePropertiesChanged})
	<-entered

	removed := make(chan struct{})
	go func() {
		table.remove(session.TimelinePropertiesChanged)
		close(removed)
	}()

	select {
	case <-removed:
		t.Fatal("remove returned while a delivery was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-removed:
	case <-time.After(time.Second):
		t.Fatal("remove never returned after the delivery finished")
	}
}

func TestSlotInvokeNeverCallsNilHandler(t *testing.T) {
	var table slotTable
	// Invoking an empty table must be a harmless no-op.
	for k := session.EventKind(0); k < session.KindCount; k++ {
		table.invoke(k, session.Event{Kind: k})
	}
}

func TestLivePerSessionKinds(t *testing.T) {
	var table slotTable
	noop := func(session.Event) {}

	if got := table.livePerSessionKinds(); len(got) != 0 {
		t.Fatalf("empty table reports live kinds %v", got)
	}

	table.install(session.MediaPropertiesChanged, noop)
	table.install(session.PlaybackStateChanged, noop)
	table.install(session.SessionAdded, noop) // manager-level, must not appear

	got := table.livePerSessionKinds()
	want := []session.EventKind{session.PlaybackStateChanged, session.MediaPropertiesChanged}
	if len(got) != len(want) {
		t.Fatalf("live kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("live kinds = %v, want %v", got, want)
		}
	}
}

func TestSlotRemoveAll(t *testing.T) {
	var table slotTable
	noop := func(session.Event) {}
	for k := session.EventKind(0); k < session.KindCount; k++ {
		table.install(k, noop)
	}
	table.removeAll()
	for k := session.EventKind(0); k < session.KindCount; k++ {
		if table.isLive(k) {
			t.Errorf("slot %s still live after removeAll", k)
		}
	}
}
