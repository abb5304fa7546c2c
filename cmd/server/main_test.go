package main

import (
	"testing"
	"time"

	"github.com/media-bridge/backend/internal/bridge"
	"github.com/media-bridge/backend/internal/config"
	"github.com/media-bridge/backend/internal/mock"
	"github.com/media-bridge/backend/internal/session"
	"github.com/media-bridge/backend/internal/ws"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWireBridgeMirrorsEventsIntoStore(t *testing.T) {
	src := mock.NewSource()
	store := session.NewStore()
	broadcaster := ws.NewBroadcaster(store, 10*time.Millisecond, time.Hour, 0)
	defer broadcaster.Stop()

	b, err := bridge.New(src, bridge.Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Shutdown()

	wireBridge(b, store, broadcaster)

	src.Add("spotify")
	waitFor(t, "record cached", func() bool {
		_, ok := store.Get("spotify")
		return ok
	})

	src.SetMedia("spotify", session.MediaProps{Title: "Pyramid Song"})
	waitFor(t, "media update cached", func() bool {
		rec, ok := store.Get("spotify")
		return ok && rec.Media.Title == "Pyramid Song"
	})

	src.Remove("spotify")
	waitFor(t, "record evicted", func() bool {
		_, ok := store.Get("spotify")
		return !ok
	})
}

func TestApplyReloadSwapsAppFilter(t *testing.T) {
	store := session.NewStore()
	broadcaster := ws.NewBroadcaster(store, 10*time.Millisecond, time.Hour, 0)
	defer broadcaster.Stop()

	records := []*session.Record{{ID: "spotify"}, {ID: "vlc"}}
	if got := broadcaster.FilterRecords(records); len(got) != 2 {
		t.Fatalf("expected 2 records before reload, got %d", len(got))
	}

	old := &config.Config{}
	next := &config.Config{}
	next.Filter.BlockedApps = []string{"vlc"}
	applyReload(old, next, broadcaster)

	got := broadcaster.FilterRecords(records)
	if len(got) != 1 || got[0].ID != "spotify" {
		t.Fatalf("expected only spotify after reload, got %v", got)
	}
}
