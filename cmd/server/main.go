package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/media-bridge/backend/internal/bridge"
	"github.com/media-bridge/backend/internal/config"
	"github.com/media-bridge/backend/internal/mock"
	"github.com/media-bridge/backend/internal/session"
	"github.com/media-bridge/backend/internal/source"
	"github.com/media-bridge/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Use scripted mock sessions instead of process discovery")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	genToken := flag.Bool("gen-token", false, "Generate an auth token and exit")
	flag.Parse()

	if *genToken {
		tok, err := config.GenerateToken()
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		os.Stdout.WriteString(tok + "\n")
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	store := session.NewStore()
	broadcaster := ws.NewBroadcaster(store, cfg.WS.BroadcastThrottle, cfg.WS.SnapshotInterval, cfg.Server.MaxConnections)
	broadcaster.SetAppFilter(cfg.NewAppFilter())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var src source.Source
	if *mockMode {
		log.Println("Starting in mock mode")
		m := mock.NewSource()
		mock.NewGenerator(m).Start(ctx)
		src = m
	} else {
		log.Println("Starting in real mode (process discovery)")
		src = source.NewProcessSource(cfg.Bridge.PlayerProcesses, cfg.Bridge.PollInterval, cfg.Bridge.PlayingCPUThreshold)
	}

	b, err := bridge.New(src, bridge.Options{EventBuffer: cfg.Bridge.EventBuffer})
	if err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}

	wireBridge(b, store, broadcaster)

	// Seed the cache so the first client's snapshot isn't empty.
	if records, err := b.GetSessions(); err == nil {
		store.ReplaceAll(records)
	}

	server := ws.NewServer(b, store, broadcaster, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		b.Shutdown()
		broadcaster.Stop()
		os.Exit(0)
	}()

	// SIGHUP reloads the config file. Only the app filter is hot-swappable;
	// server and bridge settings still need a restart.
	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	go func() {
		cur := cfg
		for range hupCh {
			next, err := config.LoadOrDefault(*configPath)
			if err != nil {
				log.Printf("Config reload failed: %v", err)
				continue
			}
			applyReload(cur, next, broadcaster)
			cur = next
		}
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// wireBridge subscribes every event kind and mirrors deliveries into the
// broadcast cache: transitions go out immediately, property churn flows
// through the throttled delta path. Cache writes and their broadcast
// notifications happen under the store's write lock, so a reader can
// never observe an updated record before its notification was issued.
func wireBridge(b *bridge.Bridge, store *session.Store, broadcaster *ws.Broadcaster) {
	mustSubscribe(b, session.SessionAdded, func(ev session.Event) {
		if ev.Record == nil {
			broadcaster.QueueEvent(ev)
			return
		}
		store.UpdateAndNotify(ev.Record, func() { broadcaster.QueueEvent(ev) })
	})
	mustSubscribe(b, session.SessionRemoved, func(ev session.Event) {
		store.RemoveAndNotify(ev.SessionID, func() { broadcaster.QueueEvent(ev) })
	})
	onProps := func(ev session.Event) {
		if ev.Record == nil {
			return
		}
		store.UpdateAndNotify(ev.Record, func() {
			broadcaster.QueueUpdate([]*session.Record{ev.Record})
		})
	}
	for _, k := range session.PerSessionKinds() {
		mustSubscribe(b, k, onProps)
	}
}

// applyReload logs what changed between two configs and applies the
// hot-swappable parts to the running broadcaster.
func applyReload(old, next *config.Config, broadcaster *ws.Broadcaster) {
	for _, change := range config.Diff(old, next) {
		log.Printf("Config changed: %s", change)
	}
	broadcaster.SetAppFilter(next.NewAppFilter())
}

func mustSubscribe(b *bridge.Bridge, kind session.EventKind, fn bridge.Handler) {
	if err := b.Subscribe(kind, fn); err != nil {
		log.Fatalf("Failed to subscribe %s: %v", kind, err)
	}
}
