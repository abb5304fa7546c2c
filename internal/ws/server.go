package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/media-bridge/backend/internal/bridge"
	"github.com/media-bridge/backend/internal/session"
)

// SessionReader is the read surface the HTTP handlers need from the
// bridge. Reads hit the live source, not the broadcast cache, so a
// request observes sessions exactly as they are at that moment.
type SessionReader interface {
	GetSessions() ([]*session.Record, error)
	GetCurrentSession() (*session.Record, error)
	GetSessionByID(id string) (*session.Record, error)
}

type Server struct {
	reader         SessionReader
	store          *session.Store
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(reader SessionReader, store *session.Store, broadcaster *Broadcaster, allowedOrigins []string, authToken string) *Server {
	s := &Server{
		reader:         reader,
		store:          store,
		broadcaster:    broadcaster,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
	}

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/stats", s.handleStats)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		log.Printf("ws client rejected: %v", err)
		conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := s.reader.GetSessions()
	if err != nil {
		s.readError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.broadcaster.FilterRecords(records))
}

func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Parse: /api/sessions/current or /api/sessions/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if path == "current" {
		s.handleCurrent(w, r)
		return
	}

	id, err := url.PathUnescape(path)
	if err != nil || id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	s.handleSessionByID(w, r, id)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	rec, err := s.reader.GetCurrentSession()
	if err != nil {
		s.readError(w, err)
		return
	}
	if rec != nil && !s.broadcaster.allowed(rec.ID) {
		rec = nil
	}

	// No current session encodes as JSON null.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request, id string) {
	rec, err := s.reader.GetSessionByID(id)
	if err != nil {
		s.readError(w, err)
		return
	}
	if rec == nil || !s.broadcaster.allowed(rec.ID) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

type statsPayload struct {
	Sessions int `json:"sessions"`
	Playing  int `json:"playing"`
	Clients  int `json:"clients"`
}

// handleStats reports counters from the broadcast cache, not the live
// source; it is cheap enough to poll.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statsPayload{
		Sessions: s.store.Count(),
		Playing:  s.store.PlayingCount(),
		Clients:  s.broadcaster.ClientCount(),
	})
}

func (s *Server) readError(w http.ResponseWriter, err error) {
	if errors.Is(err, bridge.ErrTornDown) {
		http.Error(w, "bridge shut down", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, fmt.Sprintf("session source error: %v", err), http.StatusBadGateway)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Media-Bridge-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
