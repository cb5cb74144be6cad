package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	mpdutils "github.com/JakeStanger/go-mpd-utils"
)

type Server struct {
	bridge         *Bridge
	players        *mpdutils.MultiHostClient
	hub            *Hub
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	log            zerolog.Logger
}

func NewServer(b *Bridge, players *mpdutils.MultiHostClient, hub *Hub, allowedOrigins []string, log zerolog.Logger) *Server {
	s := &Server{
		bridge:         b,
		players:        players,
		hub:            hub,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		log:            log,
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
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/song", s.handleSong)
	mux.HandleFunc("/api/hosts", s.handleHosts)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("ws upgrade error")
		return
	}

	s.log.Info().Str("remote", r.RemoteAddr).Msg("ws client connected")
	c := s.hub.AddClient(conn, s.bridge.Snapshot(r.Context()))

	go func() {
		defer func() {
			s.hub.RemoveClient(c)
			s.log.Info().Str("remote", r.RemoteAddr).Msg("ws client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	c, err := s.players.CurrentClient(ctx)
	if err != nil {
		s.writePlayerError(w, err)
		return
	}
	payload, err := s.bridge.queryHost(ctx, c.Host())
	if err != nil {
		s.writePlayerError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payload)
}

func (s *Server) handleSong(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	song, err := s.players.CurrentSong(ctx)
	if err != nil {
		s.writePlayerError(w, err)
		return
	}
	if song == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SongPayload{
		URI:             song.URI,
		Title:           song.Title,
		Artist:          song.Artist,
		Album:           song.Album,
		DurationSeconds: song.Duration.Seconds(),
	})
}

func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	type hostInfo struct {
		Host      string `json:"host"`
		Connected bool   `json:"connected"`
	}

	hosts := make([]hostInfo, 0, len(s.players.Clients()))
	for _, c := range s.players.Clients() {
		hosts = append(hosts, hostInfo{Host: c.Host(), Connected: c.IsConnected()})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hosts)
}

func (s *Server) writePlayerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mpdutils.ErrNoHostConnected):
		http.Error(w, "no host connected", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "player query timed out", http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
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
	if host == "localhost" || strings.HasPrefix(host, "localhost:") {
		return true
	}
	if host == "127.0.0.1" || strings.HasPrefix(host, "127.0.0.1:") {
		return true
	}
	if host == "::1" || strings.HasPrefix(host, "[::1]:") {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux, log zerolog.Logger) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Info().Str("addr", addr).Msg("server listening")
	return http.ListenAndServe(addr, mux)
}
