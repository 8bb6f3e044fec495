package ws

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgplayer/internal/app/notification"
	"github.com/osa030/bgplayer/internal/domain/track"
)

// Source provides what the HTTP surface shows.
type Source interface {
	NowPlaying() (notification.Snapshot, bool)
	Tracks() []track.Track
}

// Server serves the now-playing websocket and a small JSON API.
type Server struct {
	hub      *Hub
	source   Source
	wsPath   string
	upgrader websocket.Upgrader
}

// NewServer creates a server. wsPath defaults to /ws/now-playing.
func NewServer(hub *Hub, source Source, wsPath string) *Server {
	if wsPath == "" {
		wsPath = "/ws/now-playing"
	}
	return &Server{
		hub:    hub,
		source: source,
		wsPath: wsPath,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local control surface; any origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the chi router with the server routes.
func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/healthz", s.handleHealth)
	r.Get(s.wsPath, s.handleWS)
	r.Route("/api", func(r chi.Router) {
		r.Get("/now-playing", s.handleNowPlaying)
		r.Get("/tracks", s.handleTracks)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.Count(),
	})
}

func (s *Server) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.source.NowPlaying()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type trackView struct {
	Index   int    `json:"index"`
	Locator string `json:"locator"`
	Title   string `json:"title"`
	Album   string `json:"album,omitempty"`
	Artist  string `json:"artist,omitempty"`
}

func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request) {
	tracks := s.source.Tracks()
	out := make([]trackView, len(tracks))
	for i, t := range tracks {
		out[i] = trackView{Index: i, Locator: t.Locator, Title: t.DisplayTitle(), Album: t.Album, Artist: t.Artist}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zlog.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}

	c := &client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}
	if snap, ok := s.source.NowPlaying(); ok {
		if msg, err := json.Marshal(snap); err == nil {
			c.send <- msg
		}
	}
	if !s.hub.register(c) {
		_ = conn.Close()
		return
	}
	zlog.Debug().Msgf("ws: client %s connected", c.remote)

	go c.writePump()
	go c.readPump()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Debug().Err(err).Msg("ws: failed to write response")
	}
}
