package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"odyssey/internal/chess"
	"odyssey/internal/game"
	"odyssey/internal/pq"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

const (
	// MaxSessionsTotal caps realtime sessions across both framings.
	MaxSessionsTotal = 500
	// MaxSessionsPerIP caps realtime sessions per source IP.
	MaxSessionsPerIP = 10
)

// Origin policy is deliberately permissive: the game client is served from
// arbitrary hosts and the protocol carries no cookies.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServerConfig wires the HTTP edge. Only Hub is required.
type ServerConfig struct {
	Hub   *game.Hub
	Chess *chess.Router
	PQ    *pq.Relay

	// RateLimitConfig overrides the HTTP per-IP limiter defaults.
	RateLimitConfig *RateLimitConfig
	// DisableLogging disables the request logger middleware (benchmarks).
	DisableLogging bool
}

// Server is the HTTP edge: health JSON, the WebSocket endpoint and the
// long-polling fallback, all feeding one frame dispatcher.
type Server struct {
	hub       *game.Hub
	chess     *chess.Router
	pq        *pq.Relay
	router    *chi.Mux
	ipLimiter *IPRateLimiter
	sockets   *SocketRateLimiter

	mu       sync.Mutex
	wsCount  int
	polls    map[string]*pollSession
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewServer builds the server and its router. No goroutines start and no
// listeners open until Start is called, so tests can drive Router()
// directly through httptest.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		hub:      cfg.Hub,
		chess:    cfg.Chess,
		pq:       cfg.PQ,
		sockets:  NewSocketRateLimiter(MaxSessionsPerIP),
		polls:    make(map[string]*pollSession),
		stopChan: make(chan struct{}),
	}
	if s.chess == nil {
		s.chess = chess.NewRouter()
	}
	if s.pq == nil {
		s.pq = pq.NewRelay()
	}

	rlCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rlCfg = *cfg.RateLimitConfig
	}
	s.ipLimiter = NewIPRateLimiter(rlCfg)

	r := chi.NewRouter()
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.ipLimiter.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.Route("/poll", func(r chi.Router) {
		r.Post("/", s.handlePollOpen)
		r.Get("/{sid}", s.handlePollDrain)
		r.Post("/{sid}", s.handlePollSubmit)
		r.Delete("/{sid}", s.handlePollClose)
	})

	s.router = r
	return s
}

// Router exposes the handler for httptest-driven tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start opens the listener and launches the poll-session reaper.
func (s *Server) Start(addr string) error {
	go s.reapIdlePolls()
	log.Printf("🌐 API server starting on %s", addr)
	return http.ListenAndServe(addr, s.router)
}

// Stop halts background workers.
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.ipLimiter.Stop()
}

// handleHealth reports registry occupancy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.hub.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"totalPlayers":  stats.TotalPlayers,
		"totalMonsters": stats.TotalMonsters,
		"maps":          stats.Maps,
	})
}

// dispatch routes one ingress frame through the stacked routers.
func (s *Server) dispatch(c game.Conn, ev string, raw json.RawMessage) {
	recordFrameIn()
	if s.hub.Dispatch(c, ev, raw) {
		return
	}
	if s.chess.Dispatch(c, ev, raw) {
		return
	}
	if s.pq.Dispatch(c, ev, raw) {
		return
	}
	recordFrameUnroutable()
}

// disconnect tears a session out of every router.
func (s *Server) disconnect(c game.Conn) {
	s.hub.HandleDisconnect(c)
	s.chess.HandleDisconnect(c)
	s.pq.HandleDisconnect(c)
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsCount + len(s.polls)
}

// handleWS upgrades to WebSocket and runs the session's pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if s.sessionCount() >= MaxSessionsTotal {
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !s.sockets.Allow(ip) {
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade error: %v", err)
		s.sockets.Release(ip)
		return
	}

	sess := newWSSession(conn, ip)
	s.mu.Lock()
	s.wsCount++
	total := s.wsCount + len(s.polls)
	s.mu.Unlock()
	updateSessionCount(total)
	log.Printf("📱 Client connected from %s (%d total)", ip, total)

	go sess.writePump()
	sess.Send(game.EvServerStartTime, map[string]any{"startTime": s.hub.StartTime()})

	go func() {
		defer func() {
			sess.close()
			s.disconnect(sess)
			s.sockets.Release(ip)

			s.mu.Lock()
			s.wsCount--
			remaining := s.wsCount + len(s.polls)
			s.mu.Unlock()
			updateSessionCount(remaining)
			log.Printf("📱 Client disconnected (%d remaining)", remaining)
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if err := json.Unmarshal(message, &f); err != nil || f.Event == "" {
				continue
			}
			s.dispatch(sess, f.Event, f.Data)
		}
	}()
}

// handlePollOpen creates a long-poll session and returns its id.
func (s *Server) handlePollOpen(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if s.sessionCount() >= MaxSessionsTotal {
		RecordConnectionRejected("poll_limit")
		http.Error(w, "Too many sessions", http.StatusServiceUnavailable)
		return
	}
	if !s.sockets.Allow(ip) {
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many sessions from your IP", http.StatusTooManyRequests)
		return
	}

	sess := newPollSession(newSessionID(), ip, time.Now())
	s.mu.Lock()
	s.polls[sess.id] = sess
	total := s.wsCount + len(s.polls)
	s.mu.Unlock()
	updateSessionCount(total)

	sess.Send(game.EvServerStartTime, map[string]any{"startTime": s.hub.StartTime()})
	writeJSON(w, http.StatusOK, map[string]any{"sid": sess.id, "pollWait": pollWait.Milliseconds()})
}

func (s *Server) pollByID(sid string) *pollSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[sid]
}

// handlePollDrain long-polls the session's outbound queue.
func (s *Server) handlePollDrain(w http.ResponseWriter, r *http.Request) {
	sess := s.pollByID(chi.URLParam(r, "sid"))
	if sess == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	sess.touch(time.Now())

	frames := sess.drain()
	out := make([]json.RawMessage, 0, len(frames))
	for _, f := range frames {
		out = append(out, f)
	}
	writeJSON(w, http.StatusOK, map[string]any{"frames": out})
}

// handlePollSubmit accepts one frame or a batch from a poll session.
func (s *Server) handlePollSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.pollByID(chi.URLParam(r, "sid"))
	if sess == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	sess.touch(time.Now())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	var batch []frame
	if err := json.Unmarshal(body, &batch); err != nil {
		// Fall back to a single frame body.
		var single frame
		if err := json.Unmarshal(body, &single); err != nil || single.Event == "" {
			http.Error(w, "bad frame", http.StatusBadRequest)
			return
		}
		batch = []frame{single}
	}

	for _, f := range batch {
		if f.Event == "" {
			continue
		}
		s.dispatch(sess, f.Event, f.Data)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePollClose tears a poll session down explicitly.
func (s *Server) handlePollClose(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	s.mu.Lock()
	sess := s.polls[sid]
	delete(s.polls, sid)
	remaining := s.wsCount + len(s.polls)
	s.mu.Unlock()

	if sess == nil {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	sess.close()
	s.disconnect(sess)
	s.sockets.Release(sess.ip)
	updateSessionCount(remaining)
	w.WriteHeader(http.StatusNoContent)
}

// reapIdlePolls disconnects long-poll sessions that stopped draining.
func (s *Server) reapIdlePolls() {
	ticker := time.NewTicker(pollIdleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-pollIdleTimeout)
			var stale []*pollSession
			s.mu.Lock()
			for sid, sess := range s.polls {
				if sess.idleSince(cutoff) {
					delete(s.polls, sid)
					stale = append(stale, sess)
				}
			}
			remaining := s.wsCount + len(s.polls)
			s.mu.Unlock()

			for _, sess := range stale {
				log.Printf("⏰ Reaping idle poll session %s", sess.id)
				sess.close()
				s.disconnect(sess)
				s.sockets.Release(sess.ip)
			}
			if len(stale) > 0 {
				updateSessionCount(remaining)
			}
		case <-s.stopChan:
			return
		}
	}
}

func newSessionID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(buf[:])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Response encode error: %v", err)
	}
}
