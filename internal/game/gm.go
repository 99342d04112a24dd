package game

import (
	"crypto/subtle"
	"log"
	"sync"
)

// GMSessions is the set of connections that have presented the GM
// password. It is one of the few truly global mutables, so it carries its
// own small lock instead of riding the hub's.
type GMSessions struct {
	mu       sync.Mutex
	password string
	sessions map[Conn]struct{}
}

func NewGMSessions(password string) *GMSessions {
	return &GMSessions{
		password: password,
		sessions: make(map[Conn]struct{}),
	}
}

// Configured reports whether a GM password was supplied at boot. Absence
// disables the GM surface entirely.
func (g *GMSessions) Configured() bool {
	return g.password != ""
}

// Authenticate admits the connection on an exact password match.
func (g *GMSessions) Authenticate(c Conn, password string) bool {
	if !g.Configured() {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(password), []byte(g.password)) != 1 {
		return false
	}
	g.mu.Lock()
	g.sessions[c] = struct{}{}
	g.mu.Unlock()
	return true
}

// Has reports whether the connection holds a GM session.
func (g *GMSessions) Has(c Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sessions[c]
	return ok
}

// Remove discards the connection's GM session, if any.
func (g *GMSessions) Remove(c Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.sessions, c)
}

// HandleGMAuth processes a gmAuth attempt.
func (h *Hub) HandleGMAuth(c Conn, req GMAuthPayload) {
	if !h.gm.Configured() {
		c.Send(EvGMAuthResult, map[string]any{
			"success": false,
			"message": "GM system not configured",
		})
		return
	}
	if h.gm.Authenticate(c, req.Password) {
		log.Println("🔑 GM session granted")
		c.Send(EvGMAuthResult, map[string]any{"success": true})
		return
	}
	log.Println("⚠️ GM auth failed")
	c.Send(EvGMAuthResult, map[string]any{
		"success": false,
		"message": "invalid password",
	})
}

// HandleCheckGMAuth reports the connection's current GM membership.
func (h *Hub) HandleCheckGMAuth(c Conn) {
	c.Send(EvGMAuthStatus, map[string]any{
		"isGm":       h.gm.Has(c),
		"configured": h.gm.Configured(),
	})
}
