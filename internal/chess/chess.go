// Package chess is a stateless pair-router: it matches two waiting
// players and relays their moves verbatim. No rules, no board state, no
// shared simulation — validity lives on the clients.
package chess

import (
	"encoding/json"
	"log"
	"sync"
)

// Conn mirrors the game transport's send surface.
type Conn interface {
	Send(event string, data any)
}

// Ingress / egress event names.
const (
	EvFind   = "chessFind"
	EvCancel = "chessCancel"
	EvMove   = "chessMove"
	EvChat   = "chessChat"
	EvResign = "chessResign"

	EvMatched      = "chessMatched"
	EvOpponentLeft = "chessOpponentLeft"
	EvQueued       = "chessQueued"
)

// Router pairs connections and relays frames between partners.
type Router struct {
	mu       sync.Mutex
	waiting  Conn
	partners map[Conn]Conn
}

func NewRouter() *Router {
	return &Router{partners: make(map[Conn]Conn)}
}

// Dispatch routes one chess frame. Returns false for non-chess events.
func (r *Router) Dispatch(c Conn, event string, raw json.RawMessage) bool {
	switch event {
	case EvFind:
		r.find(c)
	case EvCancel:
		r.cancel(c)
	case EvMove, EvChat, EvResign:
		r.relay(c, event, raw)
		if event == EvResign {
			r.unpair(c, false)
		}
	default:
		return false
	}
	return true
}

func (r *Router) find(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, paired := r.partners[c]; paired || r.waiting == c {
		return
	}
	if r.waiting == nil {
		r.waiting = c
		c.Send(EvQueued, map[string]any{})
		return
	}

	opponent := r.waiting
	r.waiting = nil
	r.partners[c] = opponent
	r.partners[opponent] = c

	// The longer-waiting player takes white.
	opponent.Send(EvMatched, map[string]any{"color": "white"})
	c.Send(EvMatched, map[string]any{"color": "black"})
	log.Println("♟️ Chess match paired")
}

func (r *Router) cancel(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting == c {
		r.waiting = nil
	}
}

func (r *Router) relay(c Conn, event string, raw json.RawMessage) {
	r.mu.Lock()
	partner := r.partners[c]
	r.mu.Unlock()
	if partner == nil {
		return
	}
	payload := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	partner.Send(event, payload)
}

// unpair dissolves a match; notify controls whether the partner hears
// about it (resignations already carried their own frame).
func (r *Router) unpair(c Conn, notify bool) {
	r.mu.Lock()
	partner := r.partners[c]
	delete(r.partners, c)
	if partner != nil {
		delete(r.partners, partner)
	}
	r.mu.Unlock()

	if partner != nil && notify {
		partner.Send(EvOpponentLeft, map[string]any{})
	}
}

// HandleDisconnect clears queue membership and dissolves any live match.
func (r *Router) HandleDisconnect(c Conn) {
	r.cancel(c)
	r.unpair(c, true)
}
