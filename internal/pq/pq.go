// Package pq is the party-quest stage-progression relay: thin pub/sub
// over a fixed stage table. The server validates stage numbers against the
// table and fans progression out to the channel; the quest logic itself is
// client-side.
package pq

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
	EvJoin       = "pqJoin"
	EvLeave      = "pqLeave"
	EvStageClear = "pqStageClear"

	EvJoined       = "pqJoined"
	EvMemberJoined = "pqMemberJoined"
	EvMemberLeft   = "pqMemberLeft"
	EvStageCleared = "pqStageCleared"
	EvRejected     = "pqRejected"
)

// Stage is one row of the fixed progression table.
type Stage struct {
	Number    int    `json:"number"`
	Objective string `json:"objective"`
}

// Stages is the fixed stage table. Progression must follow it in order.
var Stages = []Stage{
	{1, "clear_entry_slimes"},
	{2, "collect_pass_coupons"},
	{3, "light_the_platforms"},
	{4, "boss_king_slime"},
}

type channel struct {
	members map[Conn]string // conn -> display name
	stage   int             // highest cleared stage
}

// Relay tracks party-quest channels and their stage progress.
type Relay struct {
	mu       sync.Mutex
	channels map[string]*channel
	byConn   map[Conn]string // conn -> pqId
}

func NewRelay() *Relay {
	return &Relay{
		channels: make(map[string]*channel),
		byConn:   make(map[Conn]string),
	}
}

// Dispatch routes one party-quest frame. Returns false otherwise.
func (r *Relay) Dispatch(c Conn, event string, raw json.RawMessage) bool {
	switch event {
	case EvJoin:
		var req struct {
			PqID string `json:"pqId"`
			Name string `json:"name"`
		}
		_ = json.Unmarshal(raw, &req)
		r.join(c, req.PqID, req.Name)
	case EvLeave:
		r.leave(c, true)
	case EvStageClear:
		var req struct {
			Stage int `json:"stage"`
		}
		_ = json.Unmarshal(raw, &req)
		r.stageClear(c, req.Stage)
	default:
		return false
	}
	return true
}

func (r *Relay) join(c Conn, pqID, name string) {
	if pqID == "" {
		c.Send(EvRejected, map[string]any{"reason": "missing_pq_id"})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(c, true)

	ch, ok := r.channels[pqID]
	if !ok {
		ch = &channel{members: make(map[Conn]string)}
		r.channels[pqID] = ch
	}
	ch.members[c] = name
	r.byConn[c] = pqID

	c.Send(EvJoined, map[string]any{
		"pqId":        pqID,
		"stage":       ch.stage,
		"stages":      Stages,
		"memberCount": len(ch.members),
	})
	for member := range ch.members {
		if member != c {
			member.Send(EvMemberJoined, map[string]any{"name": name})
		}
	}
}

func (r *Relay) leave(c Conn, notify bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(c, notify)
}

func (r *Relay) leaveLocked(c Conn, notify bool) {
	pqID, ok := r.byConn[c]
	if !ok {
		return
	}
	delete(r.byConn, c)

	ch, ok := r.channels[pqID]
	if !ok {
		return
	}
	name := ch.members[c]
	delete(ch.members, c)
	if len(ch.members) == 0 {
		delete(r.channels, pqID)
		return
	}
	if notify {
		for member := range ch.members {
			member.Send(EvMemberLeft, map[string]any{"name": name})
		}
	}
}

// stageClear validates the claim against the table and the channel's
// progress, then fans the progression out.
func (r *Relay) stageClear(c Conn, stage int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pqID, ok := r.byConn[c]
	if !ok {
		return
	}
	ch := r.channels[pqID]

	if stage < 1 || stage > len(Stages) {
		c.Send(EvRejected, map[string]any{"reason": "unknown_stage"})
		return
	}
	if stage != ch.stage+1 {
		c.Send(EvRejected, map[string]any{"reason": "out_of_order_stage"})
		return
	}
	ch.stage = stage

	isFinal := stage == len(Stages)
	payload := map[string]any{
		"stage":   stage,
		"isFinal": isFinal,
	}
	if !isFinal {
		payload["nextStage"] = Stages[stage]
	}
	for member := range ch.members {
		member.Send(EvStageCleared, payload)
	}
	log.Printf("🏰 PQ %s cleared stage %d", pqID, stage)
}

// HandleDisconnect removes the connection from its channel.
func (r *Relay) HandleDisconnect(c Conn) {
	r.leave(c, true)
}
