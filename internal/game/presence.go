package game

import (
	"encoding/json"
	"log"
)

// HandleJoin installs a player into a room. rejoin additionally removes any
// identity the socket already owns (character switching on the same
// connection), announcing playerLeft for each.
func (h *Hub) HandleJoin(c Conn, p JoinPayload, rejoin bool) {
	if p.OdID == "" || p.Name == "" || p.MapID == "" {
		c.Send(EvError, map[string]any{"message": "join requires odId, name and mapId"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if rejoin {
		if owned, ok := h.conns[c]; ok && owned != p.OdID {
			h.removePlayerLocked(owned, true)
		}
		if p.OldOdID != "" && p.OldOdID != p.OdID {
			h.removePlayerLocked(p.OldOdID, true)
		}
	}
	// A join for an odId that is already present elsewhere supersedes the
	// old presence (same player reconnecting).
	if _, ok := h.index[p.OdID]; ok {
		h.removePlayerLocked(p.OdID, true)
	}

	room := h.ensureRoom(p.MapID)
	player := &Player{
		OdID:           p.OdID,
		Name:           p.Name,
		MapID:          p.MapID,
		X:              p.X,
		Y:              p.Y,
		Facing:         "right",
		AnimationState: "idle",
		Customization:  p.Customization,
		Equipped:       p.Equipped,
		CosmeticEquip:  p.CosmeticEquip,
		EquippedMedal:  p.EquippedMedal,
		DisplayMedals:  p.DisplayMedals,
		Guild:          p.Guild,
		PlayerClass:    p.PlayerClass,
		Level:          p.Level,
		HP:             p.HP,
		MaxHP:          p.MaxHP,
		Exp:            p.Exp,
		MaxExp:         p.MaxExp,
		PartyID:        p.PartyID,
		LastUpdate:     h.nowMs(),
		Conn:           c,
	}
	room.Players[p.OdID] = player
	h.conns[c] = p.OdID
	h.index[p.OdID] = p.MapID

	// New arrival gets the roster and live monsters; the room learns about
	// the arrival.
	c.Send(EvCurrentPlayers, room.playerSnapshots())
	c.Send(EvCurrentMonsters, room.liveMonsterSnapshots())
	room.BroadcastExcept(p.OdID, EvPlayerJoined, player.Snapshot())

	log.Printf("👤 %s (%s) joined %s", p.Name, p.OdID, p.MapID)
}

// HandleUpdatePosition records the sender's transform and relays it to the
// room. Position updates are the liveness signal for the inactivity sweep.
func (h *Hub) HandleUpdatePosition(c Conn, pos PositionPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	now := h.nowMs()
	if !h.limiter.Admit(p.OdID, ActionPosition, now) {
		if h.cfg.Debug {
			log.Printf("⚠️ Position rate limit hit for %s", p.OdID)
		}
		return
	}

	p.X = pos.X
	p.Y = pos.Y
	p.Facing = pos.Facing
	p.AnimationState = pos.AnimationState
	p.VelocityX = pos.VelocityX
	p.VelocityY = pos.VelocityY
	if len(pos.ActiveBuffs) > 0 {
		p.ActiveBuffs = pos.ActiveBuffs
	}
	if len(pos.Pet) > 0 {
		p.Pet = pos.Pet
	}
	p.LastUpdate = now

	update := map[string]any{
		"odId":           p.OdID,
		"x":              p.X,
		"y":              p.Y,
		"facing":         p.Facing,
		"animationState": p.AnimationState,
		"velocityX":      p.VelocityX,
		"velocityY":      p.VelocityY,
	}
	addRaw(update, "activeBuffs", p.ActiveBuffs)
	addRaw(update, "pet", p.Pet)
	room.BroadcastExcept(p.OdID, EvPlayerMoved, update)
}

// HandleChangeMap atomically moves a player between rooms.
func (h *Hub) HandleChangeMap(c Conn, mv ChangeMapPayload) {
	if mv.NewMapID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	p, oldRoom := h.playerByConn(c)
	if p == nil {
		return
	}
	changed := p.MapID != mv.NewMapID
	if changed {
		delete(oldRoom.Players, p.OdID)
		oldRoom.Broadcast(EvPlayerLeft, map[string]any{"odId": p.OdID})
		if len(oldRoom.Players) == 0 {
			h.destroyRoom(oldRoom.ID)
		}
	}

	newRoom := h.ensureRoom(mv.NewMapID)
	p.MapID = mv.NewMapID
	p.X = mv.X
	p.Y = mv.Y
	p.LastUpdate = h.nowMs()
	newRoom.Players[p.OdID] = p
	h.index[p.OdID] = mv.NewMapID

	// A same-map change is membership confirmation only: the room already
	// knows this player, so re-announcing would double-render them.
	c.Send(EvCurrentPlayers, newRoom.playerSnapshots())
	c.Send(EvCurrentMonsters, newRoom.liveMonsterSnapshots())
	if changed {
		newRoom.BroadcastExcept(p.OdID, EvPlayerJoined, p.Snapshot())
	}

	if h.cfg.Debug {
		log.Printf("🗺️ %s moved to %s", p.OdID, mv.NewMapID)
	}
}

// HandleChat relays a chat line to everyone in the room, sender included.
func (h *Hub) HandleChat(c Conn, msg ChatPayload) {
	if msg.Message == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	p.LastUpdate = h.nowMs()
	room.Broadcast(EvPlayerChat, map[string]any{
		"odId":    p.OdID,
		"name":    p.Name,
		"message": msg.Message,
	})
}

// HandleDisconnect tears down whatever identity the connection owns.
func (h *Hub) HandleDisconnect(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if odID, ok := h.conns[c]; ok {
		h.removePlayerLocked(odID, true)
	}
	delete(h.conns, c)
	h.gm.Remove(c)
}

// removePlayerLocked removes one identity from its room, cleans its rate
// buckets, broadcasts playerLeft, and destroys the room when it empties.
func (h *Hub) removePlayerLocked(odID string, announce bool) {
	mapID, ok := h.index[odID]
	if !ok {
		return
	}
	delete(h.index, odID)
	h.limiter.Forget(odID)

	room, ok := h.rooms[mapID]
	if !ok {
		return
	}
	p, ok := room.Players[odID]
	if !ok {
		return
	}
	delete(room.Players, odID)
	if p.Conn != nil {
		delete(h.conns, p.Conn)
	}
	if announce {
		room.Broadcast(EvPlayerLeft, map[string]any{"odId": odID})
	}
	if len(room.Players) == 0 {
		h.destroyRoom(mapID)
	}
	log.Printf("👋 %s left %s", odID, mapID)
}

// sweepInactive disconnects players whose last ingress is older than the
// configured timeout. The server will not hold a stale player forever.
func (h *Hub) sweepInactive() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.nowMs() - h.cfg.PlayerTimeout.Milliseconds()
	var stale []string
	for _, r := range h.rooms {
		for odID, p := range r.Players {
			if p.LastUpdate < cutoff {
				stale = append(stale, odID)
			}
		}
	}
	for _, odID := range stale {
		log.Printf("⏰ Sweeping inactive player %s", odID)
		h.removePlayerLocked(odID, true)
	}
}

// HandleLatencyPing answers the client's liveness probe.
func (h *Hub) HandleLatencyPing(c Conn, raw json.RawMessage) {
	h.mu.Lock()
	if p, _ := h.playerByConn(c); p != nil {
		p.LastUpdate = h.nowMs()
	}
	now := h.nowMs()
	h.mu.Unlock()

	reply := map[string]any{"t": now}
	if len(raw) > 0 {
		var echo struct {
			ClientTime int64 `json:"clientTime"`
		}
		if json.Unmarshal(raw, &echo) == nil && echo.ClientTime != 0 {
			reply["clientTime"] = echo.ClientTime
		}
	}
	c.Send(EvLatencyPong, reply)
}

// HandleRequestMonsters re-sends the live monster list to the requester.
func (h *Hub) HandleRequestMonsters(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, room := h.playerByConn(c)
	if room == nil {
		return
	}
	c.Send(EvCurrentMonsters, room.liveMonsterSnapshots())
}
