package game

import (
	"fmt"
	"log"
	"math"
)

// Drop tuning. Velocities are advisory: the client integrates the arc.
const (
	EliteLootRateMultiple = 3
	EliteGoldMultiple     = 20
	dropSpreadStep        = 10.0
	dropVelXMin           = -2.0
	dropVelXMax           = 2.0
	dropVelYMin           = -5.0
	dropVelYMax           = -3.0
)

// celebrationDrops is the server-side event table for guaranteed drops.
// Keyed by monster type; only these types produce celebration loot. This is
// the one place to widen the event to more types.
var celebrationDrops = map[string][]string{
	"babySlime": {"Salami Stick"},
}

// drop is a minted ground item plus its advisory launch velocity for the
// kill payload.
type drop struct {
	item *GroundItem
	vx   float64
	vy   float64
}

func (h *Hub) rollVelocity() (float64, float64) {
	vx := dropVelXMin + h.rng.Float64()*(dropVelXMax-dropVelXMin)
	vy := dropVelYMin + h.rng.Float64()*(dropVelYMax-dropVelYMin)
	return vx, vy
}

// uniformInt draws from [min, max] inclusive.
func (h *Hub) uniformInt(min, max int) int {
	if max <= min {
		return min
	}
	return min + h.rng.Intn(max-min+1)
}

// mintDropID mints a unique monster-drop id. The per-room serialization
// plus the counter make it unique even within one millisecond.
func (h *Hub) mintDropID(idx int) string {
	return fmt.Sprintf("drop_%d_%d_%04d", h.nowMs(), idx, h.rng.Intn(10000))
}

func (h *Hub) mintPlayerDropID() string {
	return fmt.Sprintf("pdrop_%d_%04d", h.nowMs(), h.rng.Intn(10000))
}

// generateDrops rolls the monster's loot table (elite rates tripled), then
// appends elite guaranteed drops and any celebration entries. Every drop is
// registered by the caller as a ground item owned by the monster sentinel.
func (h *Hub) generateDrops(room *Room, m *Monster) []*GroundItem {
	baseX := m.X + m.Width/2
	baseY := m.Y + m.Height/2
	now := h.nowMs()

	var loot []LootEntry
	if room.Topology != nil {
		if mt, ok := room.Topology.MonsterTypes[m.Type]; ok {
			loot = mt.Loot
		}
	}

	rateMult := 1.0
	if m.IsElite {
		rateMult = EliteLootRateMultiple
	}

	var drops []*GroundItem
	mint := func(name string, amount int, isGold bool) {
		idx := len(drops)
		vx, vy := h.rollVelocity()
		item := &GroundItem{
			ID:        h.mintDropID(idx),
			Name:      name,
			X:         baseX + float64(idx)*dropSpreadStep,
			Y:         baseY,
			DroppedBy: MonsterOwner,
			Timestamp: now,
			Amount:    amount,
			IsGold:    isGold,
			VelocityX: vx,
			VelocityY: vy,
		}
		drops = append(drops, item)
	}

	for _, entry := range loot {
		if h.rng.Float64() >= entry.Rate*rateMult {
			continue
		}
		if entry.Max > 0 {
			amount := h.uniformInt(entry.Min, entry.Max)
			if m.IsElite {
				amount *= EliteGoldMultiple
			}
			mint(entry.Name, amount, true)
		} else {
			mint(entry.Name, 0, false)
		}
	}

	if m.IsElite {
		mint("Gold", 50000+h.rng.Intn(50000), true)
		for i, n := 0, h.uniformInt(2, 5); i < n; i++ {
			mint("Gachapon Ticket", 0, false)
		}
		for i, n := 0, h.uniformInt(4, 8); i < n; i++ {
			mint("Enhancement Scroll", 0, false)
		}
	}

	for _, name := range celebrationDrops[m.Type] {
		mint(name, 0, false)
	}

	return drops
}

// dropPayload is the wire form of minted drops inside monsterKilled. There
// is no separate spawn-item event for monster loot.
func dropPayload(drops []*GroundItem) []map[string]any {
	out := make([]map[string]any, 0, len(drops))
	for _, d := range drops {
		row := map[string]any{
			"itemId":    d.ID,
			"name":      d.Name,
			"x":         d.X,
			"y":         d.Y,
			"velocityX": d.VelocityX,
			"velocityY": d.VelocityY,
		}
		if d.IsGold {
			row["isGold"] = true
			row["amount"] = d.Amount
		}
		out = append(out, row)
	}
	return out
}

// HandleItemPickup consumes a ground item first-come-wins. The loser of a
// race gets a private rejection; nobody else hears about it.
func (h *Hub) HandleItemPickup(c Conn, req PickupPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	now := h.nowMs()
	p.LastUpdate = now

	if !h.limiter.Admit(p.OdID, ActionPickup, now) {
		log.Printf("⚠️ Pickup rate limit hit for %s", p.OdID)
		return
	}

	if _, ok := room.Items[req.ItemID]; !ok {
		c.Send(EvItemPickupRejected, map[string]any{
			"itemId":   req.ItemID,
			"itemName": req.ItemName,
			"reason":   "already_picked_up",
		})
		return
	}
	delete(room.Items, req.ItemID)

	room.Broadcast(EvItemPickedUp, map[string]any{
		"itemId":         req.ItemID,
		"itemName":       req.ItemName,
		"x":              req.X,
		"y":              req.Y,
		"pickedUpBy":     p.OdID,
		"pickedUpByName": p.Name,
	})
}

// HandlePlayerDropItem mints a server id for a player-dropped item, records
// it, tells the room, and confirms the canonical id back to the dropper.
func (h *Hub) HandlePlayerDropItem(c Conn, req DropItemPayload) {
	if req.Name == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	now := h.nowMs()
	p.LastUpdate = now

	vx, vy := h.rollVelocity()
	item := &GroundItem{
		ID:          h.mintPlayerDropID(),
		Name:        req.Name,
		X:           req.X,
		Y:           req.Y,
		DroppedBy:   p.OdID,
		Timestamp:   now,
		Amount:      req.Amount,
		IsGold:      req.IsGold,
		Stats:       req.Stats,
		Rarity:      req.Rarity,
		Enhancement: req.Enhancement,
		Quantity:    req.Quantity,
		LevelReq:    req.LevelReq,
		IsQuestItem: req.IsQuestItem,
	}
	room.Items[item.ID] = item

	announce := map[string]any{
		"id":        item.ID,
		"name":      item.Name,
		"x":         item.X,
		"y":         item.Y,
		"droppedBy": p.OdID,
		"velocityX": vx,
		"velocityY": vy,
	}
	if req.IsGold {
		announce["isGold"] = true
		announce["amount"] = req.Amount
	}
	room.BroadcastExcept(p.OdID, EvPlayerItemDropped, announce)
	c.Send(EvPlayerDropConfirm, map[string]any{
		"id":        item.ID,
		"velocityX": vx,
		"velocityY": vy,
	})
}

// HandleSharePartyGold splits picked-up gold across same-map party members.
// Every recipient is guaranteed at least 1 gold, which may over-distribute
// by at most memberCount−1 relative to the input.
func (h *Hub) HandleSharePartyGold(c Conn, req ShareGoldPayload) {
	if req.TotalAmount <= 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil || p.PartyID == "" {
		return
	}
	p.LastUpdate = h.nowMs()

	var members []*Player
	for odID, member := range room.Players {
		if odID != p.OdID && member.PartyID == p.PartyID {
			members = append(members, member)
		}
	}
	memberCount := 1 + len(members)
	if memberCount == 1 {
		return
	}

	share := int(math.Ceil(float64(req.TotalAmount) / float64(memberCount)))
	if share < 1 {
		share = 1
	}
	for _, member := range members {
		member.Conn.Send(EvPartyGoldShare, map[string]any{
			"amount":   share,
			"fromName": p.Name,
		})
	}

	looterShare := req.TotalAmount - share*(memberCount-1)
	if looterShare < 1 {
		looterShare = 1
	}
	c.Send(EvPartyGoldShareResult, map[string]any{
		"originalAmount": req.TotalAmount,
		"yourShare":      looterShare,
		"memberCount":    memberCount,
	})
}
