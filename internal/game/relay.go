package game

import "encoding/json"

// relay fans a sender-scoped event out to the rest of the room with the
// sender's identity attached. None of these relays touch server-side
// simulation; they exist so room members see one another's visual state.
func (h *Hub) relay(c Conn, egress string, raw json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	p.LastUpdate = h.nowMs()

	payload := tagSender(raw, p)
	room.BroadcastExcept(p.OdID, egress, payload)
}

// tagSender merges the sender's identity into a relayed payload.
func tagSender(raw json.RawMessage, p *Player) map[string]any {
	payload := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &payload)
	}
	payload["odId"] = p.OdID
	payload["name"] = p.Name
	return payload
}

// HandleUpdateAppearance stores the appearance diff on the player and
// relays it to the room.
func (h *Hub) HandleUpdateAppearance(c Conn, raw json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	p.LastUpdate = h.nowMs()

	var diff struct {
		Equipped      json.RawMessage `json:"equipped"`
		CosmeticEquip json.RawMessage `json:"cosmeticEquipped"`
		Customization json.RawMessage `json:"customization"`
		Guild         *string         `json:"guild"`
		EquippedMedal json.RawMessage `json:"equippedMedal"`
		DisplayMedals json.RawMessage `json:"displayMedals"`
	}
	if len(raw) > 0 && json.Unmarshal(raw, &diff) == nil {
		if len(diff.Equipped) > 0 {
			p.Equipped = diff.Equipped
		}
		if len(diff.CosmeticEquip) > 0 {
			p.CosmeticEquip = diff.CosmeticEquip
		}
		if len(diff.Customization) > 0 {
			p.Customization = diff.Customization
		}
		if diff.Guild != nil {
			p.Guild = *diff.Guild
		}
		if len(diff.EquippedMedal) > 0 {
			p.EquippedMedal = diff.EquippedMedal
		}
		if len(diff.DisplayMedals) > 0 {
			p.DisplayMedals = diff.DisplayMedals
		}
	}

	room.BroadcastExcept(p.OdID, EvPlayerAppearanceUpdate, tagSender(raw, p))
}

// HandleUpdateParty records the player's party and tells the room, so
// party frames and co-recipient lookups stay correct.
func (h *Hub) HandleUpdateParty(c Conn, req UpdatePartyPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	p.PartyID = req.PartyID
	p.LastUpdate = h.nowMs()

	room.BroadcastExcept(p.OdID, EvPlayerPartyUpdated, map[string]any{
		"odId":    p.OdID,
		"partyId": p.PartyID,
	})
}

// HandleUpdatePartyStats relays a member's vitals to the room and mirrors
// them onto the server-side player record.
func (h *Hub) HandleUpdatePartyStats(c Conn, raw json.RawMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	p.LastUpdate = h.nowMs()

	stats := decode[PartyStatsPayload](raw)
	if stats.MaxHP > 0 {
		p.HP = stats.HP
		p.MaxHP = stats.MaxHP
	}
	if stats.Level > 0 {
		p.Level = stats.Level
	}
	if stats.MaxExp > 0 {
		p.Exp = stats.Exp
		p.MaxExp = stats.MaxExp
	}

	room.BroadcastExcept(p.OdID, EvPartyMemberStats, tagSender(raw, p))
}
