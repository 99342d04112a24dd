package game

import "log"

// Elite promotion tuning.
const (
	ElitePromoteChance  = 0.3
	EliteHPMultiple     = 100
	EliteDamageMultiple = 3
)

// runEliteCheck fires on the randomized promoter timer: each populated,
// non-excluded room without a live elite gets one promotion roll.
func (h *Hub) runEliteCheck() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, room := range h.rooms {
		if len(room.Players) == 0 || room.EliteID != "" || hasExcludedPrefix(room.ID) {
			continue
		}
		if h.rng.Float64() >= ElitePromoteChance {
			continue
		}
		candidates := eliteCandidates(room)
		if len(candidates) == 0 {
			continue
		}
		h.promoteElite(room, candidates[h.rng.Intn(len(candidates))])
	}
}

// eliteCandidates lists monsters that may be promoted.
func eliteCandidates(room *Room) []*Monster {
	var out []*Monster
	for _, m := range room.Monsters {
		if m.IsDead || m.IsMiniBoss || m.IsTrialBoss || m.IsElite || m.Type == "testDummy" {
			continue
		}
		out = append(out, m)
	}
	return out
}

// promoteElite turns a monster into the room's elite and announces it.
func (h *Hub) promoteElite(room *Room, m *Monster) {
	m.OriginalMaxHP = m.MaxHP
	m.OriginalDamage = m.Damage
	m.MaxHP *= EliteHPMultiple
	m.HP = m.MaxHP
	m.Damage *= EliteDamageMultiple
	m.IsElite = true
	room.EliteID = m.ID

	room.Broadcast(EvMonsterElite, map[string]any{
		"monsterId":      m.ID,
		"maxHp":          m.MaxHP,
		"hp":             m.HP,
		"damage":         m.Damage,
		"originalMaxHp":  m.OriginalMaxHP,
		"originalDamage": m.OriginalDamage,
	})
	log.Printf("👑 %s (%s) promoted to elite on %s", m.ID, m.Type, room.ID)
}

// HandleTransformElite is the client-initiated mini-event variant. When a
// GM password is configured the caller must hold a GM session; without one
// the legacy trusted path is preserved.
func (h *Hub) HandleTransformElite(c Conn, req TransformElitePayload) {
	if h.gm.Configured() && !h.gm.Has(c) {
		c.Send(EvError, map[string]any{"message": "transformElite requires GM authorization"})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, room := h.playerByConn(c)
	if room == nil {
		return
	}
	m, ok := room.Monsters[req.MonsterID]
	if !ok || m.IsDead || m.IsElite {
		return
	}

	m.OriginalMaxHP = req.OriginalMaxHP
	m.OriginalDamage = req.OriginalDamage
	if m.OriginalMaxHP == 0 {
		m.OriginalMaxHP = m.MaxHP
	}
	if m.OriginalDamage == 0 {
		m.OriginalDamage = m.Damage
	}
	if req.MaxHP > 0 {
		m.MaxHP = req.MaxHP
		m.HP = req.MaxHP
	}
	if req.Damage > 0 {
		m.Damage = req.Damage
	}
	m.IsElite = true
	room.EliteID = m.ID

	room.Broadcast(EvMonsterElite, map[string]any{
		"monsterId":      m.ID,
		"maxHp":          m.MaxHP,
		"hp":             m.HP,
		"damage":         m.Damage,
		"originalMaxHp":  m.OriginalMaxHP,
		"originalDamage": m.OriginalDamage,
	})
}
