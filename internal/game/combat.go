package game

import "log"

// PredictionTolerance is the maximum HP divergence between a client's
// optimistic prediction and server truth before a correction is unicast.
const PredictionTolerance = 50

// HandleAttackMonster arbitrates one attack: rate admit, damage clamp,
// ledger, aggro, knockback, prediction reconciliation, broadcast, kill.
func (h *Hub) HandleAttackMonster(c Conn, atk AttackPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	p, room := h.playerByConn(c)
	if p == nil {
		return
	}
	now := h.nowMs()
	p.LastUpdate = now

	m, ok := room.Monsters[atk.MonsterID]
	if !ok || m.IsDead {
		if atk.Seq != 0 {
			c.Send(EvAttackCorrection, map[string]any{
				"seq":    atk.Seq,
				"reason": "monster_not_found",
			})
		}
		return
	}

	if !h.limiter.Admit(p.OdID, ActionAttack, now) {
		log.Printf("⚠️ Attack rate limit hit for %s", p.OdID)
		return
	}

	damage, altered := ValidateDamage(atk.Damage)
	if damage <= 0 {
		if altered {
			log.Printf("⚠️ Rejected forged damage %v from %s", atk.Damage, p.OdID)
		}
		return
	}
	if altered {
		log.Printf("⚠️ Clamped damage %v → %d from %s", atk.Damage, damage, p.OdID)
	}

	m.recordDamage(p.OdID, damage)
	m.HP -= damage
	m.LastUpdate = now

	var knockbackVX float64
	if m.AIType != AITypeStatic {
		m.AIState = AIStateChase
		m.TargetPlayer = p.OdID
		m.LastInteractionTime = now

		if atk.PlayerDirection == 1 || atk.PlayerDirection == -1 {
			knockbackVX = float64(atk.PlayerDirection) * KnockbackVelocity
			shoved := m.X + float64(atk.PlayerDirection)*KnockbackShove
			if m.PatrolMaxX > m.PatrolMinX {
				if shoved < m.PatrolMinX {
					shoved = m.PatrolMinX
				}
				if shoved > m.PatrolMaxX {
					shoved = m.PatrolMaxX
				}
			}
			m.X = shoved
			m.KnockbackEndTime = now + KnockbackMillis
		}
	}

	// Prediction reconciliation, addressed to the attacker only. Death
	// supersedes it: the kill event carries the truth.
	if atk.Seq != 0 && atk.PredictedHP != nil && m.HP > 0 {
		diff := float64(m.HP) - *atk.PredictedHP
		if diff > PredictionTolerance || diff < -PredictionTolerance {
			c.Send(EvAttackCorrection, map[string]any{
				"seq":       atk.Seq,
				"type":      "hp_correction",
				"correctHp": m.HP,
				"maxHp":     m.MaxHP,
			})
		}
	}

	currentHP := m.HP
	if currentHP < 0 {
		currentHP = 0
	}
	room.Broadcast(EvMonsterDamaged, map[string]any{
		"id":                 m.ID,
		"seq":                atk.Seq,
		"damage":             damage,
		"currentHp":          currentHP,
		"maxHp":              m.MaxHP,
		"attackerId":         p.OdID,
		"knockbackVelocityX": knockbackVX,
		"isCritical":         atk.IsCritical && !altered,
	})

	if m.HP <= 0 {
		h.killMonster(room, m)
	}
}

// killMonster settles a death: loot attribution from the damage ledger,
// drop minting, the kill broadcast, and respawn scheduling.
func (h *Hub) killMonster(room *Room, m *Monster) {
	m.IsDead = true
	m.HP = 0
	if room.EliteID == m.ID {
		room.EliteID = ""
	}

	lootRecipient := m.topDamager()
	drops := h.generateDrops(room, m)
	for _, d := range drops {
		room.Items[d.ID] = d
	}

	partyMembers := []string{}
	if lootRecipient != "" {
		if looter, ok := room.Players[lootRecipient]; ok && looter.PartyID != "" {
			for odID, member := range room.Players {
				if odID != lootRecipient && member.PartyID == looter.PartyID {
					partyMembers = append(partyMembers, odID)
				}
			}
		}
	}

	kill := map[string]any{
		"id":             m.ID,
		"type":           m.Type,
		"x":              m.X,
		"y":              m.Y,
		"drops":          dropPayload(drops),
		"partyMembers":   partyMembers,
		"isEliteMonster": m.IsElite,
		"isShiny":        m.IsShiny,
	}
	if lootRecipient != "" {
		kill["lootRecipient"] = lootRecipient
	}
	room.Broadcast(EvMonsterKilled, kill)

	m.damageBy = nil

	log.Printf("💀 %s (%s) killed on %s by %s", m.ID, m.Type, room.ID, lootRecipient)
	h.scheduleRespawn(room, m)
}
