package game

import "encoding/json"

// Conn is a client connection capable of receiving event frames. The
// transport layer (websocket or long-poll) implements it; tests use an
// in-memory recorder.
type Conn interface {
	// Send enqueues one event frame. It must never block the caller.
	Send(event string, data any)
}

// Player is one connected character inside a room. A player exists in at
// most one room at a time; odId is unique within the process while
// connected.
type Player struct {
	OdID           string
	Name           string
	MapID          string
	X, Y           float64
	Facing         string
	AnimationState string
	VelocityX      float64
	VelocityY      float64

	Customization json.RawMessage
	Equipped      json.RawMessage
	CosmeticEquip json.RawMessage
	EquippedMedal json.RawMessage
	DisplayMedals json.RawMessage
	Guild         string
	PlayerClass   string

	HP     int
	MaxHP  int
	Level  int
	Exp    int
	MaxExp int

	PartyID     string
	ActiveBuffs json.RawMessage
	Pet         json.RawMessage

	// LastUpdate is a millisecond timestamp refreshed by any ingress from
	// this player; the inactivity sweep compares it against the timeout.
	LastUpdate int64

	Conn Conn
}

// Snapshot is the wire form of a player, sent in currentPlayers and
// playerJoined payloads.
func (p *Player) Snapshot() map[string]any {
	snap := map[string]any{
		"odId":           p.OdID,
		"name":           p.Name,
		"mapId":          p.MapID,
		"x":              p.X,
		"y":              p.Y,
		"facing":         p.Facing,
		"animationState": p.AnimationState,
		"velocityX":      p.VelocityX,
		"velocityY":      p.VelocityY,
		"guild":          p.Guild,
		"playerClass":    p.PlayerClass,
		"level":          p.Level,
		"hp":             p.HP,
		"maxHp":          p.MaxHP,
		"exp":            p.Exp,
		"maxExp":         p.MaxExp,
		"partyId":        p.PartyID,
	}
	addRaw(snap, "customization", p.Customization)
	addRaw(snap, "equipped", p.Equipped)
	addRaw(snap, "cosmeticEquipped", p.CosmeticEquip)
	addRaw(snap, "equippedMedal", p.EquippedMedal)
	addRaw(snap, "displayMedals", p.DisplayMedals)
	addRaw(snap, "activeBuffs", p.ActiveBuffs)
	addRaw(snap, "pet", p.Pet)
	return snap
}

func addRaw(m map[string]any, key string, raw json.RawMessage) {
	if len(raw) > 0 {
		m[key] = raw
	}
}
