package game

import "encoding/json"

// MapTopology is the client-supplied description of one map: its bounds,
// reference ground level, monster catalog and spawn points. The first
// client to join a map supplies it (a known trust surface, preserved
// deliberately).
type MapTopology struct {
	MapWidth       float64
	GroundY        float64
	MonsterTypes   map[string]MonsterType
	SpawnPositions []SpawnPosition
}

// GroundItem is a server-authoritative dropped item. An itemId is consumed
// at most once.
type GroundItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	DroppedBy string  `json:"droppedBy"`
	Timestamp int64   `json:"timestamp"`

	Amount      int             `json:"amount,omitempty"`
	IsGold      bool            `json:"isGold,omitempty"`
	VelocityX   float64         `json:"velocityX,omitempty"`
	VelocityY   float64         `json:"velocityY,omitempty"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	Rarity      string          `json:"rarity,omitempty"`
	Enhancement int             `json:"enhancement,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	LevelReq    int             `json:"levelReq,omitempty"`
	IsQuestItem bool            `json:"isQuestItem,omitempty"`
}

// MonsterOwner is the droppedBy sentinel for monster loot.
const MonsterOwner = "__monster__"

// Room owns all state for one map. All access is serialized by the hub
// lock; no other room may touch it.
type Room struct {
	ID       string
	Players  map[string]*Player
	Monsters map[string]*Monster
	Topology *MapTopology
	Items    map[string]*GroundItem
	EliteID  string
}

func newRoom(mapID string) *Room {
	return &Room{
		ID:       mapID,
		Players:  make(map[string]*Player),
		Monsters: make(map[string]*Monster),
		Items:    make(map[string]*GroundItem),
	}
}

// Broadcast sends an event to every player in the room.
func (r *Room) Broadcast(event string, data any) {
	for _, p := range r.Players {
		p.Conn.Send(event, data)
	}
}

// BroadcastExcept sends an event to every player except the named one.
func (r *Room) BroadcastExcept(odID, event string, data any) {
	for id, p := range r.Players {
		if id == odID {
			continue
		}
		p.Conn.Send(event, data)
	}
}

// liveMonsterSnapshots lists every monster that still participates in the
// simulation, in wire form.
func (r *Room) liveMonsterSnapshots() []map[string]any {
	out := make([]map[string]any, 0, len(r.Monsters))
	for _, m := range r.Monsters {
		if m.IsDead {
			continue
		}
		out = append(out, m.Snapshot())
	}
	return out
}

func (r *Room) playerSnapshots() []map[string]any {
	out := make([]map[string]any, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, p.Snapshot())
	}
	return out
}
