package game

import (
	"sync"
	"time"
)

// recorder is an in-memory Conn capturing every frame it receives.
type recorder struct {
	mu     sync.Mutex
	frames []recordedFrame
}

type recordedFrame struct {
	Event string
	Data  any
}

func (r *recorder) Send(event string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, recordedFrame{Event: event, Data: data})
}

// named returns all captured frames with the given event name.
func (r *recorder) named(event string) []recordedFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedFrame
	for _, f := range r.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (r *recorder) count(event string) int {
	return len(r.named(event))
}

func (r *recorder) last(event string) (recordedFrame, bool) {
	frames := r.named(event)
	if len(frames) == 0 {
		return recordedFrame{}, false
	}
	return frames[len(frames)-1], true
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
}

// newTestHub builds a hub with a controllable clock. Background timers are
// not started; tests drive ticks and sweeps directly.
func newTestHub() (*Hub, *time.Time) {
	h := NewHub(Config{TickHz: 10, PlayerTimeout: 2 * time.Minute})
	now := time.UnixMilli(1_700_000_000_000)
	h.clock = func() time.Time { return now }
	return h, &now
}

// joinPlayer installs a player on the hub through the normal join path.
func joinPlayer(h *Hub, odID, name, mapID string, opts ...func(*JoinPayload)) *recorder {
	c := &recorder{}
	p := JoinPayload{OdID: odID, Name: name, MapID: mapID, X: 100, Y: 300}
	for _, opt := range opts {
		opt(&p)
	}
	h.HandleJoin(c, p, false)
	return c
}

func withParty(partyID string) func(*JoinPayload) {
	return func(p *JoinPayload) { p.PartyID = partyID }
}

// installMonster places a deterministic monster into a room, bypassing the
// randomized spawn path. The hub's id counter is advanced so monsters the
// hub mints later (respawns) cannot collide with the literal id.
func installTestMonster(h *Hub, mapID, id string, hp int) *Monster {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.monsterSeq.Add(1)
	room := h.ensureRoom(mapID)
	if room.Topology == nil {
		room.Topology = &MapTopology{
			MapWidth: 2000,
			GroundY:  400,
			MonsterTypes: map[string]MonsterType{
				"slime": {
					HP: hp, Speed: 1.2, Width: 40, Height: 30,
					AIType: AITypePatrolling,
					Loot:   []LootEntry{{Name: "Gold", Rate: 1.0, Min: 5, Max: 10}},
				},
			},
		}
	}
	m := &Monster{
		ID:         id,
		Type:       "slime",
		X:          500,
		Y:          400,
		Direction:  1,
		Facing:     "right",
		HP:         hp,
		MaxHP:      hp,
		Speed:      1.2,
		Width:      40,
		Height:     30,
		AIType:     AITypePatrolling,
		AIState:    AIStatePatrol,
		PatrolMinX: 350,
		PatrolMaxX: 850,
		SpawnX:     500,
		SpawnY:     400,
		GroundY:    400,
	}
	room.Monsters[id] = m
	return m
}

func roomOf(h *Hub, mapID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[mapID]
}

func asMap(data any) map[string]any {
	m, _ := data.(map[string]any)
	return m
}
