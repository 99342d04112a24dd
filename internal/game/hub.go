package game

import (
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// Config tunes the hub. Zero values fall back to the defaults below.
type Config struct {
	// TickHz is the monster simulation cadence.
	TickHz int
	// PlayerTimeout evicts players with no ingress for this long.
	PlayerTimeout time.Duration
	// GMPassword enables the GM surface when non-empty.
	GMPassword string
	// Debug enables verbose logging of relays and rejections.
	Debug bool

	// EliteCheckMin/Max bound the random elite-promoter delay.
	EliteCheckMin time.Duration
	EliteCheckMax time.Duration

	// OnTickDuration, when set, observes each simulation tick's cost.
	OnTickDuration func(time.Duration)
}

const (
	DefaultTickHz        = 10
	DefaultPlayerTimeout = 2 * time.Minute
	sweepInterval        = 10 * time.Second
	defaultEliteMin      = 2 * time.Minute
	defaultEliteMax      = 7 * time.Minute
	respawnDelay         = 8 * time.Second
	miniBossRespawnDelay = 300 * time.Second
	corpseLingerPQ       = 1 * time.Second
)

func (c Config) withDefaults() Config {
	if c.TickHz <= 0 {
		c.TickHz = DefaultTickHz
	}
	if c.PlayerTimeout <= 0 {
		c.PlayerTimeout = DefaultPlayerTimeout
	}
	if c.EliteCheckMin <= 0 {
		c.EliteCheckMin = defaultEliteMin
	}
	if c.EliteCheckMax <= c.EliteCheckMin {
		c.EliteCheckMax = c.EliteCheckMin + (defaultEliteMax - defaultEliteMin)
	}
	return c
}

// Hub owns the room registry and serializes every room mutation behind one
// lock: ingress handlers, tick callbacks, scheduled respawns, elite
// promotion and the inactivity sweep all take it, so two events for the
// same map always observe a total order.
type Hub struct {
	mu    sync.Mutex
	cfg   Config
	rooms map[string]*Room
	// conns maps a connection to the odId it currently owns.
	conns map[Conn]string
	// index maps odId to mapId for process-wide uniqueness.
	index map[string]string

	limiter *ActionLimiter
	gm      *GMSessions

	monsterSeq atomic.Int64
	rng        *rand.Rand

	startTime int64 // ms, captured at construction, sent on connect

	running  bool
	stopChan chan struct{}

	// clock is swappable for tests.
	clock func() time.Time
}

// NewHub creates a hub. Background timers do not start until Start is
// called, which keeps construction side-effect free for tests.
func NewHub(cfg Config) *Hub {
	cfg = cfg.withDefaults()
	h := &Hub{
		cfg:      cfg,
		rooms:    make(map[string]*Room),
		conns:    make(map[Conn]string),
		index:    make(map[string]string),
		limiter:  NewActionLimiter(),
		gm:       NewGMSessions(cfg.GMPassword),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		stopChan: make(chan struct{}),
		clock:    time.Now,
	}
	h.startTime = h.nowMs()
	return h
}

func (h *Hub) nowMs() int64 {
	return h.clock().UnixMilli()
}

// StartTime is the boot timestamp delivered in serverStartTime so clients
// can detect restarts.
func (h *Hub) StartTime() int64 {
	return h.startTime
}

// GM exposes the GM session set to the transport layer.
func (h *Hub) GM() *GMSessions {
	return h.gm
}

// Start launches the simulation tick, the inactivity sweep and the elite
// promoter timer.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.tickLoop()
	go h.sweepLoop()
	go h.eliteLoop()

	log.Printf("🎮 Hub started at %d Hz (player timeout %s)", h.cfg.TickHz, h.cfg.PlayerTimeout)
}

// Stop halts the background timers. One-shot respawn timers are left to
// fire; they observe room absence and no-op.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopChan)
	log.Println("🛑 Hub stopped")
}

func (h *Hub) tickLoop() {
	ticker := time.NewTicker(time.Second / time.Duration(h.cfg.TickHz))
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			start := time.Now()
			h.Tick()
			if h.cfg.OnTickDuration != nil {
				h.cfg.OnTickDuration(time.Since(start))
			}
		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweepInactive()
		case <-h.stopChan:
			return
		}
	}
}

func (h *Hub) eliteLoop() {
	for {
		h.mu.Lock()
		span := h.cfg.EliteCheckMax - h.cfg.EliteCheckMin
		delay := h.cfg.EliteCheckMin + time.Duration(h.rng.Int63n(int64(span)))
		h.mu.Unlock()

		select {
		case <-time.After(delay):
			h.runEliteCheck()
		case <-h.stopChan:
			return
		}
	}
}

// Tick advances every live monster in every room by one step, then
// broadcasts positions to rooms that have anyone watching. Empty rooms
// keep ticking; monsters live on.
func (h *Hub) Tick() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.nowMs()
	for _, r := range h.rooms {
		for _, m := range r.Monsters {
			if m.IsDead {
				continue
			}
			h.updateAI(r, m, now)
		}
		if len(r.Players) > 0 {
			r.Broadcast(EvMonsterPositions, h.monsterPositionPayload(r, now))
		}
	}
}

func (h *Hub) monsterPositionPayload(r *Room, now int64) []map[string]any {
	out := make([]map[string]any, 0, len(r.Monsters))
	for _, m := range r.Monsters {
		if m.IsDead {
			continue
		}
		out = append(out, m.positionUpdate(now))
	}
	return out
}

// ensureRoom returns the room for mapID, creating it on first use.
func (h *Hub) ensureRoom(mapID string) *Room {
	r, ok := h.rooms[mapID]
	if !ok {
		r = newRoom(mapID)
		h.rooms[mapID] = r
		if h.cfg.Debug {
			log.Printf("🗺️ Room created: %s", mapID)
		}
	}
	return r
}

// destroyRoom drops a room and all its state. Callers must have verified
// the room holds zero players. Pending respawn timers observe the absence.
func (h *Hub) destroyRoom(mapID string) {
	delete(h.rooms, mapID)
	if h.cfg.Debug {
		log.Printf("🗺️ Room destroyed: %s", mapID)
	}
}

// playerByConn resolves the player currently bound to a connection.
func (h *Hub) playerByConn(c Conn) (*Player, *Room) {
	odID, ok := h.conns[c]
	if !ok {
		return nil, nil
	}
	mapID, ok := h.index[odID]
	if !ok {
		return nil, nil
	}
	r, ok := h.rooms[mapID]
	if !ok {
		return nil, nil
	}
	p, ok := r.Players[odID]
	if !ok {
		return nil, nil
	}
	return p, r
}

// MapStat is one row of the health report.
type MapStat struct {
	ID       string `json:"id"`
	Players  int    `json:"players"`
	Monsters int    `json:"monsters"`
}

// Stats summarizes the registry for the health endpoint and metrics.
type Stats struct {
	TotalPlayers  int       `json:"totalPlayers"`
	TotalMonsters int       `json:"totalMonsters"`
	Maps          []MapStat `json:"maps"`
}

// Snapshot of registry occupancy.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{Maps: make([]MapStat, 0, len(h.rooms))}
	for id, r := range h.rooms {
		alive := 0
		for _, m := range r.Monsters {
			if !m.IsDead {
				alive++
			}
		}
		s.TotalPlayers += len(r.Players)
		s.TotalMonsters += alive
		s.Maps = append(s.Maps, MapStat{ID: id, Players: len(r.Players), Monsters: alive})
	}
	return s
}

// Dispatch decodes one ingress frame and routes it to its handler. It
// returns false when the event is not a game event, letting the transport
// try the other routers (chess, party quest).
func (h *Hub) Dispatch(c Conn, event string, raw json.RawMessage) bool {
	switch event {
	case EvJoin:
		h.HandleJoin(c, decode[JoinPayload](raw), false)
	case EvRejoin:
		h.HandleJoin(c, decode[JoinPayload](raw), true)
	case EvUpdatePosition:
		h.HandleUpdatePosition(c, decode[PositionPayload](raw))
	case EvChangeMap:
		h.HandleChangeMap(c, decode[ChangeMapPayload](raw))
	case EvChatMessage:
		h.HandleChat(c, decode[ChatPayload](raw))
	case EvInitMapMonsters:
		h.HandleInitMapMonsters(c, decode[InitMapMonstersPayload](raw))
	case EvAttackMonster:
		h.HandleAttackMonster(c, decode[AttackPayload](raw))
	case EvTransformElite:
		h.HandleTransformElite(c, decode[TransformElitePayload](raw))
	case EvItemPickup:
		h.HandleItemPickup(c, decode[PickupPayload](raw))
	case EvPlayerDropItem:
		h.HandlePlayerDropItem(c, decode[DropItemPayload](raw))
	case EvUpdateParty:
		h.HandleUpdateParty(c, decode[UpdatePartyPayload](raw))
	case EvUpdatePartyStats:
		h.HandleUpdatePartyStats(c, raw)
	case EvSharePartyGold:
		h.HandleSharePartyGold(c, decode[ShareGoldPayload](raw))
	case EvPlayerVFX:
		h.relay(c, EvRemotePlayerVFX, raw)
	case EvPlayerProjectile:
		h.relay(c, EvRemoteProjectile, raw)
	case EvProjectileHit:
		h.relay(c, EvRemoteProjectileHit, raw)
	case EvPlayerSkillVFX:
		h.relay(c, EvRemoteSkillVFX, raw)
	case EvUpdateAppearance:
		h.HandleUpdateAppearance(c, raw)
	case EvPlayerDeath:
		h.relay(c, EvPlayerDied, raw)
	case EvPlayerRespawn:
		h.relay(c, EvPlayerRespawned, raw)
	case EvGMAuth:
		h.HandleGMAuth(c, decode[GMAuthPayload](raw))
	case EvCheckGMAuth:
		h.HandleCheckGMAuth(c)
	case EvLatencyPing:
		h.HandleLatencyPing(c, raw)
	case EvRequestMonsters:
		h.HandleRequestMonsters(c)
	default:
		return false
	}
	return true
}

func decode[T any](raw json.RawMessage) T {
	var v T
	if len(raw) > 0 {
		// Malformed fields are dropped; required fields are validated by
		// the handlers themselves.
		_ = json.Unmarshal(raw, &v)
	}
	return v
}
