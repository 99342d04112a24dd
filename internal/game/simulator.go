package game

import (
	"log"
	"strings"
	"time"
)

// HandleInitMapMonsters installs a map's topology and spawns its monsters.
// Only the first submission for a map takes effect; later ones are ignored
// so a second client cannot respawn or reshape an already-live map.
func (h *Hub) HandleInitMapMonsters(c Conn, init InitMapMonstersPayload) {
	if init.MapID == "" || init.MapWidth <= 0 || len(init.MonsterTypes) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[init.MapID]
	if !ok {
		return
	}
	if room.Topology != nil {
		return
	}

	room.Topology = &MapTopology{
		MapWidth:       init.MapWidth,
		GroundY:        init.GroundY,
		MonsterTypes:   init.MonsterTypes,
		SpawnPositions: init.SpawnPositions,
	}

	spawns := init.SpawnPositions
	if len(spawns) == 0 {
		// No declared spawn points: fall back to count random positions
		// per spawner on the reference ground.
		for _, sc := range init.Monsters {
			for i := 0; i < sc.Count; i++ {
				spawns = append(spawns, SpawnPosition{
					Type: sc.Type,
					X:    h.rng.Float64() * init.MapWidth,
					Y:    init.GroundY,
				})
			}
		}
	}

	for _, spawn := range spawns {
		h.installMonster(room, spawn)
	}

	log.Printf("🐌 Map %s initialized: %d monsters, width %.0f", init.MapID, len(room.Monsters), init.MapWidth)
}

// installMonster mints a monster from a spawn point, rolls shiny, installs
// it in the room and announces it.
func (h *Hub) installMonster(room *Room, spawn SpawnPosition) *Monster {
	mt, ok := room.Topology.MonsterTypes[spawn.Type]
	if !ok {
		if h.cfg.Debug {
			log.Printf("⚠️ Unknown monster type %q on %s", spawn.Type, room.ID)
		}
		return nil
	}

	m := spawnMonster(h.nextMonsterID(), spawn, mt, room.Topology, h.rng, h.nowMs())
	if shinyEligible(m, room.ID) && h.rng.Float64() < ShinyChance {
		m.IsShiny = true
		m.MaxHP *= ShinyHPMultiple
		m.HP = m.MaxHP
	}
	room.Monsters[m.ID] = m
	room.Broadcast(EvMonsterSpawned, m.Snapshot())
	return m
}

// respawnContext remembers enough at kill time to regenerate an equivalent
// monster after the respawn delay, even if the map's topology churns.
type respawnContext struct {
	mapID        string
	monsterType  string
	spawnY       float64
	surfaceX     float64
	surfaceWidth float64
	hasSurface   bool
}

// scheduleRespawn arms the one-shot respawn (or corpse-removal) timer for a
// killed monster. The callback is idempotent: it re-checks room existence
// and acts only on what is still there.
func (h *Hub) scheduleRespawn(room *Room, m *Monster) {
	monsterID := m.ID
	if strings.HasPrefix(room.ID, "pq") {
		// Party-quest monsters do not respawn; linger the corpse briefly
		// for the death animation, then drop it.
		mapID := room.ID
		time.AfterFunc(corpseLingerPQ, func() {
			h.removeCorpse(mapID, monsterID)
		})
		return
	}

	ctx := respawnContext{
		mapID:        room.ID,
		monsterType:  m.Type,
		spawnY:       m.SpawnY,
		surfaceX:     m.SurfaceX,
		surfaceWidth: m.SurfaceWidth,
		hasSurface:   m.HasSurface,
	}
	delay := respawnDelay
	if m.IsMiniBoss {
		delay = miniBossRespawnDelay
	}
	time.AfterFunc(delay, func() {
		h.respawnMonster(ctx, monsterID)
	})
}

func (h *Hub) removeCorpse(mapID, monsterID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[mapID]
	if !ok {
		return
	}
	if _, ok := room.Monsters[monsterID]; !ok {
		return
	}
	delete(room.Monsters, monsterID)
	room.Broadcast(EvMonsterRemoved, map[string]any{"id": monsterID})
}

// respawnMonster fires at the end of the respawn delay. The room may have
// been destroyed in the meantime; in that case nothing happens.
func (h *Hub) respawnMonster(ctx respawnContext, corpseID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[ctx.mapID]
	if !ok {
		return
	}
	delete(room.Monsters, corpseID)
	if len(room.Players) == 0 || room.Topology == nil {
		return
	}

	spawn := SpawnPosition{
		Type:         ctx.monsterType,
		Y:            ctx.spawnY,
		SurfaceX:     ctx.surfaceX,
		SurfaceWidth: ctx.surfaceWidth,
	}
	if ctx.hasSurface && ctx.surfaceWidth > 0 {
		spawn.X = ctx.surfaceX + h.rng.Float64()*ctx.surfaceWidth
	} else {
		spawn.X = h.rng.Float64() * room.Topology.MapWidth
	}
	h.installMonster(room, spawn)
}
