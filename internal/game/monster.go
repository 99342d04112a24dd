package game

import (
	"fmt"
	"math/rand"
)

// AI tuning constants. The speed multiplier reconciles the server tick
// cadence with the client's 60 Hz integration; recompute it if the default
// tick rate changes.
const (
	EdgeBuffer         = 50.0
	MinPatrolDistance  = 80.0
	PatrolRadius       = 150.0
	PatrolEdgeTurn     = 30.0
	PatrolChangeChance = 0.02
	SpeedMultiplier    = 4.2
	ChaseTimeoutMillis = 5000
	ChaseRange         = 500.0
	ChaseSpeedFactor   = 1.5
	KnockbackMillis    = 500
	KnockbackVelocity  = 6.0
	KnockbackShove     = 30.0

	ShinyChance     = 0.02
	ShinyHPMultiple = 3
)

// Monster AI states.
const (
	AIStateIdle      = "idle"
	AIStatePatrol    = "patrolling"
	AIStateChase     = "chasing"
	AITypeStatic     = "static"
	AITypePatrolling = "patrolling"
)

// Monster is one server-driven mob. All fields are owned by the room's
// concurrency boundary.
type Monster struct {
	ID        string
	Type      string
	X, Y      float64
	VelocityX float64
	VelocityY float64
	Direction int // -1 or +1
	Facing    string
	HP        int
	MaxHP     int
	Damage    int
	Speed     float64
	Width     float64
	Height    float64

	AIType  string
	AIState string

	IsDead      bool
	IsMiniBoss  bool
	IsElite     bool
	IsTrialBoss bool
	IsShiny     bool
	CanJump     bool
	IsJumping   bool
	JumpForce   float64

	PatrolMinX float64
	PatrolMaxX float64
	// The surface that produced the patrol bounds, remembered so respawn
	// can recompute them.
	SurfaceX     float64
	SurfaceWidth float64
	HasSurface   bool

	SpawnX  float64
	SpawnY  float64
	GroundY float64

	TargetPlayer        string
	KnockbackEndTime    int64
	LastInteractionTime int64
	LastUpdate          int64

	OriginalMaxHP  int
	OriginalDamage int

	// Damage ledger: per attacker, cumulative damage and the sequence of
	// the hit that reached that total. Consulted only at kill time.
	damageBy map[string]*damageTally
	hitSeq   int64
}

type damageTally struct {
	total   int
	lastSeq int64
}

// recordDamage adds d to the attacker's cumulative total.
func (m *Monster) recordDamage(odID string, d int) {
	if m.damageBy == nil {
		m.damageBy = make(map[string]*damageTally)
	}
	m.hitSeq++
	t, ok := m.damageBy[odID]
	if !ok {
		t = &damageTally{}
		m.damageBy[odID] = t
	}
	t.total += d
	t.lastSeq = m.hitSeq
}

// topDamager returns the highest cumulative attacker. Ties resolve to the
// attacker who reached the maximum first. Empty ledger yields "".
func (m *Monster) topDamager() string {
	best := ""
	bestTotal := 0
	var bestSeq int64
	for odID, t := range m.damageBy {
		if t.total > bestTotal || (t.total == bestTotal && best != "" && t.lastSeq < bestSeq) {
			best = odID
			bestTotal = t.total
			bestSeq = t.lastSeq
		}
	}
	return best
}

// Snapshot is the wire form used in currentMonsters and monsterSpawned.
func (m *Monster) Snapshot() map[string]any {
	return map[string]any{
		"id":             m.ID,
		"type":           m.Type,
		"x":              m.X,
		"y":              m.Y,
		"velocityX":      m.VelocityX,
		"velocityY":      m.VelocityY,
		"direction":      m.Direction,
		"facing":         m.Facing,
		"hp":             m.HP,
		"maxHp":          m.MaxHP,
		"aiType":         m.AIType,
		"aiState":        m.AIState,
		"isDead":         m.IsDead,
		"isMiniBoss":     m.IsMiniBoss,
		"isEliteMonster": m.IsElite,
		"isTrialBoss":    m.IsTrialBoss,
		"isShiny":        m.IsShiny,
		"canJump":        m.CanJump,
		"isJumping":      m.IsJumping,
		"width":          m.Width,
		"height":         m.Height,
		"patrolMinX":     m.PatrolMinX,
		"patrolMaxX":     m.PatrolMaxX,
		"spawnX":         m.SpawnX,
		"spawnY":         m.SpawnY,
	}
}

// positionUpdate is the compact per-tick wire form.
func (m *Monster) positionUpdate(serverTime int64) map[string]any {
	return map[string]any{
		"id":        m.ID,
		"x":         m.X,
		"y":         m.Y,
		"facing":    m.Facing,
		"direction": m.Direction,
		"aiState":   m.AIState,
		"velocityX": m.VelocityX,
		"velocityY": m.VelocityY,
		"t":         serverTime,
	}
}

// spawnMonster builds a monster from its type entry and spawn point,
// computing patrol bounds from the surface when one was declared. It does
// not install the monster into the room.
func spawnMonster(id string, spawn SpawnPosition, mt MonsterType, topo *MapTopology, rng *rand.Rand, nowMs int64) *Monster {
	m := &Monster{
		ID:         id,
		Type:       spawn.Type,
		X:          spawn.X,
		Y:          spawn.Y,
		Direction:  1,
		Facing:     "right",
		HP:         mt.HP,
		MaxHP:      mt.HP,
		Damage:     mt.Damage,
		Speed:      mt.Speed,
		Width:      mt.Width,
		Height:     mt.Height,
		AIType:     mt.AIType,
		AIState:    AIStatePatrol,
		IsMiniBoss: mt.IsMiniBoss,
		CanJump:    mt.CanJump,
		JumpForce:  mt.JumpForce,
		SpawnX:     spawn.X,
		SpawnY:     spawn.Y,
		GroundY:    topo.GroundY,
		LastUpdate: nowMs,
	}
	if rng.Intn(2) == 0 {
		m.Direction = -1
		m.Facing = "left"
	}
	if m.AIType == "" {
		m.AIType = AITypePatrolling
	}
	if m.AIType == AITypeStatic {
		m.AIState = AIStateIdle
	}

	if spawn.SurfaceWidth > 0 {
		m.HasSurface = true
		m.SurfaceX = spawn.SurfaceX
		m.SurfaceWidth = spawn.SurfaceWidth

		minX := spawn.SurfaceX + EdgeBuffer
		maxX := spawn.SurfaceX + spawn.SurfaceWidth - EdgeBuffer
		if minX < 0 {
			minX = 0
		}
		if maxX > topo.MapWidth-EdgeBuffer {
			maxX = topo.MapWidth - EdgeBuffer
		}
		if maxX-minX < MinPatrolDistance {
			// Surface too narrow to patrol: pin the monster near the
			// surface center.
			center := spawn.SurfaceX + spawn.SurfaceWidth/2
			m.PatrolMinX = center - 10
			m.PatrolMaxX = center + 10
			m.AIState = AIStateIdle
		} else {
			m.PatrolMinX = minX
			m.PatrolMaxX = maxX
		}
	} else {
		m.PatrolMinX = spawn.X - PatrolRadius
		if m.PatrolMinX < 0 {
			m.PatrolMinX = 0
		}
		m.PatrolMaxX = spawn.X + PatrolRadius
		if m.PatrolMaxX > topo.MapWidth-EdgeBuffer {
			m.PatrolMaxX = topo.MapWidth - EdgeBuffer
		}
	}

	return m
}

// shinyEligible reports whether a spawn may roll shiny at all.
func shinyEligible(m *Monster, mapID string) bool {
	if m.IsMiniBoss || m.IsTrialBoss || m.Type == "testDummy" {
		return false
	}
	return !hasExcludedPrefix(mapID)
}

// hasExcludedPrefix matches maps where shinies and elites never occur.
func hasExcludedPrefix(mapID string) bool {
	for _, prefix := range []string{"dewdrop", "pq"} {
		if len(mapID) >= len(prefix) && mapID[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// updateAI advances one monster by one tick. Chasing may leave the patrol
// surface but never the map; patrolling is bounded by the patrol range with
// a safety-net clamp to the map itself.
func (h *Hub) updateAI(r *Room, m *Monster, nowMs int64) {
	if m.AIType == AITypeStatic {
		m.VelocityX = 0
		return
	}
	if m.KnockbackEndTime > nowMs {
		m.VelocityX = 0
		return
	}

	topo := r.Topology
	if topo == nil {
		return
	}

	if m.AIState == AIStateChase {
		h.updateChase(r, m, nowMs)
		m.LastUpdate = nowMs
		return
	}

	// Patrol path (patrolling or idle).
	if m.X <= m.PatrolMinX+PatrolEdgeTurn {
		m.Direction = 1
	} else if m.X >= m.PatrolMaxX-PatrolEdgeTurn {
		m.Direction = -1
	} else if h.rng.Float64() < PatrolChangeChance {
		m.Direction = -m.Direction
	}

	step := float64(m.Direction) * m.Speed * SpeedMultiplier
	next := m.X + step
	if next >= m.PatrolMinX && next <= m.PatrolMaxX {
		m.X = next
		m.VelocityX = step
	} else {
		if next < m.PatrolMinX {
			m.X = m.PatrolMinX
		} else {
			m.X = m.PatrolMaxX
		}
		m.VelocityX = 0
		m.Direction = -m.Direction
	}
	m.Facing = facingFor(m.Direction)

	// Safety net against inverted or stale bounds.
	if m.X < 0 {
		m.X = 0
	}
	if m.X > topo.MapWidth-m.Width {
		m.X = topo.MapWidth - m.Width
	}
	m.AIState = AIStatePatrol
	m.LastUpdate = nowMs
}

func (h *Hub) updateChase(r *Room, m *Monster, nowMs int64) {
	if nowMs-m.LastInteractionTime > ChaseTimeoutMillis {
		m.demoteToPatrol(r.Topology)
		return
	}

	target, ok := r.Players[m.TargetPlayer]
	if !ok || abs(m.X-m.SpawnX) >= ChaseRange {
		// Target gone or pursuit carried us too far: settle here. The
		// re-centered bounds prevent snap-back on de-aggro.
		m.demoteToPatrol(r.Topology)
		return
	}

	targetCenter := target.X
	if targetCenter > m.X {
		m.Direction = 1
	} else {
		m.Direction = -1
	}
	m.Facing = facingFor(m.Direction)

	step := float64(m.Direction) * m.Speed * SpeedMultiplier * ChaseSpeedFactor
	next := m.X + step
	maxX := r.Topology.MapWidth - m.Width
	if next < 0 {
		next = 0
		step = 0
	} else if next > maxX {
		next = maxX
		step = 0
	}
	m.X = next
	m.VelocityX = step
}

// demoteToPatrol drops a chasing monster back to patrolling around its
// current position, keeping the original patrol radius.
func (m *Monster) demoteToPatrol(topo *MapTopology) {
	m.AIState = AIStatePatrol
	m.TargetPlayer = ""
	m.VelocityX = 0

	radius := (m.PatrolMaxX - m.PatrolMinX) / 2
	if radius <= 0 {
		radius = PatrolRadius
	}
	m.PatrolMinX = m.X - radius
	if m.PatrolMinX < 0 {
		m.PatrolMinX = 0
	}
	m.PatrolMaxX = m.X + radius
	if topo != nil && m.PatrolMaxX > topo.MapWidth-EdgeBuffer {
		m.PatrolMaxX = topo.MapWidth - EdgeBuffer
	}
	if m.PatrolMaxX < m.PatrolMinX {
		m.PatrolMaxX = m.PatrolMinX
	}
	m.SpawnX = m.X
}

func facingFor(direction int) string {
	if direction < 0 {
		return "left"
	}
	return "right"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// nextMonsterID mints a process-unique monster id.
func (h *Hub) nextMonsterID() string {
	return fmt.Sprintf("m_%d", h.monsterSeq.Add(1))
}
