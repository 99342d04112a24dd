package game

import (
	"testing"
	"time"
)

func TestJoinRequiresIdentity(t *testing.T) {
	tests := []struct {
		name string
		p    JoinPayload
	}{
		{"missing odId", JoinPayload{Name: "Alice", MapID: "henesys"}},
		{"missing name", JoinPayload{OdID: "A", MapID: "henesys"}},
		{"missing mapId", JoinPayload{OdID: "A", Name: "Alice"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestHub()
			c := &recorder{}
			h.HandleJoin(c, tt.p, false)
			if c.count(EvError) != 1 {
				t.Error("expected an error unicast")
			}
			if roomOf(h, "henesys") != nil {
				t.Error("no room should be created")
			}
		})
	}
}

func TestJoinDeliversRosterAndAnnounces(t *testing.T) {
	h, _ := newTestHub()
	cA := joinPlayer(h, "A", "Alice", "henesys")
	installTestMonster(h, "henesys", "m_1", 100)
	cB := joinPlayer(h, "B", "Bob", "henesys")

	roster, ok := cB.last(EvCurrentPlayers)
	if !ok {
		t.Fatal("no currentPlayers sent to the joiner")
	}
	players, _ := roster.Data.([]map[string]any)
	if len(players) != 2 {
		t.Errorf("roster size = %d, want 2", len(players))
	}
	monsters, ok := cB.last(EvCurrentMonsters)
	if !ok {
		t.Fatal("no currentMonsters sent to the joiner")
	}
	if len(monsters.Data.([]map[string]any)) != 1 {
		t.Error("live monster list should hold one monster")
	}

	joined, ok := cA.last(EvPlayerJoined)
	if !ok {
		t.Fatal("existing member did not hear playerJoined")
	}
	if asMap(joined.Data)["odId"] != "B" {
		t.Errorf("playerJoined odId = %v, want B", asMap(joined.Data)["odId"])
	}
	if cB.count(EvPlayerJoined) != 0 {
		t.Error("joiner should not hear their own playerJoined")
	}
}

// join → disconnect → join again lands in an indistinguishable room state.
func TestJoinDisconnectJoinRoundTrip(t *testing.T) {
	h, _ := newTestHub()
	c1 := joinPlayer(h, "A", "Alice", "henesys")
	h.HandleDisconnect(c1)

	if roomOf(h, "henesys") != nil {
		t.Fatal("room should be destroyed when the last player leaves")
	}

	joinPlayer(h, "A", "Alice", "henesys")
	room := roomOf(h, "henesys")
	if room == nil || len(room.Players) != 1 {
		t.Fatal("rejoin should recreate the room with one player")
	}
	if room.Players["A"].Name != "Alice" {
		t.Error("player state should match the first join")
	}
}

// rejoin removes identities already owned by the socket (character switch).
func TestRejoinSwitchesCharacter(t *testing.T) {
	h, _ := newTestHub()
	c := &recorder{}
	h.HandleJoin(c, JoinPayload{OdID: "old", Name: "Alice", MapID: "henesys"}, false)
	witness := joinPlayer(h, "W", "Witness", "henesys")

	h.HandleJoin(c, JoinPayload{OdID: "new", Name: "Alicia", MapID: "henesys"}, true)

	room := roomOf(h, "henesys")
	h.mu.Lock()
	_, oldThere := room.Players["old"]
	_, newThere := room.Players["new"]
	h.mu.Unlock()
	if oldThere {
		t.Error("old identity should be removed on rejoin")
	}
	if !newThere {
		t.Error("new identity should be present")
	}

	left, ok := witness.last(EvPlayerLeft)
	if !ok {
		t.Fatal("witness did not hear playerLeft for the old identity")
	}
	if asMap(left.Data)["odId"] != "old" {
		t.Errorf("playerLeft odId = %v, want old", asMap(left.Data)["odId"])
	}
}

func TestChangeMapMovesBetweenRooms(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	witness := joinPlayer(h, "W", "Witness", "henesys")

	h.HandleChangeMap(c, ChangeMapPayload{NewMapID: "ellinia", X: 50, Y: 60})

	if asMapID := roomOf(h, "ellinia"); asMapID == nil || asMapID.Players["A"] == nil {
		t.Fatal("player should be in the new room")
	}
	old := roomOf(h, "henesys")
	h.mu.Lock()
	_, still := old.Players["A"]
	h.mu.Unlock()
	if still {
		t.Error("player should have left the old room")
	}
	if witness.count(EvPlayerLeft) != 1 {
		t.Error("old room should hear playerLeft")
	}
}

func TestChangeMapLastPlayerDestroysOldRoom(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	installTestMonster(h, "henesys", "m_1", 100)

	h.HandleChangeMap(c, ChangeMapPayload{NewMapID: "ellinia", X: 50, Y: 60})

	if roomOf(h, "henesys") != nil {
		t.Error("emptied room should be destroyed, monsters and all")
	}
}

// changeMap to the current map is a no-op beyond membership confirmation.
func TestChangeMapSameMapIdempotent(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	witness := joinPlayer(h, "W", "Witness", "henesys")
	witness.reset()

	h.HandleChangeMap(c, ChangeMapPayload{NewMapID: "henesys", X: 50, Y: 60})
	h.HandleChangeMap(c, ChangeMapPayload{NewMapID: "henesys", X: 50, Y: 60})

	if witness.count(EvPlayerLeft) != 0 {
		t.Error("no playerLeft should fire for a same-map change")
	}
	if got := witness.count(EvPlayerJoined); got != 0 {
		t.Errorf("witness heard %d playerJoined for an already-present player, want 0", got)
	}
	if c.count(EvCurrentPlayers) != 3 {
		t.Error("the mover should still get membership confirmation each time")
	}
	room := roomOf(h, "henesys")
	h.mu.Lock()
	n := len(room.Players)
	h.mu.Unlock()
	if n != 2 {
		t.Errorf("room population = %d, want 2", n)
	}
}

func TestUpdatePositionRelaysToOthers(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	witness := joinPlayer(h, "W", "Witness", "henesys")
	witness.reset()

	h.HandleUpdatePosition(c, PositionPayload{X: 123, Y: 456, Facing: "left", AnimationState: "walk"})

	moved, ok := witness.last(EvPlayerMoved)
	if !ok {
		t.Fatal("witness did not hear playerMoved")
	}
	data := asMap(moved.Data)
	if data["x"] != 123.0 || data["facing"] != "left" {
		t.Errorf("playerMoved = %v", data)
	}
	if c.count(EvPlayerMoved) != 0 {
		t.Error("sender should not hear their own movement")
	}
}

// The inactivity sweep removes stale players like a disconnect.
func TestInactivitySweep(t *testing.T) {
	h, now := newTestHub()
	joinPlayer(h, "A", "Alice", "henesys")

	*now = now.Add(3 * time.Minute)
	h.sweepInactive()

	if roomOf(h, "henesys") != nil {
		t.Error("stale player's room should be destroyed")
	}
	h.mu.Lock()
	_, tracked := h.index["A"]
	h.mu.Unlock()
	if tracked {
		t.Error("stale player should be forgotten")
	}
}

func TestSweepKeepsActivePlayers(t *testing.T) {
	h, now := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")

	*now = now.Add(90 * time.Second)
	h.HandleUpdatePosition(c, PositionPayload{X: 1, Y: 2})
	*now = now.Add(90 * time.Second)
	h.sweepInactive()

	if roomOf(h, "henesys") == nil {
		t.Error("player refreshed by updatePosition should survive the sweep")
	}
}

// A respawn timer firing into a destroyed room performs no state change.
func TestRespawnIntoDestroyedRoomIsNoop(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	m := installTestMonster(h, "henesys", "m_1", 100)

	attack(h, c, "m_1", 100, 1)
	if !m.IsDead {
		t.Fatal("monster should be dead")
	}
	h.HandleDisconnect(c)
	if roomOf(h, "henesys") != nil {
		t.Fatal("room should be destroyed")
	}

	h.respawnMonster(respawnContext{
		mapID:        "henesys",
		monsterType:  "slime",
		spawnY:       400,
		surfaceX:     300,
		surfaceWidth: 600,
		hasSurface:   true,
	}, "m_1")

	if roomOf(h, "henesys") != nil {
		t.Error("respawn into a destroyed room must not recreate it")
	}
}

func TestRespawnWithPlayersSpawnsReplacement(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	installTestMonster(h, "henesys", "m_1", 100)
	attack(h, c, "m_1", 100, 1)

	h.respawnMonster(respawnContext{
		mapID:        "henesys",
		monsterType:  "slime",
		spawnY:       400,
		surfaceX:     300,
		surfaceWidth: 600,
		hasSurface:   true,
	}, "m_1")

	room := roomOf(h, "henesys")
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, corpse := room.Monsters["m_1"]; corpse {
		t.Error("corpse should be removed on respawn")
	}
	alive := 0
	for _, mm := range room.Monsters {
		if !mm.IsDead {
			alive++
			if mm.X < 300 || mm.X > 900 {
				t.Errorf("respawn x = %v, want within the surface", mm.X)
			}
		}
	}
	if alive != 1 {
		t.Errorf("live monsters = %d, want 1 replacement", alive)
	}
}

// On pq maps the corpse is dropped after its linger with an explicit
// removal signal; no replacement ever spawns.
func TestPQCorpseRemovalAnnounces(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "pq_stage1")
	installTestMonster(h, "pq_stage1", "m_1", 100)
	attack(h, c, "m_1", 100, 1)

	h.removeCorpse("pq_stage1", "m_1")

	removed, ok := c.last(EvMonsterRemoved)
	if !ok {
		t.Fatal("room should hear monsterRemoved")
	}
	if asMap(removed.Data)["id"] != "m_1" {
		t.Errorf("removed id = %v, want m_1", asMap(removed.Data)["id"])
	}

	room := roomOf(h, "pq_stage1")
	h.mu.Lock()
	n := len(room.Monsters)
	h.mu.Unlock()
	if n != 0 {
		t.Errorf("monsters remaining = %d, want 0 (no respawn)", n)
	}

	// A second firing finds nothing and stays silent.
	c.reset()
	h.removeCorpse("pq_stage1", "m_1")
	if c.count(EvMonsterRemoved) != 0 {
		t.Error("removing an absent corpse must not re-announce")
	}
}

func TestRequestMonstersUnicasts(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	witness := joinPlayer(h, "W", "Witness", "henesys")
	installTestMonster(h, "henesys", "m_1", 100)
	c.reset()
	witness.reset()

	h.HandleRequestMonsters(c)

	if c.count(EvCurrentMonsters) != 1 {
		t.Error("requester should receive the monster list")
	}
	if witness.count(EvCurrentMonsters) != 0 {
		t.Error("the re-fetch is a unicast")
	}
}

func TestLatencyPingPong(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	c.reset()

	h.HandleLatencyPing(c, []byte(`{"clientTime": 12345}`))

	pong, ok := c.last(EvLatencyPong)
	if !ok {
		t.Fatal("no latencyPong reply")
	}
	if asMap(pong.Data)["clientTime"] != int64(12345) {
		t.Errorf("clientTime echo = %v", asMap(pong.Data)["clientTime"])
	}
}

func TestChatBroadcastsToWholeRoom(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	witness := joinPlayer(h, "W", "Witness", "henesys")
	c.reset()
	witness.reset()

	h.HandleChat(c, ChatPayload{Message: "hello"})

	if c.count(EvPlayerChat) != 1 || witness.count(EvPlayerChat) != 1 {
		t.Error("chat should reach the whole room including the sender")
	}
}
