package game

import (
	"strings"
	"testing"
	"time"
)

func killFor(h *Hub, c *recorder, monsterID string) map[string]any {
	attack(h, c, monsterID, MaxDamagePerHit, 1)
	kill, ok := c.last(EvMonsterKilled)
	if !ok {
		return nil
	}
	return asMap(kill.Data)
}

func TestDropIDsAreUnique(t *testing.T) {
	h, now := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		*now = now.Add(time.Second)
		m := installTestMonster(h, "henesys", "m_"+string(rune('a'+i)), 10)
		m.IsElite = true // guaranteed drops
		data := killFor(h, c, m.ID)
		if data == nil {
			t.Fatal("no kill broadcast")
		}
		for _, row := range data["drops"].([]map[string]any) {
			id := row["itemId"].(string)
			if seen[id] {
				t.Fatalf("duplicate drop id %s", id)
			}
			seen[id] = true
			if !strings.HasPrefix(id, "drop_") {
				t.Errorf("drop id %q lacks the drop_ prefix", id)
			}
		}
	}
}

func TestEliteGuaranteedDrops(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	m := installTestMonster(h, "henesys", "m_1", 10)
	m.IsElite = true

	data := killFor(h, c, "m_1")
	if data == nil {
		t.Fatal("no kill broadcast")
	}

	var bigGold, tickets, scrolls int
	for _, row := range data["drops"].([]map[string]any) {
		switch row["name"] {
		case "Gold":
			if amt, _ := row["amount"].(int); amt >= 50000 && amt < 100000 {
				bigGold++
			}
		case "Gachapon Ticket":
			tickets++
		case "Enhancement Scroll":
			scrolls++
		}
	}
	if bigGold != 1 {
		t.Errorf("guaranteed gold piles in [50000, 100000) = %d, want 1", bigGold)
	}
	if tickets < 2 || tickets > 5 {
		t.Errorf("gachapon tickets = %d, want 2..5", tickets)
	}
	if scrolls < 4 || scrolls > 8 {
		t.Errorf("enhancement scrolls = %d, want 4..8", scrolls)
	}
}

func TestCelebrationDrop(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	m := installTestMonster(h, "henesys", "m_1", 10)
	m.Type = "babySlime"

	data := killFor(h, c, "m_1")
	if data == nil {
		t.Fatal("no kill broadcast")
	}

	found := false
	for _, row := range data["drops"].([]map[string]any) {
		if row["name"] == "Salami Stick" {
			found = true
		}
	}
	if !found {
		t.Error("babySlime kill should always drop a Salami Stick")
	}
}

func TestDropsRegisteredAsGroundItems(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	m := installTestMonster(h, "henesys", "m_1", 10)
	m.IsElite = true

	data := killFor(h, c, "m_1")
	drops := data["drops"].([]map[string]any)

	room := roomOf(h, "henesys")
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, row := range drops {
		item, ok := room.Items[row["itemId"].(string)]
		if !ok {
			t.Fatalf("drop %s not registered as a ground item", row["itemId"])
		}
		if item.DroppedBy != MonsterOwner {
			t.Errorf("droppedBy = %q, want the monster sentinel", item.DroppedBy)
		}
	}
}

// First-come-wins pickup: the second claimant gets a private rejection.
func TestPickupRace(t *testing.T) {
	h, _ := newTestHub()
	cA := joinPlayer(h, "A", "Alice", "henesys")
	cB := joinPlayer(h, "B", "Bob", "henesys")
	m := installTestMonster(h, "henesys", "m_1", 10)
	m.IsElite = true

	data := killFor(h, cA, "m_1")
	itemID := data["drops"].([]map[string]any)[0]["itemId"].(string)
	cA.reset()
	cB.reset()

	h.HandleItemPickup(cA, PickupPayload{ItemID: itemID, ItemName: "Gold"})
	h.HandleItemPickup(cB, PickupPayload{ItemID: itemID, ItemName: "Gold"})

	if cA.count(EvItemPickedUp) != 1 || cB.count(EvItemPickedUp) != 1 {
		t.Error("the successful pickup should be broadcast to the room")
	}
	if cB.count(EvItemPickupRejected) != 1 {
		t.Fatal("the loser should get a rejection")
	}
	rej, _ := cB.last(EvItemPickupRejected)
	if asMap(rej.Data)["reason"] != "already_picked_up" {
		t.Errorf("reason = %v", asMap(rej.Data)["reason"])
	}
	if cA.count(EvItemPickupRejected) != 0 {
		t.Error("the rejection is a unicast to the loser only")
	}
}

func TestPickupUnknownItemRejected(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	c.reset()

	h.HandleItemPickup(c, PickupPayload{ItemID: "drop_404", ItemName: "Gold"})

	if c.count(EvItemPickupRejected) != 1 {
		t.Error("picking up a nonexistent item should be rejected")
	}
}

func TestPickupRateLimitDropsExcess(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	room := roomOf(h, "henesys")

	h.mu.Lock()
	for i := 0; i < MaxPickupsPerSecond+5; i++ {
		id := h.mintDropID(i)
		room.Items[id] = &GroundItem{ID: id, Name: "Gold", DroppedBy: MonsterOwner}
	}
	ids := make([]string, 0, len(room.Items))
	for id := range room.Items {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	c.reset()

	for _, id := range ids {
		h.HandleItemPickup(c, PickupPayload{ItemID: id, ItemName: "Gold"})
	}

	if got := c.count(EvItemPickedUp); got != MaxPickupsPerSecond {
		t.Errorf("pickups admitted = %d, want %d", got, MaxPickupsPerSecond)
	}
	h.mu.Lock()
	left := len(room.Items)
	h.mu.Unlock()
	if left != 5 {
		t.Errorf("items remaining = %d, want 5 (excess silently dropped)", left)
	}
}

func TestPlayerDropMintsServerID(t *testing.T) {
	h, _ := newTestHub()
	c := joinPlayer(h, "A", "Alice", "henesys")
	witness := joinPlayer(h, "W", "Witness", "henesys")
	c.reset()
	witness.reset()

	h.HandlePlayerDropItem(c, DropItemPayload{Name: "Red Potion", X: 120, Y: 300, Quantity: 3})

	confirm, ok := c.last(EvPlayerDropConfirm)
	if !ok {
		t.Fatal("dropper should get a confirm with the canonical id")
	}
	id, _ := asMap(confirm.Data)["id"].(string)
	if !strings.HasPrefix(id, "pdrop_") {
		t.Errorf("id = %q, want a pdrop_ id", id)
	}

	announced, ok := witness.last(EvPlayerItemDropped)
	if !ok {
		t.Fatal("room should hear playerItemDropped")
	}
	if asMap(announced.Data)["id"] != id {
		t.Error("announcement and confirm must carry the same id")
	}
	if c.count(EvPlayerItemDropped) != 0 {
		t.Error("the dropper renders locally; no echo")
	}

	room := roomOf(h, "henesys")
	h.mu.Lock()
	item := room.Items[id]
	h.mu.Unlock()
	if item == nil || item.DroppedBy != "A" || item.Quantity != 3 {
		t.Errorf("ground item = %+v", item)
	}
}

// Party gold split: 100 gold across a 3-member party shares 34 each and
// leaves the looter 32.
func TestPartyGoldSplit(t *testing.T) {
	h, _ := newTestHub()
	looter := joinPlayer(h, "L", "Looter", "henesys", withParty("party_9"))
	p1 := joinPlayer(h, "P1", "One", "henesys", withParty("party_9"))
	p2 := joinPlayer(h, "P2", "Two", "henesys", withParty("party_9"))
	joinPlayer(h, "X", "Stranger", "henesys") // not in the party
	elsewhere := joinPlayer(h, "P3", "Far", "ellinia", withParty("party_9"))

	h.HandleSharePartyGold(looter, ShareGoldPayload{TotalAmount: 100})

	for _, member := range []*recorder{p1, p2} {
		share, ok := member.last(EvPartyGoldShare)
		if !ok {
			t.Fatal("same-map member should receive a share")
		}
		if asMap(share.Data)["amount"] != 34 {
			t.Errorf("share = %v, want 34 (ceil(100/3))", asMap(share.Data)["amount"])
		}
	}
	if elsewhere.count(EvPartyGoldShare) != 0 {
		t.Error("members on other maps do not share")
	}

	result, ok := looter.last(EvPartyGoldShareResult)
	if !ok {
		t.Fatal("looter should get the share result")
	}
	data := asMap(result.Data)
	if data["yourShare"] != 32 || data["memberCount"] != 3 {
		t.Errorf("result = %v, want yourShare 32 memberCount 3", data)
	}
}

func TestPartyGoldSoloIsNoop(t *testing.T) {
	h, _ := newTestHub()
	looter := joinPlayer(h, "L", "Looter", "henesys", withParty("party_9"))
	looter.reset()

	h.HandleSharePartyGold(looter, ShareGoldPayload{TotalAmount: 100})

	if looter.count(EvPartyGoldShareResult) != 0 {
		t.Error("a party of one keeps everything without any frames")
	}
}

func TestPartyGoldMinimumShare(t *testing.T) {
	h, _ := newTestHub()
	looter := joinPlayer(h, "L", "Looter", "henesys", withParty("party_9"))
	member := joinPlayer(h, "P1", "One", "henesys", withParty("party_9"))

	h.HandleSharePartyGold(looter, ShareGoldPayload{TotalAmount: 1})

	share, ok := member.last(EvPartyGoldShare)
	if !ok {
		t.Fatal("member should receive a share")
	}
	if asMap(share.Data)["amount"] != 1 {
		t.Errorf("share = %v, want the 1-gold floor", asMap(share.Data)["amount"])
	}
	result, _ := looter.last(EvPartyGoldShareResult)
	if asMap(result.Data)["yourShare"] != 1 {
		t.Errorf("yourShare = %v, want the 1-gold floor", asMap(result.Data)["yourShare"])
	}
}
