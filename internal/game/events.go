package game

import "encoding/json"

// Ingress event names (client -> server).
const (
	EvJoin             = "join"
	EvRejoin           = "rejoin"
	EvUpdatePosition   = "updatePosition"
	EvChangeMap        = "changeMap"
	EvChatMessage      = "chatMessage"
	EvInitMapMonsters  = "initMapMonsters"
	EvAttackMonster    = "attackMonster"
	EvTransformElite   = "transformElite"
	EvItemPickup       = "itemPickup"
	EvPlayerDropItem   = "playerDropItem"
	EvUpdateParty      = "updateParty"
	EvUpdatePartyStats = "updatePartyStats"
	EvSharePartyGold   = "sharePartyGold"
	EvPlayerVFX        = "playerVFX"
	EvPlayerProjectile = "playerProjectile"
	EvProjectileHit    = "playerProjectileHit"
	EvPlayerSkillVFX   = "playerSkillVFX"
	EvUpdateAppearance = "updateAppearance"
	EvPlayerDeath      = "playerDeath"
	EvPlayerRespawn    = "playerRespawn"
	EvGMAuth           = "gmAuth"
	EvCheckGMAuth      = "checkGmAuth"
	EvLatencyPing      = "latencyPing"
	EvRequestMonsters  = "requestMonsters"
)

// Egress event names (server -> client).
const (
	EvServerStartTime        = "serverStartTime"
	EvCurrentPlayers         = "currentPlayers"
	EvPlayerJoined           = "playerJoined"
	EvPlayerMoved            = "playerMoved"
	EvPlayerLeft             = "playerLeft"
	EvPlayerChat             = "playerChat"
	EvCurrentMonsters        = "currentMonsters"
	EvMonsterSpawned         = "monsterSpawned"
	EvMonsterPositions       = "monsterPositions"
	EvMonsterDamaged         = "monsterDamaged"
	EvMonsterKilled          = "monsterKilled"
	EvMonsterRemoved         = "monsterRemoved"
	EvMonsterElite           = "monsterTransformedElite"
	EvAttackCorrection       = "attackCorrection"
	EvItemPickedUp           = "itemPickedUp"
	EvItemPickupRejected     = "itemPickupRejected"
	EvPlayerItemDropped      = "playerItemDropped"
	EvPlayerDropConfirm      = "playerDropConfirm"
	EvPartyMemberStats       = "partyMemberStats"
	EvPlayerPartyUpdated     = "playerPartyUpdated"
	EvPartyGoldShare         = "partyGoldShare"
	EvPartyGoldShareResult   = "partyGoldShareResult"
	EvRemotePlayerVFX        = "remotePlayerVFX"
	EvRemoteProjectile       = "remoteProjectile"
	EvRemoteProjectileHit    = "remoteProjectileHit"
	EvRemoteSkillVFX         = "remoteSkillVFX"
	EvPlayerAppearanceUpdate = "playerAppearanceUpdated"
	EvPlayerDied             = "playerDied"
	EvPlayerRespawned        = "playerRespawned"
	EvGMAuthResult           = "gmAuthResult"
	EvGMAuthStatus           = "gmAuthStatus"
	EvLatencyPong            = "latencyPong"
	EvError                  = "error"
)

// JoinPayload carries a join or rejoin request. The appearance blobs are
// opaque to the server; they are stored and relayed as-is.
type JoinPayload struct {
	OdID          string          `json:"odId"`
	Name          string          `json:"name"`
	MapID         string          `json:"mapId"`
	X             float64         `json:"x"`
	Y             float64         `json:"y"`
	Customization json.RawMessage `json:"customization,omitempty"`
	Level         int             `json:"level,omitempty"`
	PlayerClass   string          `json:"playerClass,omitempty"`
	Guild         string          `json:"guild,omitempty"`
	Equipped      json.RawMessage `json:"equipped,omitempty"`
	CosmeticEquip json.RawMessage `json:"cosmeticEquipped,omitempty"`
	EquippedMedal json.RawMessage `json:"equippedMedal,omitempty"`
	DisplayMedals json.RawMessage `json:"displayMedals,omitempty"`
	PartyID       string          `json:"partyId,omitempty"`
	OldOdID       string          `json:"oldOdId,omitempty"`
	HP            int             `json:"hp,omitempty"`
	MaxHP         int             `json:"maxHp,omitempty"`
	Exp           int             `json:"exp,omitempty"`
	MaxExp        int             `json:"maxExp,omitempty"`
}

// PositionPayload is the high-frequency transform update.
type PositionPayload struct {
	X              float64         `json:"x"`
	Y              float64         `json:"y"`
	Facing         string          `json:"facing"`
	AnimationState string          `json:"animationState"`
	VelocityX      float64         `json:"velocityX"`
	VelocityY      float64         `json:"velocityY"`
	ActiveBuffs    json.RawMessage `json:"activeBuffs,omitempty"`
	Pet            json.RawMessage `json:"pet,omitempty"`
}

type ChangeMapPayload struct {
	NewMapID string  `json:"newMapId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type ChatPayload struct {
	Message string `json:"message"`
}

// LootEntry is one row of a monster type's drop table.
type LootEntry struct {
	Name string  `json:"name"`
	Rate float64 `json:"rate"`
	Min  int     `json:"min,omitempty"`
	Max  int     `json:"max,omitempty"`
}

// MonsterType is the client-supplied catalog entry for one monster type.
type MonsterType struct {
	HP         int         `json:"hp"`
	Speed      float64     `json:"speed"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	AIType     string      `json:"aiType"`
	IsMiniBoss bool        `json:"isMiniBoss"`
	CanJump    bool        `json:"canJump"`
	JumpForce  float64     `json:"jumpForce"`
	Damage     int         `json:"damage"`
	Loot       []LootEntry `json:"loot"`
}

// SpawnPosition is a client-declared spawn point with its patrol surface.
type SpawnPosition struct {
	Type         string  `json:"type"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	SurfaceX     float64 `json:"surfaceX"`
	SurfaceWidth float64 `json:"surfaceWidth"`
}

type SpawnerCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// InitMapMonstersPayload installs a map's topology. First client wins.
type InitMapMonstersPayload struct {
	MapID          string                 `json:"mapId"`
	Monsters       []SpawnerCount         `json:"monsters"`
	SpawnPositions []SpawnPosition        `json:"spawnPositions"`
	MapWidth       float64                `json:"mapWidth"`
	GroundY        float64                `json:"groundY"`
	MonsterTypes   map[string]MonsterType `json:"monsterTypes"`
}

type AttackPayload struct {
	Seq             int      `json:"seq,omitempty"`
	MonsterID       string   `json:"monsterId"`
	Damage          float64  `json:"damage"`
	IsCritical      bool     `json:"isCritical"`
	AttackType      string   `json:"attackType,omitempty"`
	PlayerDirection int      `json:"playerDirection"`
	PredictedHP     *float64 `json:"predictedHp,omitempty"`
}

type TransformElitePayload struct {
	MonsterID      string `json:"monsterId"`
	MaxHP          int    `json:"maxHp"`
	Damage         int    `json:"damage"`
	OriginalMaxHP  int    `json:"originalMaxHp"`
	OriginalDamage int    `json:"originalDamage"`
}

type PickupPayload struct {
	ItemID   string  `json:"itemId"`
	ItemName string  `json:"itemName"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type DropItemPayload struct {
	Name        string          `json:"name"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Stats       json.RawMessage `json:"stats,omitempty"`
	Rarity      string          `json:"rarity,omitempty"`
	Enhancement int             `json:"enhancement,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
	LevelReq    int             `json:"levelReq,omitempty"`
	IsQuestItem bool            `json:"isQuestItem,omitempty"`
	IsGold      bool            `json:"isGold,omitempty"`
	Amount      int             `json:"amount,omitempty"`
}

type UpdatePartyPayload struct {
	PartyID string `json:"partyId"`
}

type PartyStatsPayload struct {
	HP     int `json:"hp"`
	MaxHP  int `json:"maxHp"`
	Level  int `json:"level"`
	Exp    int `json:"exp"`
	MaxExp int `json:"maxExp"`
}

type ShareGoldPayload struct {
	TotalAmount int `json:"totalAmount"`
}

type GMAuthPayload struct {
	Password string `json:"password"`
}
