// Package replication defines the wire contract between a room and its
// clients: a closed set of events wrapped in sequenced envelopes, the
// commands clients send, the snapshot sent on join and a client-side state
// that rebuilds the room from them.
package replication

import (
	"github.com/KirkDiggler/hexhaven-api/internal/engine/actions"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/initiative"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// EventType tags an event on the wire
type EventType string

// Event types
const (
	EventGameStarted        EventType = "game_started"
	EventRoundStarted       EventType = "round_started"
	EventRoundEnded         EventType = "round_ended"
	EventTurnStarted        EventType = "turn_started"
	EventTurnEnded          EventType = "turn_ended"
	EventCharacterMoved     EventType = "character_moved"
	EventAttackResolved     EventType = "attack_resolved"
	EventMonsterActivated   EventType = "monster_activated"
	EventMonsterDied        EventType = "monster_died"
	EventLootSpawned        EventType = "loot_spawned"
	EventLootCollected      EventType = "loot_collected"
	EventRest               EventType = "rest-event"
	EventCardActionExecuted EventType = "card_action_executed"
	EventCardsSelected      EventType = "cards_selected"
	EventHealResolved       EventType = "heal_resolved"
	EventSummonPlaced       EventType = "summon_placed"
	EventSummonRemoved      EventType = "summon_removed"
	EventConditionDamage    EventType = "condition_damage"
	EventScenarioEnded      EventType = "scenario_ended"
	EventPlayerDisconnected EventType = "player_disconnected"
	EventPersistenceFailed  EventType = "persistence_failed"
	EventError              EventType = "error"
)

// Event is implemented only by the payload types in this package
type Event interface {
	EventType() EventType
	isEvent()
}

// GameStarted carries the full room snapshot. It is sent on join and rejoin.
type GameStarted struct {
	Snapshot
}

// RoundStarted opens a round with its fixed turn order
type RoundStarted struct {
	RoundNumber int                `json:"roundNumber"`
	TurnOrder   []initiative.Entry `json:"turnOrder"`
}

// CharacterPiles is the resolved card state of one character
type CharacterPiles struct {
	CharacterID string   `json:"characterId"`
	Hand        []string `json:"hand"`
	DiscardPile []string `json:"discardPile"`
	LostPile    []string `json:"lostPile"`
}

// RoundEnded closes a round with every character's piles after cleanup
type RoundEnded struct {
	RoundNumber int              `json:"roundNumber"`
	Characters  []CharacterPiles `json:"characters"`
}

// TurnStarted announces whose turn it is
type TurnStarted struct {
	TurnIndex       int                     `json:"turnIndex"`
	EntityID        string                  `json:"entityId"`
	EntityType      entities.EntityType     `json:"entityType"`
	TurnActionState *actions.State          `json:"turnActionState,omitempty"`
	SelectedCards   *entities.SelectedCards `json:"selectedCards,omitempty"`
}

// TurnEnded reports the entity's conditions after turn-end expiry
type TurnEnded struct {
	EntityID          string               `json:"entityId"`
	EntityType        entities.EntityType  `json:"entityType"`
	Conditions        entities.Conditions  `json:"conditions"`
	ExpiredConditions []entities.Condition `json:"expiredConditions,omitempty"`
}

// CharacterMoved reports a completed move
type CharacterMoved struct {
	CharacterID  string    `json:"characterId"`
	FromHex      hex.Hex   `json:"fromHex"`
	ToHex        hex.Hex   `json:"toHex"`
	MovementPath []hex.Hex `json:"movementPath"`
	Distance     int       `json:"distance"`
}

// AttackResolved carries the outcome of one attack by anyone
type AttackResolved struct {
	AttackerID       string               `json:"attackerId"`
	AttackerName     string               `json:"attackerName"`
	TargetID         string               `json:"targetId"`
	TargetName       string               `json:"targetName"`
	BaseDamage       int                  `json:"baseDamage"`
	Damage           int                  `json:"damage"`
	Modifier         combat.Modifier      `json:"modifier"`
	Missed           bool                 `json:"missed"`
	Effects          []entities.Condition `json:"effects"`
	TargetHealth     int                  `json:"targetHealth"`
	TargetConditions entities.Conditions  `json:"targetConditions"`
}

// NewAttackResolved converts a combat result to its event
func NewAttackResolved(r *combat.AttackResult) *AttackResolved {
	effects := r.Effects
	if effects == nil {
		effects = []entities.Condition{}
	}
	return &AttackResolved{
		AttackerID:       r.AttackerID,
		AttackerName:     r.AttackerName,
		TargetID:         r.TargetID,
		TargetName:       r.TargetName,
		BaseDamage:       r.BaseDamage,
		Damage:           r.Damage,
		Modifier:         r.Modifier,
		Missed:           r.Missed,
		Effects:          effects,
		TargetHealth:     r.TargetHealth,
		TargetConditions: r.TargetConditions,
	}
}

// MonsterActivated reports a monster's whole turn
type MonsterActivated struct {
	MonsterID        string          `json:"monsterId"`
	MonsterName      string          `json:"monsterName"`
	FocusID          string          `json:"focusId,omitempty"`
	FromHex          hex.Hex         `json:"fromHex"`
	ToHex            hex.Hex         `json:"toHex"`
	Movement         []hex.Hex       `json:"movement"`
	MovementDistance int             `json:"movementDistance"`
	Attack           *AttackResolved `json:"attack,omitempty"`
}

// MonsterDied reports a monster removed at 0 health
type MonsterDied struct {
	MonsterID string `json:"monsterId"`
	KillerID  string `json:"killerId"`
}

// LootSpawned reports a dropped loot token
type LootSpawned struct {
	Loot entities.LootToken `json:"loot"`
}

// LootCollected reports tokens picked up and the character's new gold total
type LootCollected struct {
	CharacterID string   `json:"characterId"`
	LootIDs     []string `json:"lootIds"`
	Value       int      `json:"value"`
	Gold        int      `json:"gold"`
}

// RestEvent wraps a rest lifecycle stage
type RestEvent struct {
	rest.Event
}

// CardActionExecuted reports the outcome of a use_card_action
type CardActionExecuted struct {
	CharacterID     string              `json:"characterId"`
	CardID          string              `json:"cardId"`
	Position        entities.Position   `json:"position"`
	ActionType      entities.ActionType `json:"actionType"`
	Success         bool                `json:"success"`
	Error           string              `json:"error,omitempty"`
	TurnActionState *actions.State      `json:"turnActionState,omitempty"`
}

// CardsSelected reports a character readied for the round
type CardsSelected struct {
	CharacterID   string                  `json:"characterId"`
	SelectedCards *entities.SelectedCards `json:"selectedCards,omitempty"`
	LongRest      bool                    `json:"longRest,omitempty"`
}

// HealResolved carries the outcome of one heal
type HealResolved struct {
	HealerID         string              `json:"healerId"`
	TargetID         string              `json:"targetId"`
	Amount           int                 `json:"amount"`
	Healed           int                 `json:"healed"`
	TargetHealth     int                 `json:"targetHealth"`
	TargetConditions entities.Conditions `json:"targetConditions"`
}

// NewHealResolved converts a combat heal result to its event
func NewHealResolved(r *combat.HealResult) *HealResolved {
	return &HealResolved{
		HealerID:         r.HealerID,
		TargetID:         r.TargetID,
		Amount:           r.Amount,
		Healed:           r.Healed,
		TargetHealth:     r.TargetHealth,
		TargetConditions: r.TargetConditions,
	}
}

// SummonPlaced reports a new allied summon
type SummonPlaced struct {
	Summon entities.Summon `json:"summon"`
}

// SummonRemoved reports a summon taken off the board with its exhausted owner
type SummonRemoved struct {
	SummonID string `json:"summonId"`
	OwnerID  string `json:"ownerId"`
}

// ConditionDamage reports damage from a condition such as wound
type ConditionDamage struct {
	EntityID  string             `json:"entityId"`
	Condition entities.Condition `json:"condition"`
	Damage    int                `json:"damage"`
	Health    int                `json:"health"`
}

// Outcome of a finished scenario
type Outcome string

// Outcomes
const (
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
)

// Reward is what a character earned from the scenario
type Reward struct {
	CharacterID string `json:"characterId"`
	PlayerID    string `json:"playerId"`
	Gold        int    `json:"gold"`
	XP          int    `json:"xp"`
}

// ScenarioEnded closes the room
type ScenarioEnded struct {
	Outcome     Outcome  `json:"outcome"`
	RoundNumber int      `json:"roundNumber"`
	Rewards     []Reward `json:"rewards"`
}

// PlayerDisconnected is sent once a player's reconnect grace runs out
type PlayerDisconnected struct {
	PlayerID    string `json:"playerId"`
	CharacterID string `json:"characterId"`
}

// PersistenceFailed notifies that a background save failed. Room state is
// unaffected.
type PersistenceFailed struct {
	Job     string `json:"job"`
	Message string `json:"message"`
}

// Error is sent to the client whose request was rejected
type Error struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (*GameStarted) EventType() EventType        { return EventGameStarted }
func (*RoundStarted) EventType() EventType       { return EventRoundStarted }
func (*RoundEnded) EventType() EventType         { return EventRoundEnded }
func (*TurnStarted) EventType() EventType        { return EventTurnStarted }
func (*TurnEnded) EventType() EventType          { return EventTurnEnded }
func (*CharacterMoved) EventType() EventType     { return EventCharacterMoved }
func (*AttackResolved) EventType() EventType     { return EventAttackResolved }
func (*MonsterActivated) EventType() EventType   { return EventMonsterActivated }
func (*MonsterDied) EventType() EventType        { return EventMonsterDied }
func (*LootSpawned) EventType() EventType        { return EventLootSpawned }
func (*LootCollected) EventType() EventType      { return EventLootCollected }
func (*RestEvent) EventType() EventType          { return EventRest }
func (*CardActionExecuted) EventType() EventType { return EventCardActionExecuted }
func (*CardsSelected) EventType() EventType      { return EventCardsSelected }
func (*HealResolved) EventType() EventType       { return EventHealResolved }
func (*SummonPlaced) EventType() EventType       { return EventSummonPlaced }
func (*SummonRemoved) EventType() EventType      { return EventSummonRemoved }
func (*ConditionDamage) EventType() EventType    { return EventConditionDamage }
func (*ScenarioEnded) EventType() EventType      { return EventScenarioEnded }
func (*PlayerDisconnected) EventType() EventType { return EventPlayerDisconnected }
func (*PersistenceFailed) EventType() EventType  { return EventPersistenceFailed }
func (*Error) EventType() EventType              { return EventError }

func (*GameStarted) isEvent()        {}
func (*RoundStarted) isEvent()       {}
func (*RoundEnded) isEvent()         {}
func (*TurnStarted) isEvent()        {}
func (*TurnEnded) isEvent()          {}
func (*CharacterMoved) isEvent()     {}
func (*AttackResolved) isEvent()     {}
func (*MonsterActivated) isEvent()   {}
func (*MonsterDied) isEvent()        {}
func (*LootSpawned) isEvent()        {}
func (*LootCollected) isEvent()      {}
func (*RestEvent) isEvent()          {}
func (*CardActionExecuted) isEvent() {}
func (*CardsSelected) isEvent()      {}
func (*HealResolved) isEvent()       {}
func (*SummonPlaced) isEvent()       {}
func (*SummonRemoved) isEvent()      {}
func (*ConditionDamage) isEvent()    {}
func (*ScenarioEnded) isEvent()      {}
func (*PlayerDisconnected) isEvent() {}
func (*PersistenceFailed) isEvent()  {}
func (*Error) isEvent()              {}
