// Package entities defines the state owned by a room: the map, the entities
// standing on it and the ability cards that drive them.
package entities

import (
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// EntityType distinguishes the kinds of entity on the board
type EntityType string

// Entity types
const (
	EntityTypeCharacter EntityType = "character"
	EntityTypeMonster   EntityType = "monster"
	EntityTypeSummon    EntityType = "summon"
)

// Hostile reports whether a and b are on opposing sides. Characters and
// their summons fight monsters.
func Hostile(a, b EntityType) bool {
	return (a == EntityTypeMonster) != (b == EntityTypeMonster)
}

// Terrain of a map tile
type Terrain string

// Terrain values
const (
	TerrainOpen     Terrain = "open"
	TerrainObstacle Terrain = "obstacle"
	TerrainHazard   Terrain = "hazard"
)

// Passable reports whether entities may enter the terrain
func (t Terrain) Passable() bool {
	return t != TerrainObstacle
}

// MapTile is one hex of the scenario map
type MapTile struct {
	Hex     hex.Hex `json:"hex"`
	Terrain Terrain `json:"terrain"`
}

// LootToken is dropped where a monster dies
type LootToken struct {
	ID    string  `json:"id"`
	Hex   hex.Hex `json:"hex"`
	Value int     `json:"value"`
}

// ActionType tags an ability card action
type ActionType string

// Action types
const (
	ActionMove    ActionType = "move"
	ActionAttack  ActionType = "attack"
	ActionHeal    ActionType = "heal"
	ActionSummon  ActionType = "summon"
	ActionSpecial ActionType = "special"
	ActionLoot    ActionType = "loot"
)

// Valid reports whether t is a known action type
func (t ActionType) Valid() bool {
	switch t {
	case ActionMove, ActionAttack, ActionHeal, ActionSummon, ActionSpecial, ActionLoot:
		return true
	}
	return false
}

// Position is the half of an ability card being used
type Position string

// Card halves
const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
)

// Opposite returns the other half of the card
func (p Position) Opposite() Position {
	if p == PositionTop {
		return PositionBottom
	}
	return PositionTop
}

// Valid reports whether p is top or bottom
func (p Position) Valid() bool {
	return p == PositionTop || p == PositionBottom
}

// Action is one half of an ability card. Range 0 means self for heals and
// adjacent for attacks.
type Action struct {
	Type    ActionType  `json:"type"`
	Value   int         `json:"value"`
	Range   int         `json:"range,omitempty"`
	Effects []Condition `json:"effects,omitempty"`
	// Lost sends the card to the lost pile once this half is performed
	Lost bool   `json:"lost,omitempty"`
	Name string `json:"name,omitempty"`
}

// AbilityCard is a two-action card from a character's deck
type AbilityCard struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Initiative int    `json:"initiative"`
	Top        Action `json:"top"`
	Bottom     Action `json:"bottom"`
}

// Half returns the action on the given position
func (c AbilityCard) Half(p Position) Action {
	if p == PositionTop {
		return c.Top
	}
	return c.Bottom
}
