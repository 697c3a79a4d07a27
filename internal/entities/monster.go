package entities

import (
	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// MonsterStats is one rank of a monster stat block
type MonsterStats struct {
	Health  int         `json:"health"`
	Move    int         `json:"move"`
	Attack  int         `json:"attack"`
	Range   int         `json:"range"`
	Shield  int         `json:"shield,omitempty"`
	Effects []Condition `json:"effects,omitempty"`
}

// MonsterType is the stat block shared by every monster of a kind
type MonsterType struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Normal MonsterStats `json:"normal"`
	Elite  MonsterStats `json:"elite"`
	// Initiative is fixed for the type; 0 means it is rolled each round
	Initiative int `json:"initiative"`
	// Priority breaks initiative ties between monster types, lower first
	Priority int `json:"priority"`
}

// Stats returns the stat block for the given rank
func (t MonsterType) Stats(elite bool) MonsterStats {
	if elite {
		return t.Elite
	}
	return t.Normal
}

// Monster is a scenario-controlled enemy
type Monster struct {
	ID          string     `json:"id"`
	MonsterType string     `json:"monsterType"`
	Name        string     `json:"name"`
	Elite       bool       `json:"elite,omitempty"`
	Hex         hex.Hex    `json:"hex"`
	Health      int        `json:"health"`
	MaxHealth   int        `json:"maxHealth"`
	Move        int        `json:"move"`
	Attack      int        `json:"attack"`
	Range       int        `json:"range"`
	Shield      int        `json:"shield,omitempty"`
	Effects     Conditions `json:"effects,omitempty"`
	Conditions  Conditions `json:"conditions,omitempty"`
	IsDead      bool       `json:"isDead"`
}

var _ core.Entity = (*Monster)(nil)

// NewMonster spawns a monster of type t
func NewMonster(id string, t MonsterType, elite bool, at hex.Hex) *Monster {
	stats := t.Stats(elite)
	name := t.Name
	if elite {
		name = "Elite " + t.Name
	}
	return &Monster{
		ID:          id,
		MonsterType: t.ID,
		Name:        name,
		Elite:       elite,
		Hex:         at,
		Health:      stats.Health,
		MaxHealth:   stats.Health,
		Move:        stats.Move,
		Attack:      stats.Attack,
		Range:       stats.Range,
		Shield:      stats.Shield,
		Effects:     Conditions(stats.Effects).Clone(),
	}
}

// GetID returns the monster id
func (m *Monster) GetID() string { return m.ID }

// GetType returns the entity type
func (m *Monster) GetType() string { return string(EntityTypeMonster) }

// EntityType returns the typed entity kind
func (m *Monster) EntityType() EntityType { return EntityTypeMonster }

// GetName returns the display name
func (m *Monster) GetName() string { return m.Name }

// GetHex returns the monster's position
func (m *Monster) GetHex() hex.Hex { return m.Hex }

// GetHealth returns current health
func (m *Monster) GetHealth() int { return m.Health }

// GetMaxHealth returns maximum health
func (m *Monster) GetMaxHealth() int { return m.MaxHealth }

// SetHealth sets current health, clamped to [0, MaxHealth]
func (m *Monster) SetHealth(h int) { m.Health = clampHealth(h, m.MaxHealth) }

// GetShield returns the damage absorbed from each attack
func (m *Monster) GetShield() int { return m.Shield }

// IsAlive reports whether the monster is still on the board
func (m *Monster) IsAlive() bool { return !m.IsDead }

// ConditionSet exposes the monster's conditions
func (m *Monster) ConditionSet() *Conditions { return &m.Conditions }

// MarkDefeated removes the monster from play
func (m *Monster) MarkDefeated() { m.IsDead = true }

// Clone returns a deep copy
func (m *Monster) Clone() *Monster {
	out := *m
	out.Effects = m.Effects.Clone()
	out.Conditions = m.Conditions.Clone()
	return &out
}
