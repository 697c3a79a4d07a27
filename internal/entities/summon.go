package entities

import (
	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// Summon is an allied blocking entity placed by a character. It takes no
// turns of its own but monsters may focus and attack it.
type Summon struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	Name       string     `json:"name"`
	Hex        hex.Hex    `json:"hex"`
	Health     int        `json:"health"`
	MaxHealth  int        `json:"maxHealth"`
	Conditions Conditions `json:"conditions,omitempty"`
	IsDead     bool       `json:"isDead"`
}

var _ core.Entity = (*Summon)(nil)

// GetID returns the summon id
func (s *Summon) GetID() string { return s.ID }

// GetType returns the entity type
func (s *Summon) GetType() string { return string(EntityTypeSummon) }

// EntityType returns the typed entity kind
func (s *Summon) EntityType() EntityType { return EntityTypeSummon }

// GetName returns the display name
func (s *Summon) GetName() string { return s.Name }

// GetHex returns the summon's position
func (s *Summon) GetHex() hex.Hex { return s.Hex }

// GetHealth returns current health
func (s *Summon) GetHealth() int { return s.Health }

// GetMaxHealth returns maximum health
func (s *Summon) GetMaxHealth() int { return s.MaxHealth }

// SetHealth sets current health, clamped to [0, MaxHealth]
func (s *Summon) SetHealth(h int) { s.Health = clampHealth(h, s.MaxHealth) }

// GetShield summons carry no shield
func (s *Summon) GetShield() int { return 0 }

// IsAlive reports whether the summon is still on the board
func (s *Summon) IsAlive() bool { return !s.IsDead }

// ConditionSet exposes the summon's conditions
func (s *Summon) ConditionSet() *Conditions { return &s.Conditions }

// MarkDefeated removes the summon from play
func (s *Summon) MarkDefeated() { s.IsDead = true }

// Clone returns a deep copy
func (s *Summon) Clone() *Summon {
	out := *s
	out.Conditions = s.Conditions.Clone()
	return &out
}
