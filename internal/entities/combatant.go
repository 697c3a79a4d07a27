package entities

import (
	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// Combatant is any entity that stands on the board and can be attacked or
// healed. Characters, monsters and summons all satisfy it.
type Combatant interface {
	core.Entity

	EntityType() EntityType
	GetName() string
	GetHex() hex.Hex
	GetHealth() int
	GetMaxHealth() int
	SetHealth(int)
	GetShield() int
	IsAlive() bool
	ConditionSet() *Conditions
	// MarkDefeated is called once health reaches 0
	MarkDefeated()
}

var (
	_ Combatant = (*Character)(nil)
	_ Combatant = (*Monster)(nil)
	_ Combatant = (*Summon)(nil)
)
