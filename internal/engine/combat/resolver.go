// Package combat resolves attacks and heals. Player and monster attacks go
// through the same ResolveAttack path.
package combat

import (
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// AttackResult carries the resolved values of one attack
type AttackResult struct {
	AttackerID   string
	AttackerName string
	TargetID     string
	TargetName   string
	TargetType   entities.EntityType
	// BaseDamage is the attack value before the modifier, poison included
	BaseDamage int
	Damage     int
	Modifier   Modifier
	Missed     bool
	// Effects lists the conditions actually applied
	Effects          []entities.Condition
	TargetHealth     int
	TargetConditions entities.Conditions
	TargetDefeated   bool
}

// ResolveAttack draws one modifier from src and applies the attack to
// target. A null modifier deals no damage and applies no effects. Shield is
// subtracted after the modifier and health never drops below 0. A target
// reaching 0 health is marked defeated.
func ResolveAttack(attacker, target entities.Combatant, baseValue int, effects []entities.Condition, src Source) (*AttackResult, error) {
	if attacker == nil || target == nil {
		return nil, errors.InvalidArgument("attacker and target are required")
	}
	if src == nil {
		return nil, errors.InvalidArgument("modifier source is required")
	}
	if !target.IsAlive() {
		return nil, errors.StateReferencef("target %s is no longer in play", target.GetID())
	}

	base := baseValue
	if target.ConditionSet().Has(entities.ConditionPoison) {
		base++
	}

	mod, err := src.Draw()
	if err != nil {
		return nil, errors.Wrap(err, "failed to draw attack modifier")
	}

	result := &AttackResult{
		AttackerID:   attacker.GetID(),
		AttackerName: attacker.GetName(),
		TargetID:     target.GetID(),
		TargetName:   target.GetName(),
		TargetType:   target.EntityType(),
		BaseDamage:   base,
		Modifier:     mod,
		Missed:       mod.IsMiss(),
	}

	if !result.Missed {
		result.Damage = max(0, mod.Apply(base)-target.GetShield())
		target.SetHealth(target.GetHealth() - result.Damage)

		for _, c := range effects {
			if !c.Valid() {
				continue
			}
			target.ConditionSet().Add(c)
			result.Effects = append(result.Effects, c)
		}
	}

	result.TargetHealth = target.GetHealth()
	if result.TargetHealth == 0 {
		target.MarkDefeated()
		result.TargetDefeated = true
	}
	result.TargetConditions = target.ConditionSet().Clone()

	return result, nil
}

// HealResult carries the resolved values of one heal
type HealResult struct {
	HealerID string
	TargetID string
	Amount   int
	// Healed is the health actually restored
	Healed           int
	TargetHealth     int
	RemovedPoison    bool
	RemovedWound     bool
	TargetConditions entities.Conditions
}

// ResolveHeal restores up to amount health capped at max health. Poison
// cancels the heal and is removed. Wound is removed by any heal.
func ResolveHeal(healer, target entities.Combatant, amount int) (*HealResult, error) {
	if healer == nil || target == nil {
		return nil, errors.InvalidArgument("healer and target are required")
	}
	if !target.IsAlive() {
		return nil, errors.StateReferencef("target %s is no longer in play", target.GetID())
	}

	result := &HealResult{
		HealerID: healer.GetID(),
		TargetID: target.GetID(),
		Amount:   amount,
	}

	conditions := target.ConditionSet()
	result.RemovedWound = conditions.Remove(entities.ConditionWound)
	if conditions.Remove(entities.ConditionPoison) {
		result.RemovedPoison = true
	} else {
		before := target.GetHealth()
		target.SetHealth(before + max(0, amount))
		result.Healed = target.GetHealth() - before
	}

	result.TargetHealth = target.GetHealth()
	result.TargetConditions = conditions.Clone()
	return result, nil
}

// ApplyDamage deals direct damage that bypasses modifiers and shield, such
// as wound at turn start or a rest reroll. It reports whether the target
// was defeated.
func ApplyDamage(target entities.Combatant, amount int) (health int, defeated bool) {
	if !target.IsAlive() {
		return target.GetHealth(), false
	}
	target.SetHealth(target.GetHealth() - max(0, amount))
	if target.GetHealth() == 0 {
		target.MarkDefeated()
		return 0, true
	}
	return target.GetHealth(), false
}
