// Package targeting computes the legal target set of an ability card
// action from the actor's position and the current board.
package targeting

import (
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// Board is the read-only view of a room the resolver needs
type Board interface {
	// Terrain returns the terrain at h and false when h is off the map
	Terrain(h hex.Hex) (entities.Terrain, bool)
	// Occupant returns the living entity standing on h
	Occupant(h hex.Hex) (entities.Combatant, bool)
	// Loot returns the loot token lying on h
	Loot(h hex.Hex) (entities.LootToken, bool)
}

// Kind says how a result is addressed
type Kind string

// Result kinds
const (
	// KindNone actions resolve without a target
	KindNone Kind = "none"
	// KindSelf heals resolve on the actor without a targeting step
	KindSelf   Kind = "self"
	KindHex    Kind = "hex"
	KindEntity Kind = "entity"
)

// Result is the legal target set. An empty set is valid.
type Result struct {
	Kind      Kind      `json:"kind"`
	Hexes     []hex.Hex `json:"hexes,omitempty"`
	EntityIDs []string  `json:"entityIds,omitempty"`
	// LootIDs lists the tokens a loot action would pick up
	LootIDs []string `json:"lootIds,omitempty"`
}

// Empty reports whether there is nothing to choose
func (r Result) Empty() bool {
	return len(r.Hexes) == 0 && len(r.EntityIDs) == 0 && len(r.LootIDs) == 0
}

// HasHex reports whether h is a legal target
func (r Result) HasHex(h hex.Hex) bool {
	for _, candidate := range r.Hexes {
		if candidate == h {
			return true
		}
	}
	return false
}

// HasEntity reports whether id is a legal target
func (r Result) HasEntity(id string) bool {
	for _, candidate := range r.EntityIDs {
		if candidate == id {
			return true
		}
	}
	return false
}

// EffectiveRange maps range 0 to adjacent
func EffectiveRange(declared int) int {
	return max(1, declared)
}

// Resolve returns the legal targets of action performed by actor
func Resolve(board Board, actor entities.Combatant, action entities.Action) Result {
	switch action.Type {
	case entities.ActionMove:
		return Result{Kind: KindHex, Hexes: MoveTargets(board, actor, action.Value)}
	case entities.ActionAttack:
		return Result{Kind: KindEntity, EntityIDs: AttackTargets(board, actor, action.Range)}
	case entities.ActionHeal:
		if action.Range == 0 {
			return Result{Kind: KindSelf, EntityIDs: []string{actor.GetID()}}
		}
		return Result{Kind: KindEntity, EntityIDs: HealTargets(board, actor, action.Range)}
	case entities.ActionSummon:
		return Result{Kind: KindHex, Hexes: SummonTargets(board, actor, action.Range)}
	case entities.ActionLoot:
		return Result{Kind: KindNone, LootIDs: LootTargets(board, actor, action.Range)}
	default:
		return Result{Kind: KindNone}
	}
}

// MovementBlocked returns the predicate for hexes mover may not enter:
// off-map hexes, obstacles and hexes held by a hostile entity
func MovementBlocked(board Board, mover entities.EntityType) hex.Predicate {
	return func(h hex.Hex) bool {
		terrain, ok := board.Terrain(h)
		if !ok || !terrain.Passable() {
			return true
		}
		if occ, ok := board.Occupant(h); ok && entities.Hostile(mover, occ.EntityType()) {
			return true
		}
		return false
	}
}

// Unoccupied reports hexes with no living entity on them
func Unoccupied(board Board) hex.Predicate {
	return func(h hex.Hex) bool {
		_, occupied := board.Occupant(h)
		return !occupied
	}
}

// MoveTargets are the hexes actor can end a move of budget steps on.
// Immobilized actors cannot move.
func MoveTargets(board Board, actor entities.Combatant, budget int) []hex.Hex {
	if actor.ConditionSet().Has(entities.ConditionImmobilize) {
		return nil
	}
	return hex.Reachable(actor.GetHex(), budget, MovementBlocked(board, actor.EntityType()), Unoccupied(board))
}

// AttackTargets are the living enemies within range. Disarmed actors
// cannot attack.
func AttackTargets(board Board, actor entities.Combatant, declaredRange int) []string {
	if actor.ConditionSet().Has(entities.ConditionDisarm) {
		return nil
	}
	return entitiesInRange(board, actor, EffectiveRange(declaredRange), func(occ entities.Combatant) bool {
		return entities.Hostile(actor.EntityType(), occ.EntityType())
	})
}

// HealTargets are the allies within range, excluding the actor
func HealTargets(board Board, actor entities.Combatant, declaredRange int) []string {
	return entitiesInRange(board, actor, declaredRange, func(occ entities.Combatant) bool {
		return occ.GetID() != actor.GetID() && !entities.Hostile(actor.EntityType(), occ.EntityType())
	})
}

// SummonTargets are the empty passable hexes within range
func SummonTargets(board Board, actor entities.Combatant, declaredRange int) []hex.Hex {
	free := Unoccupied(board)
	return hex.RingRange(actor.GetHex(), EffectiveRange(declaredRange), func(h hex.Hex) bool {
		terrain, ok := board.Terrain(h)
		return ok && terrain.Passable() && free(h)
	})
}

// LootTargets are the loot tokens within range, the actor's own hex included
func LootTargets(board Board, actor entities.Combatant, declaredRange int) []string {
	var ids []string
	for _, h := range hex.RingRange(actor.GetHex(), declaredRange, nil) {
		if token, ok := board.Loot(h); ok {
			ids = append(ids, token.ID)
		}
	}
	return ids
}

func entitiesInRange(board Board, actor entities.Combatant, radius int, eligible func(entities.Combatant) bool) []string {
	hexes := hex.RingRange(actor.GetHex(), radius, func(h hex.Hex) bool {
		occ, ok := board.Occupant(h)
		return ok && occ.IsAlive() && eligible(occ)
	})
	ids := make([]string, 0, len(hexes))
	for _, h := range hexes {
		occ, _ := board.Occupant(h)
		ids = append(ids, occ.GetID())
	}
	return ids
}
