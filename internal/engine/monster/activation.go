// Package monster decides what a monster does on its turn: who it focuses,
// where it moves and whether it attacks.
package monster

import (
	"sort"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/targeting"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// Plan is the outcome of a monster's decision. The room executes it.
type Plan struct {
	MonsterID string
	// FocusID is empty when no eligible target exists
	FocusID     string
	Path        []hex.Hex
	Destination hex.Hex
	// AttackTargetID is set when the focus is in range after moving
	AttackTargetID string
}

// Moved reports whether the plan changes the monster's hex
func (p Plan) Moved() bool {
	return len(p.Path) > 0
}

// InitiativeOf returns the initiative an entity acts on this round
type InitiativeOf func(entityID string) int

// SelectFocus picks the closest living target by hex distance. Ties go to
// the lower initiative this round and then to the lower entity id.
func SelectFocus(m *entities.Monster, candidates []entities.Combatant, initiativeOf InitiativeOf) (entities.Combatant, bool) {
	var eligible []entities.Combatant
	for _, c := range candidates {
		if c.IsAlive() && entities.Hostile(entities.EntityTypeMonster, c.EntityType()) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, false
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		di, dj := hex.Distance(m.Hex, eligible[i].GetHex()), hex.Distance(m.Hex, eligible[j].GetHex())
		if di != dj {
			return di < dj
		}
		if initiativeOf != nil {
			ii, ij := initiativeOf(eligible[i].GetID()), initiativeOf(eligible[j].GetID())
			if ii != ij {
				return ii < ij
			}
		}
		return eligible[i].GetID() < eligible[j].GetID()
	})
	return eligible[0], true
}

// Decide plans the activation of m against the candidates on board
func Decide(board targeting.Board, m *entities.Monster, candidates []entities.Combatant, initiativeOf InitiativeOf) Plan {
	plan := Plan{MonsterID: m.ID, Destination: m.Hex}

	focus, ok := SelectFocus(m, candidates, initiativeOf)
	if !ok {
		return plan
	}
	plan.FocusID = focus.GetID()

	attackRange := targeting.EffectiveRange(m.Range)
	target := focus.GetHex()

	if !m.Conditions.Has(entities.ConditionImmobilize) && hex.Distance(m.Hex, target) > attackRange {
		dest, path := approach(board, m, target, attackRange)
		plan.Destination = dest
		plan.Path = path
	}

	if !m.Conditions.Has(entities.ConditionDisarm) && hex.Distance(plan.Destination, target) <= attackRange {
		plan.AttackTargetID = focus.GetID()
	}
	return plan
}

// approach returns the hex that first puts target in range using the
// fewest movement points. When no hex within the move budget does, it
// picks the hex closest to the target, and stays put if nothing improves
// on the current distance.
func approach(board targeting.Board, m *entities.Monster, target hex.Hex, attackRange int) (hex.Hex, []hex.Hex) {
	tree := hex.Explore(m.Hex, m.Move, targeting.MovementBlocked(board, entities.EntityTypeMonster))
	stops := hex.Reachable(m.Hex, m.Move, targeting.MovementBlocked(board, entities.EntityTypeMonster), targeting.Unoccupied(board))

	best := m.Hex
	bestInRange := false
	bestCost := 0
	bestDist := hex.Distance(m.Hex, target)

	for _, h := range stops {
		cost, _ := tree.Cost(h)
		dist := hex.Distance(h, target)
		inRange := dist <= attackRange

		switch {
		case inRange && !bestInRange:
		case inRange && bestInRange:
			// fewest moves, then stay as far as range allows
			if cost > bestCost || (cost == bestCost && dist <= bestDist) {
				continue
			}
		case !inRange && bestInRange:
			continue
		default:
			if dist > bestDist || (dist == bestDist && (best == m.Hex || cost >= bestCost)) {
				continue
			}
		}
		best, bestInRange, bestCost, bestDist = h, inRange, cost, dist
	}

	if best == m.Hex {
		return m.Hex, nil
	}
	return best, tree.Path(best)
}
