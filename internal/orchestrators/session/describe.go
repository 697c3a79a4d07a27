package session

import (
	"fmt"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// describe renders the game log line for ev, or "" for events that are
// not worth a line
func describe(s *Session, ev replication.Event) string {
	switch e := ev.(type) {
	case *replication.RoundStarted:
		return fmt.Sprintf("Round %d begins", e.RoundNumber)
	case *replication.RoundEnded:
		return fmt.Sprintf("Round %d ends", e.RoundNumber)
	case *replication.TurnStarted:
		return fmt.Sprintf("%s's turn", s.nameOf(e.EntityID))
	case *replication.CharacterMoved:
		return fmt.Sprintf("%s moves %d hexes to %s", s.nameOf(e.CharacterID), e.Distance, e.ToHex)
	case *replication.AttackResolved:
		return describeAttack(e)
	case *replication.MonsterActivated:
		msg := fmt.Sprintf("%s moves %d hexes", e.MonsterName, e.MovementDistance)
		if e.Attack != nil {
			msg += "; " + describeAttack(e.Attack)
		}
		return msg
	case *replication.MonsterDied:
		return fmt.Sprintf("%s is slain", s.nameOf(e.MonsterID))
	case *replication.LootCollected:
		return fmt.Sprintf("%s loots %d gold", s.nameOf(e.CharacterID), e.Value)
	case *replication.HealResolved:
		return fmt.Sprintf("%s heals %s for %d", s.nameOf(e.HealerID), s.nameOf(e.TargetID), e.Healed)
	case *replication.SummonPlaced:
		return fmt.Sprintf("%s is summoned at %s", e.Summon.Name, e.Summon.Hex)
	case *replication.SummonRemoved:
		return fmt.Sprintf("%s vanishes with %s", s.nameOf(e.SummonID), s.nameOf(e.OwnerID))
	case *replication.ConditionDamage:
		return fmt.Sprintf("%s suffers %d from %s", s.nameOf(e.EntityID), e.Damage, e.Condition)
	case *replication.RestEvent:
		return describeRest(s, &e.Event)
	case *replication.ScenarioEnded:
		return fmt.Sprintf("Scenario ends in %s after round %d", e.Outcome, e.RoundNumber)
	case *replication.PlayerDisconnected:
		return fmt.Sprintf("%s disconnected", s.nameOf(e.CharacterID))
	default:
		return ""
	}
}

func describeAttack(e *replication.AttackResolved) string {
	if e.Missed {
		return fmt.Sprintf("%s's attack on %s missed", e.AttackerName, e.TargetName)
	}
	return fmt.Sprintf("%s attacks %s for %d (%s)", e.AttackerName, e.TargetName, e.Damage, e.Modifier)
}

func describeRest(s *Session, e *rest.Event) string {
	name := s.nameOf(e.CharacterID)
	switch e.Type {
	case rest.StageDeclared:
		return fmt.Sprintf("%s declares a long rest", name)
	case rest.StageComplete:
		return fmt.Sprintf("%s rests, losing %s and healing %d", name, e.CardID, e.Healed)
	case rest.StageDamageTaken:
		return fmt.Sprintf("%s takes %d to keep %s", name, e.Damage, e.CardID)
	case rest.StageExhaustion:
		return fmt.Sprintf("%s is exhausted (%s)", name, e.Reason)
	default:
		return ""
	}
}

func (s *Session) nameOf(id string) string {
	if c, ok := s.combatant(id); ok {
		return c.GetName()
	}
	return id
}

func (s *Session) logf(format string, args ...any) {
	s.appendLog(fmt.Sprintf(format, args...))
}
