package session

import (
	"log/slog"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/monster"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/targeting"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// useCardAction performs one half of a selected card. Everything is
// validated before the first mutation so a rejection leaves no trace.
func (s *Session) useCardAction(ch *entities.Character, cmd *replication.UseCardAction) error {
	if s.phase != replication.PhaseRound || s.tracker == nil {
		return errors.IllegalAction("no round is in progress")
	}
	cur, ok := s.tracker.Current()
	if !ok || cur.EntityID != ch.ID {
		return errors.IllegalActionf("it is not %s's turn", ch.Name)
	}
	econ, ok := s.economies[ch.ID]
	if !ok {
		return errors.IllegalActionf("%s has no cards to play this turn", ch.Name)
	}
	if err := econ.Check(cmd.CardID, cmd.Position); err != nil {
		return err
	}
	card, ok := s.cards[cmd.CardID]
	if !ok {
		return errors.InvariantViolationf("selected card %s is unknown", cmd.CardID)
	}

	action := card.Half(cmd.Position)
	targets := targeting.Resolve(s.grid, ch, action)
	perform, err := s.planAction(ch, action, targets, cmd)
	if err != nil {
		return err
	}

	// validated: from here on the command is committed
	if err := econ.Select(cmd.CardID, cmd.Position); err != nil {
		return invariant(err, "action economy rejected a checked action")
	}
	if err := perform(); err != nil {
		return err
	}
	if action.Lost {
		s.lostPlayed[ch.ID] = append(s.lostPlayed[ch.ID], cmd.CardID)
	}

	st := econ.State()
	s.emit(&replication.CardActionExecuted{
		CharacterID:     ch.ID,
		CardID:          cmd.CardID,
		Position:        cmd.Position,
		ActionType:      action.Type,
		Success:         true,
		TurnActionState: &st,
	})

	if s.checkScenarioEnd() {
		return nil
	}
	if econ.Done() || !ch.IsAlive() {
		s.endOfTurn(ch)
		return s.advance()
	}
	return nil
}

// planAction checks the chosen target and returns the mutation to run.
// A command without a target skips the effect; an empty target set is
// not an error.
func (s *Session) planAction(ch *entities.Character, action entities.Action, targets targeting.Result, cmd *replication.UseCardAction) (func() error, error) {
	noop := func() error { return nil }

	switch action.Type {
	case entities.ActionMove:
		if cmd.TargetHex == nil {
			return noop, nil
		}
		dst := *cmd.TargetHex
		if !targets.HasHex(dst) {
			return nil, errors.IllegalActionf("%s cannot move to %s", ch.Name, dst).WithMeta("target_hex", dst.String())
		}
		return func() error { return s.moveCharacter(ch, dst, action.Value) }, nil

	case entities.ActionAttack:
		if cmd.TargetID == "" {
			return noop, nil
		}
		if !targets.HasEntity(cmd.TargetID) {
			return nil, s.targetError(ch, cmd.TargetID, "attack")
		}
		target, _ := s.combatant(cmd.TargetID)
		return func() error { return s.attack(ch, target, action, s.characterDecks[ch.ID]) }, nil

	case entities.ActionHeal:
		targetID := cmd.TargetID
		if targets.Kind == targeting.KindSelf {
			targetID = ch.ID
		}
		if targetID == "" {
			return noop, nil
		}
		if !targets.HasEntity(targetID) {
			return nil, s.targetError(ch, targetID, "heal")
		}
		target, _ := s.combatant(targetID)
		return func() error { return s.heal(ch, target, action.Value) }, nil

	case entities.ActionSummon:
		if cmd.TargetHex == nil {
			return noop, nil
		}
		at := *cmd.TargetHex
		if !targets.HasHex(at) {
			return nil, errors.IllegalActionf("%s cannot summon onto %s", ch.Name, at).WithMeta("target_hex", at.String())
		}
		return func() error { s.summon(ch, action, at); return nil }, nil

	case entities.ActionLoot:
		ids := targets.LootIDs
		return func() error { s.loot(ch, ids); return nil }, nil

	case entities.ActionSpecial:
		return noop, nil

	default:
		return nil, errors.InvariantViolationf("card action has unknown type %q", action.Type)
	}
}

// targetError distinguishes a stale id from a target the action cannot reach
func (s *Session) targetError(ch *entities.Character, targetID, verb string) error {
	target, ok := s.combatant(targetID)
	if !ok || !target.IsAlive() {
		return errors.StateReferencef("%s target %s is no longer in play", verb, targetID).WithMeta("target_id", targetID)
	}
	return errors.IllegalActionf("%s cannot %s %s", ch.Name, verb, target.GetName()).WithMeta("target_id", targetID)
}

func (s *Session) moveCharacter(ch *entities.Character, dst hex.Hex, budget int) error {
	tree := hex.Explore(ch.Hex, budget, targeting.MovementBlocked(s.grid, ch.EntityType()))
	path := tree.Path(dst)
	if len(path) == 0 {
		return errors.InvariantViolationf("no path from %s to reachable hex %s", ch.Hex, dst)
	}

	from := ch.Hex
	s.grid.Move(from, dst)
	ch.Hex = dst
	s.emit(&replication.CharacterMoved{
		CharacterID:  ch.ID,
		FromHex:      from,
		ToHex:        dst,
		MovementPath: path,
		Distance:     len(path),
	})
	return nil
}

func (s *Session) attack(attacker, target entities.Combatant, action entities.Action, src combat.Source) error {
	result, err := combat.ResolveAttack(attacker, target, action.Value, action.Effects, src)
	if err != nil {
		return invariant(err, "failed to resolve attack")
	}
	s.emit(replication.NewAttackResolved(result))
	if result.TargetDefeated {
		s.defeated(target, attacker.GetID())
	}
	return nil
}

func (s *Session) heal(healer, target entities.Combatant, amount int) error {
	result, err := combat.ResolveHeal(healer, target, amount)
	if err != nil {
		return invariant(err, "failed to resolve heal")
	}
	s.emit(replication.NewHealResolved(result))
	return nil
}

func (s *Session) summon(owner *entities.Character, action entities.Action, at hex.Hex) {
	name := action.Name
	if name == "" {
		name = owner.Name + "'s summon"
	}
	health := max(1, action.Value)
	sm := &entities.Summon{
		ID:        s.idGen.Generate(),
		OwnerID:   owner.ID,
		Name:      name,
		Hex:       at,
		Health:    health,
		MaxHealth: health,
	}
	s.summons = append(s.summons, sm)
	s.grid.Place(sm)
	s.emit(&replication.SummonPlaced{Summon: *sm.Clone()})
}

func (s *Session) loot(ch *entities.Character, ids []string) {
	var taken []string
	value := 0
	for _, token := range s.grid.LootTokens() {
		if !contains(ids, token.ID) {
			continue
		}
		if _, ok := s.grid.TakeLoot(token.Hex); ok {
			taken = append(taken, token.ID)
			value += token.Value
		}
	}
	if len(taken) == 0 {
		return
	}
	ch.Gold += value
	s.emit(&replication.LootCollected{
		CharacterID: ch.ID,
		LootIDs:     taken,
		Value:       value,
		Gold:        ch.Gold,
	})
}

// activate runs a monster's turn
func (s *Session) activate(m *entities.Monster) error {
	candidates := make([]entities.Combatant, 0, len(s.characters)+len(s.summons))
	for _, ch := range s.characters {
		candidates = append(candidates, ch)
	}
	for _, sm := range s.summons {
		candidates = append(candidates, sm)
	}

	plan := monster.Decide(s.grid, m, candidates, s.initiativeOf)
	from := m.Hex
	if plan.Moved() {
		s.grid.Move(from, plan.Destination)
		m.Hex = plan.Destination
	}

	activated := &replication.MonsterActivated{
		MonsterID:        m.ID,
		MonsterName:      m.Name,
		FocusID:          plan.FocusID,
		FromHex:          from,
		ToHex:            m.Hex,
		Movement:         append([]hex.Hex{}, plan.Path...),
		MovementDistance: len(plan.Path),
	}

	var defeated entities.Combatant
	if plan.AttackTargetID != "" {
		target, ok := s.combatant(plan.AttackTargetID)
		if !ok {
			return errors.InvariantViolationf("monster %s focused unknown entity %s", m.ID, plan.AttackTargetID)
		}
		result, err := combat.ResolveAttack(m, target, m.Attack, m.Effects, s.monsterDeck)
		if err != nil {
			return invariant(err, "failed to resolve monster attack")
		}
		activated.Attack = replication.NewAttackResolved(result)
		if result.TargetDefeated {
			defeated = target
		}
	}

	slog.Debug("Monster activated",
		"room_id", s.id,
		"monster_id", m.ID,
		"focus_id", plan.FocusID,
		"moved", len(plan.Path),
	)
	s.emit(activated)
	if defeated != nil {
		s.defeated(defeated, m.ID)
	}
	return nil
}

func (s *Session) initiativeOf(id string) int {
	if s.tracker == nil {
		return 0
	}
	for _, e := range s.tracker.Order() {
		if e.EntityID == id {
			return e.Initiative
		}
	}
	return s.rules.LongRestInitiative + 1
}

// defeated removes an entity whose health reached 0
func (s *Session) defeated(target entities.Combatant, killerID string) {
	switch t := target.(type) {
	case *entities.Character:
		s.exhaust(t, entities.ExhaustionDamage)
	case *entities.Monster:
		t.MarkDefeated()
		s.grid.Remove(t.Hex)
		s.emit(&replication.MonsterDied{MonsterID: t.ID, KillerID: killerID})
		token := entities.LootToken{ID: s.idGen.Generate(), Hex: t.Hex, Value: s.lootValue}
		s.grid.DropLoot(token)
		s.emit(&replication.LootSpawned{Loot: token})
	case *entities.Summon:
		t.MarkDefeated()
		s.grid.Remove(t.Hex)
	}
}
