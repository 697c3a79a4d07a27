package session

import (
	"log/slog"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/actions"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/initiative"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// rolledInitiativeSides is the die used for monster types without a fixed
// initiative
const rolledInitiativeSides = 99

func (s *Session) selectCards(ch *entities.Character, cmd *replication.SelectCards) error {
	if err := s.requireSelectable(ch); err != nil {
		return err
	}
	if ch.SelectedCards != nil {
		return errors.IllegalActionf("%s has already selected cards this round", ch.Name)
	}
	for _, id := range []string{cmd.Top, cmd.Bottom} {
		if !ch.InHand(id) {
			return errors.IllegalActionf("card %s is not in %s's hand", id, ch.Name).WithMeta("card_id", id)
		}
	}

	ch.SelectedCards = &entities.SelectedCards{
		Top:              cmd.Top,
		Bottom:           cmd.Bottom,
		InitiativeCardID: cmd.InitiativeCardID,
	}
	sel := *ch.SelectedCards
	s.emit(&replication.CardsSelected{CharacterID: ch.ID, SelectedCards: &sel})
	return s.maybeStartRound()
}

// requireSelectable rejects selection-phase commands that cannot apply
func (s *Session) requireSelectable(ch *entities.Character) error {
	if s.phase != replication.PhaseSelection {
		return errors.IllegalAction("cards can only be chosen between rounds")
	}
	if ch.IsExhausted {
		return errors.IllegalActionf("%s is exhausted", ch.Name)
	}
	if ch.LongResting {
		return errors.IllegalActionf("%s is long resting this round", ch.Name)
	}
	if r, ok := s.rests[ch.ID]; ok && !r.Done() {
		return errors.IllegalActionf("%s has a rest in progress", ch.Name)
	}
	return nil
}

// ready reports whether every character still in play has committed to
// the round
func (s *Session) ready() bool {
	living := 0
	for _, ch := range s.characters {
		if ch.IsExhausted {
			continue
		}
		living++
		if r, ok := s.rests[ch.ID]; ok && r.Kind() == rest.KindShort && !r.Done() {
			return false
		}
		if ch.SelectedCards == nil && !ch.LongResting {
			return false
		}
	}
	return living > 0
}

func (s *Session) maybeStartRound() error {
	if !s.ready() {
		return nil
	}
	return s.startRound()
}

// startRound fixes the turn order from this round's selections and runs
// turns until a character has to act
func (s *Session) startRound() error {
	s.round++
	s.phase = replication.PhaseRound
	s.economies = map[string]*actions.Economy{}
	s.lostPlayed = map[string][]string{}

	entrants := make([]initiative.Entrant, 0, len(s.characters)+len(s.monsters))
	for _, ch := range s.characters {
		if ch.IsExhausted {
			continue
		}
		value := s.rules.LongRestInitiative
		if ch.SelectedCards != nil {
			card, ok := s.cards[ch.SelectedCards.InitiativeCardID]
			if !ok {
				return errors.InvariantViolationf("initiative card %s of %s is unknown", ch.SelectedCards.InitiativeCardID, ch.ID)
			}
			value = card.Initiative
			s.economies[ch.ID] = actions.New(ch.SelectedCards.Top, ch.SelectedCards.Bottom)
		}
		entrants = append(entrants, initiative.Entrant{
			EntityID:   ch.ID,
			EntityType: entities.EntityTypeCharacter,
			Initiative: value,
			Name:       ch.Name,
			ClassType:  ch.ClassType,
		})
	}

	rolled := map[string]int{}
	for _, m := range s.monsters {
		if m.IsDead {
			continue
		}
		mt := s.monsterTypes[m.MonsterType]
		value, ok := rolled[mt.ID]
		if !ok {
			value = mt.Initiative
			if value == 0 {
				roll, err := s.roller.Roll(rolledInitiativeSides)
				if err != nil {
					return invariant(err, "failed to roll monster initiative")
				}
				value = roll
			}
			rolled[mt.ID] = value
		}
		entrants = append(entrants, initiative.Entrant{
			EntityID:   m.ID,
			EntityType: entities.EntityTypeMonster,
			Initiative: value,
			Name:       m.Name,
			Priority:   mt.Priority,
		})
	}

	order := initiative.Determine(entrants)
	s.tracker = initiative.NewTracker(order)

	slog.Info("Round started",
		"room_id", s.id,
		"round", s.round,
		"entrants", len(order),
	)
	s.emit(&replication.RoundStarted{RoundNumber: s.round, TurnOrder: order})
	return s.advance()
}

// advance starts turns until one needs a character's input, the round
// completes or the scenario ends
func (s *Session) advance() error {
	for !s.Ended() {
		entry, ok := s.tracker.Advance(s.isLive)
		if !ok {
			return s.endRound()
		}

		actor, ok := s.combatant(entry.EntityID)
		if !ok {
			return errors.InvariantViolationf("turn order references unknown entity %s", entry.EntityID)
		}
		started := &replication.TurnStarted{
			TurnIndex:  s.tracker.Index(),
			EntityID:   entry.EntityID,
			EntityType: entry.EntityType,
		}
		if econ, ok := s.economies[entry.EntityID]; ok {
			st := econ.State()
			started.TurnActionState = &st
		}
		if ch, ok := actor.(*entities.Character); ok && ch.SelectedCards != nil {
			sel := *ch.SelectedCards
			started.SelectedCards = &sel
		}
		s.emit(started)

		s.startOfTurn(actor)
		if s.checkScenarioEnd() {
			return nil
		}
		if !actor.IsAlive() {
			continue
		}

		switch a := actor.(type) {
		case *entities.Character:
			if a.LongResting {
				s.completeLongRest(a)
				s.endOfTurn(a)
				continue
			}
			// the character acts through use_card_action
			return nil
		case *entities.Monster:
			if err := s.activate(a); err != nil {
				return err
			}
			if s.checkScenarioEnd() {
				return nil
			}
			s.endOfTurn(a)
		default:
			s.endOfTurn(actor)
		}
	}
	return nil
}

func (s *Session) isLive(id string) bool {
	c, ok := s.combatant(id)
	return ok && c.IsAlive()
}

// startOfTurn applies wound damage
func (s *Session) startOfTurn(actor entities.Combatant) {
	if !actor.ConditionSet().Has(entities.ConditionWound) {
		return
	}
	health, defeated := combat.ApplyDamage(actor, 1)
	s.emit(&replication.ConditionDamage{
		EntityID:  actor.GetID(),
		Condition: entities.ConditionWound,
		Damage:    1,
		Health:    health,
	})
	if defeated {
		s.defeated(actor, "")
	}
}

// endOfTurn expires turn-length conditions and collects loot underfoot
func (s *Session) endOfTurn(actor entities.Combatant) {
	if !actor.IsAlive() {
		return
	}
	expired := actor.ConditionSet().ExpireTurnEnd()
	s.emit(&replication.TurnEnded{
		EntityID:          actor.GetID(),
		EntityType:        actor.EntityType(),
		Conditions:        actor.ConditionSet().Clone(),
		ExpiredConditions: expired,
	})

	if ch, ok := actor.(*entities.Character); ok {
		if token, found := s.grid.TakeLoot(ch.Hex); found {
			ch.Gold += token.Value
			s.emit(&replication.LootCollected{
				CharacterID: ch.ID,
				LootIDs:     []string{token.ID},
				Value:       token.Value,
				Gold:        ch.Gold,
			})
		}
	}
}

// endRound resolves played cards, reshuffles flagged decks and returns the
// room to card selection
func (s *Session) endRound() error {
	piles := make([]replication.CharacterPiles, 0, len(s.characters))
	for _, ch := range s.characters {
		if sel := ch.SelectedCards; sel != nil {
			for _, id := range []string{sel.Top, sel.Bottom} {
				dst := &ch.DiscardPile
				if contains(s.lostPlayed[ch.ID], id) {
					dst = &ch.LostPile
				}
				if !entities.MoveCard(&ch.Hand, dst, id) {
					return errors.InvariantViolationf("played card %s is not in %s's hand", id, ch.ID)
				}
			}
			ch.SelectedCards = nil
		}
		if r, ok := s.rests[ch.ID]; ok {
			if !r.Done() {
				s.emitRest(r.Cancel("the round ended before the rest completed"))
			}
			delete(s.rests, ch.ID)
		}
		piles = append(piles, replication.CharacterPiles{
			CharacterID: ch.ID,
			Hand:        append([]string{}, ch.Hand...),
			DiscardPile: append([]string{}, ch.DiscardPile...),
			LostPile:    append([]string{}, ch.LostPile...),
		})
	}

	for id, deck := range s.characterDecks {
		if deck.NeedsReshuffle() {
			if err := deck.Reshuffle(); err != nil {
				return invariant(err, "failed to reshuffle modifier deck of "+id)
			}
		}
	}
	if s.monsterDeck.NeedsReshuffle() {
		if err := s.monsterDeck.Reshuffle(); err != nil {
			return invariant(err, "failed to reshuffle monster modifier deck")
		}
	}

	s.economies = map[string]*actions.Economy{}
	s.lostPlayed = map[string][]string{}
	s.tracker = nil
	s.phase = replication.PhaseSelection
	s.emit(&replication.RoundEnded{RoundNumber: s.round, Characters: piles})

	slog.Info("Round ended",
		"room_id", s.id,
		"round", s.round,
	)

	// a character that cannot play two cards or rest is out
	for _, ch := range s.characters {
		if ch.IsExhausted || ch.CanSelectCards() || ch.CanRest(s.rules.MinDiscard) {
			continue
		}
		s.exhaust(ch, entities.ExhaustionInsufficientCards)
	}

	if s.checkScenarioEnd() {
		return nil
	}
	s.queueSnapshot()
	return nil
}

// checkScenarioEnd ends the scenario once a side is wiped out
func (s *Session) checkScenarioEnd() bool {
	if s.Ended() {
		return true
	}

	monstersLeft := false
	for _, m := range s.monsters {
		if !m.IsDead {
			monstersLeft = true
			break
		}
	}
	charactersLeft := false
	for _, ch := range s.characters {
		if !ch.IsExhausted {
			charactersLeft = true
			break
		}
	}

	switch {
	case !monstersLeft:
		s.finish(replication.OutcomeVictory)
	case !charactersLeft:
		s.finish(replication.OutcomeDefeat)
	default:
		return false
	}
	return true
}

func (s *Session) finish(outcome replication.Outcome) {
	s.outcome = outcome
	s.phase = replication.PhaseEnded
	s.tracker = nil

	rewards := make([]replication.Reward, 0, len(s.characters))
	for _, ch := range s.characters {
		reward := replication.Reward{CharacterID: ch.ID, PlayerID: ch.PlayerID, Gold: ch.Gold}
		if outcome == replication.OutcomeVictory {
			reward.XP = s.victoryXP
		}
		rewards = append(rewards, reward)
	}

	slog.Info("Scenario ended",
		"room_id", s.id,
		"outcome", outcome,
		"round", s.round,
	)
	s.emit(&replication.ScenarioEnded{Outcome: outcome, RoundNumber: s.round, Rewards: rewards})
	s.queueRewards(rewards)
	s.queueSnapshot()
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
