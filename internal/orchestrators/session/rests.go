package session

import (
	"log/slog"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

func (s *Session) declareLongRest(ch *entities.Character) error {
	if err := s.requireSelectable(ch); err != nil {
		return err
	}
	if ch.SelectedCards != nil {
		return errors.IllegalActionf("%s has already selected cards this round", ch.Name)
	}
	if !ch.CanRest(s.rules.MinDiscard) && ch.CanSelectCards() {
		return errors.IllegalActionf("%s needs at least %d discarded cards to rest", ch.Name, s.rules.MinDiscard)
	}

	r, events := rest.StartLong(ch, s.rules)
	s.track(r)
	s.emitRest(events)
	return s.afterRestChange(ch)
}

func (s *Session) chooseLongRestCard(ch *entities.Character, cardID string) error {
	r, ok := s.rests[ch.ID]
	if !ok || r.Kind() != rest.KindLong || r.Stage() != rest.StageLongSelection {
		return errors.IllegalActionf("%s has no long rest card choice pending", ch.Name)
	}
	if !ch.InDiscard(cardID) {
		return errors.IllegalActionf("card %s is not in %s's discard pile", cardID, ch.Name).WithMeta("card_id", cardID)
	}

	s.emitRest(r.ChooseCard(cardID))
	if r.Stage() == rest.StageDeclared {
		s.emit(&replication.CardsSelected{CharacterID: ch.ID, LongRest: true})
	}
	s.track(r)
	return s.afterRestChange(ch)
}

func (s *Session) startShortRest(ch *entities.Character) error {
	if err := s.requireSelectable(ch); err != nil {
		return err
	}
	if ch.SelectedCards != nil {
		return errors.IllegalActionf("%s has already selected cards this round", ch.Name)
	}
	if !ch.CanRest(s.rules.MinDiscard) && ch.CanSelectCards() {
		return errors.IllegalActionf("%s needs at least %d discarded cards to rest", ch.Name, s.rules.MinDiscard)
	}

	r, events := rest.StartShort(ch, s.rules, s.roller)
	s.track(r)
	s.emitRest(events)
	return s.afterRestChange(ch)
}

func (s *Session) restDecision(ch *entities.Character, decision replication.RestDecisionKind) error {
	r, ok := s.rests[ch.ID]
	if !ok || r.Kind() != rest.KindShort || r.Stage() != rest.StageAwaitingDecision {
		return errors.IllegalActionf("%s has no short rest decision pending", ch.Name)
	}

	switch decision {
	case replication.RestAccept:
		s.emitRest(r.Accept())
	case replication.RestReroll:
		s.emitRest(r.Reroll())
	default:
		return errors.ProtocolViolationf("unknown rest decision %q", decision)
	}
	s.track(r)
	return s.afterRestChange(ch)
}

// completeLongRest applies a declared long rest when its turn arrives
func (s *Session) completeLongRest(ch *entities.Character) {
	r, ok := s.rests[ch.ID]
	if !ok {
		slog.Warn("Long rest turn without a declared rest",
			"room_id", s.id,
			"character_id", ch.ID,
		)
		ch.LongResting = false
		return
	}
	s.emitRest(r.Complete())
	delete(s.rests, ch.ID)
}

// track keeps a rest while it is in progress. Declared long rests stay
// until the character's turn completes them.
func (s *Session) track(r *rest.Rest) {
	if r.Done() {
		delete(s.rests, r.CharacterID())
		return
	}
	s.rests[r.CharacterID()] = r
}

func (s *Session) afterRestChange(ch *entities.Character) error {
	if ch.IsExhausted {
		s.dropSummons(ch.ID)
		s.grid.Remove(ch.Hex)
		if s.checkScenarioEnd() {
			return nil
		}
	}
	return s.maybeStartRound()
}

func (s *Session) emitRest(events []rest.Event) {
	for _, ev := range events {
		s.emit(&replication.RestEvent{Event: ev})
	}
}

// exhaust takes a character out of play and reports the reason
func (s *Session) exhaust(ch *entities.Character, reason entities.ExhaustionReason) {
	if r, ok := s.rests[ch.ID]; ok {
		delete(s.rests, ch.ID)
		if events := r.Exhaust(reason); len(events) > 0 {
			s.emitRest(events)
		} else {
			s.emitRest([]rest.Event{rest.Exhaustion(ch, reason)})
		}
	} else {
		s.emitRest([]rest.Event{rest.Exhaustion(ch, reason)})
	}
	delete(s.economies, ch.ID)
	s.dropSummons(ch.ID)
	s.grid.Remove(ch.Hex)

	slog.Info("Character exhausted",
		"room_id", s.id,
		"character_id", ch.ID,
		"reason", reason,
	)
}

// dropSummons removes the summons of an exhausted owner
func (s *Session) dropSummons(ownerID string) {
	for _, sm := range s.summons {
		if sm.OwnerID == ownerID && !sm.IsDead {
			sm.MarkDefeated()
			s.grid.Remove(sm.Hex)
			s.emit(&replication.SummonRemoved{SummonID: sm.ID, OwnerID: ownerID})
		}
	}
}
