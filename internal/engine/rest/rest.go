// Package rest implements the short and long rest state machine for one
// character.
//
// Short rest:
//
//	rest-started -> card-selected -> awaiting-decision -> rest-complete
//	                     ^                 |
//	                     +- damage-taken <-+ (reroll)
//
// Long rest:
//
//	rest-started -> long-selection -> rest-declared -> rest-complete
//
// Any stage may move to exhaustion or error. Both are terminal.
package rest

import (
	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// Stage of a rest
type Stage string

// Stages
const (
	StageStarted          Stage = "rest-started"
	StageLongSelection    Stage = "long-selection"
	StageCardSelected     Stage = "card-selected"
	StageAwaitingDecision Stage = "awaiting-decision"
	StageDamageTaken      Stage = "damage-taken"
	StageDeclared         Stage = "rest-declared"
	StageComplete         Stage = "rest-complete"
	StageExhaustion       Stage = "exhaustion"
	StageError            Stage = "error"
)

// Kind of rest
type Kind string

// Rest kinds
const (
	KindShort Kind = "short"
	KindLong  Kind = "long"
)

// Terminal reports whether no transition leaves s
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageExhaustion || s == StageError
}

// transitions lists the non-terminal moves; exhaustion and error are
// reachable from every stage and checked separately
var transitions = map[Stage][]Stage{
	StageStarted:          {StageCardSelected, StageLongSelection},
	StageCardSelected:     {StageAwaitingDecision},
	StageAwaitingDecision: {StageComplete, StageDamageTaken},
	StageDamageTaken:      {StageCardSelected},
	StageLongSelection:    {StageDeclared},
	StageDeclared:         {StageComplete},
}

// CanTransition reports whether from -> to is in the table
func CanTransition(from, to Stage) bool {
	if from.Terminal() {
		return false
	}
	if to == StageExhaustion || to == StageError {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Rules holds the rest numbers, which are content rather than logic
type Rules struct {
	ShortRestHeal int
	LongRestHeal  int
	RerollDamage  int
	MinDiscard    int

	// LongRestInitiative is the initiative a declared long rest acts on
	LongRestInitiative int
}

// DefaultRules are the standard rest numbers
func DefaultRules() Rules {
	return Rules{
		ShortRestHeal: 1,
		LongRestHeal:  2,
		RerollDamage:  1,
		MinDiscard:    2,

		LongRestInitiative: 99,
	}
}

// Event is emitted on every stage entered
type Event struct {
	Type        Stage                     `json:"type"`
	CharacterID string                    `json:"characterId"`
	RestType    Kind                      `json:"restType,omitempty"`
	CardID      string                    `json:"cardId,omitempty"`
	Choices     []string                  `json:"choices,omitempty"`
	Damage      int                       `json:"damage,omitempty"`
	Healed      int                       `json:"healed,omitempty"`
	Health      int                       `json:"health"`
	Initiative  int                       `json:"initiative,omitempty"`
	Reason      entities.ExhaustionReason `json:"reason,omitempty"`
	Error       string                    `json:"error,omitempty"`
	Hand        []string                  `json:"hand"`
	DiscardPile []string                  `json:"discardPile"`
	LostPile    []string                  `json:"lostPile"`
}

// Rest is one rest in progress
type Rest struct {
	character *entities.Character
	kind      Kind
	stage     Stage
	// candidate is the card a short rest will lose
	candidate string
	// chosen is the card a long rest will lose
	chosen string
	rules  Rules
	roller dice.Roller
	events []Event
}

// Stage returns the current stage
func (r *Rest) Stage() Stage { return r.stage }

// Kind returns short or long
func (r *Rest) Kind() Kind { return r.kind }

// Done reports whether the rest reached a terminal stage
func (r *Rest) Done() bool { return r.stage.Terminal() }

// CharacterID returns who is resting
func (r *Rest) CharacterID() string { return r.character.ID }

// Candidate returns the card at stake in a short rest
func (r *Rest) Candidate() string { return r.candidate }

// Chosen returns the card a long rest will lose
func (r *Rest) Chosen() string { return r.chosen }

// StartShort begins a short rest and draws the first loss candidate
func StartShort(ch *entities.Character, rules Rules, roller dice.Roller) (*Rest, []Event) {
	r := &Rest{character: ch, kind: KindShort, stage: StageStarted, rules: rules, roller: roller}
	r.emit(Event{Type: StageStarted})
	if !r.checkCards() {
		return r, r.flush()
	}
	r.drawCandidate("")
	return r, r.flush()
}

// StartLong begins a long rest and offers the discard pile as choices
func StartLong(ch *entities.Character, rules Rules) (*Rest, []Event) {
	r := &Rest{character: ch, kind: KindLong, stage: StageStarted, rules: rules}
	r.emit(Event{Type: StageStarted})
	if !r.checkCards() {
		return r, r.flush()
	}
	r.to(StageLongSelection, Event{Choices: append([]string{}, ch.DiscardPile...)})
	return r, r.flush()
}

// Accept ends a short rest losing the candidate card
func (r *Rest) Accept() []Event {
	if r.kind != KindShort || r.stage != StageAwaitingDecision {
		return r.fail("no short rest decision is pending")
	}

	ch := r.character
	entities.MoveCard(&ch.DiscardPile, &ch.LostPile, r.candidate)
	healed := r.recover(r.rules.ShortRestHeal)
	r.to(StageComplete, Event{CardID: r.candidate, Healed: healed})
	return r.flush()
}

// Reroll takes reroll damage to keep the candidate and draws another card.
// Damage that exhausts the character ends the rest.
func (r *Rest) Reroll() []Event {
	if r.kind != KindShort || r.stage != StageAwaitingDecision {
		return r.fail("no short rest decision is pending")
	}

	kept := r.candidate
	_, defeated := combat.ApplyDamage(r.character, r.rules.RerollDamage)
	r.to(StageDamageTaken, Event{CardID: kept, Damage: r.rules.RerollDamage})
	if defeated {
		r.exhaust(entities.ExhaustionDamage)
		return r.flush()
	}
	r.drawCandidate(kept)
	return r.flush()
}

// ChooseCard picks the discard card a long rest will lose and declares the
// rest for the round
func (r *Rest) ChooseCard(cardID string) []Event {
	if r.kind != KindLong || r.stage != StageLongSelection {
		return r.fail("no long rest card choice is pending")
	}
	if !r.character.InDiscard(cardID) {
		return r.fail("card " + cardID + " is not in the discard pile")
	}

	r.chosen = cardID
	r.character.LongResting = true
	r.to(StageDeclared, Event{CardID: cardID, Initiative: r.rules.LongRestInitiative})
	return r.flush()
}

// Complete applies a declared long rest when the character's turn arrives
func (r *Rest) Complete() []Event {
	if r.kind != KindLong || r.stage != StageDeclared {
		return r.fail("long rest has not been declared")
	}

	ch := r.character
	entities.MoveCard(&ch.DiscardPile, &ch.LostPile, r.chosen)
	ch.LongResting = false
	healed := r.recover(r.rules.LongRestHeal)
	r.to(StageComplete, Event{CardID: r.chosen, Healed: healed})
	return r.flush()
}

// Exhaust ends the rest because the character is out of play
func (r *Rest) Exhaust(reason entities.ExhaustionReason) []Event {
	if r.Done() {
		return nil
	}
	r.exhaust(reason)
	return r.flush()
}

// Cancel ends the rest with an error, for instance when the round it was
// declared for is abandoned
func (r *Rest) Cancel(reason string) []Event {
	return r.fail(reason)
}

// Exhaustion reports an exhaustion outside of any rest
func Exhaustion(ch *entities.Character, reason entities.ExhaustionReason) Event {
	ch.Exhaust(reason)
	r := &Rest{character: ch, stage: StageExhaustion}
	return r.stamp(Event{Type: StageExhaustion, Reason: reason})
}

// checkCards exhausts when neither pile can sustain play and errors when
// the discard pile is too small to rest
func (r *Rest) checkCards() bool {
	ch := r.character
	if ch.IsExhausted {
		r.fail("character is exhausted")
		return false
	}
	if ch.CanRest(r.rules.MinDiscard) {
		return true
	}
	if !ch.CanSelectCards() {
		r.exhaust(entities.ExhaustionInsufficientCards)
		return false
	}
	r.fail("not enough cards in the discard pile to rest")
	return false
}

// drawCandidate picks a random discard card other than exclude
func (r *Rest) drawCandidate(exclude string) {
	var pool []string
	for _, id := range r.character.DiscardPile {
		if id != exclude {
			pool = append(pool, id)
		}
	}
	if len(pool) == 0 {
		pool = append(pool, exclude)
	}

	idx := 0
	if len(pool) > 1 {
		roll, err := r.roller.Roll(len(pool))
		if err != nil || roll < 1 || roll > len(pool) {
			r.fail("failed to draw a card from the discard pile")
			return
		}
		idx = roll - 1
	}
	r.candidate = pool[idx]
	r.to(StageCardSelected, Event{CardID: r.candidate})
	r.to(StageAwaitingDecision, Event{CardID: r.candidate})
}

// recover returns the discard pile to hand and heals
func (r *Rest) recover(amount int) int {
	ch := r.character
	ch.Hand = append(ch.Hand, ch.DiscardPile...)
	ch.DiscardPile = []string{}
	before := ch.Health
	ch.SetHealth(ch.Health + amount)
	return ch.Health - before
}

func (r *Rest) exhaust(reason entities.ExhaustionReason) {
	r.character.Exhaust(reason)
	r.to(StageExhaustion, Event{Reason: reason})
}

func (r *Rest) fail(msg string) []Event {
	if r.Done() {
		return []Event{r.stamp(Event{Type: StageError, Error: msg})}
	}
	r.character.LongResting = false
	r.to(StageError, Event{Error: msg})
	return r.flush()
}

func (r *Rest) to(next Stage, ev Event) {
	if !CanTransition(r.stage, next) {
		next, ev = StageError, Event{Error: "invalid rest transition from " + string(r.stage) + " to " + string(next)}
	}
	r.stage = next
	ev.Type = next
	r.emit(ev)
}

func (r *Rest) emit(ev Event) {
	r.events = append(r.events, r.stamp(ev))
}

func (r *Rest) stamp(ev Event) Event {
	ch := r.character
	ev.CharacterID = ch.ID
	ev.RestType = r.kind
	ev.Health = ch.Health
	ev.Hand = append([]string{}, ch.Hand...)
	ev.DiscardPile = append([]string{}, ch.DiscardPile...)
	ev.LostPile = append([]string{}, ch.LostPile...)
	return ev
}

func (r *Rest) flush() []Event {
	out := r.events
	r.events = nil
	return out
}

// Validate checks the rules are in a playable range
func (rules Rules) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRange("ShortRestHeal", rules.ShortRestHeal, 0, 20, vb)
	errors.ValidateRange("LongRestHeal", rules.LongRestHeal, 0, 20, vb)
	errors.ValidateRange("RerollDamage", rules.RerollDamage, 0, 20, vb)
	errors.ValidateRange("MinDiscard", rules.MinDiscard, 1, 10, vb)
	errors.ValidateRange("LongRestInitiative", rules.LongRestInitiative, 1, 99, vb)
	return vb.Build()
}
