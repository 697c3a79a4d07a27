// Package actions enforces the two-card action economy: a character's first
// action is any half of either selected card and the second must be the
// opposite half of the other card.
package actions

import (
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// Stage is the economy's state. It only moves forward.
type Stage string

// Stages
const (
	StageFresh     Stage = "fresh"
	StageFirstUsed Stage = "first_used"
	StageComplete  Stage = "complete"
)

var transitions = map[Stage]Stage{
	StageFresh:     StageFirstUsed,
	StageFirstUsed: StageComplete,
}

// Slot is one half of one card
type Slot struct {
	CardID   string            `json:"cardId"`
	Position entities.Position `json:"position"`
}

// State is the serializable turn action state
type State struct {
	AvailableActions []Slot `json:"availableActions"`
	FirstAction      *Slot  `json:"firstAction,omitempty"`
	SecondAction     *Slot  `json:"secondAction,omitempty"`
}

// Economy tracks one character's turn
type Economy struct {
	card1     string
	card2     string
	stage     Stage
	available []Slot
	first     *Slot
	second    *Slot
}

// New starts a turn with the two selected cards
func New(card1, card2 string) *Economy {
	return &Economy{
		card1: card1,
		card2: card2,
		stage: StageFresh,
		available: []Slot{
			{CardID: card1, Position: entities.PositionTop},
			{CardID: card1, Position: entities.PositionBottom},
			{CardID: card2, Position: entities.PositionTop},
			{CardID: card2, Position: entities.PositionBottom},
		},
	}
}

// Restore rebuilds an economy from a serialized state
func Restore(card1, card2 string, state State) *Economy {
	e := New(card1, card2)
	e.available = append([]Slot{}, state.AvailableActions...)
	if state.FirstAction != nil {
		first := *state.FirstAction
		e.first = &first
		e.stage = StageFirstUsed
	}
	if state.SecondAction != nil {
		second := *state.SecondAction
		e.second = &second
		e.stage = StageComplete
	}
	return e
}

// Check reports whether the slot may be used now without changing state
func (e *Economy) Check(cardID string, position entities.Position) error {
	if e.stage == StageComplete {
		return errors.IllegalAction("both actions have already been used this turn")
	}
	for _, slot := range e.available {
		if slot.CardID == cardID && slot.Position == position {
			return nil
		}
	}
	return errors.IllegalActionf("%s action of card %s is not available", position, cardID).
		WithMeta("card_id", cardID).
		WithMeta("position", string(position))
}

// Select consumes the slot. The first selection narrows the available set
// to the opposite half of the other card; the second empties it.
func (e *Economy) Select(cardID string, position entities.Position) error {
	if err := e.Check(cardID, position); err != nil {
		return err
	}

	slot := Slot{CardID: cardID, Position: position}
	next := transitions[e.stage]
	switch next {
	case StageFirstUsed:
		e.first = &slot
		other := e.card1
		if cardID == e.card1 {
			other = e.card2
		}
		e.available = []Slot{{CardID: other, Position: position.Opposite()}}
	case StageComplete:
		e.second = &slot
		e.available = []Slot{}
	default:
		return errors.InvariantViolationf("no transition from stage %s", e.stage)
	}
	e.stage = next
	return nil
}

// Stage returns the current stage
func (e *Economy) Stage() Stage {
	return e.stage
}

// Done reports whether both actions are used
func (e *Economy) Done() bool {
	return e.stage == StageComplete
}

// Available returns a copy of the open slots
func (e *Economy) Available() []Slot {
	return append([]Slot{}, e.available...)
}

// Cards returns the two cards in play
func (e *Economy) Cards() (string, string) {
	return e.card1, e.card2
}

// Used returns the slots consumed so far in order
func (e *Economy) Used() []Slot {
	var out []Slot
	if e.first != nil {
		out = append(out, *e.first)
	}
	if e.second != nil {
		out = append(out, *e.second)
	}
	return out
}

// State returns a serializable copy
func (e *Economy) State() State {
	st := State{AvailableActions: e.Available()}
	if e.first != nil {
		first := *e.first
		st.FirstAction = &first
	}
	if e.second != nil {
		second := *e.second
		st.SecondAction = &second
	}
	return st
}
