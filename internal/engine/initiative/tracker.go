package initiative

import (
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// Tracker walks an immutable round order
type Tracker struct {
	order []Entry
	// index of the current entry; -1 before the first Advance
	index int
}

// NewTracker starts a round over order
func NewTracker(order []Entry) *Tracker {
	return &Tracker{
		order: append([]Entry(nil), order...),
		index: -1,
	}
}

// Resume rebuilds a tracker positioned at index
func Resume(order []Entry, index int) (*Tracker, error) {
	if index < -1 || index >= len(order) {
		return nil, errors.InvariantViolationf("turn index %d outside order of %d", index, len(order))
	}
	t := NewTracker(order)
	t.index = index
	return t, nil
}

// Advance moves to the next entry for which isLive holds. It returns false
// once the end of the order is reached, which completes the round.
func (t *Tracker) Advance(isLive func(entityID string) bool) (Entry, bool) {
	for t.index+1 < len(t.order) {
		t.index++
		e := t.order[t.index]
		if isLive == nil || isLive(e.EntityID) {
			return e, true
		}
	}
	t.index = len(t.order)
	return Entry{}, false
}

// Current returns the entry whose turn it is
func (t *Tracker) Current() (Entry, bool) {
	if t.index < 0 || t.index >= len(t.order) {
		return Entry{}, false
	}
	return t.order[t.index], true
}

// Index is the position of the current entry
func (t *Tracker) Index() int {
	return t.index
}

// Complete reports whether the round has been walked to the end
func (t *Tracker) Complete() bool {
	return t.index >= len(t.order)
}

// Order returns a copy of the round order
func (t *Tracker) Order() []Entry {
	return append([]Entry(nil), t.order...)
}

// Position returns where id sits in the order, or -1
func (t *Tracker) Position(id string) int {
	for i, e := range t.order {
		if e.EntityID == id {
			return i
		}
	}
	return -1
}
