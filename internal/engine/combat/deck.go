package combat

import (
	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// Source yields attack modifiers. Decks satisfy it; tests substitute
// fixed sequences.
type Source interface {
	Draw() (Modifier, error)
}

// StandardModifiers is the default 20 card attack modifier distribution
func StandardModifiers() []Modifier {
	var cards []Modifier
	for i := 0; i < 6; i++ {
		cards = append(cards, Plus(0))
	}
	for i := 0; i < 5; i++ {
		cards = append(cards, Plus(1), Plus(-1))
	}
	return append(cards, Plus(2), Plus(-2), Null(), Double())
}

// Deck is a shuffled attack modifier deck. The top of the draw pile is the
// end of the slice.
type Deck struct {
	roller         dice.Roller
	cards          []Modifier
	draw           []Modifier
	discard        []Modifier
	needsReshuffle bool
}

// NewDeck builds and shuffles a deck from cards
func NewDeck(roller dice.Roller, cards []Modifier) (*Deck, error) {
	if roller == nil {
		return nil, errors.InvalidArgument("dice roller is required")
	}
	if len(cards) == 0 {
		return nil, errors.InvalidArgument("modifier deck cannot be empty")
	}

	d := &Deck{
		roller: roller,
		cards:  append([]Modifier(nil), cards...),
	}
	if err := d.Reshuffle(); err != nil {
		return nil, err
	}
	return d, nil
}

// Draw takes the top card. An empty draw pile is reshuffled first.
func (d *Deck) Draw() (Modifier, error) {
	if len(d.draw) == 0 {
		if err := d.Reshuffle(); err != nil {
			return Modifier{}, err
		}
	}

	top := d.draw[len(d.draw)-1]
	d.draw = d.draw[:len(d.draw)-1]
	d.discard = append(d.discard, top)
	if top.TriggersReshuffle() {
		d.needsReshuffle = true
	}
	return top, nil
}

// NeedsReshuffle reports whether a null or x2 was drawn since the last shuffle
func (d *Deck) NeedsReshuffle() bool {
	return d.needsReshuffle
}

// Remaining is the size of the draw pile
func (d *Deck) Remaining() int {
	return len(d.draw)
}

// Reshuffle returns every card to the draw pile and shuffles it
func (d *Deck) Reshuffle() error {
	d.draw = append(d.draw[:0], d.cards...)
	d.discard = d.discard[:0]
	d.needsReshuffle = false

	// Fisher-Yates driven by the dice roller so tests can fix the order
	for i := len(d.draw) - 1; i > 0; i-- {
		roll, err := d.roller.Roll(i + 1)
		if err != nil {
			return errors.Wrap(err, "failed to shuffle modifier deck")
		}
		j := roll - 1
		if j < 0 || j > i {
			return errors.Internalf("dice roller returned %d for a d%d", roll, i+1)
		}
		d.draw[i], d.draw[j] = d.draw[j], d.draw[i]
	}
	return nil
}

// Sequence is a Source that replays fixed modifiers, cycling when exhausted
type Sequence struct {
	mods []Modifier
	next int
}

// NewSequence returns a Source that yields mods in order
func NewSequence(mods ...Modifier) *Sequence {
	return &Sequence{mods: mods}
}

// Draw returns the next modifier in the sequence
func (s *Sequence) Draw() (Modifier, error) {
	if len(s.mods) == 0 {
		return Modifier{}, errors.FailedPrecondition("modifier sequence is empty")
	}
	m := s.mods[s.next%len(s.mods)]
	s.next++
	return m, nil
}
