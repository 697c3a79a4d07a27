package entities

import (
	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// ClassType is a playable character class
type ClassType string

// Character classes
const (
	ClassBrute       ClassType = "brute"
	ClassTinkerer    ClassType = "tinkerer"
	ClassSpellweaver ClassType = "spellweaver"
	ClassScoundrel   ClassType = "scoundrel"
	ClassCragheart   ClassType = "cragheart"
	ClassMindthief   ClassType = "mindthief"
)

// ClassOrder is the fixed tie-break order for characters sharing initiative
var ClassOrder = []ClassType{
	ClassBrute,
	ClassTinkerer,
	ClassSpellweaver,
	ClassScoundrel,
	ClassCragheart,
	ClassMindthief,
}

// Rank returns the position of c in ClassOrder, or len(ClassOrder) for an
// unknown class
func (c ClassType) Rank() int {
	for i, ct := range ClassOrder {
		if ct == c {
			return i
		}
	}
	return len(ClassOrder)
}

// ExhaustionReason records why a character left the scenario
type ExhaustionReason string

// Exhaustion reasons
const (
	ExhaustionDamage            ExhaustionReason = "damage"
	ExhaustionInsufficientCards ExhaustionReason = "insufficient_cards"
)

// SelectedCards are the two cards a character plays this round
type SelectedCards struct {
	Top              string `json:"top"`
	Bottom           string `json:"bottom"`
	InitiativeCardID string `json:"initiativeCardId"`
}

// Contains reports whether cardID is one of the selected cards
func (s *SelectedCards) Contains(cardID string) bool {
	return s != nil && (s.Top == cardID || s.Bottom == cardID)
}

// Other returns the selected card that is not cardID
func (s *SelectedCards) Other(cardID string) string {
	if s.Top == cardID {
		return s.Bottom
	}
	return s.Top
}

// Character is a player-controlled entity
type Character struct {
	ID               string           `json:"id"`
	PlayerID         string           `json:"playerId"`
	Name             string           `json:"name"`
	ClassType        ClassType        `json:"classType"`
	Hex              hex.Hex          `json:"hex"`
	Health           int              `json:"health"`
	MaxHealth        int              `json:"maxHealth"`
	IsExhausted      bool             `json:"isExhausted"`
	ExhaustionReason ExhaustionReason `json:"exhaustionReason,omitempty"`
	AbilityDeckID    string           `json:"abilityDeckId"`
	// Deck is the full ability card id set the piles partition
	Deck          []string       `json:"deck"`
	Hand          []string       `json:"hand"`
	DiscardPile   []string       `json:"discardPile"`
	LostPile      []string       `json:"lostPile"`
	SelectedCards *SelectedCards `json:"selectedCards,omitempty"`
	LongResting   bool           `json:"longResting,omitempty"`
	Conditions    Conditions     `json:"conditions,omitempty"`
	Gold          int            `json:"gold"`
}

var _ core.Entity = (*Character)(nil)

// GetID returns the character id
func (c *Character) GetID() string { return c.ID }

// GetType returns the entity type
func (c *Character) GetType() string { return string(EntityTypeCharacter) }

// EntityType returns the typed entity kind
func (c *Character) EntityType() EntityType { return EntityTypeCharacter }

// GetName returns the display name
func (c *Character) GetName() string { return c.Name }

// GetHex returns the character's position
func (c *Character) GetHex() hex.Hex { return c.Hex }

// GetHealth returns current health
func (c *Character) GetHealth() int { return c.Health }

// GetMaxHealth returns maximum health
func (c *Character) GetMaxHealth() int { return c.MaxHealth }

// SetHealth sets current health, clamped to [0, MaxHealth]
func (c *Character) SetHealth(h int) { c.Health = clampHealth(h, c.MaxHealth) }

// GetShield characters carry no innate shield
func (c *Character) GetShield() int { return 0 }

// IsAlive reports whether the character is still in the scenario
func (c *Character) IsAlive() bool { return !c.IsExhausted }

// ConditionSet exposes the character's conditions
func (c *Character) ConditionSet() *Conditions { return &c.Conditions }

// MarkDefeated exhausts the character by damage
func (c *Character) MarkDefeated() { c.Exhaust(ExhaustionDamage) }

// Exhaust removes the character from play with the given reason. The
// first reason sticks.
func (c *Character) Exhaust(reason ExhaustionReason) {
	if c.IsExhausted {
		return
	}
	c.IsExhausted = true
	c.ExhaustionReason = reason
	c.SelectedCards = nil
	c.LongResting = false
}

// InHand reports whether cardID is in the hand pile
func (c *Character) InHand(cardID string) bool {
	return contains(c.Hand, cardID)
}

// InDiscard reports whether cardID is in the discard pile
func (c *Character) InDiscard(cardID string) bool {
	return contains(c.DiscardPile, cardID)
}

// CanSelectCards reports whether the hand holds two cards to play
func (c *Character) CanSelectCards() bool {
	return len(c.Hand) >= 2
}

// CanRest reports whether the discard pile is large enough to rest
func (c *Character) CanRest(minDiscard int) bool {
	return len(c.DiscardPile) >= minDiscard
}

// MoveCard moves cardID between piles and reports whether it was found
func MoveCard(from, to *[]string, cardID string) bool {
	for i, id := range *from {
		if id == cardID {
			*from = append((*from)[:i], (*from)[i+1:]...)
			*to = append(*to, cardID)
			return true
		}
	}
	return false
}

// ValidatePiles checks that hand, discard and lost partition the deck with
// every id exactly once. It only holds outside an in-flight round.
func (c *Character) ValidatePiles() error {
	deck := make(map[string]bool, len(c.Deck))
	for _, id := range c.Deck {
		deck[id] = true
	}

	seen := make(map[string]string, len(c.Deck))
	piles := []struct {
		name string
		ids  []string
	}{
		{"hand", c.Hand},
		{"discard", c.DiscardPile},
		{"lost", c.LostPile},
	}
	for _, pile := range piles {
		for _, id := range pile.ids {
			if !deck[id] {
				return errors.InvariantViolationf("card %s is not part of deck %s", id, c.AbilityDeckID).
					WithMeta("character_id", c.ID)
			}
			if prev, dup := seen[id]; dup {
				return errors.InvariantViolationf("card %s appears in %s and %s", id, prev, pile.name).
					WithMeta("character_id", c.ID)
			}
			seen[id] = pile.name
		}
	}
	for _, id := range c.Deck {
		if _, ok := seen[id]; !ok {
			return errors.InvariantViolationf("card %s is missing from every pile", id).
				WithMeta("character_id", c.ID)
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand outside the room
func (c *Character) Clone() *Character {
	out := *c
	out.Deck = cloneIDs(c.Deck)
	out.Hand = cloneIDs(c.Hand)
	out.DiscardPile = cloneIDs(c.DiscardPile)
	out.LostPile = cloneIDs(c.LostPile)
	out.Conditions = c.Conditions.Clone()
	if c.SelectedCards != nil {
		sel := *c.SelectedCards
		out.SelectedCards = &sel
	}
	return &out
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return append([]string{}, ids...)
}

func clampHealth(h, maxHealth int) int {
	if h < 0 {
		return 0
	}
	if h > maxHealth {
		return maxHealth
	}
	return h
}
