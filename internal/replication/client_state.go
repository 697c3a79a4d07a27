package replication

import (
	"github.com/KirkDiggler/hexhaven-api/internal/engine/actions"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/initiative"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// Targeting is a pending local target choice. It never leaves the client.
type Targeting struct {
	CardID     string            `json:"cardId"`
	Position   entities.Position `json:"position"`
	Candidates []string          `json:"candidates,omitempty"`
	Hexes      []hex.Hex         `json:"hexes,omitempty"`
}

// ClientState is a client's view of a room rebuilt from game_started and
// the events after it. A client that joins late or reconnects converges on
// the server state from the snapshot alone.
type ClientState struct {
	RoomID          string
	Phase           Phase
	RoundNumber     int
	LastSeq         int64
	Tiles           []entities.MapTile
	Characters      map[string]*entities.Character
	Monsters        map[string]*entities.Monster
	Summons         map[string]*entities.Summon
	Loot            map[string]entities.LootToken
	TurnOrder       []initiative.Entry
	TurnIndex       int
	CurrentEntityID string
	TurnActionState *actions.State
	Log             []LogEntry
	Outcome         Outcome
	Disconnected    map[string]bool
	LastError       *Error

	// CharacterCardSelections holds the cards chosen for the coming round
	CharacterCardSelections map[string]entities.SelectedCards
	ShowCardSelection       bool
	Targeting               *Targeting
}

// NewClientState returns an empty state awaiting game_started
func NewClientState() *ClientState {
	return &ClientState{
		Characters:              map[string]*entities.Character{},
		Monsters:                map[string]*entities.Monster{},
		Summons:                 map[string]*entities.Summon{},
		Loot:                    map[string]entities.LootToken{},
		Disconnected:            map[string]bool{},
		CharacterCardSelections: map[string]entities.SelectedCards{},
	}
}

// Hand returns a copy of a character's hand
func (c *ClientState) Hand(characterID string) []string {
	ch, ok := c.Characters[characterID]
	if !ok {
		return nil
	}
	return append([]string{}, ch.Hand...)
}

// BeginTargeting opens a local target choice
func (c *ClientState) BeginTargeting(t Targeting) {
	c.Targeting = &t
}

// CancelTargeting drops a pending target choice. The server never sees it.
func (c *ClientState) CancelTargeting() {
	c.Targeting = nil
}

// Apply folds one event into the state. Sequenced events at or below the
// last applied seq are duplicates from an at-least-once channel and are
// skipped; game_started always resets.
func (c *ClientState) Apply(env Envelope) error {
	if env.Payload == nil {
		return errors.ProtocolViolationf("%s event has no payload", env.Type)
	}
	if _, reset := env.Payload.(*GameStarted); !reset && env.Seq != 0 && env.Seq <= c.LastSeq {
		return nil
	}

	switch ev := env.Payload.(type) {
	case *GameStarted:
		c.load(&ev.Snapshot)
	case *RoundStarted:
		c.RoundNumber = ev.RoundNumber
		c.Phase = PhaseRound
		c.TurnOrder = append([]initiative.Entry(nil), ev.TurnOrder...)
		c.TurnIndex = -1
		c.resetSelection(false)
	case *RoundEnded:
		for _, piles := range ev.Characters {
			if ch, ok := c.Characters[piles.CharacterID]; ok {
				ch.Hand = append([]string{}, piles.Hand...)
				ch.DiscardPile = append([]string{}, piles.DiscardPile...)
				ch.LostPile = append([]string{}, piles.LostPile...)
				ch.SelectedCards = nil
			}
		}
		c.Phase = PhaseSelection
		c.CurrentEntityID = ""
		c.TurnActionState = nil
		c.resetSelection(true)
	case *TurnStarted:
		c.TurnIndex = ev.TurnIndex
		c.CurrentEntityID = ev.EntityID
		c.TurnActionState = ev.TurnActionState
		c.Targeting = nil
	case *TurnEnded:
		if cs := c.conditionsOf(ev.EntityID); cs != nil {
			*cs = ev.Conditions.Clone()
		}
	case *CharacterMoved:
		if ch, ok := c.Characters[ev.CharacterID]; ok {
			ch.Hex = ev.ToHex
		}
	case *AttackResolved:
		c.applyAttack(ev)
	case *MonsterActivated:
		if m, ok := c.Monsters[ev.MonsterID]; ok {
			m.Hex = ev.ToHex
		}
		if ev.Attack != nil {
			c.applyAttack(ev.Attack)
		}
	case *MonsterDied:
		if m, ok := c.Monsters[ev.MonsterID]; ok {
			m.IsDead = true
			m.Health = 0
		}
	case *LootSpawned:
		c.Loot[ev.Loot.ID] = ev.Loot
	case *LootCollected:
		for _, id := range ev.LootIDs {
			delete(c.Loot, id)
		}
		if ch, ok := c.Characters[ev.CharacterID]; ok {
			ch.Gold = ev.Gold
		}
	case *RestEvent:
		c.applyRest(&ev.Event)
	case *CardActionExecuted:
		if ev.Success {
			c.TurnActionState = ev.TurnActionState
			c.Targeting = nil
		}
	case *CardsSelected:
		if ch, ok := c.Characters[ev.CharacterID]; ok && ev.SelectedCards != nil {
			sel := *ev.SelectedCards
			ch.SelectedCards = &sel
			c.CharacterCardSelections[ev.CharacterID] = sel
		}
	case *HealResolved:
		if target := c.combatant(ev.TargetID); target != nil {
			target.SetHealth(ev.TargetHealth)
			*target.ConditionSet() = ev.TargetConditions.Clone()
		}
	case *SummonPlaced:
		summon := ev.Summon
		c.Summons[summon.ID] = &summon
	case *SummonRemoved:
		if sm, ok := c.Summons[ev.SummonID]; ok {
			sm.MarkDefeated()
		}
	case *ConditionDamage:
		if target := c.combatant(ev.EntityID); target != nil {
			target.SetHealth(ev.Health)
			if ev.Health == 0 {
				c.defeat(target)
			}
		}
	case *ScenarioEnded:
		c.Phase = PhaseEnded
		c.Outcome = ev.Outcome
		c.ShowCardSelection = false
		c.Targeting = nil
	case *PlayerDisconnected:
		c.Disconnected[ev.PlayerID] = true
	case *PersistenceFailed:
		// persistence is best effort and leaves game state alone
	case *Error:
		c.LastError = ev
	default:
		return errors.ProtocolViolationf("unhandled event type %s", env.Type)
	}

	if env.Seq > c.LastSeq {
		c.LastSeq = env.Seq
	}
	return nil
}

func (c *ClientState) load(s *Snapshot) {
	fresh := NewClientState()
	fresh.RoomID = s.RoomID
	fresh.Phase = s.Phase
	fresh.RoundNumber = s.RoundNumber
	fresh.LastSeq = s.Seq
	fresh.Tiles = append([]entities.MapTile(nil), s.Tiles...)
	fresh.TurnOrder = append([]initiative.Entry(nil), s.TurnOrder...)
	fresh.TurnIndex = s.TurnIndex
	fresh.CurrentEntityID = s.CurrentEntityID
	fresh.TurnActionState = s.TurnActionState
	fresh.Log = append([]LogEntry(nil), s.Log...)
	fresh.Outcome = s.Outcome

	for _, ch := range s.Characters {
		clone := ch.Clone()
		fresh.Characters[clone.ID] = clone
		if clone.SelectedCards != nil {
			fresh.CharacterCardSelections[clone.ID] = *clone.SelectedCards
		}
	}
	for _, m := range s.Monsters {
		fresh.Monsters[m.ID] = m.Clone()
	}
	for _, sm := range s.Summons {
		fresh.Summons[sm.ID] = sm.Clone()
	}
	for _, l := range s.Loot {
		fresh.Loot[l.ID] = l
	}
	fresh.ShowCardSelection = s.Phase == PhaseSelection

	// keep what the user is doing locally across a rejoin
	fresh.Disconnected = c.Disconnected
	if fresh.Disconnected == nil {
		fresh.Disconnected = map[string]bool{}
	}
	*c = *fresh
}

// resetSelection clears per-round selection UI state
func (c *ClientState) resetSelection(show bool) {
	c.CharacterCardSelections = map[string]entities.SelectedCards{}
	c.ShowCardSelection = show
	c.Targeting = nil
}

func (c *ClientState) applyAttack(ev *AttackResolved) {
	target := c.combatant(ev.TargetID)
	if target == nil {
		return
	}
	target.SetHealth(ev.TargetHealth)
	*target.ConditionSet() = ev.TargetConditions.Clone()
	if ev.TargetHealth == 0 {
		c.defeat(target)
	}
}

func (c *ClientState) applyRest(ev *rest.Event) {
	ch, ok := c.Characters[ev.CharacterID]
	if !ok {
		return
	}
	ch.Health = ev.Health
	ch.Hand = append([]string{}, ev.Hand...)
	ch.DiscardPile = append([]string{}, ev.DiscardPile...)
	ch.LostPile = append([]string{}, ev.LostPile...)
	switch ev.Type {
	case rest.StageDeclared:
		ch.LongResting = true
	case rest.StageComplete, rest.StageError:
		ch.LongResting = false
	case rest.StageExhaustion:
		ch.Exhaust(ev.Reason)
		delete(c.CharacterCardSelections, ch.ID)
	}
}

// defeat mirrors the server: monsters and summons die, characters are
// marked exhausted by the rest-event that follows
func (c *ClientState) defeat(target entities.Combatant) {
	if target.EntityType() != entities.EntityTypeCharacter {
		target.MarkDefeated()
	}
}

func (c *ClientState) combatant(id string) entities.Combatant {
	if ch, ok := c.Characters[id]; ok {
		return ch
	}
	if m, ok := c.Monsters[id]; ok {
		return m
	}
	if s, ok := c.Summons[id]; ok {
		return s
	}
	return nil
}

func (c *ClientState) conditionsOf(id string) *entities.Conditions {
	if target := c.combatant(id); target != nil {
		return target.ConditionSet()
	}
	return nil
}
