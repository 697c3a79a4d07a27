package replication

import (
	"github.com/KirkDiggler/hexhaven-api/internal/engine/actions"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/initiative"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
)

// Phase of a room's scenario
type Phase string

// Phases
const (
	// PhaseSelection waits for every character to pick cards or rest
	PhaseSelection Phase = "selection"
	PhaseRound     Phase = "round"
	PhaseEnded     Phase = "ended"
)

// LogEntry is one line of the bounded game log
type LogEntry struct {
	Seq     int64  `json:"seq"`
	Round   int    `json:"round"`
	Message string `json:"message"`
}

// Snapshot is the complete authoritative state of a room. Characters carry
// their piles and, mid-round, their selected cards.
type Snapshot struct {
	RoomID          string                `json:"roomId"`
	ScenarioID      string                `json:"scenarioId"`
	ScenarioName    string                `json:"scenarioName"`
	Phase           Phase                 `json:"phase"`
	RoundNumber     int                   `json:"roundNumber"`
	Seq             int64                 `json:"seq"`
	Tiles           []entities.MapTile    `json:"tiles"`
	Characters      []*entities.Character `json:"characters"`
	Monsters        []*entities.Monster   `json:"monsters"`
	Summons         []*entities.Summon    `json:"summons"`
	Loot            []entities.LootToken  `json:"loot"`
	TurnOrder       []initiative.Entry    `json:"turnOrder"`
	TurnIndex       int                   `json:"turnIndex"`
	CurrentEntityID string                `json:"currentEntityId,omitempty"`
	TurnActionState *actions.State        `json:"turnActionState,omitempty"`
	Log             []LogEntry            `json:"log"`
	Outcome         Outcome               `json:"outcome,omitempty"`
}

// Character returns the character with id
func (s *Snapshot) Character(id string) (*entities.Character, bool) {
	for _, c := range s.Characters {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// CharacterForPlayer returns the character controlled by playerID
func (s *Snapshot) CharacterForPlayer(playerID string) (*entities.Character, bool) {
	for _, c := range s.Characters {
		if c.PlayerID == playerID {
			return c, true
		}
	}
	return nil, false
}
