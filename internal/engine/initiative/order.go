// Package initiative computes the per-round turn order and walks it
package initiative

import (
	"sort"

	"github.com/KirkDiggler/hexhaven-api/internal/entities"
)

// LongRestInitiative puts a long-resting character last in the round
const LongRestInitiative = 99

// Entrant is one entity taking part in a round
type Entrant struct {
	EntityID   string
	EntityType entities.EntityType
	Initiative int
	Name       string
	// ClassType breaks ties between characters
	ClassType entities.ClassType
	// Priority breaks ties between monster types, lower first
	Priority int
}

// Entry is one slot of the turn order. TieBreak is carried so Update can
// re-sort without the original entrants.
type Entry struct {
	EntityID   string              `json:"entityId"`
	EntityType entities.EntityType `json:"entityType"`
	Initiative int                 `json:"initiative"`
	Name       string              `json:"name"`
	TieBreak   int                 `json:"-"`
}

// tieBreak sorts characters before monsters, then by class order or type
// priority
func (e Entrant) tieBreak() int {
	if e.EntityType == entities.EntityTypeMonster {
		return 1000 + e.Priority
	}
	return e.ClassType.Rank()
}

// Determine orders entrants by ascending initiative. Ties go to the fixed
// secondary key and then to input order.
func Determine(entrants []Entrant) []Entry {
	order := make([]Entry, 0, len(entrants))
	for _, e := range entrants {
		order = append(order, Entry{
			EntityID:   e.EntityID,
			EntityType: e.EntityType,
			Initiative: e.Initiative,
			Name:       e.Name,
			TieBreak:   e.tieBreak(),
		})
	}
	sortEntries(order)
	return order
}

// Update recomputes the order for a new round from the previous entries
// and the new initiative values. Entities missing from initiatives keep
// their previous value.
func Update(previous []Entry, initiatives map[string]int) []Entry {
	order := make([]Entry, len(previous))
	copy(order, previous)
	for i := range order {
		if v, ok := initiatives[order[i].EntityID]; ok {
			order[i].Initiative = v
		}
	}
	sortEntries(order)
	return order
}

func sortEntries(order []Entry) {
	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Initiative != order[j].Initiative {
			return order[i].Initiative < order[j].Initiative
		}
		return order[i].TieBreak < order[j].TieBreak
	})
}
