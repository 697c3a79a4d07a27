// Package content loads the scenario, class and monster data shipped with
// the server and turns a scenario plus a set of players into the starting
// state of a room.
package content

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"

	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

//go:embed data/*.json
var embedded embed.FS

// MaxPlayers is the largest party a scenario supports
const MaxPlayers = 4

// Class is a playable class and its ability deck
type Class struct {
	ClassType entities.ClassType     `json:"classType"`
	Name      string                 `json:"name"`
	Health    int                    `json:"health"`
	Cards     []entities.AbilityCard `json:"cards"`
}

// Spawn places one monster when the party is large enough
type Spawn struct {
	MonsterType string  `json:"monsterType"`
	Hex         hex.Hex `json:"hex"`
	Elite       bool    `json:"elite,omitempty"`
	// MinPlayers is the smallest party the monster appears for
	MinPlayers int `json:"minPlayers,omitempty"`
}

// LootPlacement is a loot token on the map at scenario start
type LootPlacement struct {
	Hex   hex.Hex `json:"hex"`
	Value int     `json:"value"`
}

// Scenario is a hexagonal map of the given radius centred on (0, 0)
type Scenario struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Radius      int             `json:"radius"`
	Obstacles   []hex.Hex       `json:"obstacles"`
	Hazards     []hex.Hex       `json:"hazards"`
	Starts      []hex.Hex       `json:"starts"`
	Spawns      []Spawn         `json:"spawns"`
	Loot        []LootPlacement `json:"loot"`
	VictoryXP   int             `json:"victoryXp"`
	LootValue   int             `json:"lootValue"`
}

// Tiles lists every hex of the map with its terrain
func (s *Scenario) Tiles() []entities.MapTile {
	terrain := make(map[hex.Hex]entities.Terrain)
	for _, h := range s.Obstacles {
		terrain[h] = entities.TerrainObstacle
	}
	for _, h := range s.Hazards {
		terrain[h] = entities.TerrainHazard
	}

	all := hex.RingRange(hex.New(0, 0), s.Radius, nil)
	tiles := make([]entities.MapTile, 0, len(all))
	for _, h := range all {
		t, ok := terrain[h]
		if !ok {
			t = entities.TerrainOpen
		}
		tiles = append(tiles, entities.MapTile{Hex: h, Terrain: t})
	}
	return tiles
}

func (s *Scenario) onMap(h hex.Hex) bool {
	return hex.Distance(hex.New(0, 0), h) <= s.Radius
}

// Library is the loaded content. It is read-only after Load.
type Library struct {
	scenarios    map[string]*Scenario
	classes      map[entities.ClassType]*Class
	cards        map[string]entities.AbilityCard
	monsterTypes map[string]entities.MonsterType
}

// Load reads the embedded content
func Load() (*Library, error) {
	return LoadFS(embedded)
}

// LoadFS reads content from fsys, which must hold data/classes.json,
// data/monsters.json and data/scenarios.json
func LoadFS(fsys fs.FS) (*Library, error) {
	var classes struct {
		Classes []*Class `json:"classes"`
	}
	var monsters struct {
		MonsterTypes []entities.MonsterType `json:"monsterTypes"`
	}
	var scenarios struct {
		Scenarios []*Scenario `json:"scenarios"`
	}
	for name, dst := range map[string]any{
		"data/classes.json":   &classes,
		"data/monsters.json":  &monsters,
		"data/scenarios.json": &scenarios,
	} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read %s", name)
		}
		if err := json.Unmarshal(data, dst); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", name)
		}
	}

	lib := &Library{
		scenarios:    make(map[string]*Scenario),
		classes:      make(map[entities.ClassType]*Class),
		cards:        make(map[string]entities.AbilityCard),
		monsterTypes: make(map[string]entities.MonsterType),
	}
	for _, c := range classes.Classes {
		if err := lib.addClass(c); err != nil {
			return nil, err
		}
	}
	for _, mt := range monsters.MonsterTypes {
		if mt.ID == "" || mt.Normal.Health <= 0 || mt.Elite.Health <= 0 {
			return nil, errors.InvalidArgumentf("monster type %q needs an id and positive health", mt.ID)
		}
		if _, dup := lib.monsterTypes[mt.ID]; dup {
			return nil, errors.AlreadyExistsf("monster type %s is defined twice", mt.ID)
		}
		lib.monsterTypes[mt.ID] = mt
	}
	for _, sc := range scenarios.Scenarios {
		if err := lib.addScenario(sc); err != nil {
			return nil, err
		}
	}
	return lib, nil
}

func (l *Library) addClass(c *Class) error {
	if c.ClassType.Rank() == len(entities.ClassOrder) {
		return errors.InvalidArgumentf("unknown class %q", c.ClassType)
	}
	if _, dup := l.classes[c.ClassType]; dup {
		return errors.AlreadyExistsf("class %s is defined twice", c.ClassType)
	}
	if c.Health <= 0 {
		return errors.InvalidArgumentf("class %s needs positive health", c.ClassType)
	}
	if len(c.Cards) < 2 {
		return errors.InvalidArgumentf("class %s needs at least two cards", c.ClassType)
	}
	for _, card := range c.Cards {
		if _, dup := l.cards[card.ID]; dup {
			return errors.AlreadyExistsf("card %s is defined twice", card.ID)
		}
		for _, half := range []entities.Action{card.Top, card.Bottom} {
			if !half.Type.Valid() {
				return errors.InvalidArgumentf("card %s has unknown action %q", card.ID, half.Type)
			}
			for _, cond := range half.Effects {
				if !cond.Valid() {
					return errors.InvalidArgumentf("card %s has unknown effect %q", card.ID, cond)
				}
			}
		}
		l.cards[card.ID] = card
	}
	l.classes[c.ClassType] = c
	return nil
}

func (l *Library) addScenario(sc *Scenario) error {
	if sc.ID == "" || sc.Radius <= 0 {
		return errors.InvalidArgumentf("scenario %q needs an id and a radius", sc.ID)
	}
	if _, dup := l.scenarios[sc.ID]; dup {
		return errors.AlreadyExistsf("scenario %s is defined twice", sc.ID)
	}
	if len(sc.Starts) < MaxPlayers {
		return errors.InvalidArgumentf("scenario %s needs %d starting hexes", sc.ID, MaxPlayers)
	}

	blocked := make(map[hex.Hex]bool)
	for _, h := range sc.Obstacles {
		blocked[h] = true
	}
	used := make(map[hex.Hex]bool)
	place := func(what string, h hex.Hex) error {
		if !sc.onMap(h) || blocked[h] {
			return errors.InvalidArgumentf("scenario %s places %s on unusable hex %s", sc.ID, what, h)
		}
		if used[h] {
			return errors.InvalidArgumentf("scenario %s places two entities on %s", sc.ID, h)
		}
		used[h] = true
		return nil
	}
	for _, h := range sc.Starts {
		if err := place("a start", h); err != nil {
			return err
		}
	}
	for _, sp := range sc.Spawns {
		if _, ok := l.monsterTypes[sp.MonsterType]; !ok {
			return errors.InvalidArgumentf("scenario %s spawns unknown monster type %q", sc.ID, sp.MonsterType)
		}
		if err := place(sp.MonsterType, sp.Hex); err != nil {
			return err
		}
	}
	for _, lp := range sc.Loot {
		if !sc.onMap(lp.Hex) || blocked[lp.Hex] || lp.Value <= 0 {
			return errors.InvalidArgumentf("scenario %s has invalid loot at %s", sc.ID, lp.Hex)
		}
	}
	l.scenarios[sc.ID] = sc
	return nil
}

// Scenario returns the scenario with id
func (l *Library) Scenario(id string) (*Scenario, bool) {
	sc, ok := l.scenarios[id]
	return sc, ok
}

// Scenarios lists every scenario ordered by id
func (l *Library) Scenarios() []*Scenario {
	out := make([]*Scenario, 0, len(l.scenarios))
	for _, sc := range l.scenarios {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Class returns the class definition of ct
func (l *Library) Class(ct entities.ClassType) (*Class, bool) {
	c, ok := l.classes[ct]
	return c, ok
}

// Classes lists the playable classes in tie-break order
func (l *Library) Classes() []*Class {
	out := make([]*Class, 0, len(l.classes))
	for _, ct := range entities.ClassOrder {
		if c, ok := l.classes[ct]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Cards returns every ability card by id. The map is shared; do not modify.
func (l *Library) Cards() map[string]entities.AbilityCard { return l.cards }

// MonsterTypes returns every monster stat block by id. The map is shared;
// do not modify.
func (l *Library) MonsterTypes() map[string]entities.MonsterType { return l.monsterTypes }

// Seat is one player joining a scenario
type Seat struct {
	PlayerID  string
	ClassType entities.ClassType
	// Name defaults to the class name
	Name string
}

// BuildInput asks for the starting state of a scenario
type BuildInput struct {
	ScenarioID string
	Seats      []Seat
}

// Setup is the starting state of a room
type Setup struct {
	Scenario   *Scenario
	Tiles      []entities.MapTile
	Characters []*entities.Character
	Monsters   []*entities.Monster
	Loot       []entities.LootToken
}

// Build places the party on the scenario's starting hexes and spawns the
// monsters for its size. Each class may be played once.
func (l *Library) Build(input BuildInput) (*Setup, error) {
	sc, ok := l.scenarios[input.ScenarioID]
	if !ok {
		return nil, errors.NotFoundf("scenario %q not found", input.ScenarioID)
	}
	if len(input.Seats) == 0 || len(input.Seats) > MaxPlayers {
		return nil, errors.InvalidArgumentf("a party needs 1 to %d players, got %d", MaxPlayers, len(input.Seats))
	}

	setup := &Setup{Scenario: sc, Tiles: sc.Tiles()}

	players := make(map[string]bool)
	taken := make(map[entities.ClassType]bool)
	for i, seat := range input.Seats {
		if seat.PlayerID == "" {
			return nil, errors.InvalidArgumentf("seat %d has no player", i)
		}
		if players[seat.PlayerID] {
			return nil, errors.InvalidArgumentf("player %s is seated twice", seat.PlayerID)
		}
		class, ok := l.classes[seat.ClassType]
		if !ok {
			return nil, errors.InvalidArgumentf("unknown class %q", seat.ClassType)
		}
		if taken[seat.ClassType] {
			return nil, errors.InvalidArgumentf("class %s is already taken", seat.ClassType)
		}
		players[seat.PlayerID] = true
		taken[seat.ClassType] = true

		name := seat.Name
		if name == "" {
			name = class.Name
		}
		deck := make([]string, 0, len(class.Cards))
		for _, card := range class.Cards {
			deck = append(deck, card.ID)
		}
		setup.Characters = append(setup.Characters, &entities.Character{
			ID:            string(seat.ClassType),
			PlayerID:      seat.PlayerID,
			Name:          name,
			ClassType:     seat.ClassType,
			Hex:           sc.Starts[i],
			Health:        class.Health,
			MaxHealth:     class.Health,
			AbilityDeckID: string(seat.ClassType),
			Deck:          deck,
			Hand:          append([]string(nil), deck...),
			DiscardPile:   []string{},
			LostPile:      []string{},
		})
	}

	counts := make(map[string]int)
	for _, sp := range sc.Spawns {
		if sp.MinPlayers > len(input.Seats) {
			continue
		}
		counts[sp.MonsterType]++
		id := fmt.Sprintf("%s-%d", sp.MonsterType, counts[sp.MonsterType])
		setup.Monsters = append(setup.Monsters, entities.NewMonster(id, l.monsterTypes[sp.MonsterType], sp.Elite, sp.Hex))
	}

	for i, lp := range sc.Loot {
		setup.Loot = append(setup.Loot, entities.LootToken{
			ID:    fmt.Sprintf("%s-loot-%d", sc.ID, i+1),
			Hex:   lp.Hex,
			Value: lp.Value,
		})
	}
	return setup, nil
}
