// Package session is the authoritative state of one room's scenario. A
// Session sequences rounds and turns and validates every command before it
// mutates anything. It is not safe for concurrent use; the room actor is
// its only caller.
package session

import (
	"log/slog"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/actions"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/initiative"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/targeting"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// DefaultLogSize bounds the game log
const DefaultLogSize = 200

// Config holds the scenario setup and dependencies of a session
type Config struct {
	RoomID       string
	ScenarioID   string
	ScenarioName string
	Tiles        []entities.MapTile
	Characters   []*entities.Character
	Monsters     []*entities.Monster
	Loot         []entities.LootToken
	Cards        map[string]entities.AbilityCard
	MonsterTypes map[string]entities.MonsterType
	Roller       dice.Roller
	IDGenerator  idgen.Generator
	Rules        rest.Rules

	// ModifierCards is the deck every character and the monsters draw
	// from. Defaults to the standard 20 cards.
	ModifierCards []combat.Modifier
	// LogSize defaults to DefaultLogSize
	LogSize int
	// VictoryXP is awarded to every character on victory
	VictoryXP int
	// LootValue is the gold on a token dropped by a slain monster
	LootValue int
}

// Validate ensures the setup is complete and consistent
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	errors.ValidateRequired("RoomID", c.RoomID, vb)
	errors.ValidateRequired("ScenarioID", c.ScenarioID, vb)
	if len(c.Tiles) == 0 {
		vb.RequiredField("Tiles")
	}
	if len(c.Characters) == 0 {
		vb.RequiredField("Characters")
	}
	if c.Cards == nil {
		vb.RequiredField("Cards")
	}
	if c.Roller == nil {
		vb.RequiredField("Roller")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.LogSize < 0 {
		vb.InvalidField("LogSize", "cannot be negative")
	}
	for _, ch := range c.Characters {
		if ch == nil {
			vb.InvalidField("Characters", "cannot contain nil")
			continue
		}
		for _, id := range ch.Deck {
			if _, ok := c.Cards[id]; !ok {
				vb.Fieldf("Characters", "card %s of %s is unknown", id, ch.ID)
			}
		}
	}
	for _, m := range c.Monsters {
		if m == nil {
			vb.InvalidField("Monsters", "cannot contain nil")
			continue
		}
		if _, ok := c.MonsterTypes[m.MonsterType]; !ok {
			vb.Fieldf("Monsters", "monster type %s of %s is unknown", m.MonsterType, m.ID)
		}
	}

	return vb.Build()
}

// Session is the aggregate root of one room
type Session struct {
	id           string
	scenarioID   string
	scenarioName string
	rules        rest.Rules
	roller       dice.Roller
	idGen        idgen.Generator
	logSize      int
	victoryXP    int
	lootValue    int

	tiles        []entities.MapTile
	grid         *targeting.Grid
	characters   []*entities.Character
	monsters     []*entities.Monster
	summons      []*entities.Summon
	cards        map[string]entities.AbilityCard
	monsterTypes map[string]entities.MonsterType

	characterDecks map[string]*combat.Deck
	monsterDeck    *combat.Deck

	phase   replication.Phase
	round   int
	outcome replication.Outcome
	tracker *initiative.Tracker
	// economies exist for the characters that selected cards this round
	economies map[string]*actions.Economy
	rests     map[string]*rest.Rest
	// lostPlayed holds the cards whose lost half was performed this round
	lostPlayed map[string][]string

	seq     int64
	log     []replication.LogEntry
	pending []replication.Envelope
	jobs    []Job
}

// New builds a session in the card selection phase of round 1
func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	rules := cfg.Rules
	if rules == (rest.Rules{}) {
		rules = rest.DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid rules")
	}

	modifiers := cfg.ModifierCards
	if len(modifiers) == 0 {
		modifiers = combat.StandardModifiers()
	}

	s := &Session{
		id:             cfg.RoomID,
		scenarioID:     cfg.ScenarioID,
		scenarioName:   cfg.ScenarioName,
		rules:          rules,
		roller:         cfg.Roller,
		idGen:          cfg.IDGenerator,
		logSize:        cfg.LogSize,
		victoryXP:      cfg.VictoryXP,
		lootValue:      max(1, cfg.LootValue),
		tiles:          append([]entities.MapTile(nil), cfg.Tiles...),
		grid:           targeting.NewGrid(cfg.Tiles),
		cards:          cfg.Cards,
		monsterTypes:   cfg.MonsterTypes,
		characterDecks: make(map[string]*combat.Deck, len(cfg.Characters)),
		phase:          replication.PhaseSelection,
		economies:      map[string]*actions.Economy{},
		rests:          map[string]*rest.Rest{},
		lostPlayed:     map[string][]string{},
	}
	if s.logSize == 0 {
		s.logSize = DefaultLogSize
	}

	for _, ch := range cfg.Characters {
		if err := ch.ValidatePiles(); err != nil {
			return nil, errors.Wrapf(err, "character %s", ch.ID)
		}
		if err := s.place(ch); err != nil {
			return nil, err
		}
		deck, err := combat.NewDeck(s.roller, modifiers)
		if err != nil {
			return nil, errors.Wrap(err, "failed to build modifier deck")
		}
		s.characters = append(s.characters, ch)
		s.characterDecks[ch.ID] = deck
	}
	for _, m := range cfg.Monsters {
		if err := s.place(m); err != nil {
			return nil, err
		}
		s.monsters = append(s.monsters, m)
	}
	for _, token := range cfg.Loot {
		s.grid.DropLoot(token)
	}

	deck, err := combat.NewDeck(s.roller, modifiers)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build monster modifier deck")
	}
	s.monsterDeck = deck

	slog.Info("Room session created",
		"room_id", s.id,
		"scenario_id", s.scenarioID,
		"characters", len(s.characters),
		"monsters", len(s.monsters),
	)
	s.logf("Scenario %s begins", s.scenarioName)
	return s, nil
}

func (s *Session) place(c entities.Combatant) error {
	terrain, ok := s.grid.Terrain(c.GetHex())
	if !ok || !terrain.Passable() {
		return errors.InvalidArgumentf("%s starts on an unusable hex %s", c.GetID(), c.GetHex())
	}
	if occ, taken := s.grid.Occupant(c.GetHex()); taken {
		return errors.InvalidArgumentf("%s and %s start on the same hex %s", c.GetID(), occ.GetID(), c.GetHex())
	}
	s.grid.Place(c)
	return nil
}

// ID returns the room id
func (s *Session) ID() string { return s.id }

// Phase returns the current phase
func (s *Session) Phase() replication.Phase { return s.phase }

// Round returns the current round number, 0 before the first round
func (s *Session) Round() int { return s.round }

// Seq returns the sequence number of the last broadcast event
func (s *Session) Seq() int64 { return s.seq }

// Ended reports whether the scenario is over
func (s *Session) Ended() bool { return s.phase == replication.PhaseEnded }

// Outcome returns victory or defeat once ended
func (s *Session) Outcome() replication.Outcome { return s.outcome }

// CharacterForPlayer returns the id of the character playerID controls
func (s *Session) CharacterForPlayer(playerID string) (string, bool) {
	for _, ch := range s.characters {
		if ch.PlayerID == playerID {
			return ch.ID, true
		}
	}
	return "", false
}

// Handle applies one command from playerID. It returns the events to
// broadcast. A rejected command returns an error and leaves state
// unchanged; an InvariantViolation means the session can no longer be
// trusted.
func (s *Session) Handle(playerID string, cmd replication.Command) ([]replication.Envelope, error) {
	if cmd == nil {
		return nil, errors.ProtocolViolation("command is required")
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if s.Ended() {
		return nil, errors.IllegalAction("the scenario has ended")
	}

	var ch *entities.Character
	if id := replication.Actor(cmd); id != "" {
		var ok bool
		if ch, ok = s.character(id); !ok {
			return nil, errors.StateReferencef("character %s is not in this room", id)
		}
		if ch.PlayerID != playerID {
			return nil, errors.IllegalActionf("character %s is not controlled by %s", id, playerID)
		}
	}

	var err error
	switch c := cmd.(type) {
	case *replication.SelectCards:
		err = s.selectCards(ch, c)
	case *replication.DeclareLongRest:
		err = s.declareLongRest(ch)
	case *replication.ChooseLongRestCard:
		err = s.chooseLongRestCard(ch, c.CardID)
	case *replication.StartShortRest:
		err = s.startShortRest(ch)
	case *replication.RestDecision:
		err = s.restDecision(ch, c.Decision)
	case *replication.UseCardAction:
		err = s.useCardAction(ch, c)
	case *replication.Hello:
		err = errors.ProtocolViolation("hello is only valid as the first message of a connection")
	default:
		err = errors.ProtocolViolationf("unsupported command %s", cmd.CommandType())
	}
	if err != nil {
		// rejected commands must not leak partial events
		if errors.IsInvariantViolation(err) {
			return s.flush(), err
		}
		s.pending = nil
		return nil, err
	}

	if err := s.checkInvariants(); err != nil {
		return s.flush(), err
	}
	return s.flush(), nil
}

// Record broadcasts an event that did not come from the game rules, such
// as a disconnect or a failed save
func (s *Session) Record(ev replication.Event) replication.Envelope {
	s.emit(ev)
	out := s.flush()
	return out[len(out)-1]
}

// Snapshot returns a deep copy of the authoritative state
func (s *Session) Snapshot() *replication.Snapshot {
	snap := &replication.Snapshot{
		RoomID:       s.id,
		ScenarioID:   s.scenarioID,
		ScenarioName: s.scenarioName,
		Phase:        s.phase,
		RoundNumber:  s.round,
		Seq:          s.seq,
		Tiles:        append([]entities.MapTile(nil), s.tiles...),
		Characters:   make([]*entities.Character, 0, len(s.characters)),
		Monsters:     make([]*entities.Monster, 0, len(s.monsters)),
		Summons:      make([]*entities.Summon, 0, len(s.summons)),
		Loot:         s.grid.LootTokens(),
		TurnOrder:    []initiative.Entry{},
		TurnIndex:    -1,
		Log:          append([]replication.LogEntry(nil), s.log...),
		Outcome:      s.outcome,
	}
	for _, ch := range s.characters {
		snap.Characters = append(snap.Characters, ch.Clone())
	}
	for _, m := range s.monsters {
		snap.Monsters = append(snap.Monsters, m.Clone())
	}
	for _, sm := range s.summons {
		snap.Summons = append(snap.Summons, sm.Clone())
	}
	if s.tracker != nil && s.phase == replication.PhaseRound {
		snap.TurnOrder = s.tracker.Order()
		snap.TurnIndex = s.tracker.Index()
		if cur, ok := s.tracker.Current(); ok {
			snap.CurrentEntityID = cur.EntityID
			if econ, ok := s.economies[cur.EntityID]; ok {
				st := econ.State()
				snap.TurnActionState = &st
			}
		}
	}
	return snap
}

// DrainJobs returns and clears the persistence work queued by past
// commands
func (s *Session) DrainJobs() []Job {
	jobs := s.jobs
	s.jobs = nil
	return jobs
}

func (s *Session) emit(ev replication.Event) {
	s.seq++
	env := replication.NewEnvelope(s.seq, ev)
	s.pending = append(s.pending, env)
	if msg := describe(s, ev); msg != "" {
		s.appendLog(msg)
	}
}

func (s *Session) flush() []replication.Envelope {
	out := s.pending
	s.pending = nil
	return out
}

func (s *Session) appendLog(msg string) {
	s.log = append(s.log, replication.LogEntry{Seq: s.seq, Round: s.round, Message: msg})
	if over := len(s.log) - s.logSize; over > 0 {
		s.log = append([]replication.LogEntry(nil), s.log[over:]...)
	}
}

// checkInvariants guards the rules every command must preserve
func (s *Session) checkInvariants() error {
	for _, ch := range s.characters {
		if err := ch.ValidatePiles(); err != nil {
			return err
		}
	}
	if s.phase == replication.PhaseRound && s.tracker == nil {
		return errors.InvariantViolation("round in progress without a turn order")
	}
	return nil
}

func (s *Session) character(id string) (*entities.Character, bool) {
	for _, ch := range s.characters {
		if ch.ID == id {
			return ch, true
		}
	}
	return nil, false
}

func (s *Session) monster(id string) (*entities.Monster, bool) {
	for _, m := range s.monsters {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

func (s *Session) combatant(id string) (entities.Combatant, bool) {
	if ch, ok := s.character(id); ok {
		return ch, true
	}
	if m, ok := s.monster(id); ok {
		return m, true
	}
	for _, sm := range s.summons {
		if sm.ID == id {
			return sm, true
		}
	}
	return nil, false
}

// invariant marks an error raised after mutation began
func invariant(err error, msg string) error {
	out := errors.Wrap(err, msg)
	out.Kind = errors.KindInvariantViolation
	return out
}
