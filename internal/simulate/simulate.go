// Package simulate plays a scenario headless with scripted players. Every
// command goes through a real room, so a run exercises the same path as
// websocket clients.
package simulate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/KirkDiggler/hexhaven-api/internal/content"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/room"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

// DefaultMaxRounds stops a run that has not ended by then
const DefaultMaxRounds = 30

// maxMoveCandidates bounds how many destinations a move tries
const maxMoveCandidates = 8

// Config describes one run
type Config struct {
	Registry   registry.Service
	Content    *content.Library
	ScenarioID string
	Seats      []content.Seat
	MaxRounds  int
	// Out receives one line per event. Nil discards.
	Out io.Writer
}

// Validate ensures all required fields are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Registry == nil {
		vb.RequiredField("Registry")
	}
	if c.Content == nil {
		vb.RequiredField("Content")
	}
	errors.ValidateRequired("ScenarioID", c.ScenarioID, vb)
	if len(c.Seats) == 0 {
		vb.RequiredField("Seats")
	}
	if c.MaxRounds < 0 {
		vb.InvalidField("MaxRounds", "must not be negative")
	}

	return vb.Build()
}

// Result summarizes a finished run
type Result struct {
	RoomID   string
	Outcome  replication.Outcome
	Rounds   int
	Seq      int64
	Accepted int
	Rejected int
	// Final is the room state when the run stopped
	Final *replication.Snapshot
	// Client is the state rebuilt from the first player's event stream
	Client *replication.ClientState
}

type runner struct {
	cfg   *Config
	room  *room.Room
	cards map[string]entities.AbilityCard

	// clientID per character id
	clients map[string]string

	mu     sync.Mutex
	client *replication.ClientState
	out    io.Writer

	accepted int
	rejected int
}

// Run creates a room, joins every seat and plays until the scenario ends
// or MaxRounds is reached. The room is closed afterwards.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	maxRounds := cfg.MaxRounds
	if maxRounds == 0 {
		maxRounds = DefaultMaxRounds
	}

	created, err := cfg.Registry.CreateRoom(ctx, &registry.CreateRoomInput{
		ScenarioID: cfg.ScenarioID,
		Players:    cfg.Seats,
	})
	if err != nil {
		return nil, err
	}
	roomID := created.Room.ID()
	defer func() {
		if _, err := cfg.Registry.CloseRoom(context.WithoutCancel(ctx), &registry.CloseRoomInput{
			RoomID: roomID,
			Reason: "simulation finished",
		}); err != nil && !errors.IsNotFound(err) {
			slog.Warn("Failed to close simulated room", "room_id", roomID, "error", err)
		}
	}()

	r := &runner{
		cfg:     cfg,
		room:    created.Room,
		cards:   cfg.Content.Cards(),
		clients: map[string]string{},
		client:  replication.NewClientState(),
		out:     cfg.Out,
	}
	if r.out == nil {
		r.out = io.Discard
	}

	var wg sync.WaitGroup
	for i, seat := range cfg.Seats {
		clientID := fmt.Sprintf("sim-%d", i+1)
		joined, err := r.room.Join(ctx, room.JoinInput{ClientID: clientID, PlayerID: seat.PlayerID})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to join %s", seat.PlayerID)
		}
		r.clients[joined.CharacterID] = clientID

		wg.Add(1)
		go func(first bool, events <-chan replication.Envelope) {
			defer wg.Done()
			r.consume(first, events)
		}(i == 0, joined.Events)
	}

	final, err := r.play(ctx, maxRounds)
	if err != nil {
		return nil, err
	}

	// Snapshot is a barrier: every event up to final.Seq is already in the
	// outboxes once it returns. An ended room may have closed itself.
	if _, err := cfg.Registry.CloseRoom(ctx, &registry.CloseRoomInput{RoomID: roomID, Reason: "simulation finished"}); err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	return &Result{
		RoomID:   roomID,
		Outcome:  final.Outcome,
		Rounds:   final.RoundNumber,
		Seq:      final.Seq,
		Accepted: r.accepted,
		Rejected: r.rejected,
		Final:    final,
		Client:   r.client,
	}, nil
}

// consume drains one player's stream. Only the first player's broadcast
// events are applied and printed; every stream must be drained so the
// room never drops a scripted player.
func (r *runner) consume(first bool, events <-chan replication.Envelope) {
	for env := range events {
		if !first {
			continue
		}
		r.mu.Lock()
		if err := r.client.Apply(env); err != nil {
			slog.Warn("Client state rejected event", "type", env.Type, "seq", env.Seq, "error", err)
		}
		fmt.Fprintf(r.out, "%5d %s\n", env.Seq, env.Type)
		r.mu.Unlock()
	}
}

func (r *runner) play(ctx context.Context, maxRounds int) (*replication.Snapshot, error) {
	for {
		snap, err := r.snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if snap.Phase == replication.PhaseEnded {
			return snap, nil
		}
		if snap.RoundNumber >= maxRounds && snap.Phase == replication.PhaseSelection {
			return snap, nil
		}

		var progressed bool
		switch snap.Phase {
		case replication.PhaseSelection:
			progressed, err = r.selectAll(ctx, snap)
		case replication.PhaseRound:
			progressed, err = r.takeTurn(ctx, snap)
		}
		if err != nil {
			return nil, err
		}
		if !progressed {
			return nil, errors.Internalf("simulation stuck in %s phase of round %d", snap.Phase, snap.RoundNumber)
		}
	}
}

// snapshot reads the live room, or the state it saved once it has closed
// itself at the end of the scenario
func (r *runner) snapshot(ctx context.Context) (*replication.Snapshot, error) {
	v, err := r.room.Snapshot(ctx)
	if err == nil {
		return v.Snapshot, nil
	}
	if err != room.ErrClosed {
		return nil, err
	}
	saved, err := r.cfg.Registry.GetSnapshot(ctx, &registry.GetSnapshotInput{RoomID: r.room.ID()})
	if err != nil {
		return nil, err
	}
	return saved.Snapshot, nil
}

// submit sends cmd and reports whether the room accepted it. Accepted
// commands always broadcast at least one event.
func (r *runner) submit(ctx context.Context, characterID string, cmd replication.Command) (bool, error) {
	before, err := r.snapshot(ctx)
	if err != nil {
		return false, err
	}
	if err := r.room.Submit(ctx, r.clients[characterID], cmd); err != nil {
		return false, err
	}
	after, err := r.snapshot(ctx)
	if err != nil {
		return false, err
	}

	if after.Seq > before.Seq {
		r.accepted++
		return true, nil
	}
	r.rejected++
	return false, nil
}

// selectAll readies every character that still has to commit to the round
func (r *runner) selectAll(ctx context.Context, snap *replication.Snapshot) (bool, error) {
	progressed := false
	for _, ch := range snap.Characters {
		if ch.IsExhausted || ch.SelectedCards != nil || ch.LongResting {
			continue
		}

		if len(ch.Hand) >= 2 {
			ok, err := r.submit(ctx, ch.ID, &replication.SelectCards{
				CharacterID:      ch.ID,
				Top:              ch.Hand[0],
				Bottom:           ch.Hand[1],
				InitiativeCardID: ch.Hand[0],
			})
			if err != nil {
				return false, err
			}
			progressed = progressed || ok
			continue
		}

		// Too few discards exhausts the character, which still ends the wait
		ok, err := r.submit(ctx, ch.ID, &replication.DeclareLongRest{CharacterID: ch.ID})
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		progressed = true
		if len(ch.DiscardPile) == 0 {
			continue
		}
		if _, err := r.submit(ctx, ch.ID, &replication.ChooseLongRestCard{
			CharacterID: ch.ID,
			CardID:      ch.DiscardPile[0],
		}); err != nil {
			return false, err
		}
	}
	return progressed, nil
}

// takeTurn plays both halves of the current character's cards, trying the
// top card's top first and falling back to the opposite pairing
func (r *runner) takeTurn(ctx context.Context, snap *replication.Snapshot) (bool, error) {
	ch, ok := snap.Character(snap.CurrentEntityID)
	if !ok || ch.SelectedCards == nil {
		return false, nil
	}
	sel := *ch.SelectedCards

	plans := [][2]play{
		{{sel.Top, entities.PositionTop}, {sel.Bottom, entities.PositionBottom}},
		{{sel.Top, entities.PositionBottom}, {sel.Bottom, entities.PositionTop}},
	}
	for _, plan := range plans {
		played := 0
		for _, p := range plan {
			current, err := r.snapshot(ctx)
			if err != nil {
				return false, err
			}
			if current.CurrentEntityID != ch.ID || current.Phase != replication.PhaseRound {
				return true, nil
			}
			self, _ := current.Character(ch.ID)
			ok, err := r.perform(ctx, current, self, p)
			if err != nil {
				return false, err
			}
			if !ok {
				break
			}
			played++
		}
		if played > 0 {
			return true, nil
		}
	}
	return false, nil
}

type play struct {
	cardID   string
	position entities.Position
}

// perform tries the candidate targets for one card half, ending with the
// untargeted form which only spends the half
func (r *runner) perform(ctx context.Context, snap *replication.Snapshot, ch *entities.Character, p play) (bool, error) {
	card, ok := r.cards[p.cardID]
	if !ok || ch == nil {
		return false, nil
	}
	action := card.Half(p.position)

	for _, cmd := range r.candidates(snap, ch, action, p) {
		ok, err := r.submit(ctx, ch.ID, cmd)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *runner) candidates(snap *replication.Snapshot, ch *entities.Character, action entities.Action, p play) []replication.Command {
	base := replication.UseCardAction{CharacterID: ch.ID, CardID: p.cardID, Position: p.position}
	var out []replication.Command

	switch action.Type {
	case entities.ActionAttack:
		for _, m := range livingMonsters(snap, ch.Hex) {
			cmd := base
			cmd.TargetID = m.ID
			out = append(out, &cmd)
		}
	case entities.ActionHeal:
		cmd := base
		cmd.TargetID = ch.ID
		out = append(out, &cmd)
	case entities.ActionMove:
		for _, h := range moveTargets(snap, ch, action.Value) {
			cmd := base
			at := h
			cmd.TargetHex = &at
			out = append(out, &cmd)
		}
	case entities.ActionSummon:
		for _, h := range ch.Hex.Neighbors() {
			if free(snap)[h] {
				cmd := base
				at := h
				cmd.TargetHex = &at
				out = append(out, &cmd)
			}
		}
	}

	untargeted := base
	return append(out, &untargeted)
}

// livingMonsters orders monsters nearest first
func livingMonsters(snap *replication.Snapshot, from hex.Hex) []*entities.Monster {
	var out []*entities.Monster
	for _, m := range snap.Monsters {
		if !m.IsDead {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return hex.Distance(from, out[i].Hex) < hex.Distance(from, out[j].Hex)
	})
	return out
}

// free lists passable hexes nobody stands on
func free(snap *replication.Snapshot) map[hex.Hex]bool {
	out := map[hex.Hex]bool{}
	for _, t := range snap.Tiles {
		if t.Terrain.Passable() {
			out[t.Hex] = true
		}
	}
	for _, ch := range snap.Characters {
		if !ch.IsExhausted {
			delete(out, ch.Hex)
		}
	}
	for _, m := range snap.Monsters {
		if !m.IsDead {
			delete(out, m.Hex)
		}
	}
	for _, s := range snap.Summons {
		if !s.IsDead {
			delete(out, s.Hex)
		}
	}
	return out
}

// moveTargets ranks free hexes within budget by distance to the nearest
// monster. The room decides which are actually reachable.
func moveTargets(snap *replication.Snapshot, ch *entities.Character, budget int) []hex.Hex {
	monsters := livingMonsters(snap, ch.Hex)
	if len(monsters) == 0 || budget <= 0 {
		return nil
	}
	goal := monsters[0].Hex

	var out []hex.Hex
	for h := range free(snap) {
		d := hex.Distance(ch.Hex, h)
		if d > 0 && d <= budget && hex.Distance(h, goal) < hex.Distance(ch.Hex, goal) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := hex.Distance(out[i], goal), hex.Distance(out[j], goal)
		if di != dj {
			return di < dj
		}
		if out[i].Q != out[j].Q {
			return out[i].Q < out[j].Q
		}
		return out[i].R < out[j].R
	})
	if len(out) > maxMoveCandidates {
		out = out[:maxMoveCandidates]
	}
	return out
}
