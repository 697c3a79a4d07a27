// Package registry owns the running rooms of a server process. It builds a
// room from content and a party, hands rooms to transports by id and tears
// them down on close or shutdown.
package registry

//go:generate mockgen -destination=mock/mock_service.go -package=registrymock github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry Service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/dice"
	"go.opentelemetry.io/otel/trace"

	"github.com/KirkDiggler/hexhaven-api/internal/content"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/room"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/session"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
)

// DefaultMaxRooms caps concurrently running rooms
const DefaultMaxRooms = 100

// Service defines room lifecycle operations
type Service interface {
	CreateRoom(ctx context.Context, input *CreateRoomInput) (*CreateRoomOutput, error)
	GetRoom(ctx context.Context, input *GetRoomInput) (*GetRoomOutput, error)
	ListRooms(ctx context.Context, input *ListRoomsInput) (*ListRoomsOutput, error)
	CloseRoom(ctx context.Context, input *CloseRoomInput) (*CloseRoomOutput, error)

	// GetSnapshot answers from the running room, falling back to the last
	// persisted round snapshot once the room is gone
	GetSnapshot(ctx context.Context, input *GetSnapshotInput) (*GetSnapshotOutput, error)

	// Shutdown closes every room
	Shutdown(ctx context.Context) error
}

// RoomOptions are passed to every room the registry starts
type RoomOptions struct {
	ReconnectGrace time.Duration
	OutboxSize     int
	PersistTimeout time.Duration
	SnapshotTTL    time.Duration
}

// Config holds the dependencies for the registry
type Config struct {
	Content     *content.Library
	Progress    progress.Repository
	Snapshots   snapshots.Repository
	Clock       clock.Clock
	IDGenerator idgen.Generator

	// Roller defaults to the rpg-toolkit crypto roller
	Roller dice.Roller
	// Rules defaults to rest.DefaultRules
	Rules rest.Rules
	// ModifierCards defaults to the standard modifier deck
	ModifierCards []combat.Modifier
	LogSize       int
	MaxRooms      int
	Room          RoomOptions
	Tracer        trace.Tracer
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Content == nil {
		vb.RequiredField("Content")
	}
	if c.Progress == nil {
		vb.RequiredField("Progress")
	}
	if c.Snapshots == nil {
		vb.RequiredField("Snapshots")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.MaxRooms < 0 {
		vb.InvalidField("MaxRooms", "must not be negative")
	}
	if c.LogSize < 0 {
		vb.InvalidField("LogSize", "must not be negative")
	}

	return vb.Build()
}

// CreateRoomInput names the scenario and the seated party
type CreateRoomInput struct {
	ScenarioID string
	Players    []content.Seat
}

// CreateRoomOutput contains the started room
type CreateRoomOutput struct {
	Room    *room.Room
	Summary *RoomSummary
}

// GetRoomInput names a room
type GetRoomInput struct {
	RoomID string
}

// GetRoomOutput contains a running room
type GetRoomOutput struct {
	Room *room.Room
}

// ListRoomsInput filters the room list
type ListRoomsInput struct {
	// Phase keeps only rooms in that phase when set
	Phase replication.Phase
}

// ListRoomsOutput lists running rooms ordered by creation time
type ListRoomsOutput struct {
	Rooms []*RoomSummary
}

// GetSnapshotInput names a room
type GetSnapshotInput struct {
	RoomID string
}

// GetSnapshotOutput contains a room's state
type GetSnapshotOutput struct {
	Snapshot *replication.Snapshot
	// Live is false when Snapshot was loaded from persistence
	Live bool
	// SavedAt is set for persisted snapshots
	SavedAt time.Time
}

// CloseRoomInput names the room to close
type CloseRoomInput struct {
	RoomID string
	Reason string
}

// CloseRoomOutput is empty
type CloseRoomOutput struct{}

// RoomSummary describes a running room
type RoomSummary struct {
	RoomID       string
	ScenarioID   string
	ScenarioName string
	Phase        replication.Phase
	Round        int
	Seq          int64
	Outcome      replication.Outcome
	// Players are the seated player ids in seat order
	Players   []string
	Connected int
	CreatedAt time.Time
}

type entry struct {
	room      *room.Room
	createdAt time.Time
}

type orchestrator struct {
	content     *content.Library
	progress    progress.Repository
	snapshots   snapshots.Repository
	clock       clock.Clock
	idGen       idgen.Generator
	roller      dice.Roller
	rules       rest.Rules
	modifiers   []combat.Modifier
	logSize     int
	maxRooms    int
	roomOptions RoomOptions
	tracer      trace.Tracer

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	rooms map[string]*entry
	// reserved counts rooms being built that already hold a slot
	reserved int
	closed   bool
}

// NewOrchestrator creates a registry
func NewOrchestrator(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	o := &orchestrator{
		content:     cfg.Content,
		progress:    cfg.Progress,
		snapshots:   cfg.Snapshots,
		clock:       cfg.Clock,
		idGen:       cfg.IDGenerator,
		roller:      cfg.Roller,
		rules:       cfg.Rules,
		modifiers:   cfg.ModifierCards,
		logSize:     cfg.LogSize,
		maxRooms:    cfg.MaxRooms,
		roomOptions: cfg.Room,
		tracer:      cfg.Tracer,
		rooms:       make(map[string]*entry),
	}
	if o.roller == nil {
		o.roller = dice.DefaultRoller
	}
	if o.rules == (rest.Rules{}) {
		o.rules = rest.DefaultRules()
	}
	if len(o.modifiers) == 0 {
		o.modifiers = combat.StandardModifiers()
	}
	if o.maxRooms == 0 {
		o.maxRooms = DefaultMaxRooms
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())

	return o, nil
}

// CreateRoom builds the scenario for the party and starts its room
func (o *orchestrator) CreateRoom(ctx context.Context, input *CreateRoomInput) (*CreateRoomOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("scenario_id", input.ScenarioID, vb)
	if len(input.Players) == 0 {
		vb.RequiredField("players")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	if err := o.reserve(); err != nil {
		return nil, err
	}
	inserted := false
	defer func() {
		if !inserted {
			o.release()
		}
	}()

	setup, err := o.content.Build(content.BuildInput{
		ScenarioID: input.ScenarioID,
		Seats:      input.Players,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to build scenario")
	}

	roomID := o.idGen.Generate()
	sess, err := session.New(&session.Config{
		RoomID:        roomID,
		ScenarioID:    setup.Scenario.ID,
		ScenarioName:  setup.Scenario.Name,
		Tiles:         setup.Tiles,
		Characters:    setup.Characters,
		Monsters:      setup.Monsters,
		Loot:          setup.Loot,
		Cards:         o.content.Cards(),
		MonsterTypes:  o.content.MonsterTypes(),
		Roller:        o.roller,
		IDGenerator:   idgen.NewSequential("loot"),
		Rules:         o.rules,
		ModifierCards: o.modifiers,
		LogSize:       o.logSize,
		VictoryXP:     setup.Scenario.VictoryXP,
		LootValue:     setup.Scenario.LootValue,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start session")
	}

	r, err := room.New(o.ctx, &room.Config{
		Session:        sess,
		Progress:       o.progress,
		Snapshots:      o.snapshots,
		Clock:          o.clock,
		ReconnectGrace: o.roomOptions.ReconnectGrace,
		OutboxSize:     o.roomOptions.OutboxSize,
		PersistTimeout: o.roomOptions.PersistTimeout,
		SnapshotTTL:    o.roomOptions.SnapshotTTL,
		Tracer:         o.tracer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start room")
	}

	e := &entry{room: r, createdAt: o.clock.Now()}
	o.mu.Lock()
	o.reserved--
	inserted = true
	if o.closed {
		o.mu.Unlock()
		_ = r.Shutdown(ctx, "server shutting down")
		return nil, errors.Unavailable("registry is shutting down")
	}
	o.rooms[roomID] = e
	o.mu.Unlock()
	go o.reap(roomID, r)

	slog.Info("Room created",
		"room_id", roomID,
		"scenario_id", setup.Scenario.ID,
		"players", len(input.Players),
	)

	summary, err := o.summarize(ctx, e)
	if err != nil {
		return nil, err
	}
	return &CreateRoomOutput{Room: r, Summary: summary}, nil
}

// reserve takes a room slot so concurrent creates cannot pass the limit
func (o *orchestrator) reserve() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errors.Unavailable("registry is shutting down")
	}
	if len(o.rooms)+o.reserved >= o.maxRooms {
		return errors.FailedPreconditionf("room limit of %d reached", o.maxRooms)
	}
	o.reserved++
	return nil
}

func (o *orchestrator) release() {
	o.mu.Lock()
	o.reserved--
	o.mu.Unlock()
}

// reap forgets a room once it stops for any reason
func (o *orchestrator) reap(roomID string, r *room.Room) {
	<-r.Done()

	o.mu.Lock()
	if e, ok := o.rooms[roomID]; ok && e.room == r {
		delete(o.rooms, roomID)
	}
	o.mu.Unlock()

	if err := r.Err(); err != nil {
		slog.Error("Room stopped with error", "room_id", roomID, "error", err)
		return
	}
	slog.Info("Room removed", "room_id", roomID)
}

// GetRoom returns a running room
func (o *orchestrator) GetRoom(_ context.Context, input *GetRoomInput) (*GetRoomOutput, error) {
	if input == nil || input.RoomID == "" {
		return nil, errors.InvalidArgument("room ID is required")
	}

	o.mu.RLock()
	e, ok := o.rooms[input.RoomID]
	o.mu.RUnlock()
	if !ok {
		return nil, errors.NotFoundf("room %s not found", input.RoomID)
	}

	return &GetRoomOutput{Room: e.room}, nil
}

// ListRooms summarizes every running room
func (o *orchestrator) ListRooms(ctx context.Context, input *ListRoomsInput) (*ListRoomsOutput, error) {
	if input == nil {
		input = &ListRoomsInput{}
	}

	o.mu.RLock()
	entries := make([]*entry, 0, len(o.rooms))
	for _, e := range o.rooms {
		entries = append(entries, e)
	}
	o.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].createdAt.Equal(entries[j].createdAt) {
			return entries[i].createdAt.Before(entries[j].createdAt)
		}
		return entries[i].room.ID() < entries[j].room.ID()
	})

	out := &ListRoomsOutput{Rooms: make([]*RoomSummary, 0, len(entries))}
	for _, e := range entries {
		summary, err := o.summarize(ctx, e)
		if err != nil {
			if err == room.ErrClosed {
				continue
			}
			return nil, err
		}
		if input.Phase != "" && summary.Phase != input.Phase {
			continue
		}
		out.Rooms = append(out.Rooms, summary)
	}
	return out, nil
}

func (o *orchestrator) summarize(ctx context.Context, e *entry) (*RoomSummary, error) {
	v, err := e.room.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	snap := v.Snapshot
	summary := &RoomSummary{
		RoomID:       snap.RoomID,
		ScenarioID:   snap.ScenarioID,
		ScenarioName: snap.ScenarioName,
		Phase:        snap.Phase,
		Round:        snap.RoundNumber,
		Seq:          snap.Seq,
		Outcome:      snap.Outcome,
		Connected:    len(v.Players),
		CreatedAt:    e.createdAt,
	}
	for _, ch := range snap.Characters {
		summary.Players = append(summary.Players, ch.PlayerID)
	}
	return summary, nil
}

// GetSnapshot implements Service
func (o *orchestrator) GetSnapshot(ctx context.Context, input *GetSnapshotInput) (*GetSnapshotOutput, error) {
	if input == nil || input.RoomID == "" {
		return nil, errors.InvalidArgument("room ID is required")
	}

	o.mu.RLock()
	e, ok := o.rooms[input.RoomID]
	o.mu.RUnlock()
	if ok {
		v, err := e.room.Snapshot(ctx)
		if err == nil {
			return &GetSnapshotOutput{Snapshot: v.Snapshot, Live: true}, nil
		}
		if err != room.ErrClosed {
			return nil, err
		}
	}

	saved, err := o.snapshots.Get(ctx, snapshots.GetInput{RoomID: input.RoomID})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("room %s not found", input.RoomID)
		}
		return nil, errors.Wrapf(err, "failed to load snapshot for room %s", input.RoomID)
	}
	return &GetSnapshotOutput{
		Snapshot: saved.Record.Snapshot,
		SavedAt:  saved.Record.SavedAt,
	}, nil
}

// CloseRoom shuts a room down and forgets it
func (o *orchestrator) CloseRoom(ctx context.Context, input *CloseRoomInput) (*CloseRoomOutput, error) {
	if input == nil || input.RoomID == "" {
		return nil, errors.InvalidArgument("room ID is required")
	}

	o.mu.Lock()
	e, ok := o.rooms[input.RoomID]
	if ok {
		delete(o.rooms, input.RoomID)
	}
	o.mu.Unlock()
	if !ok {
		return nil, errors.NotFoundf("room %s not found", input.RoomID)
	}

	reason := input.Reason
	if reason == "" {
		reason = "closed by operator"
	}
	if err := e.room.Shutdown(ctx, reason); err != nil {
		return nil, errors.Wrapf(err, "failed to close room %s", input.RoomID)
	}
	return &CloseRoomOutput{}, nil
}

// Shutdown closes every room and refuses new ones
func (o *orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	rooms := make([]*room.Room, 0, len(o.rooms))
	for id, e := range o.rooms {
		rooms = append(rooms, e.room)
		delete(o.rooms, id)
	}
	o.mu.Unlock()

	var firstErr error
	for _, r := range rooms {
		if err := r.Shutdown(ctx, "server shutting down"); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "failed to close room %s", r.ID())
		}
	}
	o.cancel()

	slog.Info("Registry shut down", "rooms_closed", len(rooms))
	return firstErr
}
