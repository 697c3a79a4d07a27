package room_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/room"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/session"
	mockclock "github.com/KirkDiggler/hexhaven-api/internal/pkg/clock/mock"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	progressmock "github.com/KirkDiggler/hexhaven-api/internal/repositories/progress/mock"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
	snapshotsmock "github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots/mock"
)

const wait = time.Second

type topRoller struct{}

func (topRoller) Roll(size int) (int, error) { return size, nil }

func (topRoller) RollN(count, size int) ([]int, error) {
	out := make([]int, count)
	for i := range out {
		out[i] = size
	}
	return out, nil
}

func newSession(t *testing.T, roomID string) *session.Session {
	t.Helper()

	tiles := []entities.MapTile{}
	for _, h := range hex.RingRange(hex.New(0, 0), 3, nil) {
		tiles = append(tiles, entities.MapTile{Hex: h, Terrain: entities.TerrainOpen})
	}
	moveHalf := entities.Action{Type: entities.ActionMove, Value: 1}
	cards := map[string]entities.AbilityCard{
		"h1": {ID: "h1", Initiative: 10, Top: entities.Action{Type: entities.ActionAttack, Value: 5}, Bottom: moveHalf},
		"h2": {ID: "h2", Initiative: 20, Top: moveHalf, Bottom: moveHalf},
		"h3": {ID: "h3", Initiative: 30, Top: moveHalf, Bottom: moveHalf},
		"h4": {ID: "h4", Initiative: 40, Top: moveHalf, Bottom: moveHalf},
		"s1": {ID: "s1", Initiative: 50, Top: moveHalf, Bottom: moveHalf},
		"s2": {ID: "s2", Initiative: 55, Top: moveHalf, Bottom: moveHalf},
		"s3": {ID: "s3", Initiative: 65, Top: moveHalf, Bottom: moveHalf},
		"s4": {ID: "s4", Initiative: 75, Top: moveHalf, Bottom: moveHalf},
	}
	rat := entities.MonsterType{
		ID:         "rat",
		Name:       "Giant Rat",
		Normal:     entities.MonsterStats{Health: 3, Move: 1, Attack: 1},
		Elite:      entities.MonsterStats{Health: 4, Move: 1, Attack: 2},
		Initiative: 60,
	}

	hero := &entities.Character{
		ID: "hero", PlayerID: "p1", Name: "Hero", ClassType: entities.ClassBrute,
		Hex: hex.New(2, 0), Health: 8, MaxHealth: 8,
		Deck: []string{"h1", "h2", "h3", "h4"}, Hand: []string{"h1", "h2", "h3", "h4"},
		DiscardPile: []string{}, LostPile: []string{},
	}
	sage := &entities.Character{
		ID: "sage", PlayerID: "p2", Name: "Sage", ClassType: entities.ClassSpellweaver,
		Hex: hex.New(-2, 0), Health: 6, MaxHealth: 6,
		Deck: []string{"s1", "s2", "s3", "s4"}, Hand: []string{"s1", "s2", "s3", "s4"},
		DiscardPile: []string{}, LostPile: []string{},
	}

	sess, err := session.New(&session.Config{
		RoomID:        roomID,
		ScenarioID:    "rat-nest",
		ScenarioName:  "Rat Nest",
		Tiles:         tiles,
		Characters:    []*entities.Character{hero, sage},
		Monsters:      []*entities.Monster{entities.NewMonster("rat-1", rat, false, hex.New(3, 0))},
		Cards:         cards,
		MonsterTypes:  map[string]entities.MonsterType{rat.ID: rat},
		Roller:        topRoller{},
		IDGenerator:   idgen.NewSequential(roomID),
		ModifierCards: []combat.Modifier{combat.Plus(0)},
		VictoryXP:     6,
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return sess
}

type RoomTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	clock     *mockclock.MockClock
	progress  *progress.InMemoryRepository
	snapshots snapshots.Repository
	cfg       *room.Config
	room      *room.Room
	ctx       context.Context
}

func TestRoomSuite(t *testing.T) {
	suite.Run(t, new(RoomTestSuite))
}

func (s *RoomTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.clock = mockclock.NewMockClock(s.ctrl)
	s.clock.EXPECT().Now().Return(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)).AnyTimes()
	s.progress = progress.NewInMemory(s.clock)
	s.snapshots = snapshots.NewInMemory(s.clock)
	s.ctx = context.Background()
	s.cfg = &room.Config{
		Session:   newSession(s.T(), "room-1"),
		Progress:  s.progress,
		Snapshots: s.snapshots,
		Clock:     s.clock,
	}
	s.room = nil
}

func (s *RoomTestSuite) TearDownTest() {
	if s.room != nil {
		s.Require().NoError(s.room.Shutdown(s.ctx, "test done"))
	}
	s.ctrl.Finish()
}

func (s *RoomTestSuite) start() {
	r, err := room.New(s.ctx, s.cfg)
	s.Require().NoError(err)
	s.room = r
}

// join attaches a client and consumes its game_started
func (s *RoomTestSuite) join(clientID, playerID string) <-chan replication.Envelope {
	out, err := s.room.Join(s.ctx, room.JoinInput{ClientID: clientID, PlayerID: playerID})
	s.Require().NoError(err)
	env := s.recv(out.Events)
	s.Require().Equal(replication.EventGameStarted, env.Type)
	return out.Events
}

func (s *RoomTestSuite) submit(clientID string, cmd replication.Command) {
	s.Require().NoError(s.room.Submit(s.ctx, clientID, cmd))
}

// sync waits until the room has handled everything sent before it
func (s *RoomTestSuite) sync() *room.View {
	v, err := s.room.Snapshot(s.ctx)
	s.Require().NoError(err)
	return v
}

func (s *RoomTestSuite) recv(ch <-chan replication.Envelope) replication.Envelope {
	select {
	case env, ok := <-ch:
		s.Require().True(ok, "event stream closed unexpectedly")
		return env
	case <-time.After(wait):
		s.FailNow("timed out waiting for event")
		return replication.Envelope{}
	}
}

// recvUntil reads events until one of type t arrives
func (s *RoomTestSuite) recvUntil(ch <-chan replication.Envelope, t replication.EventType) replication.Envelope {
	for {
		env := s.recv(ch)
		if env.Type == t {
			return env
		}
	}
}

func (s *RoomTestSuite) drain(ch <-chan replication.Envelope) []replication.Envelope {
	var out []replication.Envelope
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func (s *RoomTestSuite) assertClosed(ch <-chan replication.Envelope) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-time.After(wait):
			s.FailNow("event stream was not closed")
		}
	}
}

func (s *RoomTestSuite) waitDone() {
	select {
	case <-s.room.Done():
	case <-time.After(wait):
		s.FailNow("room did not stop")
	}
}

func (s *RoomTestSuite) startRound(p1, p2 <-chan replication.Envelope) {
	s.submit("c1", &replication.SelectCards{CharacterID: "hero", Top: "h1", Bottom: "h2", InitiativeCardID: "h1"})
	s.submit("c2", &replication.SelectCards{CharacterID: "sage", Top: "s1", Bottom: "s2", InitiativeCardID: "s1"})
	s.recvUntil(p1, replication.EventTurnStarted)
	s.recvUntil(p2, replication.EventTurnStarted)
}

func (s *RoomTestSuite) TestConfigValidation() {
	_, err := room.New(s.ctx, nil)
	s.Error(err)

	_, err = room.New(s.ctx, &room.Config{})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))

	bad := *s.cfg
	bad.OutboxSize = -1
	_, err = room.New(s.ctx, &bad)
	s.True(errors.IsInvalidArgument(err))
}

func (s *RoomTestSuite) TestJoinSendsSnapshot() {
	s.start()

	out, err := s.room.Join(s.ctx, room.JoinInput{ClientID: "c1", PlayerID: "p1"})
	s.Require().NoError(err)
	s.Equal("hero", out.CharacterID)

	env := s.recv(out.Events)
	started, ok := env.Payload.(*replication.GameStarted)
	s.Require().True(ok)
	s.Equal("room-1", started.RoomID)
	s.Equal(replication.PhaseSelection, started.Phase)
	s.Len(started.Characters, 2)

	_, err = s.room.Join(s.ctx, room.JoinInput{ClientID: "c9", PlayerID: "stranger"})
	s.True(errors.IsIllegalAction(err))

	_, err = s.room.Join(s.ctx, room.JoinInput{ClientID: "c1", PlayerID: "p1"})
	s.True(errors.IsAlreadyExists(err))

	_, err = s.room.Join(s.ctx, room.JoinInput{PlayerID: "p1"})
	s.True(errors.IsInvalidArgument(err))
}

func (s *RoomTestSuite) TestJoinAgainReplacesConnection() {
	s.start()
	old := s.join("c1", "p1")
	s.join("c1b", "p1")

	s.assertClosed(old)
	v := s.sync()
	s.Equal(1, v.Clients)
	s.Equal([]string{"p1"}, v.Players)
}

func (s *RoomTestSuite) TestAcceptedCommandIsBroadcast() {
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")

	s.submit("c1", &replication.SelectCards{CharacterID: "hero", Top: "h1", Bottom: "h2", InitiativeCardID: "h1"})

	for _, ch := range []<-chan replication.Envelope{p1, p2} {
		env := s.recv(ch)
		s.Equal(replication.EventCardsSelected, env.Type)
		s.Equal(int64(1), env.Seq)
	}
}

func (s *RoomTestSuite) TestIllegalActionRepliesToOriginatorOnly() {
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")

	s.submit("c1", &replication.SelectCards{CharacterID: "hero", Top: "s1", Bottom: "h2", InitiativeCardID: "h2"})

	env := s.recv(p1)
	s.Equal(replication.EventError, env.Type)
	s.Zero(env.Seq)
	s.Equal("illegal_action", env.Payload.(*replication.Error).Kind)

	v := s.sync()
	s.Empty(s.drain(p2))
	s.Zero(v.Snapshot.Seq)
}

func (s *RoomTestSuite) TestControllingAnotherCharacterIsIllegal() {
	s.start()
	p1 := s.join("c1", "p1")

	s.submit("c1", &replication.SelectCards{CharacterID: "sage", Top: "s1", Bottom: "s2", InitiativeCardID: "s1"})

	env := s.recv(p1)
	s.Equal("illegal_action", env.Payload.(*replication.Error).Kind)
}

func (s *RoomTestSuite) TestRejectedCardActionReportsFailure() {
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")
	s.startRound(p1, p2)

	s.submit("c1", &replication.UseCardAction{CharacterID: "hero", CardID: "h3", Position: entities.PositionTop})

	env := s.recv(p1)
	s.Zero(env.Seq)
	executed, ok := env.Payload.(*replication.CardActionExecuted)
	s.Require().True(ok)
	s.False(executed.Success)
	s.Equal("h3", executed.CardID)
	s.NotEmpty(executed.Error)

	s.sync()
	s.Empty(s.drain(p2))
}

func (s *RoomTestSuite) TestStateReferenceIsDropped() {
	s.start()
	p1 := s.join("c1", "p1")

	s.submit("c1", &replication.SelectCards{CharacterID: "ghost", Top: "h1", Bottom: "h2", InitiativeCardID: "h1"})

	v := s.sync()
	s.Empty(s.drain(p1))
	s.Zero(v.Snapshot.Seq)
}

func (s *RoomTestSuite) TestProtocolViolationGetsErrorEvent() {
	s.start()
	p1 := s.join("c1", "p1")

	s.submit("c1", &replication.Hello{PlayerID: "p1"})

	env := s.recv(p1)
	s.Zero(env.Seq)
	s.Equal("protocol_violation", env.Payload.(*replication.Error).Kind)
}

func (s *RoomTestSuite) TestCommandFromUnknownClientIsIgnored() {
	s.start()
	p1 := s.join("c1", "p1")

	s.submit("nobody", &replication.SelectCards{CharacterID: "hero", Top: "h1", Bottom: "h2", InitiativeCardID: "h1"})

	v := s.sync()
	s.Empty(s.drain(p1))
	s.Zero(v.Snapshot.Seq)
}

func (s *RoomTestSuite) TestSlowClientIsDropped() {
	s.cfg.OutboxSize = 1
	s.clock.EXPECT().AfterFunc(room.DefaultReconnectGrace, gomock.Any()).Return(func() bool { return true })
	s.start()

	slow, err := s.room.Join(s.ctx, room.JoinInput{ClientID: "c1", PlayerID: "p1"})
	s.Require().NoError(err)
	p2 := s.join("c2", "p2")

	s.submit("c2", &replication.SelectCards{CharacterID: "sage", Top: "s1", Bottom: "s2", InitiativeCardID: "s1"})

	s.Equal(replication.EventCardsSelected, s.recv(p2).Type)
	s.Equal(replication.EventGameStarted, s.recv(slow.Events).Type)
	s.assertClosed(slow.Events)
	s.Equal(1, s.sync().Clients)
}

func (s *RoomTestSuite) TestReconnectGraceExpiryBroadcastsDisconnect() {
	var expire func()
	s.clock.EXPECT().AfterFunc(room.DefaultReconnectGrace, gomock.Any()).
		DoAndReturn(func(_ time.Duration, f func()) func() bool {
			expire = f
			return func() bool { return true }
		})
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")

	s.Require().NoError(s.room.Leave(s.ctx, "c1"))
	s.assertClosed(p1)
	s.sync()
	s.Require().NotNil(expire)

	expire()

	env := s.recv(p2)
	s.Equal(int64(1), env.Seq)
	s.Equal(&replication.PlayerDisconnected{PlayerID: "p1", CharacterID: "hero"}, env.Payload)
}

func (s *RoomTestSuite) TestRejoinWithinGraceCancelsDisconnect() {
	var expire func()
	stopped := false
	s.clock.EXPECT().AfterFunc(room.DefaultReconnectGrace, gomock.Any()).
		DoAndReturn(func(_ time.Duration, f func()) func() bool {
			expire = f
			return func() bool {
				stopped = true
				return true
			}
		})
	s.start()
	s.join("c1", "p1")
	p2 := s.join("c2", "p2")

	s.Require().NoError(s.room.Leave(s.ctx, "c1"))
	s.join("c1b", "p1")
	s.sync()
	s.True(stopped)

	// the timer fired anyway before it could be stopped
	expire()

	v := s.sync()
	s.Empty(s.drain(p2))
	s.Zero(v.Snapshot.Seq)
}

func (s *RoomTestSuite) TestVictoryPersistsRewardsAndSnapshot() {
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")
	s.startRound(p1, p2)

	s.submit("c1", &replication.UseCardAction{CharacterID: "hero", CardID: "h1", Position: entities.PositionTop, TargetID: "rat-1"})

	ended := s.recvUntil(p2, replication.EventScenarioEnded).Payload.(*replication.ScenarioEnded)
	s.Equal(replication.OutcomeVictory, ended.Outcome)

	s.Eventually(func() bool {
		got, err := s.progress.Get(s.ctx, progress.GetInput{PlayerID: "p2"})
		return err == nil && got.Progress.XP == 6 && got.Progress.ScenariosCompleted == 1
	}, wait, 10*time.Millisecond)
	s.Eventually(func() bool {
		got, err := s.snapshots.Get(s.ctx, snapshots.GetInput{RoomID: "room-1"})
		return err == nil && got.Record.Snapshot.Outcome == replication.OutcomeVictory
	}, wait, 10*time.Millisecond)
}

func (s *RoomTestSuite) TestRoomStopsOnceScenarioEndedIsPersisted() {
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")
	s.startRound(p1, p2)

	s.submit("c1", &replication.UseCardAction{CharacterID: "hero", CardID: "h1", Position: entities.PositionTop, TargetID: "rat-1"})
	s.recvUntil(p1, replication.EventScenarioEnded)

	s.waitDone()
	s.NoError(s.room.Err())
	s.assertClosed(p1)
	s.assertClosed(p2)

	// both jobs finished before the room let go
	got, err := s.progress.Get(s.ctx, progress.GetInput{PlayerID: "p1"})
	s.Require().NoError(err)
	s.Equal(1, got.Progress.ScenariosCompleted)
	_, err = s.snapshots.Get(s.ctx, snapshots.GetInput{RoomID: "room-1"})
	s.NoError(err)

	_, err = s.room.Snapshot(s.ctx)
	s.ErrorIs(err, room.ErrClosed)
}

func (s *RoomTestSuite) TestRoomStopsWhenEveryGraceExpires() {
	var expiries []func()
	s.clock.EXPECT().AfterFunc(room.DefaultReconnectGrace, gomock.Any()).
		DoAndReturn(func(_ time.Duration, f func()) func() bool {
			expiries = append(expiries, f)
			return func() bool { return true }
		}).Times(2)
	s.start()
	s.join("c1", "p1")
	s.join("c2", "p2")

	s.Require().NoError(s.room.Leave(s.ctx, "c1"))
	s.Require().NoError(s.room.Leave(s.ctx, "c2"))
	s.sync()
	s.Require().Len(expiries, 2)

	// p2 may still come back
	expiries[0]()
	v := s.sync()
	s.Zero(v.Clients)
	s.Equal(int64(1), v.Snapshot.Seq)

	expiries[1]()
	s.waitDone()
	s.NoError(s.room.Err())
}

func (s *RoomTestSuite) TestPersistenceFailureIsBroadcast() {
	repo := snapshotsmock.NewMockRepository(s.ctrl)
	repo.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, errors.Unavailable("redis is down"))
	s.cfg.Snapshots = repo
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")
	s.startRound(p1, p2)

	s.submit("c1", &replication.UseCardAction{CharacterID: "hero", CardID: "h1", Position: entities.PositionTop, TargetID: "rat-1"})

	for _, ch := range []<-chan replication.Envelope{p1, p2} {
		env := s.recvUntil(ch, replication.EventPersistenceFailed)
		failed := env.Payload.(*replication.PersistenceFailed)
		s.Equal(string(session.JobSnapshot), failed.Job)
		s.NotZero(env.Seq)
	}

	// the failure is reported but the ended room still closes cleanly
	s.waitDone()
	s.NoError(s.room.Err())
	s.assertClosed(p1)
}

func (s *RoomTestSuite) TestRewardFailureIsBroadcast() {
	repo := progressmock.NewMockRepository(s.ctrl)
	repo.EXPECT().
		ApplyRewards(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input progress.ApplyRewardsInput) (*progress.ApplyRewardsOutput, error) {
			s.Equal("room-1", input.RoomID)
			s.True(input.Victory)
			s.Len(input.Rewards, 2)
			return nil, errors.Unavailable("redis is down")
		})
	s.cfg.Progress = repo
	s.start()
	p1 := s.join("c1", "p1")
	p2 := s.join("c2", "p2")
	s.startRound(p1, p2)

	s.submit("c1", &replication.UseCardAction{CharacterID: "hero", CardID: "h1", Position: entities.PositionTop, TargetID: "rat-1"})

	env := s.recvUntil(p1, replication.EventPersistenceFailed)
	s.Equal(string(session.JobRewards), env.Payload.(*replication.PersistenceFailed).Job)

	// the snapshot job is independent of the rewards job
	s.Eventually(func() bool {
		_, err := s.snapshots.Get(s.ctx, snapshots.GetInput{RoomID: "room-1"})
		return err == nil
	}, wait, 10*time.Millisecond)
}

func (s *RoomTestSuite) TestPanicClosesOnlyThatRoom() {
	other, err := room.New(s.ctx, &room.Config{
		Session:   newSession(s.T(), "room-2"),
		Progress:  s.progress,
		Snapshots: s.snapshots,
		Clock:     s.clock,
	})
	s.Require().NoError(err)
	defer func() { _ = other.Shutdown(s.ctx, "test done") }()

	s.start()
	p1 := s.join("c1", "p1")

	var broken *replication.SelectCards
	s.submit("c1", broken)

	env := s.recv(p1)
	s.Equal("invariant_violation", env.Payload.(*replication.Error).Kind)
	s.assertClosed(p1)

	s.waitDone()
	s.True(errors.IsInvariantViolation(s.room.Err()))
	s.ErrorIs(s.room.Submit(s.ctx, "c1", &replication.Hello{PlayerID: "p1"}), room.ErrClosed)
	s.room = nil

	out, err := other.Join(s.ctx, room.JoinInput{ClientID: "c1", PlayerID: "p1"})
	s.Require().NoError(err)
	s.Equal(replication.EventGameStarted, s.recv(out.Events).Type)
}

func (s *RoomTestSuite) TestShutdownClosesStreams() {
	s.start()
	p1 := s.join("c1", "p1")

	s.Require().NoError(s.room.Shutdown(s.ctx, "test"))
	s.assertClosed(p1)
	s.NoError(s.room.Err())

	_, err := s.room.Snapshot(s.ctx)
	s.ErrorIs(err, room.ErrClosed)
	s.NoError(s.room.Shutdown(s.ctx, "again"))
	s.room = nil
}
