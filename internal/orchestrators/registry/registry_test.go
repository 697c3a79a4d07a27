package registry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/content"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/room"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
)

type RegistryTestSuite struct {
	suite.Suite
	ctx       context.Context
	lib       *content.Library
	snapshots *snapshots.InMemoryRepository
	service   registry.Service
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) SetupTest() {
	s.ctx = context.Background()

	lib, err := content.Load()
	s.Require().NoError(err)
	s.lib = lib
	s.snapshots = snapshots.NewInMemory(nil)
	s.service = s.newService(2, registry.RoomOptions{})
}

func (s *RegistryTestSuite) TearDownTest() {
	s.NoError(s.service.Shutdown(s.ctx))
}

func (s *RegistryTestSuite) newService(maxRooms int, opts registry.RoomOptions) registry.Service {
	clk := clock.New()
	svc, err := registry.NewOrchestrator(&registry.Config{
		Content:     s.lib,
		Progress:    progress.NewInMemory(clk),
		Snapshots:   s.snapshots,
		Clock:       clk,
		IDGenerator: idgen.NewSequential("room"),
		MaxRooms:    maxRooms,
		Room:        opts,
	})
	s.Require().NoError(err)
	return svc
}

func (s *RegistryTestSuite) party() []content.Seat {
	return []content.Seat{
		{PlayerID: "p1", ClassType: entities.ClassBrute},
		{PlayerID: "p2", ClassType: entities.ClassSpellweaver},
	}
}

func (s *RegistryTestSuite) create() *registry.CreateRoomOutput {
	out, err := s.service.CreateRoom(s.ctx, &registry.CreateRoomInput{
		ScenarioID: "black-barrow",
		Players:    s.party(),
	})
	s.Require().NoError(err)
	return out
}

func (s *RegistryTestSuite) TestConfigValidation() {
	_, err := registry.NewOrchestrator(nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = registry.NewOrchestrator(&registry.Config{})
	s.Require().Error(err)
	s.Contains(err.Error(), "Content")

	_, err = registry.NewOrchestrator(&registry.Config{
		Content:     s.lib,
		Progress:    progress.NewInMemory(nil),
		Snapshots:   snapshots.NewInMemory(nil),
		Clock:       clock.New(),
		IDGenerator: idgen.NewSequential("room"),
		MaxRooms:    -1,
	})
	s.Require().Error(err)
	s.Contains(err.Error(), "MaxRooms")
}

func (s *RegistryTestSuite) TestCreateRoom() {
	out := s.create()

	s.Equal("room_1", out.Room.ID())
	s.Equal("room_1", out.Summary.RoomID)
	s.Equal("black-barrow", out.Summary.ScenarioID)
	s.Equal("Black Barrow", out.Summary.ScenarioName)
	s.Equal(replication.PhaseSelection, out.Summary.Phase)
	s.Equal([]string{"p1", "p2"}, out.Summary.Players)
	s.Zero(out.Summary.Connected)

	got, err := s.service.GetRoom(s.ctx, &registry.GetRoomInput{RoomID: "room_1"})
	s.Require().NoError(err)
	s.Same(out.Room, got.Room)
}

func (s *RegistryTestSuite) TestCreateRoomValidation() {
	testCases := []struct {
		name  string
		input *registry.CreateRoomInput
		check func(error) bool
	}{
		{name: "nil input", input: nil, check: errors.IsInvalidArgument},
		{name: "missing scenario", input: &registry.CreateRoomInput{Players: s.party()}, check: errors.IsInvalidArgument},
		{name: "missing players", input: &registry.CreateRoomInput{ScenarioID: "black-barrow"}, check: errors.IsInvalidArgument},
		{name: "unknown scenario", input: &registry.CreateRoomInput{ScenarioID: "nope", Players: s.party()}, check: errors.IsNotFound},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.service.CreateRoom(s.ctx, tc.input)
			s.Require().Error(err)
			s.True(tc.check(err), err.Error())
		})
	}
}

func (s *RegistryTestSuite) TestRoomLimit() {
	s.create()
	s.create()

	_, err := s.service.CreateRoom(s.ctx, &registry.CreateRoomInput{
		ScenarioID: "black-barrow",
		Players:    s.party(),
	})
	s.True(errors.IsFailedPrecondition(err))
}

func (s *RegistryTestSuite) TestConcurrentCreatesRespectLimit() {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		refused int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.CreateRoom(s.ctx, &registry.CreateRoomInput{
				ScenarioID: "black-barrow",
				Players:    s.party(),
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if errors.IsFailedPrecondition(err) {
				refused++
			}
		}()
	}
	wg.Wait()

	s.Equal(2, created)
	s.Equal(6, refused)
	list, err := s.service.ListRooms(s.ctx, &registry.ListRoomsInput{})
	s.Require().NoError(err)
	s.Len(list.Rooms, 2)
}

func (s *RegistryTestSuite) TestAbandonedRoomFreesItsSlot() {
	s.Require().NoError(s.service.Shutdown(s.ctx))
	s.service = s.newService(1, registry.RoomOptions{ReconnectGrace: 10 * time.Millisecond})

	out := s.create()
	joined, err := out.Room.Join(s.ctx, room.JoinInput{ClientID: "c1", PlayerID: "p1"})
	s.Require().NoError(err)
	s.Require().NoError(out.Room.Leave(s.ctx, "c1"))
	for range joined.Events {
	}

	select {
	case <-out.Room.Done():
	case <-time.After(time.Second):
		s.FailNow("abandoned room did not stop")
	}
	s.NoError(out.Room.Err())

	s.Eventually(func() bool {
		_, err := s.service.GetRoom(s.ctx, &registry.GetRoomInput{RoomID: out.Room.ID()})
		return errors.IsNotFound(err)
	}, time.Second, 10*time.Millisecond)
	s.create()
}

func (s *RegistryTestSuite) TestListRoomsInCreationOrder() {
	s.create()
	time.Sleep(time.Millisecond)
	s.create()

	out, err := s.service.ListRooms(s.ctx, &registry.ListRoomsInput{})
	s.Require().NoError(err)
	s.Require().Len(out.Rooms, 2)
	s.Equal("room_1", out.Rooms[0].RoomID)
	s.Equal("room_2", out.Rooms[1].RoomID)

	out, err = s.service.ListRooms(s.ctx, &registry.ListRoomsInput{Phase: replication.PhaseEnded})
	s.Require().NoError(err)
	s.Empty(out.Rooms)

	out, err = s.service.ListRooms(s.ctx, nil)
	s.Require().NoError(err)
	s.Len(out.Rooms, 2)
}

func (s *RegistryTestSuite) TestGetRoomNotFound() {
	_, err := s.service.GetRoom(s.ctx, &registry.GetRoomInput{RoomID: "missing"})
	s.True(errors.IsNotFound(err))

	_, err = s.service.GetRoom(s.ctx, &registry.GetRoomInput{})
	s.True(errors.IsInvalidArgument(err))
}

func (s *RegistryTestSuite) TestCloseRoom() {
	out := s.create()

	_, err := s.service.CloseRoom(s.ctx, &registry.CloseRoomInput{RoomID: out.Room.ID(), Reason: "maintenance"})
	s.Require().NoError(err)

	select {
	case <-out.Room.Done():
	case <-time.After(time.Second):
		s.Fail("room did not stop")
	}

	_, err = s.service.GetRoom(s.ctx, &registry.GetRoomInput{RoomID: out.Room.ID()})
	s.True(errors.IsNotFound(err))

	_, err = s.service.CloseRoom(s.ctx, &registry.CloseRoomInput{RoomID: out.Room.ID()})
	s.True(errors.IsNotFound(err))
}

func (s *RegistryTestSuite) TestShutdownClosesRoomsAndRefusesNew() {
	first := s.create()
	second := s.create()

	s.Require().NoError(s.service.Shutdown(s.ctx))

	for _, out := range []*registry.CreateRoomOutput{first, second} {
		select {
		case <-out.Room.Done():
		case <-time.After(time.Second):
			s.Fail("room did not stop")
		}
	}

	list, err := s.service.ListRooms(s.ctx, &registry.ListRoomsInput{})
	s.Require().NoError(err)
	s.Empty(list.Rooms)

	_, err = s.service.CreateRoom(s.ctx, &registry.CreateRoomInput{
		ScenarioID: "black-barrow",
		Players:    s.party(),
	})
	s.True(errors.IsUnavailable(err))
}

func (s *RegistryTestSuite) TestGetSnapshot() {
	out := s.create()

	live, err := s.service.GetSnapshot(s.ctx, &registry.GetSnapshotInput{RoomID: out.Room.ID()})
	s.Require().NoError(err)
	s.True(live.Live)
	s.Equal(out.Room.ID(), live.Snapshot.RoomID)
	s.Len(live.Snapshot.Monsters, 3)

	_, err = s.snapshots.Save(s.ctx, snapshots.SaveInput{
		RoomID:   "room_old",
		Round:    2,
		Snapshot: &replication.Snapshot{RoomID: "room_old", RoundNumber: 2},
	})
	s.Require().NoError(err)

	saved, err := s.service.GetSnapshot(s.ctx, &registry.GetSnapshotInput{RoomID: "room_old"})
	s.Require().NoError(err)
	s.False(saved.Live)
	s.False(saved.SavedAt.IsZero())
	s.Equal(2, saved.Snapshot.RoundNumber)

	_, err = s.service.GetSnapshot(s.ctx, &registry.GetSnapshotInput{RoomID: "room_missing"})
	s.True(errors.IsNotFound(err))
}
