package snapshots_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
	"github.com/KirkDiggler/hexhaven-api/internal/testutils"
)

// stepClock is advanced by hand
type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) AfterFunc(time.Duration, func()) func() bool {
	return func() bool { return false }
}

type SnapshotRepositoryTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock *stepClock
	mr    *miniredis.Miniredis
	repos map[string]snapshots.Repository
	snap  *replication.Snapshot
}

func TestSnapshotRepositorySuite(t *testing.T) {
	suite.Run(t, new(SnapshotRepositoryTestSuite))
}

func (s *SnapshotRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = &stepClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}

	client, mr := testutils.CreateTestRedisClient(s.T())
	s.mr = mr
	redisRepo, err := snapshots.NewRedis(&snapshots.RedisConfig{Client: client, Clock: s.clock})
	s.Require().NoError(err)
	s.repos = map[string]snapshots.Repository{
		"redis":     redisRepo,
		"in-memory": snapshots.NewInMemory(s.clock),
	}

	s.snap = &replication.Snapshot{
		RoomID:      "room-1",
		ScenarioID:  "black-barrow",
		Phase:       replication.PhaseSelection,
		RoundNumber: 2,
		Seq:         41,
		Characters: []*entities.Character{{
			ID:          "brute",
			PlayerID:    "p1",
			Hex:         hex.New(1, -1),
			Health:      7,
			MaxHealth:   10,
			Deck:        []string{"b1", "b2", "b3"},
			Hand:        []string{"b3"},
			DiscardPile: []string{"b1"},
			LostPile:    []string{"b2"},
		}},
		Loot:      []entities.LootToken{{ID: "loot-1", Hex: hex.New(3, 0), Value: 1}},
		TurnIndex: -1,
		Log:       []replication.LogEntry{{Seq: 41, Round: 2, Message: "Round 2 ends"}},
	}
}

func (s *SnapshotRepositoryTestSuite) TestSaveThenGet() {
	for name, repo := range s.repos {
		s.Run(name, func() {
			saved, err := repo.Save(s.ctx, snapshots.SaveInput{RoomID: "room-1", Round: 2, Snapshot: s.snap})
			s.Require().NoError(err)
			s.Equal(s.clock.now.Add(24*time.Hour), saved.Record.ExpiresAt)

			got, err := repo.Get(s.ctx, snapshots.GetInput{RoomID: "room-1"})
			s.Require().NoError(err)
			s.Equal(2, got.Record.Round)
			s.Equal(s.clock.now, got.Record.SavedAt)
			s.Equal(s.snap, got.Record.Snapshot)
		})
	}
}

func (s *SnapshotRepositoryTestSuite) TestSaveKeepsLatestOnly() {
	for name, repo := range s.repos {
		s.Run(name, func() {
			_, err := repo.Save(s.ctx, snapshots.SaveInput{RoomID: "room-1", Round: 1, Snapshot: s.snap})
			s.Require().NoError(err)
			_, err = repo.Save(s.ctx, snapshots.SaveInput{RoomID: "room-1", Round: 2, Snapshot: s.snap})
			s.Require().NoError(err)

			got, err := repo.Get(s.ctx, snapshots.GetInput{RoomID: "room-1"})
			s.Require().NoError(err)
			s.Equal(2, got.Record.Round)
		})
	}
}

func (s *SnapshotRepositoryTestSuite) TestValidation() {
	testCases := []struct {
		name  string
		input snapshots.SaveInput
	}{
		{name: "missing room", input: snapshots.SaveInput{Snapshot: s.snap}},
		{name: "missing snapshot", input: snapshots.SaveInput{RoomID: "room-1"}},
		{name: "negative ttl", input: snapshots.SaveInput{RoomID: "room-1", Snapshot: s.snap, TTL: -time.Second}},
		{name: "negative round", input: snapshots.SaveInput{RoomID: "room-1", Snapshot: s.snap, Round: -1}},
	}

	for name, repo := range s.repos {
		for _, tc := range testCases {
			s.Run(name+"/"+tc.name, func() {
				_, err := repo.Save(s.ctx, tc.input)
				s.True(errors.IsInvalidArgument(err))
			})
		}
		_, err := repo.Get(s.ctx, snapshots.GetInput{})
		s.True(errors.IsInvalidArgument(err))
	}
}

func (s *SnapshotRepositoryTestSuite) TestGetMissing() {
	for name, repo := range s.repos {
		s.Run(name, func() {
			_, err := repo.Get(s.ctx, snapshots.GetInput{RoomID: "nope"})
			s.True(errors.IsNotFound(err))
		})
	}
}

func (s *SnapshotRepositoryTestSuite) TestRedisExpiry() {
	repo := s.repos["redis"]
	_, err := repo.Save(s.ctx, snapshots.SaveInput{RoomID: "room-1", Snapshot: s.snap, TTL: time.Minute})
	s.Require().NoError(err)
	s.Equal(time.Minute, s.mr.TTL("snapshot:room:room-1"))

	s.mr.FastForward(2 * time.Minute)
	_, err = repo.Get(s.ctx, snapshots.GetInput{RoomID: "room-1"})
	s.True(errors.IsNotFound(err))
}

func (s *SnapshotRepositoryTestSuite) TestInMemoryExpiry() {
	repo := s.repos["in-memory"]
	_, err := repo.Save(s.ctx, snapshots.SaveInput{RoomID: "room-1", Snapshot: s.snap, TTL: time.Minute})
	s.Require().NoError(err)

	s.clock.now = s.clock.now.Add(2 * time.Minute)
	_, err = repo.Get(s.ctx, snapshots.GetInput{RoomID: "room-1"})
	s.True(errors.IsNotFound(err))
}
