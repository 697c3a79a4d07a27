package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	mockclock "github.com/KirkDiggler/hexhaven-api/internal/pkg/clock/mock"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/testutils"
)

type ProgressRepositoryTestSuite struct {
	suite.Suite
	ctrl  *gomock.Controller
	clock *mockclock.MockClock
	mr    *miniredis.Miniredis
	ctx   context.Context
	now   time.Time
	repos map[string]progress.Repository
}

func TestProgressRepositorySuite(t *testing.T) {
	suite.Run(t, new(ProgressRepositoryTestSuite))
}

func (s *ProgressRepositoryTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.clock = mockclock.NewMockClock(s.ctrl)
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.clock.EXPECT().Now().Return(s.now).AnyTimes()
	s.ctx = context.Background()

	client, mr := testutils.CreateTestRedisClient(s.T())
	s.mr = mr
	redisRepo, err := progress.NewRedis(&progress.RedisConfig{Client: client, Clock: s.clock})
	s.Require().NoError(err)

	s.repos = map[string]progress.Repository{
		"redis":     redisRepo,
		"in-memory": progress.NewInMemory(s.clock),
	}
}

func (s *ProgressRepositoryTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func victory(roomID string) progress.ApplyRewardsInput {
	return progress.ApplyRewardsInput{
		RoomID:  roomID,
		Victory: true,
		Rewards: []progress.Reward{
			{PlayerID: "p1", CharacterID: "brute", Gold: 3, XP: 8},
			{PlayerID: "p2", CharacterID: "mind", Gold: 1, XP: 8},
		},
	}
}

func (s *ProgressRepositoryTestSuite) TestNewRedisValidatesConfig() {
	_, err := progress.NewRedis(nil)
	s.Error(err)

	_, err = progress.NewRedis(&progress.RedisConfig{})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))
}

func (s *ProgressRepositoryTestSuite) TestApplyRewardsAccumulates() {
	for name, repo := range s.repos {
		s.Run(name, func() {
			out, err := repo.ApplyRewards(s.ctx, victory("room-1"))
			s.Require().NoError(err)
			s.True(out.Applied)

			out, err = repo.ApplyRewards(s.ctx, progress.ApplyRewardsInput{
				RoomID:  "room-2",
				Rewards: []progress.Reward{{PlayerID: "p1", CharacterID: "brute", Gold: 2}},
			})
			s.Require().NoError(err)
			s.True(out.Applied)

			got, err := repo.Get(s.ctx, progress.GetInput{PlayerID: "p1"})
			s.Require().NoError(err)
			s.Equal(5, got.Progress.Gold)
			s.Equal(8, got.Progress.XP)
			s.Equal(1, got.Progress.ScenariosCompleted)
			s.Equal(s.now, got.Progress.UpdatedAt)
		})
	}
}

func (s *ProgressRepositoryTestSuite) TestApplyRewardsIsIdempotentPerRoom() {
	for name, repo := range s.repos {
		s.Run(name, func() {
			_, err := repo.ApplyRewards(s.ctx, victory("room-1"))
			s.Require().NoError(err)

			out, err := repo.ApplyRewards(s.ctx, victory("room-1"))
			s.Require().NoError(err)
			s.False(out.Applied)

			got, err := repo.Get(s.ctx, progress.GetInput{PlayerID: "p2"})
			s.Require().NoError(err)
			s.Equal(1, got.Progress.Gold)
			s.Equal(1, got.Progress.ScenariosCompleted)
		})
	}
}

func (s *ProgressRepositoryTestSuite) TestValidation() {
	for name, repo := range s.repos {
		s.Run(name, func() {
			_, err := repo.ApplyRewards(s.ctx, progress.ApplyRewardsInput{})
			s.True(errors.IsInvalidArgument(err))

			_, err = repo.ApplyRewards(s.ctx, progress.ApplyRewardsInput{
				RoomID:  "room-1",
				Rewards: []progress.Reward{{CharacterID: "brute"}},
			})
			s.True(errors.IsInvalidArgument(err))

			_, err = repo.Get(s.ctx, progress.GetInput{})
			s.True(errors.IsInvalidArgument(err))
		})
	}
}

func (s *ProgressRepositoryTestSuite) TestGetUnknownPlayer() {
	for name, repo := range s.repos {
		s.Run(name, func() {
			_, err := repo.Get(s.ctx, progress.GetInput{PlayerID: "nobody"})
			s.True(errors.IsNotFound(err))
		})
	}
}

func (s *ProgressRepositoryTestSuite) TestRedisStoresHashPerPlayer() {
	_, err := s.repos["redis"].ApplyRewards(s.ctx, victory("room-1"))
	s.Require().NoError(err)

	s.Equal("3", s.mr.HGet("progress:player:p1", "gold"))
	s.Equal("8", s.mr.HGet("progress:player:p1", "xp"))
	s.True(s.mr.Exists("progress:applied:room-1"))
	s.Equal(7*24*time.Hour, s.mr.TTL("progress:applied:room-1"))
}

func (s *ProgressRepositoryTestSuite) TestRedisFailureIsReported() {
	s.mr.SetError("LOADING server is loading")
	_, err := s.repos["redis"].ApplyRewards(s.ctx, victory("room-1"))
	s.Error(err)

	s.mr.SetError("")
	out, err := s.repos["redis"].ApplyRewards(s.ctx, victory("room-1"))
	s.Require().NoError(err)
	s.True(out.Applied)
}
