package simulate_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/content"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/orchestrators/registry"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/clock"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/progress"
	"github.com/KirkDiggler/hexhaven-api/internal/repositories/snapshots"
	"github.com/KirkDiggler/hexhaven-api/internal/simulate"
)

type SimulateTestSuite struct {
	suite.Suite
	ctx      context.Context
	cancel   context.CancelFunc
	lib      *content.Library
	registry registry.Service
}

func TestSimulateSuite(t *testing.T) {
	suite.Run(t, new(SimulateTestSuite))
}

func (s *SimulateTestSuite) SetupTest() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 20*time.Second)

	lib, err := content.Load()
	s.Require().NoError(err)
	s.lib = lib

	clk := clock.New()
	s.registry, err = registry.NewOrchestrator(&registry.Config{
		Content:     lib,
		Progress:    progress.NewInMemory(clk),
		Snapshots:   snapshots.NewInMemory(clk),
		Clock:       clk,
		IDGenerator: idgen.NewSequential("sim"),
	})
	s.Require().NoError(err)
}

func (s *SimulateTestSuite) TearDownTest() {
	s.NoError(s.registry.Shutdown(context.Background()))
	s.cancel()
}

func (s *SimulateTestSuite) config(out *bytes.Buffer) *simulate.Config {
	return &simulate.Config{
		Registry:   s.registry,
		Content:    s.lib,
		ScenarioID: "black-barrow",
		Seats: []content.Seat{
			{PlayerID: "p1", ClassType: entities.ClassBrute},
			{PlayerID: "p2", ClassType: entities.ClassSpellweaver},
		},
		MaxRounds: 6,
		Out:       out,
	}
}

func (s *SimulateTestSuite) TestConfigValidation() {
	_, err := simulate.Run(s.ctx, nil)
	s.True(errors.IsInvalidArgument(err))

	_, err = simulate.Run(s.ctx, &simulate.Config{MaxRounds: -1})
	s.Require().Error(err)
	s.Contains(err.Error(), "Registry")
	s.Contains(err.Error(), "MaxRounds")
}

func (s *SimulateTestSuite) TestUnknownScenario() {
	cfg := s.config(nil)
	cfg.ScenarioID = "nope"

	_, err := simulate.Run(s.ctx, cfg)
	s.True(errors.IsNotFound(err))
}

func (s *SimulateTestSuite) TestPlaysRounds() {
	var out bytes.Buffer
	res, err := simulate.Run(s.ctx, s.config(&out))
	s.Require().NoError(err)

	s.GreaterOrEqual(res.Rounds, 1)
	s.Positive(res.Accepted)
	if res.Outcome == "" {
		s.LessOrEqual(res.Rounds, 6)
	} else {
		s.Equal(replication.PhaseEnded, res.Final.Phase)
	}

	s.Contains(out.String(), string(replication.EventGameStarted))
	s.Contains(out.String(), string(replication.EventCardsSelected))
	s.Contains(out.String(), string(replication.EventRoundStarted))

	// The stream seen by a player converges on the room
	s.GreaterOrEqual(res.Client.LastSeq, res.Seq)
	s.Equal(res.Final.RoundNumber, res.Client.RoundNumber)
	s.Len(res.Client.Characters, 2)
}

func (s *SimulateTestSuite) TestRoomIsClosedAfterRun() {
	res, err := simulate.Run(s.ctx, s.config(nil))
	s.Require().NoError(err)

	_, err = s.registry.GetRoom(s.ctx, &registry.GetRoomInput{RoomID: res.RoomID})
	s.True(errors.IsNotFound(err))
}
