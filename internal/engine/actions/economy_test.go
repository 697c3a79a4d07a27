package actions_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/actions"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

type EconomyTestSuite struct {
	suite.Suite
	economy *actions.Economy
}

func TestEconomySuite(t *testing.T) {
	suite.Run(t, new(EconomyTestSuite))
}

func (s *EconomyTestSuite) SetupTest() {
	s.economy = actions.New("c1", "c2")
}

func (s *EconomyTestSuite) TestLengthsFourOneZero() {
	s.Assert().Len(s.economy.Available(), 4)
	s.Assert().Equal(actions.StageFresh, s.economy.Stage())

	s.Require().NoError(s.economy.Select("c1", entities.PositionTop))
	s.Assert().Len(s.economy.Available(), 1)
	s.Assert().Equal([]actions.Slot{{CardID: "c2", Position: entities.PositionBottom}}, s.economy.Available())

	s.Require().NoError(s.economy.Select("c2", entities.PositionBottom))
	s.Assert().Empty(s.economy.Available())
	s.Assert().True(s.economy.Done())

	err := s.economy.Select("c1", entities.PositionBottom)
	s.Require().Error(err)
	s.Assert().True(errors.IsIllegalAction(err))
}

func (s *EconomyTestSuite) TestThirdSelectAlwaysRejected() {
	for _, first := range s.economy.Available() {
		s.Run(first.CardID+"_"+string(first.Position), func() {
			e := actions.New("c1", "c2")
			s.Require().NoError(e.Select(first.CardID, first.Position))
			second := e.Available()[0]
			s.Require().NoError(e.Select(second.CardID, second.Position))

			for _, slot := range []actions.Slot{
				{CardID: "c1", Position: entities.PositionTop},
				{CardID: "c1", Position: entities.PositionBottom},
				{CardID: "c2", Position: entities.PositionTop},
				{CardID: "c2", Position: entities.PositionBottom},
			} {
				s.Assert().Error(e.Select(slot.CardID, slot.Position))
			}
		})
	}
}

func (s *EconomyTestSuite) TestSameCardTwiceRejected() {
	s.Require().NoError(s.economy.Select("c2", entities.PositionBottom))

	err := s.economy.Select("c2", entities.PositionTop)
	s.Require().Error(err)
	s.Assert().True(errors.IsIllegalAction(err))

	err = s.economy.Select("c1", entities.PositionBottom)
	s.Require().Error(err)
	s.Assert().Len(s.economy.Available(), 1)
}

func (s *EconomyTestSuite) TestUnknownCardRejected() {
	err := s.economy.Select("c9", entities.PositionTop)
	s.Require().Error(err)
	s.Assert().Len(s.economy.Available(), 4)
}

func (s *EconomyTestSuite) TestCheckDoesNotMutate() {
	s.Require().NoError(s.economy.Check("c1", entities.PositionTop))
	s.Assert().Len(s.economy.Available(), 4)
	s.Assert().Nil(s.economy.State().FirstAction)
}

func (s *EconomyTestSuite) TestStateRoundTrip() {
	s.Require().NoError(s.economy.Select("c1", entities.PositionBottom))
	state := s.economy.State()
	s.Require().NotNil(state.FirstAction)
	s.Assert().Equal("c1", state.FirstAction.CardID)

	restored := actions.Restore("c1", "c2", state)
	s.Assert().Equal(actions.StageFirstUsed, restored.Stage())
	s.Require().NoError(restored.Select("c2", entities.PositionTop))
	s.Assert().True(restored.Done())
	s.Assert().Len(restored.Used(), 2)
}
