package initiative_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/initiative"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
)

type InitiativeTestSuite struct {
	suite.Suite
}

func TestInitiativeSuite(t *testing.T) {
	suite.Run(t, new(InitiativeTestSuite))
}

func ids(order []initiative.Entry) []string {
	out := make([]string, 0, len(order))
	for _, e := range order {
		out = append(out, e.EntityID)
	}
	return out
}

func (s *InitiativeTestSuite) TestAscendingInitiative() {
	order := initiative.Determine([]initiative.Entrant{
		{EntityID: "A", EntityType: entities.EntityTypeCharacter, Initiative: 20},
		{EntityID: "B", EntityType: entities.EntityTypeCharacter, Initiative: 50},
		{EntityID: "C", EntityType: entities.EntityTypeCharacter, Initiative: 35},
	})
	s.Assert().Equal([]string{"A", "C", "B"}, ids(order))
}

func (s *InitiativeTestSuite) TestClassTieBreak() {
	order := initiative.Determine([]initiative.Entrant{
		{EntityID: "mind", EntityType: entities.EntityTypeCharacter, Initiative: 50, ClassType: entities.ClassMindthief},
		{EntityID: "brute", EntityType: entities.EntityTypeCharacter, Initiative: 50, ClassType: entities.ClassBrute},
	})
	s.Assert().Equal([]string{"brute", "mind"}, ids(order))
}

func (s *InitiativeTestSuite) TestCharactersBeforeMonstersThenPriority() {
	order := initiative.Determine([]initiative.Entrant{
		{EntityID: "archer", EntityType: entities.EntityTypeMonster, Initiative: 30, Priority: 2},
		{EntityID: "guard", EntityType: entities.EntityTypeMonster, Initiative: 30, Priority: 1},
		{EntityID: "scoundrel", EntityType: entities.EntityTypeCharacter, Initiative: 30, ClassType: entities.ClassScoundrel},
	})
	s.Assert().Equal([]string{"scoundrel", "guard", "archer"}, ids(order))
}

func (s *InitiativeTestSuite) TestStableInputOrder() {
	order := initiative.Determine([]initiative.Entrant{
		{EntityID: "m2", EntityType: entities.EntityTypeMonster, Initiative: 40, Priority: 1},
		{EntityID: "m1", EntityType: entities.EntityTypeMonster, Initiative: 40, Priority: 1},
	})
	s.Assert().Equal([]string{"m2", "m1"}, ids(order))
}

func (s *InitiativeTestSuite) TestUpdateReusesMetadata() {
	first := initiative.Determine([]initiative.Entrant{
		{EntityID: "brute", EntityType: entities.EntityTypeCharacter, Initiative: 10, Name: "Brute", ClassType: entities.ClassBrute},
		{EntityID: "mind", EntityType: entities.EntityTypeCharacter, Initiative: 20, Name: "Mindthief", ClassType: entities.ClassMindthief},
	})

	next := initiative.Update(first, map[string]int{"brute": 60, "mind": 60})
	s.Assert().Equal([]string{"brute", "mind"}, ids(next))
	s.Assert().Equal("Brute", next[0].Name)
	s.Assert().Equal(60, next[1].Initiative)

	// the previous order is untouched
	s.Assert().Equal(10, first[0].Initiative)
}

func (s *InitiativeTestSuite) TestTrackerSkipsDead() {
	order := initiative.Determine([]initiative.Entrant{
		{EntityID: "A", Initiative: 10},
		{EntityID: "B", Initiative: 20},
		{EntityID: "C", Initiative: 30},
	})
	dead := map[string]bool{"B": true}
	tracker := initiative.NewTracker(order)

	_, ok := tracker.Current()
	s.Assert().False(ok)

	e, ok := tracker.Advance(func(id string) bool { return !dead[id] })
	s.Require().True(ok)
	s.Assert().Equal("A", e.EntityID)

	e, ok = tracker.Advance(func(id string) bool { return !dead[id] })
	s.Require().True(ok)
	s.Assert().Equal("C", e.EntityID)
	s.Assert().Equal(2, tracker.Index())

	_, ok = tracker.Advance(nil)
	s.Assert().False(ok)
	s.Assert().True(tracker.Complete())
	s.Assert().Len(tracker.Order(), 3)
}

func (s *InitiativeTestSuite) TestResume() {
	order := initiative.Determine([]initiative.Entrant{{EntityID: "A"}, {EntityID: "B", Initiative: 1}})
	tracker, err := initiative.Resume(order, 0)
	s.Require().NoError(err)
	e, ok := tracker.Advance(nil)
	s.Require().True(ok)
	s.Assert().Equal("B", e.EntityID)

	_, err = initiative.Resume(order, 5)
	s.Assert().Error(err)
}
