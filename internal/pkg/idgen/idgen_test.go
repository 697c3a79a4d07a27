package idgen_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/pkg/idgen"
)

type IDGenTestSuite struct {
	suite.Suite
}

func TestIDGenSuite(t *testing.T) {
	suite.Run(t, new(IDGenTestSuite))
}

func (s *IDGenTestSuite) TestSequential() {
	gen := idgen.NewSequential("loot")
	s.Assert().Equal("loot_1", gen.Generate())
	s.Assert().Equal("loot_2", gen.Generate())

	bare := idgen.NewSequential("")
	s.Assert().Equal("1", bare.Generate())
}

func (s *IDGenTestSuite) TestSequentialConcurrent() {
	gen := idgen.NewSequential("x")
	seen := sync.Map{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, loaded := seen.LoadOrStore(gen.Generate(), true)
			s.Assert().False(loaded)
		}()
	}
	wg.Wait()
}

func (s *IDGenTestSuite) TestPrefixed() {
	gen := idgen.NewPrefixed("room")
	a := gen.Generate()
	b := gen.Generate()
	s.Assert().True(strings.HasPrefix(a, "room_"))
	s.Assert().NotEqual(a, b)
	s.Assert().Len(strings.Split(a, "_"), 3)
}

func (s *IDGenTestSuite) TestUUID() {
	s.Assert().True(strings.HasPrefix(idgen.NewUUID("room").Generate(), "room_"))
	s.Assert().Len(idgen.NewUUID("").Generate(), 36)
}
