package replication_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/hexhaven-api/internal/engine/combat"
	"github.com/KirkDiggler/hexhaven-api/internal/engine/rest"
	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
	"github.com/KirkDiggler/hexhaven-api/internal/replication"
)

type EnvelopeTestSuite struct {
	suite.Suite
}

func TestEnvelopeSuite(t *testing.T) {
	suite.Run(t, new(EnvelopeTestSuite))
}

func (s *EnvelopeTestSuite) TestEveryEventTypeDecodes() {
	for _, eventType := range replication.EventTypes() {
		s.Run(string(eventType), func() {
			ev, err := replication.NewEvent(eventType)
			s.Require().NoError(err)
			s.Equal(eventType, ev.EventType())

			data, err := replication.NewEnvelope(7, ev).Encode()
			s.Require().NoError(err)

			env, err := replication.DecodeEnvelope(data)
			s.Require().NoError(err)
			s.Equal(eventType, env.Type)
			s.Equal(int64(7), env.Seq)
			s.IsType(ev, env.Payload)
		})
	}
}

func (s *EnvelopeTestSuite) TestAttackResolvedKeepsModifierForm() {
	ev := &replication.AttackResolved{
		AttackerID:       "char-1",
		TargetID:         "mon-1",
		BaseDamage:       3,
		Damage:           6,
		Modifier:         combat.Double(),
		Effects:          []entities.Condition{entities.ConditionPoison},
		TargetHealth:     0,
		TargetConditions: entities.Conditions{entities.ConditionPoison},
	}
	data, err := replication.NewEnvelope(3, ev).Encode()
	s.Require().NoError(err)

	var raw map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(data, &raw))
	var payload map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(raw["payload"], &payload))
	s.JSONEq(`"x2"`, string(payload["modifier"]))

	env, err := replication.DecodeEnvelope(data)
	s.Require().NoError(err)
	got, ok := env.Payload.(*replication.AttackResolved)
	s.Require().True(ok)
	s.Equal(ev, got)
}

func (s *EnvelopeTestSuite) TestRestEventFlattensOnTheWire() {
	ev := &replication.RestEvent{Event: rest.Event{
		Type:        rest.StageAwaitingDecision,
		CharacterID: "char-1",
		RestType:    rest.KindShort,
		CardID:      "c2",
		Hand:        []string{"c3"},
		DiscardPile: []string{"c1", "c2"},
		LostPile:    []string{},
	}}
	data, err := replication.NewEnvelope(4, ev).Encode()
	s.Require().NoError(err)
	s.Contains(string(data), `"type":"rest-event"`)
	s.Contains(string(data), `"type":"awaiting-decision"`)

	env, err := replication.DecodeEnvelope(data)
	s.Require().NoError(err)
	s.Equal(ev, env.Payload)
}

func (s *EnvelopeTestSuite) TestUnknownEventType() {
	_, err := replication.DecodeEnvelope([]byte(`{"type":"teleported","seq":1,"payload":{}}`))
	s.Require().Error(err)
	s.True(errors.IsProtocolViolation(err))
}

func (s *EnvelopeTestSuite) TestMalformedPayload() {
	_, err := replication.DecodeEnvelope([]byte(`{"type":"character_moved","seq":1,"payload":{"distance":"far"}}`))
	s.Require().Error(err)
	s.True(errors.IsProtocolViolation(err))
}

func (s *EnvelopeTestSuite) TestErrorEvent() {
	ev := replication.ErrorEvent(errors.IllegalAction("not your turn"))
	s.Equal(string(errors.KindIllegalAction), ev.Kind)
	s.Equal("not your turn", ev.Message)

	ev = replication.ErrorEvent(errors.InvalidArgument("bad"))
	s.Equal(string(errors.KindProtocolViolation), ev.Kind)

	ev = replication.ErrorEvent(errors.Internal("boom"))
	s.Equal(string(errors.KindInvariantViolation), ev.Kind)
}

type CommandTestSuite struct {
	suite.Suite
}

func TestCommandSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}

func (s *CommandTestSuite) TestRoundTrip() {
	target := hex.New(1, -1)
	commands := []replication.Command{
		&replication.Hello{PlayerID: "p1"},
		&replication.SelectCards{CharacterID: "char-1", Top: "c1", Bottom: "c2", InitiativeCardID: "c2"},
		&replication.DeclareLongRest{CharacterID: "char-1"},
		&replication.ChooseLongRestCard{CharacterID: "char-1", CardID: "c1"},
		&replication.StartShortRest{CharacterID: "char-1"},
		&replication.RestDecision{CharacterID: "char-1", Decision: replication.RestReroll},
		&replication.UseCardAction{CharacterID: "char-1", CardID: "c1", Position: entities.PositionTop, TargetHex: &target},
	}
	for _, cmd := range commands {
		s.Run(string(cmd.CommandType()), func() {
			data, err := replication.EncodeCommand(cmd)
			s.Require().NoError(err)

			got, err := replication.DecodeCommand(data)
			s.Require().NoError(err)
			s.Equal(cmd, got)
		})
	}
}

func (s *CommandTestSuite) TestActor() {
	s.Equal("char-1", replication.Actor(&replication.StartShortRest{CharacterID: "char-1"}))
	s.Equal("", replication.Actor(&replication.Hello{PlayerID: "p1"}))
}

func (s *CommandTestSuite) TestRejectsBadInput() {
	testCases := []struct {
		name string
		data string
	}{
		{name: "not json", data: `move please`},
		{name: "unknown type", data: `{"type":"cast_fireball","payload":{}}`},
		{name: "missing payload", data: `{"type":"select_cards"}`},
		{name: "wrong field type", data: `{"type":"select_cards","payload":{"characterId":5}}`},
		{name: "same card twice", data: `{"type":"select_cards","payload":{"characterId":"c","top":"a","bottom":"a","initiativeCardId":"a"}}`},
		{name: "initiative card not selected", data: `{"type":"select_cards","payload":{"characterId":"c","top":"a","bottom":"b","initiativeCardId":"z"}}`},
		{name: "bad decision", data: `{"type":"rest_decision","payload":{"characterId":"c","decision":"maybe"}}`},
		{name: "bad position", data: `{"type":"use_card_action","payload":{"characterId":"c","cardId":"a","position":"middle"}}`},
		{name: "missing player", data: `{"type":"hello","payload":{}}`},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := replication.DecodeCommand([]byte(tc.data))
			s.Require().Error(err)
			s.True(errors.IsProtocolViolation(err), "got %v", err)
		})
	}
}
