package replication

import (
	"encoding/json"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// Envelope wraps every event sent to clients. Seq increases by one per
// broadcast event within a room; events addressed to a single client carry
// seq 0.
type Envelope struct {
	Type    EventType `json:"type"`
	Seq     int64     `json:"seq"`
	Payload Event     `json:"payload"`
}

// NewEnvelope wraps ev
func NewEnvelope(seq int64, ev Event) Envelope {
	return Envelope{Type: ev.EventType(), Seq: seq, Payload: ev}
}

// Encode marshals the envelope for the wire
func (e Envelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s event", e.Type)
	}
	return data, nil
}

type wireEnvelope struct {
	Type    EventType       `json:"type"`
	Seq     int64           `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// UnmarshalJSON decodes the payload into its concrete type
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return errors.ProtocolViolationf("malformed event envelope: %v", err)
	}

	ev, err := NewEvent(wire.Type)
	if err != nil {
		return err
	}
	if len(wire.Payload) > 0 {
		if err := json.Unmarshal(wire.Payload, ev); err != nil {
			return errors.ProtocolViolationf("malformed %s payload: %v", wire.Type, err)
		}
	}

	*e = Envelope{Type: wire.Type, Seq: wire.Seq, Payload: ev}
	return nil
}

// DecodeEnvelope parses one wire event
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// NewEvent returns an empty payload for t. Adding an event type without a
// case here fails the exhaustive decoding test.
func NewEvent(t EventType) (Event, error) {
	switch t {
	case EventGameStarted:
		return &GameStarted{}, nil
	case EventRoundStarted:
		return &RoundStarted{}, nil
	case EventRoundEnded:
		return &RoundEnded{}, nil
	case EventTurnStarted:
		return &TurnStarted{}, nil
	case EventTurnEnded:
		return &TurnEnded{}, nil
	case EventCharacterMoved:
		return &CharacterMoved{}, nil
	case EventAttackResolved:
		return &AttackResolved{}, nil
	case EventMonsterActivated:
		return &MonsterActivated{}, nil
	case EventMonsterDied:
		return &MonsterDied{}, nil
	case EventLootSpawned:
		return &LootSpawned{}, nil
	case EventLootCollected:
		return &LootCollected{}, nil
	case EventRest:
		return &RestEvent{}, nil
	case EventCardActionExecuted:
		return &CardActionExecuted{}, nil
	case EventCardsSelected:
		return &CardsSelected{}, nil
	case EventHealResolved:
		return &HealResolved{}, nil
	case EventSummonPlaced:
		return &SummonPlaced{}, nil
	case EventSummonRemoved:
		return &SummonRemoved{}, nil
	case EventConditionDamage:
		return &ConditionDamage{}, nil
	case EventScenarioEnded:
		return &ScenarioEnded{}, nil
	case EventPlayerDisconnected:
		return &PlayerDisconnected{}, nil
	case EventPersistenceFailed:
		return &PersistenceFailed{}, nil
	case EventError:
		return &Error{}, nil
	default:
		return nil, errors.ProtocolViolationf("unknown event type %q", t)
	}
}

// EventTypes lists every event type
func EventTypes() []EventType {
	return []EventType{
		EventGameStarted, EventRoundStarted, EventRoundEnded, EventTurnStarted,
		EventTurnEnded, EventCharacterMoved, EventAttackResolved, EventMonsterActivated,
		EventMonsterDied, EventLootSpawned, EventLootCollected, EventRest,
		EventCardActionExecuted, EventCardsSelected, EventHealResolved, EventSummonPlaced,
		EventSummonRemoved, EventConditionDamage, EventScenarioEnded, EventPlayerDisconnected,
		EventPersistenceFailed, EventError,
	}
}

// ErrorEvent converts err to the event sent to the originating client
func ErrorEvent(err error) *Error {
	kind := string(errors.GetKind(err))
	if kind == "" {
		kind = string(errors.KindProtocolViolation)
		if !errors.IsInvalidArgument(err) {
			kind = string(errors.KindInvariantViolation)
		}
	}
	return &Error{
		Kind:    kind,
		Code:    string(errors.GetCode(err)),
		Message: errors.GetMessage(err),
	}
}
