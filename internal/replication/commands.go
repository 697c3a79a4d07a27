package replication

import (
	"encoding/json"

	"github.com/KirkDiggler/hexhaven-api/internal/entities"
	"github.com/KirkDiggler/hexhaven-api/internal/errors"
	"github.com/KirkDiggler/hexhaven-api/internal/pkg/hex"
)

// CommandType tags a client command on the wire
type CommandType string

// Command types
const (
	CommandHello              CommandType = "hello"
	CommandSelectCards        CommandType = "select_cards"
	CommandDeclareLongRest    CommandType = "declare_long_rest"
	CommandChooseLongRestCard CommandType = "choose_long_rest_card"
	CommandStartShortRest     CommandType = "start_short_rest"
	CommandRestDecision       CommandType = "rest_decision"
	CommandUseCardAction      CommandType = "use_card_action"
)

// Command is implemented only by the command types in this package
type Command interface {
	CommandType() CommandType
	// Validate checks the payload shape, not the game rules
	Validate() error
}

// Hello opens a websocket session for a player
type Hello struct {
	PlayerID string `json:"playerId"`
}

// SelectCards picks the two cards for the next round
type SelectCards struct {
	CharacterID      string `json:"characterId"`
	Top              string `json:"top"`
	Bottom           string `json:"bottom"`
	InitiativeCardID string `json:"initiativeCardId"`
}

// DeclareLongRest skips card selection to long rest this round
type DeclareLongRest struct {
	CharacterID string `json:"characterId"`
}

// ChooseLongRestCard names the discard card a long rest loses
type ChooseLongRestCard struct {
	CharacterID string `json:"characterId"`
	CardID      string `json:"cardId"`
}

// StartShortRest begins a short rest between rounds
type StartShortRest struct {
	CharacterID string `json:"characterId"`
}

// RestDecision answers a pending short rest
type RestDecision struct {
	CharacterID string           `json:"characterId"`
	Decision    RestDecisionKind `json:"decision"`
}

// RestDecisionKind is accept or reroll
type RestDecisionKind string

// Rest decisions
const (
	RestAccept RestDecisionKind = "accept"
	RestReroll RestDecisionKind = "reroll"
)

// UseCardAction performs one half of a selected card
type UseCardAction struct {
	CharacterID string            `json:"characterId"`
	CardID      string            `json:"cardId"`
	Position    entities.Position `json:"position"`
	TargetID    string            `json:"targetId,omitempty"`
	TargetHex   *hex.Hex          `json:"targetHex,omitempty"`
}

func (*Hello) CommandType() CommandType              { return CommandHello }
func (*SelectCards) CommandType() CommandType        { return CommandSelectCards }
func (*DeclareLongRest) CommandType() CommandType    { return CommandDeclareLongRest }
func (*ChooseLongRestCard) CommandType() CommandType { return CommandChooseLongRestCard }
func (*StartShortRest) CommandType() CommandType     { return CommandStartShortRest }
func (*RestDecision) CommandType() CommandType       { return CommandRestDecision }
func (*UseCardAction) CommandType() CommandType      { return CommandUseCardAction }

// Validate implements Command
func (c *Hello) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerId", c.PlayerID, vb)
	return protocol(vb.Build())
}

// Validate implements Command
func (c *SelectCards) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterId", c.CharacterID, vb)
	errors.ValidateRequired("top", c.Top, vb)
	errors.ValidateRequired("bottom", c.Bottom, vb)
	errors.ValidateRequired("initiativeCardId", c.InitiativeCardID, vb)
	if c.Top != "" && c.Top == c.Bottom {
		vb.Field("bottom", "must differ from top")
	}
	if c.InitiativeCardID != "" && c.InitiativeCardID != c.Top && c.InitiativeCardID != c.Bottom {
		vb.Field("initiativeCardId", "must be one of the selected cards")
	}
	return protocol(vb.Build())
}

// Validate implements Command
func (c *DeclareLongRest) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterId", c.CharacterID, vb)
	return protocol(vb.Build())
}

// Validate implements Command
func (c *ChooseLongRestCard) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterId", c.CharacterID, vb)
	errors.ValidateRequired("cardId", c.CardID, vb)
	return protocol(vb.Build())
}

// Validate implements Command
func (c *StartShortRest) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterId", c.CharacterID, vb)
	return protocol(vb.Build())
}

// Validate implements Command
func (c *RestDecision) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterId", c.CharacterID, vb)
	if c.Decision != RestAccept && c.Decision != RestReroll {
		vb.InvalidField("decision", "must be accept or reroll")
	}
	return protocol(vb.Build())
}

// Validate implements Command
func (c *UseCardAction) Validate() error {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterId", c.CharacterID, vb)
	errors.ValidateRequired("cardId", c.CardID, vb)
	if !c.Position.Valid() {
		vb.InvalidField("position", "must be top or bottom")
	}
	return protocol(vb.Build())
}

// Actor returns the character a command acts for, or "" for hello
func Actor(cmd Command) string {
	switch c := cmd.(type) {
	case *SelectCards:
		return c.CharacterID
	case *DeclareLongRest:
		return c.CharacterID
	case *ChooseLongRestCard:
		return c.CharacterID
	case *StartShortRest:
		return c.CharacterID
	case *RestDecision:
		return c.CharacterID
	case *UseCardAction:
		return c.CharacterID
	default:
		return ""
	}
}

// protocol marks validation failures as protocol violations
func protocol(err error) error {
	if err == nil {
		return nil
	}
	out := errors.Wrap(err, "invalid command payload")
	out.Kind = errors.KindProtocolViolation
	return out
}

type wireCommand struct {
	Type    CommandType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeCommand parses and validates one client command
func DecodeCommand(data []byte) (Command, error) {
	var wire wireCommand
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.ProtocolViolationf("malformed command: %v", err)
	}

	var cmd Command
	switch wire.Type {
	case CommandHello:
		cmd = &Hello{}
	case CommandSelectCards:
		cmd = &SelectCards{}
	case CommandDeclareLongRest:
		cmd = &DeclareLongRest{}
	case CommandChooseLongRestCard:
		cmd = &ChooseLongRestCard{}
	case CommandStartShortRest:
		cmd = &StartShortRest{}
	case CommandRestDecision:
		cmd = &RestDecision{}
	case CommandUseCardAction:
		cmd = &UseCardAction{}
	default:
		return nil, errors.ProtocolViolationf("unknown command type %q", wire.Type)
	}

	if len(wire.Payload) == 0 {
		return nil, errors.ProtocolViolationf("%s command has no payload", wire.Type)
	}
	if err := json.Unmarshal(wire.Payload, cmd); err != nil {
		return nil, errors.ProtocolViolationf("malformed %s payload: %v", wire.Type, err)
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// EncodeCommand marshals cmd for the wire
func EncodeCommand(cmd Command) ([]byte, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s command", cmd.CommandType())
	}
	return json.Marshal(wireCommand{Type: cmd.CommandType(), Payload: payload})
}
