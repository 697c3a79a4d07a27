package combat

import (
	"encoding/json"
	"strconv"

	"github.com/KirkDiggler/hexhaven-api/internal/errors"
)

// ModifierKind distinguishes numeric modifiers from the two sentinels
type ModifierKind string

// Modifier kinds
const (
	ModifierNumber ModifierKind = "number"
	ModifierNull   ModifierKind = "null"
	ModifierDouble ModifierKind = "x2"
)

// Modifier is one card of an attack modifier deck. On the wire it encodes
// as an integer, "null" or "x2".
type Modifier struct {
	Kind  ModifierKind
	Value int
}

// Plus returns a numeric modifier
func Plus(n int) Modifier {
	return Modifier{Kind: ModifierNumber, Value: n}
}

// Null is the miss sentinel
func Null() Modifier {
	return Modifier{Kind: ModifierNull}
}

// Double is the x2 sentinel
func Double() Modifier {
	return Modifier{Kind: ModifierDouble}
}

// IsMiss reports whether the modifier cancels the attack
func (m Modifier) IsMiss() bool {
	return m.Kind == ModifierNull
}

// TriggersReshuffle reports whether drawing m flags its deck for a
// reshuffle at the end of the round
func (m Modifier) TriggersReshuffle() bool {
	return m.Kind == ModifierNull || m.Kind == ModifierDouble
}

// Apply returns the attack value after the modifier
func (m Modifier) Apply(base int) int {
	switch m.Kind {
	case ModifierNull:
		return 0
	case ModifierDouble:
		return base * 2
	default:
		return base + m.Value
	}
}

// String renders the wire form
func (m Modifier) String() string {
	switch m.Kind {
	case ModifierNull, ModifierDouble:
		return string(m.Kind)
	default:
		if m.Value >= 0 {
			return "+" + strconv.Itoa(m.Value)
		}
		return strconv.Itoa(m.Value)
	}
}

// MarshalJSON encodes numbers as JSON integers and sentinels as strings
func (m Modifier) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case ModifierNull, ModifierDouble:
		return json.Marshal(string(m.Kind))
	default:
		return json.Marshal(m.Value)
	}
}

// UnmarshalJSON accepts an integer, "null" or "x2"
func (m *Modifier) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*m = Plus(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.ProtocolViolationf("modifier must be an integer, \"null\" or \"x2\": %s", string(data))
	}
	switch ModifierKind(s) {
	case ModifierNull:
		*m = Null()
	case ModifierDouble:
		*m = Double()
	default:
		return errors.ProtocolViolationf("unknown modifier %q", s)
	}
	return nil
}
