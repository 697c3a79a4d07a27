package entities

// Condition is a status effect applied by attacks
type Condition string

// Conditions
const (
	// ConditionPoison adds 1 to attacks against the target and cancels heals
	ConditionPoison Condition = "poison"
	// ConditionWound deals 1 damage at the start of each of the target's turns
	ConditionWound Condition = "wound"
	// ConditionImmobilize prevents movement until the end of the target's next turn
	ConditionImmobilize Condition = "immobilize"
	// ConditionDisarm prevents attacks until the end of the target's next turn
	ConditionDisarm Condition = "disarm"
)

// Valid reports whether c is a known condition
func (c Condition) Valid() bool {
	switch c {
	case ConditionPoison, ConditionWound, ConditionImmobilize, ConditionDisarm:
		return true
	}
	return false
}

// ExpiresAtTurnEnd reports whether c is removed when its holder's turn ends
func (c Condition) ExpiresAtTurnEnd() bool {
	return c == ConditionImmobilize || c == ConditionDisarm
}

// Conditions is the set of conditions on an entity, kept in application order
type Conditions []Condition

// Has reports whether c is present
func (cs Conditions) Has(c Condition) bool {
	for _, existing := range cs {
		if existing == c {
			return true
		}
	}
	return false
}

// Add applies c once
func (cs *Conditions) Add(c Condition) {
	if cs.Has(c) {
		return
	}
	*cs = append(*cs, c)
}

// Remove clears c and reports whether it was present
func (cs *Conditions) Remove(c Condition) bool {
	for i, existing := range *cs {
		if existing == c {
			*cs = append((*cs)[:i], (*cs)[i+1:]...)
			return true
		}
	}
	return false
}

// ExpireTurnEnd removes every condition that lasts one turn
func (cs *Conditions) ExpireTurnEnd() []Condition {
	var expired []Condition
	kept := (*cs)[:0]
	for _, c := range *cs {
		if c.ExpiresAtTurnEnd() {
			expired = append(expired, c)
			continue
		}
		kept = append(kept, c)
	}
	*cs = kept
	return expired
}

// Clone returns an independent copy
func (cs Conditions) Clone() Conditions {
	if cs == nil {
		return nil
	}
	return append(Conditions(nil), cs...)
}
