package errors

import "fmt"

// Kind classifies engine errors by how a room must react to them
type Kind string

// Engine error kinds
const (
	KindIllegalAction      Kind = "illegal_action"
	KindStateReference     Kind = "state_reference"
	KindProtocolViolation  Kind = "protocol_violation"
	KindPersistenceFailure Kind = "persistence_failure"
	KindInvariantViolation Kind = "invariant_violation"
)

func newKind(code Code, kind Kind, message string) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// IllegalAction creates an error for a request that is valid in shape but
// not allowed in the current game state
func IllegalAction(message string) *Error {
	return newKind(CodeFailedPrecondition, KindIllegalAction, message)
}

// IllegalActionf creates an illegal action error with formatted message
func IllegalActionf(format string, args ...interface{}) *Error {
	return IllegalAction(fmt.Sprintf(format, args...))
}

// StateReference creates an error for a request naming an entity that no
// longer exists in the room
func StateReference(message string) *Error {
	return newKind(CodeNotFound, KindStateReference, message)
}

// StateReferencef creates a state reference error with formatted message
func StateReferencef(format string, args ...interface{}) *Error {
	return StateReference(fmt.Sprintf(format, args...))
}

// ProtocolViolation creates an error for a malformed client payload
func ProtocolViolation(message string) *Error {
	return newKind(CodeInvalidArgument, KindProtocolViolation, message)
}

// ProtocolViolationf creates a protocol violation error with formatted message
func ProtocolViolationf(format string, args ...interface{}) *Error {
	return ProtocolViolation(fmt.Sprintf(format, args...))
}

// PersistenceFailure wraps an asynchronous persistence error
func PersistenceFailure(err error, message string) *Error {
	e := newKind(CodeUnavailable, KindPersistenceFailure, message)
	e.Cause = err
	return e
}

// InvariantViolation creates an error for corrupted room state
func InvariantViolation(message string) *Error {
	return newKind(CodeInternal, KindInvariantViolation, message)
}

// InvariantViolationf creates an invariant violation error with formatted message
func InvariantViolationf(format string, args ...interface{}) *Error {
	return InvariantViolation(fmt.Sprintf(format, args...))
}

// GetKind extracts the engine error kind, empty when the error has none
func GetKind(err error) Kind {
	if err == nil {
		return ""
	}

	var customErr *Error
	if As(err, &customErr) {
		return customErr.Kind
	}

	return ""
}

// IsIllegalAction checks if an error is an illegal action error
func IsIllegalAction(err error) bool {
	return GetKind(err) == KindIllegalAction
}

// IsStateReference checks if an error is a state reference error
func IsStateReference(err error) bool {
	return GetKind(err) == KindStateReference
}

// IsProtocolViolation checks if an error is a protocol violation error
func IsProtocolViolation(err error) bool {
	return GetKind(err) == KindProtocolViolation
}

// IsPersistenceFailure checks if an error is a persistence failure error
func IsPersistenceFailure(err error) bool {
	return GetKind(err) == KindPersistenceFailure
}

// IsInvariantViolation checks if an error is an invariant violation error
func IsInvariantViolation(err error) bool {
	return GetKind(err) == KindInvariantViolation
}
