package machine

import (
	"errors"
	"fmt"
)

// Domain errors for machine descriptors.
var (
	// ErrMachineNotFound indicates the machine file does not exist.
	ErrMachineNotFound = errors.New("machine file not found")

	// ErrMalformedMachine indicates the machine description could not be parsed.
	ErrMalformedMachine = errors.New("malformed machine description")

	// ErrUnsupportedFormat indicates the machine file format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported machine format")

	// ErrInvalidSymbol indicates a tape symbol is not exactly one character.
	ErrInvalidSymbol = errors.New("invalid tape symbol")

	// ErrUnknownDirection indicates a head movement other than left or right.
	ErrUnknownDirection = errors.New("unknown head direction")

	// ErrMissingStart indicates the machine has no start state.
	ErrMissingStart = errors.New("start state is required")

	// ErrMissingReject indicates the machine has no reject state.
	ErrMissingReject = errors.New("reject state is required")

	// ErrInconsistentMachine indicates declared states or symbols do not match the transitions.
	ErrInconsistentMachine = errors.New("inconsistent machine description")
)

// UndeclaredStateError reports a state that is referenced but missing from
// the declared state list.
type UndeclaredStateError struct {
	Rule  int    // 1-based rule number, 0 for header references
	Role  string // start, reject or accept for header references
	State State
}

func (e *UndeclaredStateError) Error() string {
	if e.Rule > 0 {
		return fmt.Sprintf("rule %d: %v: state %q is not declared", e.Rule, ErrInconsistentMachine, e.State)
	}
	return fmt.Sprintf("%v: %s state %q is not declared", ErrInconsistentMachine, e.Role, e.State)
}

func (e *UndeclaredStateError) Unwrap() error {
	return ErrInconsistentMachine
}
