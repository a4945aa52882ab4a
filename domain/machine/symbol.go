// Package machine provides the domain model for nondeterministic Turing machines.
package machine

import (
	"fmt"
	"strings"
)

// State identifies a machine state. States are opaque labels.
type State string

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Symbol is a single tape cell value.
type Symbol rune

// Blank is the reserved symbol for unvisited tape cells.
const Blank Symbol = '_'

// String returns the symbol as a one-character string.
func (s Symbol) String() string {
	return string(rune(s))
}

// IsBlank reports whether the symbol is the blank symbol.
func (s Symbol) IsBlank() bool {
	return s == Blank
}

// ParseSymbol converts a one-character field into a Symbol.
func ParseSymbol(field string) (Symbol, error) {
	r := []rune(strings.TrimSpace(field))
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSymbol, field)
	}
	return Symbol(r[0]), nil
}

// Direction is a head movement.
type Direction string

const (
	Left  Direction = "L" // Move head one cell left
	Right Direction = "R" // Move head one cell right
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid returns true if the direction is Left or Right.
func (d Direction) IsValid() bool {
	return d == Left || d == Right
}

// ParseDirection accepts L, R, left or right in any case.
func ParseDirection(field string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "l", "left":
		return Left, nil
	case "r", "right":
		return Right, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDirection, field)
	}
}
