package tape

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/tracetm/domain/machine"
)

// Mover applies one write-and-move step to a tape.
// Implementations never fail and never mutate their input.
type Mover interface {
	Apply(t Tape, write machine.Symbol, dir machine.Direction) Tape
}

// Mode names a Mover implementation.
type Mode string

const (
	// ModeCompat keeps the historical Move-Left collapse.
	ModeCompat Mode = "compat"
	// ModeStrict always moves the head left.
	ModeStrict Mode = "strict"
)

// ParseMode converts a configuration value into a Mode. Empty means compat.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeCompat:
		return ModeCompat, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("unknown tape mode %q (want compat or strict)", s)
	}
}

// MoverFor returns the Mover for a mode.
func MoverFor(m Mode) Mover {
	if m == ModeStrict {
		return Strict{}
	}
	return Compat{}
}

// Compat reproduces the historical tape rule.
//
// When moving left with a non-empty left half and the right half, after the
// write, is exactly one blank, the head stays where it is and the right half
// collapses to a single blank.
type Compat struct{}

// Apply implements Mover.
func (Compat) Apply(t Tape, write machine.Symbol, dir machine.Direction) Tape {
	right := t.write(write)

	if dir == machine.Right {
		return moveRight(t, right)
	}

	if len(t.left) > 0 {
		if len(right) == 1 && right[0] == machine.Blank {
			left := make([]machine.Symbol, len(t.left))
			copy(left, t.left)
			return Tape{left: left, right: []machine.Symbol{machine.Blank}}
		}
		return shiftLeft(t, right)
	}
	return Tape{right: prependBlank(right)}
}

// Strict is the corrected tape rule: a left move always moves the head.
type Strict struct{}

// Apply implements Mover.
func (Strict) Apply(t Tape, write machine.Symbol, dir machine.Direction) Tape {
	right := t.write(write)

	if dir == machine.Right {
		return moveRight(t, right)
	}
	if len(t.left) > 0 {
		return shiftLeft(t, right)
	}
	return Tape{right: prependBlank(right)}
}

func moveRight(t Tape, right []machine.Symbol) Tape {
	left := t.appendLeft(right[0])
	if len(right) > 1 {
		return Tape{left: left, right: right[1:]}
	}
	return Tape{left: left, right: []machine.Symbol{machine.Blank}}
}

func shiftLeft(t Tape, right []machine.Symbol) Tape {
	n := len(t.left)
	left := make([]machine.Symbol, n-1)
	copy(left, t.left[:n-1])
	shifted := make([]machine.Symbol, 0, len(right)+1)
	shifted = append(shifted, t.left[n-1])
	shifted = append(shifted, right...)
	return Tape{left: left, right: shifted}
}

func prependBlank(right []machine.Symbol) []machine.Symbol {
	out := make([]machine.Symbol, 0, len(right)+1)
	out = append(out, machine.Blank)
	return append(out, right...)
}

var (
	_ Mover = Compat{}
	_ Mover = Strict{}
)
