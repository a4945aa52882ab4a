// Package tape provides the bi-infinite single-head tape of a Turing machine.
//
// A Tape holds only the visited window: the cells strictly left of the head
// and the cells from the head rightwards. Everything beyond either end is
// blank and is materialized only when the head moves there. Tapes are values;
// every move produces a new Tape that shares no writable storage with the old.
package tape

import (
	"slices"
	"strings"

	"github.com/felixgeelhaar/tracetm/domain/machine"
)

// Tape is an immutable visited window around the head.
// right[0] is the cell under the head.
type Tape struct {
	left  []machine.Symbol
	right []machine.Symbol
}

// New returns the initial tape for an input string with the head on its
// first symbol. An empty input yields a single blank cell.
func New(input string) Tape {
	right := toSymbols(input)
	if len(right) == 0 {
		right = []machine.Symbol{machine.Blank}
	}
	return Tape{right: right}
}

// FromParts builds a tape from its rendered halves.
func FromParts(left, right string) Tape {
	return Tape{left: toSymbols(left), right: toSymbols(right)}
}

// Head returns the symbol under the head, or blank if the window is empty.
func (t Tape) Head() machine.Symbol {
	if len(t.right) == 0 {
		return machine.Blank
	}
	return t.right[0]
}

// Left renders the cells left of the head.
func (t Tape) Left() string {
	return render(t.left)
}

// Right renders the cells from the head rightwards.
func (t Tape) Right() string {
	return render(t.right)
}

// Len returns the number of materialized cells.
func (t Tape) Len() int {
	return len(t.left) + len(t.right)
}

// Equal reports whether two tapes have identical windows.
func (t Tape) Equal(o Tape) bool {
	return slices.Equal(t.left, o.left) && slices.Equal(t.right, o.right)
}

// String renders the tape with the head cell bracketed.
func (t Tape) String() string {
	var b strings.Builder
	b.WriteString(t.Left())
	b.WriteByte('[')
	b.WriteString(t.Head().String())
	b.WriteByte(']')
	if len(t.right) > 1 {
		b.WriteString(render(t.right[1:]))
	}
	return b.String()
}

func toSymbols(s string) []machine.Symbol {
	if s == "" {
		return nil
	}
	out := make([]machine.Symbol, 0, len(s))
	for _, r := range s {
		out = append(out, machine.Symbol(r))
	}
	return out
}

func render(syms []machine.Symbol) string {
	var b strings.Builder
	b.Grow(len(syms))
	for _, s := range syms {
		b.WriteRune(rune(s))
	}
	return b.String()
}

// write returns a fresh right half with the head cell replaced.
func (t Tape) write(sym machine.Symbol) []machine.Symbol {
	if len(t.right) == 0 {
		return []machine.Symbol{sym}
	}
	right := make([]machine.Symbol, len(t.right))
	copy(right, t.right)
	right[0] = sym
	return right
}

// appendLeft returns a fresh left half with sym appended.
func (t Tape) appendLeft(sym machine.Symbol) []machine.Symbol {
	left := make([]machine.Symbol, len(t.left), len(t.left)+1)
	copy(left, t.left)
	return append(left, sym)
}
