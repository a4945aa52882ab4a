package machine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Machine is a loaded nondeterministic Turing machine description.
type Machine struct {
	Name string

	// States, InputAlphabet and TapeAlphabet are the declared sets.
	// The engine never reads them; they exist for validation and display.
	States        []State
	InputAlphabet []Symbol
	TapeAlphabet  []Symbol

	Start  State
	Accept []State
	Reject State
	Table  *Table
}

// IsAccept reports whether s is an accept state.
func (m *Machine) IsAccept(s State) bool {
	return slices.Contains(m.Accept, s)
}

// IsReject reports whether s is the reject state.
func (m *Machine) IsReject(s State) bool {
	return s == m.Reject
}

// Check verifies the fields the engine relies on.
func (m *Machine) Check() error {
	if m.Start == "" {
		return ErrMissingStart
	}
	if m.Reject == "" {
		return ErrMissingReject
	}
	return nil
}

// Fingerprint returns a stable digest of the machine's behavior.
// Two machines with the same start, accept, reject and rules in the same
// order share a fingerprint regardless of name.
func (m *Machine) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "start=%s\n", m.Start)
	accept := make([]string, len(m.Accept))
	for i, a := range m.Accept {
		accept[i] = string(a)
	}
	slices.Sort(accept)
	fmt.Fprintf(h, "accept=%s\n", strings.Join(accept, ","))
	fmt.Fprintf(h, "reject=%s\n", m.Reject)
	for _, r := range m.Table.Rules() {
		fmt.Fprintf(h, "%s,%s,%s,%s,%s\n", r.From, r.Read, r.Next, r.Write, r.Move)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate performs a strict consistency check between the declared sets and
// the transition rules. The engine does not require it.
func (m *Machine) Validate() []error {
	var errs []error
	if err := m.Check(); err != nil {
		errs = append(errs, err)
	}

	states := make(map[State]bool, len(m.States))
	for _, s := range m.States {
		states[s] = true
	}
	tape := make(map[Symbol]bool, len(m.TapeAlphabet)+1)
	tape[Blank] = true
	for _, s := range m.TapeAlphabet {
		tape[s] = true
	}

	if len(m.States) > 0 {
		check := func(role string, s State) {
			if s != "" && !states[s] {
				errs = append(errs, &UndeclaredStateError{Role: role, State: s})
			}
		}
		check("start", m.Start)
		check("reject", m.Reject)
		for _, a := range m.Accept {
			check("accept", a)
		}
	}

	for _, s := range m.InputAlphabet {
		if len(m.TapeAlphabet) > 0 && !tape[s] {
			errs = append(errs, fmt.Errorf("%w: input symbol %q is not in the tape alphabet", ErrInconsistentMachine, s))
		}
		if s == Blank {
			errs = append(errs, fmt.Errorf("%w: input alphabet contains the blank symbol", ErrInconsistentMachine))
		}
	}

	for i, r := range m.Table.Rules() {
		if !r.Move.IsValid() {
			errs = append(errs, fmt.Errorf("rule %d: %w: %q", i+1, ErrUnknownDirection, r.Move))
		}
		if len(m.States) > 0 {
			if !states[r.From] {
				errs = append(errs, &UndeclaredStateError{Rule: i + 1, State: r.From})
			}
			if !states[r.Next] {
				errs = append(errs, &UndeclaredStateError{Rule: i + 1, State: r.Next})
			}
		}
		if len(m.TapeAlphabet) > 0 {
			if !tape[r.Read] {
				errs = append(errs, fmt.Errorf("rule %d: %w: symbol %q is not in the tape alphabet", i+1, ErrInconsistentMachine, r.Read))
			}
			if !tape[r.Write] {
				errs = append(errs, fmt.Errorf("rule %d: %w: symbol %q is not in the tape alphabet", i+1, ErrInconsistentMachine, r.Write))
			}
		}
		if r.From == m.Reject {
			errs = append(errs, fmt.Errorf("rule %d: %w: transition out of reject state %q is unreachable", i+1, ErrInconsistentMachine, r.From))
		}
	}

	return errs
}
