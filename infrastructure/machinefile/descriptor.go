package machinefile

import (
	"fmt"

	"github.com/felixgeelhaar/tracetm/domain/machine"
)

// Descriptor is the structured machine layout shared by YAML and JSON files.
type Descriptor struct {
	Name          string       `json:"name" yaml:"name"`
	States        []string     `json:"states,omitempty" yaml:"states,omitempty"`
	InputAlphabet []string     `json:"input_alphabet,omitempty" yaml:"input_alphabet,omitempty"`
	TapeAlphabet  []string     `json:"tape_alphabet,omitempty" yaml:"tape_alphabet,omitempty"`
	Start         string       `json:"start" yaml:"start"`
	Accept        []string     `json:"accept" yaml:"accept"`
	Reject        string       `json:"reject" yaml:"reject"`
	Transitions   []Transition `json:"transitions" yaml:"transitions"`
}

// Transition is one rule in a Descriptor.
type Transition struct {
	From  string `json:"from" yaml:"from"`
	Read  string `json:"read" yaml:"read"`
	To    string `json:"to" yaml:"to"`
	Write string `json:"write" yaml:"write"`
	Move  string `json:"move" yaml:"move"`
}

// Machine converts the descriptor into a domain machine.
func (d Descriptor) Machine() (*machine.Machine, error) {
	m := &machine.Machine{
		Name:   d.Name,
		States: states(d.States),
		Start:  machine.State(d.Start),
		Accept: states(d.Accept),
		Reject: machine.State(d.Reject),
		Table:  machine.NewTable(),
	}

	var err error
	if m.InputAlphabet, err = symbols(d.InputAlphabet); err != nil {
		return nil, fmt.Errorf("%w: input_alphabet: %w", machine.ErrMalformedMachine, err)
	}
	if m.TapeAlphabet, err = symbols(d.TapeAlphabet); err != nil {
		return nil, fmt.Errorf("%w: tape_alphabet: %w", machine.ErrMalformedMachine, err)
	}

	for i, t := range d.Transitions {
		r, err := buildRule(t.From, t.Read, t.To, t.Write, t.Move)
		if err != nil {
			return nil, fmt.Errorf("%w: transitions[%d]: %w", machine.ErrMalformedMachine, i, err)
		}
		m.Table.Add(r)
	}
	return m, nil
}

// DescriptorFor renders a machine back into its structured layout.
func DescriptorFor(m *machine.Machine) Descriptor {
	d := Descriptor{
		Name:   m.Name,
		Start:  string(m.Start),
		Reject: string(m.Reject),
	}
	for _, s := range m.States {
		d.States = append(d.States, string(s))
	}
	for _, s := range m.InputAlphabet {
		d.InputAlphabet = append(d.InputAlphabet, s.String())
	}
	for _, s := range m.TapeAlphabet {
		d.TapeAlphabet = append(d.TapeAlphabet, s.String())
	}
	for _, s := range m.Accept {
		d.Accept = append(d.Accept, string(s))
	}
	for _, r := range m.Table.Rules() {
		d.Transitions = append(d.Transitions, Transition{
			From:  string(r.From),
			Read:  r.Read.String(),
			To:    string(r.Next),
			Write: r.Write.String(),
			Move:  r.Move.String(),
		})
	}
	return d
}
