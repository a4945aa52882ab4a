// Package application provides the simulation engine and trial orchestration.
package application

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
)

// Simulator explores the configuration tree of one machine.
// It is safe to share between goroutines; each Explore call owns its arena.
type Simulator struct {
	machine    *machine.Machine
	mover      tape.Mover
	levelLimit int
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithMover selects the head-movement rule. The default is tape.Compat.
func WithMover(m tape.Mover) SimulatorOption {
	return func(s *Simulator) {
		if m != nil {
			s.mover = m
		}
	}
}

// WithLevelLimit caps the number of configurations in a single level.
// Zero disables the cap.
func WithLevelLimit(n int) SimulatorOption {
	return func(s *Simulator) {
		s.levelLimit = n
	}
}

// NewSimulator creates a simulator for a machine.
func NewSimulator(m *machine.Machine, opts ...SimulatorOption) (*Simulator, error) {
	if m == nil {
		return nil, ErrNilMachine
	}
	if err := m.Check(); err != nil {
		return nil, err
	}

	s := &Simulator{
		machine: m,
		mover:   tape.Compat{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Machine returns the simulated machine.
func (s *Simulator) Machine() *machine.Machine {
	return s.machine
}

// Expand returns the successors of a configuration in rule order.
//
// A configuration in the reject state has none. A missing rule yields a
// single successor in the reject state with the tape untouched.
func (s *Simulator) Expand(c trial.Configuration) []trial.Configuration {
	if s.machine.IsReject(c.State) {
		return nil
	}

	actions := s.machine.Table.Lookup(c.State, c.Tape.Head())
	if len(actions) == 0 {
		return []trial.Configuration{{Tape: c.Tape, State: s.machine.Reject}}
	}

	out := make([]trial.Configuration, 0, len(actions))
	for _, a := range actions {
		out = append(out, trial.Configuration{
			Tape:  s.mover.Apply(c.Tape, a.Write, a.Move),
			State: a.Next,
		})
	}
	return out
}

// Explore runs a level-synchronous breadth-first search from the initial
// configuration for input and reports the shallowest acceptance, if any,
// within maxSteps levels.
//
// The only errors are ctx.Err(), checked once per level, and
// ErrFrontierLimit when a level cap is configured and exceeded.
func (s *Simulator) Explore(ctx context.Context, input string, maxSteps int) (trial.Result, error) {
	if maxSteps <= 0 {
		return trial.Result{Outcome: trial.OutcomeStepBound}, nil
	}

	var a arena
	frontier := []int{a.add(trial.Initial(s.machine.Start, input), -1)}
	result := trial.Result{Frontier: 1}

	for depth := 0; depth < maxSteps; depth++ {
		if err := ctx.Err(); err != nil {
			return trial.Result{}, err
		}

		if len(frontier) == 0 {
			result.Outcome = trial.OutcomeExhausted
			result.Depth = depth
			result.Configurations = a.len()
			return result, nil
		}

		var next []int
		for _, idx := range frontier {
			c := a.at(idx)

			if s.machine.IsAccept(c.State) {
				result.Outcome = trial.OutcomeAccepted
				result.Depth = depth
				result.Path = a.reconstruct(idx)
				result.Configurations = a.len()
				return result, nil
			}
			if s.machine.IsReject(c.State) {
				continue
			}

			successors := s.Expand(c)
			for _, succ := range successors {
				next = append(next, a.add(succ, idx))
			}
			result.Transitions += len(successors)

			if s.levelLimit > 0 && len(next) > s.levelLimit {
				return trial.Result{}, errors.Join(ErrFrontierLimit, levelError(depth+1, len(next), s.levelLimit))
			}
		}

		logging.Trace().
			Add(logging.Machine(s.machine.Name)).
			Add(logging.Depth(depth + 1)).
			Add(logging.Frontier(len(next))).
			Add(logging.Transitions(result.Transitions)).
			Msg("level expanded")

		frontier = next
		result.Frontier = max(result.Frontier, len(frontier))
	}

	result.Outcome = trial.OutcomeStepBound
	result.Depth = maxSteps
	result.Configurations = a.len()
	return result, nil
}

// arena stores every generated configuration with the index of its parent.
// The initial configuration has parent -1.
type arena struct {
	configs []trial.Configuration
	parents []int
}

func (a *arena) add(c trial.Configuration, parent int) int {
	a.configs = append(a.configs, c)
	a.parents = append(a.parents, parent)
	return len(a.configs) - 1
}

func (a *arena) at(idx int) trial.Configuration {
	return a.configs[idx]
}

func (a *arena) len() int {
	return len(a.configs)
}

// reconstruct walks parent links from idx back to the root and returns the
// path in root-first order.
func (a *arena) reconstruct(idx int) []trial.Configuration {
	var path []trial.Configuration
	for i := idx; i >= 0; i = a.parents[i] {
		path = append(path, a.configs[i])
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}
