package statemachine

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// ErrInvalidTransition is returned when the lifecycle refuses an event.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// Interpreter wraps the statekit interpreter with trial-specific functionality.
type Interpreter struct {
	interp *statekit.Interpreter[*Context]
	ctx    *Context
}

// NewInterpreter creates a new interpreter for the trial lifecycle.
func NewInterpreter(machine *statekit.MachineConfig[*Context], ctx *Context) *Interpreter {
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Context) {
		*c = ctx
	})
	return &Interpreter{
		interp: interp,
		ctx:    ctx,
	}
}

// Start enters the pending state.
func (i *Interpreter) Start() {
	i.interp.Start()
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}

// State returns the current lifecycle state.
func (i *Interpreter) State() statekit.StateID {
	return i.interp.State().Value
}

// Begin moves a pending trial to exploring.
func (i *Interpreter) Begin() error {
	if i.State() != StatePending {
		return fmt.Errorf("%w: START from %s", ErrInvalidTransition, i.State())
	}
	i.interp.Send(statekit.Event{Type: EventStart})
	if i.State() != StateExploring {
		return fmt.Errorf("%w: START refused in %s", ErrInvalidTransition, i.State())
	}
	return nil
}

// Settle stages a result and moves the trial to the matching terminal state.
func (i *Interpreter) Settle(r trial.Result, cached bool) error {
	if i.IsTerminal() {
		return fmt.Errorf("%w: trial already settled in %s", ErrInvalidTransition, i.State())
	}
	if !r.Outcome.IsValid() {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidTransition, r.Outcome)
	}

	i.ctx.Result = &r
	i.ctx.Cached = cached

	event := EventForOutcome(r.Outcome)
	i.interp.Send(statekit.Event{Type: event, Payload: r.Outcome})

	if want := StateForOutcome(r.Outcome); i.State() != want {
		return fmt.Errorf("%w: %s left trial in %s, want %s", ErrInvalidTransition, event, i.State(), want)
	}
	return nil
}

// IsTerminal returns true once the trial has settled.
func (i *Interpreter) IsTerminal() bool {
	return i.interp.Done()
}

// Matches checks if the current state matches the given state ID.
func (i *Interpreter) Matches(id statekit.StateID) bool {
	return i.interp.Matches(id)
}

// Context returns the interpreter context.
func (i *Interpreter) Context() *Context {
	return i.ctx
}
