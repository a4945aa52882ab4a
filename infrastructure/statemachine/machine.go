// Package statemachine provides the statekit integration for the trial lifecycle.
package statemachine

import (
	"github.com/felixgeelhaar/statekit"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// Context carries the trial being driven through the lifecycle.
type Context struct {
	Trial *trial.Trial

	// Result and Cached are staged before a settling event is sent.
	Result *trial.Result
	Cached bool
}

// NewContext creates a new machine context.
func NewContext(t *trial.Trial) *Context {
	return &Context{Trial: t}
}

// Lifecycle states.
const (
	StatePending   statekit.StateID = "pending"
	StateExploring statekit.StateID = "exploring"
	StateAccepted  statekit.StateID = "accepted"
	StateExhausted statekit.StateID = "exhausted"
	StateStepBound statekit.StateID = "step_bound"
)

// Lifecycle events.
const (
	EventStart   = "START"
	EventAccept  = "ACCEPT"
	EventExhaust = "EXHAUST"
	EventBound   = "BOUND"
)

// NewTrialMachine creates the trial lifecycle statechart.
//
// Pending trials may settle directly, which is how cache hits complete.
func NewTrialMachine() (*statekit.MachineConfig[*Context], error) {
	return statekit.NewMachine[*Context]("trial").
		WithInitial(StatePending).
		WithContext(&Context{}).
		WithAction("beginExploring", beginExploring).
		WithAction("settleTrial", settleTrial).
		WithGuard("canSettle", guardCanSettle).
		State(StatePending).
			On(EventStart).Target(StateExploring).
			On(EventAccept).Target(StateAccepted).Guard("canSettle").
			On(EventExhaust).Target(StateExhausted).Guard("canSettle").
			On(EventBound).Target(StateStepBound).Guard("canSettle").
			Done().
		State(StateExploring).
			OnEntry("beginExploring").
			On(EventAccept).Target(StateAccepted).Guard("canSettle").
			On(EventExhaust).Target(StateExhausted).Guard("canSettle").
			On(EventBound).Target(StateStepBound).Guard("canSettle").
			Done().
		State(StateAccepted).
			Final().
			OnEntry("settleTrial").
			Done().
		State(StateExhausted).
			Final().
			OnEntry("settleTrial").
			Done().
		State(StateStepBound).
			Final().
			OnEntry("settleTrial").
			Done().
		Build()
}

// EventForOutcome returns the settling event for an outcome.
func EventForOutcome(o trial.Outcome) statekit.EventType {
	switch o {
	case trial.OutcomeAccepted:
		return EventAccept
	case trial.OutcomeExhausted:
		return EventExhaust
	default:
		return EventBound
	}
}

// StateForOutcome returns the terminal state an outcome settles into.
func StateForOutcome(o trial.Outcome) statekit.StateID {
	switch o {
	case trial.OutcomeAccepted:
		return StateAccepted
	case trial.OutcomeExhausted:
		return StateExhausted
	default:
		return StateStepBound
	}
}
