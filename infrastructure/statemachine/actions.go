package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// beginExploring marks the trial as exploring.
// Actions receive a pointer to the machine context, so **Context here.
func beginExploring(ctx **Context, _ statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Trial == nil {
		return
	}
	(*ctx).Trial.Begin()
}

// settleTrial copies the staged result onto the trial.
func settleTrial(ctx **Context, _ statekit.Event) {
	if ctx == nil || *ctx == nil || (*ctx).Trial == nil || (*ctx).Result == nil {
		return
	}
	c := *ctx
	c.Trial.Settle(*c.Result, c.Cached)
}
