package statemachine

import (
	"github.com/felixgeelhaar/statekit"
)

// guardCanSettle allows settling only when a result matching the event is staged.
func guardCanSettle(ctx *Context, event statekit.Event) bool {
	if ctx == nil || ctx.Trial == nil || ctx.Result == nil {
		return false
	}
	return EventForOutcome(ctx.Result.Outcome) == event.Type
}
