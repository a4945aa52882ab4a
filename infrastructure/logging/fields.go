package logging

import (
	"time"

	"github.com/felixgeelhaar/bolt/v3"

	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// Field is a function that applies structured data to a log event.
type Field func(*bolt.Event) *bolt.Event

// TrialID adds a trial ID field.
func TrialID(id string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("trial_id", id)
	}
}

// Machine adds a machine name field.
func Machine(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("machine", name)
	}
}

// State adds a machine state field.
func State(s machine.State) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("state", string(s))
	}
}

// Outcome adds an outcome field.
func Outcome(o trial.Outcome) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("outcome", string(o))
	}
}

// Depth adds a depth field.
func Depth(d int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("depth", d)
	}
}

// Transitions adds a transitions count field.
func Transitions(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("transitions", n)
	}
}

// Frontier adds a frontier size field.
func Frontier(n int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int("frontier", n)
	}
}

// Duration adds a duration field in milliseconds.
func Duration(d time.Duration) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int64("duration_ms", d.Milliseconds())
	}
}

// Cached adds a cached field.
func Cached(cached bool) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Bool("cached", cached)
	}
}

// ErrorField adds an error field.
func ErrorField(err error) Field {
	return func(e *bolt.Event) *bolt.Event {
		if err == nil {
			return e
		}
		return e.Err(err)
	}
}

// Path adds a file path field.
func Path(p string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("path", p)
	}
}

// Component adds a component field for categorization.
func Component(name string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("component", name)
	}
}

// Operation adds an operation field.
func Operation(op string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str("operation", op)
	}
}

// Str adds a string field with custom key.
func Str(key, value string) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Str(key, value)
	}
}

// Int adds an integer field.
func Int(key string, value int) Field {
	return func(e *bolt.Event) *bolt.Event {
		return e.Int(key, value)
	}
}
