// Package trial provides the domain model for one simulation of a machine
// against one input: its configurations, outcome and persisted record.
package trial

import (
	"encoding/json"

	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/domain/tape"
)

// Configuration is an immutable snapshot of a machine mid-computation.
type Configuration struct {
	Tape  tape.Tape
	State machine.State
}

// Initial returns the level-0 configuration for an input.
func Initial(start machine.State, input string) Configuration {
	return Configuration{Tape: tape.New(input), State: start}
}

// Left renders the tape left of the head.
func (c Configuration) Left() string { return c.Tape.Left() }

// Right renders the tape from the head rightwards.
func (c Configuration) Right() string { return c.Tape.Right() }

// Equal reports whether two configurations have the same tape and state.
func (c Configuration) Equal(o Configuration) bool {
	return c.State == o.State && c.Tape.Equal(o.Tape)
}

// String renders the configuration as "left,state,right".
func (c Configuration) String() string {
	return c.Left() + "," + string(c.State) + "," + c.Right()
}

type configurationJSON struct {
	Left  string        `json:"left"`
	State machine.State `json:"state"`
	Right string        `json:"right"`
}

// MarshalJSON encodes the configuration in its rendered form.
func (c Configuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(configurationJSON{Left: c.Left(), State: c.State, Right: c.Right()})
}

// UnmarshalJSON decodes a rendered configuration.
func (c *Configuration) UnmarshalJSON(data []byte) error {
	var raw configurationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Tape = tape.FromParts(raw.Left, raw.Right)
	c.State = raw.State
	return nil
}
