package trial

// Outcome is how a trial ended.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"            // An accept state was reached
	OutcomeExhausted Outcome = "rejected_exhausted"  // Every branch died before the bound
	OutcomeStepBound Outcome = "rejected_step_bound" // The bound ran out first
)

// IsValid reports whether the outcome is one of the known values.
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeAccepted, OutcomeExhausted, OutcomeStepBound:
		return true
	}
	return false
}

// Accepted reports whether the outcome is an acceptance.
func (o Outcome) Accepted() bool { return o == OutcomeAccepted }

// String returns the outcome label.
func (o Outcome) String() string { return string(o) }

// Result is what an exploration reports.
type Result struct {
	Outcome Outcome `json:"outcome"`

	// Depth is the level at which the outcome was decided.
	Depth int `json:"depth"`

	// Transitions counts every successor generated, implicit rejects included.
	Transitions int `json:"transitions"`

	// Path runs from the initial configuration to the accepting one.
	// It is set only for accepted results and has Depth+1 entries.
	Path []Configuration `json:"path,omitempty"`

	// Frontier is the size of the widest level seen.
	Frontier int `json:"frontier"`

	// Configurations is the number of configurations generated, the initial one included.
	Configurations int `json:"configurations"`
}
