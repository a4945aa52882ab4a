package trial

import (
	"context"
	"time"
)

// Store defines the interface for trial persistence.
type Store interface {
	// Save persists a new trial.
	Save(ctx context.Context, t *Trial) error

	// Get retrieves a trial by ID.
	Get(ctx context.Context, id string) (*Trial, error)

	// Update replaces an existing trial.
	Update(ctx context.Context, t *Trial) error

	// Delete removes a trial by ID.
	Delete(ctx context.Context, id string) error

	// List returns trials matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Trial, error)

	// Count returns the number of trials matching the filter.
	Count(ctx context.Context, filter ListFilter) (int64, error)
}

// ListFilter specifies criteria for listing trials.
type ListFilter struct {
	// Machine filters by machine name (empty means all).
	Machine string

	// Outcomes filters by outcome (empty means all).
	Outcomes []Outcome

	// FromTime filters trials started after this time.
	FromTime time.Time

	// ToTime filters trials started before this time.
	ToTime time.Time

	// InputPattern filters by input (substring match).
	InputPattern string

	// Limit is the maximum number of trials to return (0 = no limit).
	Limit int

	// Offset is the number of trials to skip.
	Offset int

	OrderBy    OrderBy
	Descending bool
}

// OrderBy specifies how to sort trial results.
type OrderBy string

const (
	OrderByStartTime   OrderBy = "start_time"
	OrderByID          OrderBy = "id"
	OrderByDepth       OrderBy = "depth"
	OrderByTransitions OrderBy = "transitions"
)

// Summary provides aggregate statistics about trials.
type Summary struct {
	TotalTrials     int64
	AcceptedTrials  int64
	ExhaustedTrials int64
	StepBoundTrials int64
	AverageDepth    float64
}

// Tally adds one trial to the summary counts. AverageDepth is left to the caller.
func (s *Summary) Tally(t *Trial) {
	s.TotalTrials++
	switch t.Outcome() {
	case OutcomeAccepted:
		s.AcceptedTrials++
	case OutcomeExhausted:
		s.ExhaustedTrials++
	case OutcomeStepBound:
		s.StepBoundTrials++
	}
}

// SummaryProvider is an optional interface for stores that support summaries.
type SummaryProvider interface {
	Summary(ctx context.Context, filter ListFilter) (Summary, error)
}
