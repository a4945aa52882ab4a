package trial

import (
	"time"

	"github.com/felixgeelhaar/tracetm/domain/tape"
)

// Status represents the lifecycle status of a trial.
type Status string

const (
	StatusPending   Status = "pending"   // Created, not yet explored
	StatusExploring Status = "exploring" // Exploration in progress
	StatusCompleted Status = "completed" // Outcome decided
)

// Trial is one machine run against one input and step bound.
// It is the aggregate root for the trial domain.
type Trial struct {
	ID          string    `json:"id"`
	Machine     string    `json:"machine"`
	Fingerprint string    `json:"fingerprint"`
	Input       string    `json:"input"`
	MaxSteps    int       `json:"max_steps"`
	TapeMode    tape.Mode `json:"tape_mode"`
	Status      Status    `json:"status"`
	Result      *Result   `json:"result,omitempty"`
	Cached      bool      `json:"cached"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time,omitempty"`
}

// New creates a pending trial.
func New(id, machineName, fingerprint, input string, maxSteps int, mode tape.Mode) *Trial {
	return &Trial{
		ID:          id,
		Machine:     machineName,
		Fingerprint: fingerprint,
		Input:       input,
		MaxSteps:    maxSteps,
		TapeMode:    mode,
		Status:      StatusPending,
		StartTime:   time.Now(),
	}
}

// Begin marks the trial as exploring.
func (t *Trial) Begin() {
	t.Status = StatusExploring
}

// Settle records the result and completes the trial.
func (t *Trial) Settle(r Result, cached bool) {
	t.Result = &r
	t.Cached = cached
	t.Status = StatusCompleted
	t.EndTime = time.Now()
}

// Outcome returns the settled outcome, or empty while unsettled.
func (t *Trial) Outcome() Outcome {
	if t.Result == nil {
		return ""
	}
	return t.Result.Outcome
}

// IsTerminal returns true once the trial has an outcome.
func (t *Trial) IsTerminal() bool {
	return t.Status == StatusCompleted
}

// Duration returns the duration of the trial.
func (t *Trial) Duration() time.Duration {
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}
