// Package memory provides in-process implementations of the trial store and
// result cache. Both keep serialized copies so callers never share state.
package memory

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// TrialStore is an in-memory implementation of trial.Store.
type TrialStore struct {
	trials map[string][]byte
	mu     sync.RWMutex
}

// NewTrialStore creates an empty trial store.
func NewTrialStore() *TrialStore {
	return &TrialStore{
		trials: make(map[string][]byte),
	}
}

// Save persists a new trial.
func (s *TrialStore) Save(ctx context.Context, t *trial.Trial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trials[t.ID]; exists {
		return trial.ErrTrialExists
	}
	s.trials[t.ID] = data
	return nil
}

// Get retrieves a trial by ID.
func (s *TrialStore) Get(ctx context.Context, id string) (*trial.Trial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, trial.ErrInvalidTrialID
	}

	s.mu.RLock()
	data, ok := s.trials[id]
	s.mu.RUnlock()
	if !ok {
		return nil, trial.ErrTrialNotFound
	}

	return decode(data)
}

// Update replaces an existing trial.
func (s *TrialStore) Update(ctx context.Context, t *trial.Trial) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.ID == "" {
		return trial.ErrInvalidTrialID
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trials[t.ID]; !exists {
		return trial.ErrTrialNotFound
	}
	s.trials[t.ID] = data
	return nil
}

// Delete removes a trial by ID.
func (s *TrialStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if id == "" {
		return trial.ErrInvalidTrialID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.trials[id]; !exists {
		return trial.ErrTrialNotFound
	}
	delete(s.trials, id)
	return nil
}

// List returns trials matching the filter.
func (s *TrialStore) List(ctx context.Context, filter trial.ListFilter) ([]*trial.Trial, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := s.collect(filter)
	SortTrials(result, filter.OrderBy, filter.Descending)
	return Page(result, filter.Offset, filter.Limit), nil
}

// Count returns the number of trials matching the filter.
func (s *TrialStore) Count(ctx context.Context, filter trial.ListFilter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(s.collect(filter))), nil
}

// Summary returns aggregate statistics over the matching trials.
func (s *TrialStore) Summary(ctx context.Context, filter trial.ListFilter) (trial.Summary, error) {
	if err := ctx.Err(); err != nil {
		return trial.Summary{}, err
	}

	var summary trial.Summary
	var totalDepth int
	for _, t := range s.collect(filter) {
		summary.Tally(t)
		if t.Result != nil {
			totalDepth += t.Result.Depth
		}
	}
	if summary.TotalTrials > 0 {
		summary.AverageDepth = float64(totalDepth) / float64(summary.TotalTrials)
	}
	return summary, nil
}

// Clear removes all trials from the store.
func (s *TrialStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trials = make(map[string][]byte)
}

// Len returns the number of stored trials.
func (s *TrialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trials)
}

func (s *TrialStore) collect(filter trial.ListFilter) []*trial.Trial {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*trial.Trial
	for _, data := range s.trials {
		t, err := decode(data)
		if err != nil {
			continue
		}
		if Matches(t, filter) {
			out = append(out, t)
		}
	}
	return out
}

func decode(data []byte) (*trial.Trial, error) {
	var t trial.Trial
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Matches reports whether a trial satisfies every criterion in filter.
// Key-value backends without query support share it.
func Matches(t *trial.Trial, filter trial.ListFilter) bool {
	if filter.Machine != "" && t.Machine != filter.Machine {
		return false
	}
	if len(filter.Outcomes) > 0 && !slices.Contains(filter.Outcomes, t.Outcome()) {
		return false
	}
	if !filter.FromTime.IsZero() && t.StartTime.Before(filter.FromTime) {
		return false
	}
	if !filter.ToTime.IsZero() && t.StartTime.After(filter.ToTime) {
		return false
	}
	if filter.InputPattern != "" && !strings.Contains(t.Input, filter.InputPattern) {
		return false
	}
	return true
}

// SortTrials orders trials in place. Unknown keys sort by start time.
func SortTrials(trials []*trial.Trial, orderBy trial.OrderBy, descending bool) {
	sort.SliceStable(trials, func(i, j int) bool {
		a, b := trials[i], trials[j]
		if descending {
			a, b = b, a
		}

		switch orderBy {
		case trial.OrderByID:
			return a.ID < b.ID
		case trial.OrderByDepth:
			return depthOf(a) < depthOf(b)
		case trial.OrderByTransitions:
			return transitionsOf(a) < transitionsOf(b)
		default:
			return a.StartTime.Before(b.StartTime)
		}
	})
}

// Page applies offset and limit to an ordered slice.
func Page(trials []*trial.Trial, offset, limit int) []*trial.Trial {
	if offset > 0 {
		if offset >= len(trials) {
			return []*trial.Trial{}
		}
		trials = trials[offset:]
	}
	if limit > 0 && len(trials) > limit {
		trials = trials[:limit]
	}
	return trials
}

func depthOf(t *trial.Trial) int {
	if t.Result == nil {
		return 0
	}
	return t.Result.Depth
}

func transitionsOf(t *trial.Trial) int {
	if t.Result == nil {
		return 0
	}
	return t.Result.Transitions
}

var (
	_ trial.Store           = (*TrialStore)(nil)
	_ trial.SummaryProvider = (*TrialStore)(nil)
)
