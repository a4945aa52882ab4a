package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/memory"
)

func settled(id, machineName, input string, outcome trial.Outcome, depth int, start time.Time) *trial.Trial {
	t := trial.New(id, machineName, "fp-"+machineName, input, 10, tape.ModeCompat)
	t.StartTime = start
	t.Settle(trial.Result{Outcome: outcome, Depth: depth, Transitions: depth * 2}, false)
	return t
}

func seed(t *testing.T, s trial.Store) time.Time {
	t.Helper()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	trials := []*trial.Trial{
		settled("t1", "pairs", "11", trial.OutcomeAccepted, 2, base),
		settled("t2", "pairs", "1", trial.OutcomeStepBound, 10, base.Add(time.Minute)),
		settled("t3", "fork", "101", trial.OutcomeExhausted, 4, base.Add(2*time.Minute)),
		settled("t4", "pairs", "1111", trial.OutcomeAccepted, 2, base.Add(3*time.Minute)),
	}
	for _, tr := range trials {
		if err := s.Save(context.Background(), tr); err != nil {
			t.Fatalf("Save(%s) error = %v", tr.ID, err)
		}
	}
	return base
}

func TestTrialStore_CRUD(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewTrialStore()
	tr := settled("t1", "pairs", "11", trial.OutcomeAccepted, 2, time.Now())
	tr.Result.Path = []trial.Configuration{trial.Initial("start", "11")}

	if err := s.Save(ctx, tr); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, tr); !errors.Is(err, trial.ErrTrialExists) {
		t.Errorf("Save(duplicate) error = %v, want ErrTrialExists", err)
	}

	got, err := s.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got == tr {
		t.Error("Get() returned the stored pointer")
	}
	if got.Outcome() != trial.OutcomeAccepted || len(got.Result.Path) != 1 {
		t.Errorf("Get() = %+v, want accepted with one path entry", got.Result)
	}

	got.Input = "changed"
	if err := s.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	again, _ := s.Get(ctx, "t1")
	if again.Input != "changed" {
		t.Errorf("Input = %q after update, want changed", again.Input)
	}

	if err := s.Delete(ctx, "t1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, "t1"); !errors.Is(err, trial.ErrTrialNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrTrialNotFound", err)
	}
}

func TestTrialStore_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewTrialStore()
	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"save empty id", s.Save(ctx, &trial.Trial{}), trial.ErrInvalidTrialID},
		{"save nil", s.Save(ctx, nil), trial.ErrInvalidTrialID},
		{"get empty id", func() error { _, err := s.Get(ctx, ""); return err }(), trial.ErrInvalidTrialID},
		{"update missing", s.Update(ctx, &trial.Trial{ID: "x"}), trial.ErrTrialNotFound},
		{"delete missing", s.Delete(ctx, "x"), trial.ErrTrialNotFound},
		{"cancelled", s.Save(cancelled, &trial.Trial{ID: "x"}), context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("error = %v, want %v", tt.err, tt.want)
			}
		})
	}
}

func TestTrialStore_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.NewTrialStore()
	base := seed(t, s)

	tests := []struct {
		name   string
		filter trial.ListFilter
		want   []string
	}{
		{"all by start time", trial.ListFilter{}, []string{"t1", "t2", "t3", "t4"}},
		{"descending", trial.ListFilter{Descending: true}, []string{"t4", "t3", "t2", "t1"}},
		{"by machine", trial.ListFilter{Machine: "fork"}, []string{"t3"}},
		{"by outcome", trial.ListFilter{Outcomes: []trial.Outcome{trial.OutcomeAccepted}}, []string{"t1", "t4"}},
		{"by input pattern", trial.ListFilter{InputPattern: "11"}, []string{"t1", "t4"}},
		{"time window", trial.ListFilter{FromTime: base.Add(30 * time.Second), ToTime: base.Add(150 * time.Second)}, []string{"t2", "t3"}},
		{"by depth", trial.ListFilter{OrderBy: trial.OrderByDepth, Descending: true, Limit: 1}, []string{"t2"}},
		{"offset and limit", trial.ListFilter{OrderBy: trial.OrderByID, Offset: 1, Limit: 2}, []string{"t2", "t3"}},
		{"offset past end", trial.ListFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List() returned %d trials, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, id)
				}
			}

			n, err := s.Count(ctx, trial.ListFilter{
				Machine:      tt.filter.Machine,
				Outcomes:     tt.filter.Outcomes,
				InputPattern: tt.filter.InputPattern,
				FromTime:     tt.filter.FromTime,
				ToTime:       tt.filter.ToTime,
			})
			if err != nil {
				t.Fatalf("Count() error = %v", err)
			}
			if tt.filter.Limit == 0 && tt.filter.Offset == 0 && n != int64(len(tt.want)) {
				t.Errorf("Count() = %d, want %d", n, len(tt.want))
			}
		})
	}
}

func TestTrialStore_Summary(t *testing.T) {
	t.Parallel()

	s := memory.NewTrialStore()
	seed(t, s)

	sum, err := s.Summary(context.Background(), trial.ListFilter{Machine: "pairs"})
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.TotalTrials != 3 || sum.AcceptedTrials != 2 || sum.StepBoundTrials != 1 || sum.ExhaustedTrials != 0 {
		t.Errorf("Summary() = %+v", sum)
	}
	if want := 14.0 / 3.0; sum.AverageDepth != want {
		t.Errorf("AverageDepth = %v, want %v", sum.AverageDepth, want)
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", s.Len())
	}
}
