package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/tracetm/application"
	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/memory"
)

func TestRunner_RunBatch(t *testing.T) {
	t.Parallel()

	store := memory.NewTrialStore()
	r, err := application.NewRunner(pairs(),
		application.WithStore(store, "memory"),
		application.WithIDGenerator(sequentialIDs()),
	)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	items := []application.BatchItem{
		{Input: "11", MaxSteps: 10},
		{Input: "1", MaxSteps: 1},
		{Input: "", MaxSteps: 5},
		{Input: "1111", MaxSteps: 10},
		{Input: "111", MaxSteps: 3},
	}
	want := []trial.Outcome{
		trial.OutcomeAccepted,
		trial.OutcomeStepBound,
		trial.OutcomeExhausted,
		trial.OutcomeAccepted,
		trial.OutcomeAccepted,
	}

	var seen int
	results, stats := r.RunBatch(context.Background(), items,
		application.WithConcurrency(3),
		application.WithResultCallback(func(application.BatchResult) { seen++ }),
	)

	if len(results) != len(items) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(items))
	}
	for i, res := range results {
		if res.Index != i || res.Input != items[i].Input {
			t.Errorf("results[%d] = index %d input %q, want item order", i, res.Index, res.Input)
		}
		if res.Err != nil || res.Trial == nil {
			t.Fatalf("results[%d] error = %v", i, res.Err)
		}
		if got := res.Trial.Outcome(); got != want[i] {
			t.Errorf("results[%d] outcome = %s, want %s", i, got, want[i])
		}
	}

	if stats.Started != 5 || stats.Completed != 5 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 5 started and completed", stats)
	}
	if seen != 5 {
		t.Errorf("callback calls = %d, want 5", seen)
	}
	if n, _ := store.Count(context.Background(), trial.ListFilter{}); n != 5 {
		t.Errorf("stored trials = %d, want 5", n)
	}
}

func TestRunner_RunBatchEmpty(t *testing.T) {
	t.Parallel()

	r, err := application.NewRunner(pairs())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	results, stats := r.RunBatch(context.Background(), nil, application.WithConcurrency(4))
	if len(results) != 0 || stats.Started != 0 {
		t.Errorf("RunBatch(nil) = %d results, %+v", len(results), stats)
	}
	if stats.AverageDuration() != 0 {
		t.Errorf("AverageDuration() = %v, want 0", stats.AverageDuration())
	}
}

func TestRunner_RunBatchCancelled(t *testing.T) {
	t.Parallel()

	r, err := application.NewRunner(pairs())
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []application.BatchItem{{Input: "11", MaxSteps: 10}, {Input: "1", MaxSteps: 10}}
	results, stats := r.RunBatch(ctx, items, application.WithItemTimeout(time.Second))

	for i, res := range results {
		if res.Trial != nil {
			continue
		}
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("results[%d] error = %v, want context.Canceled", i, res.Err)
		}
	}
	if stats.Completed+stats.Failed != int64(len(items)) {
		t.Errorf("stats = %+v, want every item accounted for", stats)
	}
}
