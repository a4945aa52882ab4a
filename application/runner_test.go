package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/felixgeelhaar/tracetm/application"
	"github.com/felixgeelhaar/tracetm/domain/cache"
	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/resilience"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/memory"
	"github.com/felixgeelhaar/tracetm/infrastructure/telemetry"
)

func pairs() *machine.Machine {
	return &machine.Machine{
		Name:   "pairs",
		Start:  "start",
		Accept: []machine.State{"even"},
		Reject: "qrej",
		Table: machine.NewTable(
			machine.Rule{From: "start", Read: '1', Next: "odd", Write: '1', Move: machine.Right},
			machine.Rule{From: "odd", Read: '1', Next: "even", Write: '1', Move: machine.Right},
			machine.Rule{From: "even", Read: '1', Next: "odd", Write: '1', Move: machine.Right},
		),
	}
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("trial-%d", n.Add(1))
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	trials   []telemetry.TrialRecord
	hits     int
	misses   int
	failures []string
}

func (m *recordingMetrics) RecordTrial(_ context.Context, r telemetry.TrialRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trials = append(m.trials, r)
}

func (m *recordingMetrics) RecordCacheHit(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

func (m *recordingMetrics) RecordCacheMiss(context.Context, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

func (m *recordingMetrics) RecordPersistFailure(_ context.Context, backend string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, backend)
}

type failingStore struct {
	*memory.TrialStore
	err   error
	calls atomic.Int32
}

func (s *failingStore) Save(context.Context, *trial.Trial) error {
	s.calls.Add(1)
	return s.err
}

type brokenCache struct {
	cache.Cache
}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, cache.ErrConnectionFailed
}

func (brokenCache) Set(context.Context, string, []byte, cache.SetOptions) error {
	return cache.ErrConnectionFailed
}

func TestNewRunner(t *testing.T) {
	t.Parallel()

	if _, err := application.NewRunner(nil); !errors.Is(err, application.ErrNilMachine) {
		t.Errorf("NewRunner(nil) error = %v, want ErrNilMachine", err)
	}

	m := pairs()
	m.Start = ""
	if _, err := application.NewRunner(m); !errors.Is(err, machine.ErrMissingStart) {
		t.Errorf("NewRunner() error = %v, want ErrMissingStart", err)
	}
}

func TestRunner_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewTrialStore()
	metrics := &recordingMetrics{}

	r, err := application.NewRunner(pairs(),
		application.WithStore(store, "memory"),
		application.WithMetrics(metrics),
		application.WithIDGenerator(sequentialIDs()),
	)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	tr, err := r.Run(ctx, "11", 10)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if tr.ID != "trial-1" {
		t.Errorf("ID = %s, want trial-1", tr.ID)
	}
	if tr.Status != trial.StatusCompleted || tr.Cached {
		t.Errorf("Status = %s, Cached = %v, want completed and uncached", tr.Status, tr.Cached)
	}
	if tr.Outcome() != trial.OutcomeAccepted || tr.Result.Depth != 2 {
		t.Errorf("Result = %+v, want accepted at depth 2", tr.Result)
	}
	if tr.TapeMode != tape.ModeCompat {
		t.Errorf("TapeMode = %s, want compat", tr.TapeMode)
	}
	if tr.Fingerprint != r.Machine().Fingerprint() {
		t.Error("trial fingerprint does not match machine")
	}

	stored, err := store.Get(ctx, "trial-1")
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if len(stored.Result.Path) != 3 {
		t.Errorf("stored path has %d entries, want 3", len(stored.Result.Path))
	}

	if len(metrics.trials) != 1 || metrics.trials[0].Outcome != string(trial.OutcomeAccepted) {
		t.Errorf("recorded trials = %+v", metrics.trials)
	}
	if metrics.hits != 0 || metrics.misses != 0 {
		t.Errorf("cache metrics recorded without a cache: hits=%d misses=%d", metrics.hits, metrics.misses)
	}
}

func TestRunner_CachesResults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewTrialStore()
	results := memory.NewCache()
	metrics := &recordingMetrics{}

	r, err := application.NewRunner(pairs(),
		application.WithStore(store, "memory"),
		application.WithCache(results, time.Hour),
		application.WithMetrics(metrics),
		application.WithIDGenerator(sequentialIDs()),
	)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	first, err := r.Run(ctx, "1111", 10)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := r.Run(ctx, "1111", 10)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if first.Cached || !second.Cached {
		t.Errorf("Cached = %v, %v, want false, true", first.Cached, second.Cached)
	}
	if second.Status != trial.StatusCompleted {
		t.Errorf("cached trial Status = %s, want completed", second.Status)
	}
	if second.Outcome() != first.Outcome() || second.Result.Depth != first.Result.Depth {
		t.Errorf("cached result %+v differs from %+v", second.Result, first.Result)
	}
	if len(second.Result.Path) != len(first.Result.Path) {
		t.Errorf("cached path has %d entries, want %d", len(second.Result.Path), len(first.Result.Path))
	}
	if metrics.hits != 1 || metrics.misses != 1 {
		t.Errorf("hits=%d misses=%d, want 1 and 1", metrics.hits, metrics.misses)
	}
	if store.Len() != 2 {
		t.Errorf("store holds %d trials, want 2", store.Len())
	}

	// A different bound is a different key.
	third, err := r.Run(ctx, "1111", 1)
	if err != nil {
		t.Fatalf("third Run() error = %v", err)
	}
	if third.Cached || third.Outcome() != trial.OutcomeStepBound {
		t.Errorf("third trial = %s cached=%v, want uncached step bound", third.Outcome(), third.Cached)
	}

	// Derived runners share the cache.
	derived, err := r.ForMachine(r.Machine())
	if err != nil {
		t.Fatalf("ForMachine() error = %v", err)
	}
	if got, _ := derived.Run(ctx, "1111", 10); !got.Cached {
		t.Error("same machine and mode should hit the shared cache")
	}
}

func TestRunner_CacheFailuresAreMisses(t *testing.T) {
	t.Parallel()

	r, err := application.NewRunner(pairs(), application.WithCache(brokenCache{}, 0))
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	tr, err := r.Run(context.Background(), "11", 10)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.Cached || tr.Outcome() != trial.OutcomeAccepted {
		t.Errorf("trial = %s cached=%v, want fresh acceptance", tr.Outcome(), tr.Cached)
	}
}

func TestRunner_UndecodableCacheEntryIsDiscarded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	results := memory.NewCache()
	m := pairs()
	key := cache.ResultKey(m.Fingerprint(), string(tape.ModeCompat), 10, "11")
	_ = results.Set(ctx, key, []byte("{not json"), cache.SetOptions{})

	r, err := application.NewRunner(m, application.WithCache(results, 0))
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	tr, err := r.Run(ctx, "11", 10)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.Cached {
		t.Error("undecodable entry served as a hit")
	}

	data, ok, _ := results.Get(ctx, key)
	if !ok || string(data) == "{not json" {
		t.Errorf("cache entry not replaced: %q", data)
	}
}

func TestRunner_PersistFailure(t *testing.T) {
	t.Parallel()

	store := &failingStore{TrialStore: memory.NewTrialStore(), err: trial.ErrConnectionFailed}
	metrics := &recordingMetrics{}
	exec := resilience.NewExecutorWithOptions(
		resilience.WithRetryAttempts(2),
		resilience.WithRetryDelay(time.Millisecond),
	)

	r, err := application.NewRunner(pairs(),
		application.WithStore(store, "flaky"),
		application.WithExecutor(exec),
		application.WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	tr, err := r.Run(context.Background(), "11", 10)
	if !errors.Is(err, application.ErrPersistFailed) {
		t.Fatalf("Run() error = %v, want ErrPersistFailed", err)
	}
	if !errors.Is(err, trial.ErrConnectionFailed) {
		t.Errorf("Run() error = %v, want wrapped ErrConnectionFailed", err)
	}
	if tr == nil || tr.Outcome() != trial.OutcomeAccepted {
		t.Fatalf("Run() trial = %+v, want settled acceptance", tr)
	}
	if store.calls.Load() < 1 {
		t.Error("store was never called")
	}
	if len(metrics.failures) != 1 || metrics.failures[0] != "flaky" {
		t.Errorf("persist failures = %v, want [flaky]", metrics.failures)
	}
}

func TestRunner_PermanentStoreErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	store := &failingStore{TrialStore: memory.NewTrialStore(), err: trial.ErrTrialExists}
	exec := resilience.NewExecutorWithOptions(
		resilience.WithRetryAttempts(5),
		resilience.WithRetryDelay(time.Millisecond),
		resilience.WithPermanentErrors(trial.ErrTrialExists),
	)

	r, err := application.NewRunner(pairs(),
		application.WithStore(store, "memory"),
		application.WithExecutor(exec),
	)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	_, err = r.Run(context.Background(), "11", 10)
	if !errors.Is(err, trial.ErrTrialExists) {
		t.Fatalf("Run() error = %v, want ErrTrialExists", err)
	}
	if got := store.calls.Load(); got != 1 {
		t.Errorf("Save called %d times, want 1", got)
	}
}

func TestRunner_ExplorationErrors(t *testing.T) {
	t.Parallel()

	wide := &machine.Machine{
		Name:   "wide",
		Start:  "s",
		Reject: "qrej",
		Table: machine.NewTable(
			machine.Rule{From: "s", Read: machine.Blank, Next: "s", Write: machine.Blank, Move: machine.Right},
			machine.Rule{From: "s", Read: machine.Blank, Next: "s", Write: machine.Blank, Move: machine.Left},
		),
	}

	t.Run("frontier limit", func(t *testing.T) {
		t.Parallel()

		store := memory.NewTrialStore()
		r, err := application.NewRunner(wide,
			application.WithFrontierLimit(8),
			application.WithStore(store, "memory"),
		)
		if err != nil {
			t.Fatalf("NewRunner() error = %v", err)
		}

		tr, err := r.Run(context.Background(), "", 20)
		if !errors.Is(err, application.ErrFrontierLimit) {
			t.Errorf("Run() error = %v, want ErrFrontierLimit", err)
		}
		if tr != nil {
			t.Error("aborted run returned a trial")
		}
		if store.Len() != 0 {
			t.Error("aborted run was persisted")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r, err := application.NewRunner(wide)
		if err != nil {
			t.Fatalf("NewRunner() error = %v", err)
		}
		if _, err := r.Run(ctx, "", 20); !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	})
}

func TestRunner_TapeMode(t *testing.T) {
	t.Parallel()

	m := &machine.Machine{
		Name:   "collapse",
		Start:  "start",
		Accept: []machine.State{"qacc"},
		Reject: "qrej",
		Table: machine.NewTable(
			machine.Rule{From: "start", Read: 'a', Next: "s1", Write: 'a', Move: machine.Right},
			machine.Rule{From: "s1", Read: machine.Blank, Next: "s2", Write: machine.Blank, Move: machine.Left},
			machine.Rule{From: "s2", Read: 'a', Next: "qacc", Write: 'a', Move: machine.Right},
		),
	}

	tests := []struct {
		mode tape.Mode
		want trial.Outcome
	}{
		{tape.ModeCompat, trial.OutcomeExhausted},
		{tape.ModeStrict, trial.OutcomeAccepted},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			t.Parallel()

			r, err := application.NewRunner(m, application.WithTapeMode(tt.mode))
			if err != nil {
				t.Fatalf("NewRunner() error = %v", err)
			}
			tr, err := r.Run(context.Background(), "a", 10)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if tr.Outcome() != tt.want || tr.TapeMode != tt.mode {
				t.Errorf("Run() = %s in %s, want %s", tr.Outcome(), tr.TapeMode, tt.want)
			}
		})
	}
}

func TestRunner_Tracing(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	r, err := application.NewRunner(pairs(), application.WithTracer(tp.Tracer("test")))
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if _, err := r.Run(context.Background(), "11", 10); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name() != "tracetm.explore" {
		t.Errorf("span name = %s, want tracetm.explore", spans[0].Name())
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["outcome"] != string(trial.OutcomeAccepted) || attrs["depth"] != "2" {
		t.Errorf("span attributes = %v", attrs)
	}
}

func TestRunner_ForMachine(t *testing.T) {
	t.Parallel()

	store := memory.NewTrialStore()
	r, err := application.NewRunner(pairs(), application.WithStore(store, "memory"))
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}

	other := pairs()
	other.Name = "pairs-v2"
	other.Accept = []machine.State{"odd"}

	r2, err := r.ForMachine(other)
	if err != nil {
		t.Fatalf("ForMachine() error = %v", err)
	}
	tr, err := r2.Run(context.Background(), "1", 10)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if tr.Machine != "pairs-v2" || tr.Outcome() != trial.OutcomeAccepted || tr.Result.Depth != 1 {
		t.Errorf("trial = %s %s at %d, want pairs-v2 accepted at 1", tr.Machine, tr.Outcome(), tr.Result.Depth)
	}
	if store.Len() != 1 {
		t.Errorf("shared store holds %d trials, want 1", store.Len())
	}

	if _, err := r.ForMachine(nil); !errors.Is(err, application.ErrNilMachine) {
		t.Errorf("ForMachine(nil) error = %v, want ErrNilMachine", err)
	}
}
