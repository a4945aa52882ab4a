package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/felixgeelhaar/tracetm/domain/cache"
	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
	"github.com/felixgeelhaar/tracetm/infrastructure/resilience"
	"github.com/felixgeelhaar/tracetm/infrastructure/statemachine"
	"github.com/felixgeelhaar/tracetm/infrastructure/telemetry"
)

// RunnerConfig contains the collaborators of a Runner. Only the machine is
// required; everything else has a working default.
type RunnerConfig struct {
	Store         trial.Store
	StoreName     string
	Cache         cache.Cache
	CacheTTL      time.Duration
	Executor      *resilience.Executor
	Metrics       telemetry.Metrics
	Tracer        trace.Tracer
	TapeMode      tape.Mode
	FrontierLimit int
	IDGenerator   func() string
}

// Runner executes trials for one machine: it explores, caches, records and
// persists each one.
type Runner struct {
	config      RunnerConfig
	sim         *Simulator
	fingerprint string
}

// NewRunner creates a runner for a machine.
func NewRunner(m *machine.Machine, opts ...Option) (*Runner, error) {
	var config RunnerConfig
	for _, opt := range opts {
		opt(&config)
	}
	return newRunner(m, config)
}

func newRunner(m *machine.Machine, config RunnerConfig) (*Runner, error) {
	if config.TapeMode == "" {
		config.TapeMode = tape.ModeCompat
	}
	if config.Executor == nil {
		config.Executor = resilience.NewDefaultExecutor()
	}
	if config.Metrics == nil {
		config.Metrics = telemetry.NoopMetricsProvider{}
	}
	if config.Tracer == nil {
		config.Tracer = noop.NewTracerProvider().Tracer("tracetm")
	}
	if config.IDGenerator == nil {
		config.IDGenerator = uuid.NewString
	}
	if config.StoreName == "" {
		config.StoreName = "default"
	}

	sim, err := NewSimulator(m,
		WithMover(tape.MoverFor(config.TapeMode)),
		WithLevelLimit(config.FrontierLimit),
	)
	if err != nil {
		return nil, err
	}

	return &Runner{
		config:      config,
		sim:         sim,
		fingerprint: m.Fingerprint(),
	}, nil
}

// ForMachine returns a runner for another machine sharing this runner's
// collaborators. Used when a machine file is reloaded.
func (r *Runner) ForMachine(m *machine.Machine) (*Runner, error) {
	return newRunner(m, r.config)
}

// Machine returns the machine this runner simulates.
func (r *Runner) Machine() *machine.Machine {
	return r.sim.Machine()
}

// Simulator returns the underlying simulator.
func (r *Runner) Simulator() *Simulator {
	return r.sim
}

// Run executes one trial.
//
// The returned trial is non-nil whenever exploration finished, even if
// persistence failed; in that case the error wraps ErrPersistFailed.
func (r *Runner) Run(ctx context.Context, input string, maxSteps int) (*trial.Trial, error) {
	m := r.sim.Machine()
	tr := trial.New(r.config.IDGenerator(), m.Name, r.fingerprint, input, maxSteps, r.config.TapeMode)

	lifecycle, err := statemachine.NewTrialMachine()
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle: %w", err)
	}
	interp := statemachine.NewInterpreter(lifecycle, statemachine.NewContext(tr))
	interp.Start()
	defer interp.Stop()

	ctx, span := r.config.Tracer.Start(ctx, "tracetm.explore", trace.WithAttributes(
		attribute.String("trial.id", tr.ID),
		attribute.String("machine", m.Name),
		attribute.Int("max_steps", maxSteps),
		attribute.String("tape_mode", string(r.config.TapeMode)),
	))
	defer span.End()

	key := cache.ResultKey(r.fingerprint, string(r.config.TapeMode), maxSteps, input)
	result, cached := r.lookup(ctx, key)

	if !cached {
		if err := interp.Begin(); err != nil {
			return nil, err
		}

		result, err = r.sim.Explore(ctx, input, maxSteps)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logging.Warn().
				Add(logging.TrialID(tr.ID)).
				Add(logging.Machine(m.Name)).
				Add(logging.ErrorField(err)).
				Msg("trial aborted")
			return nil, err
		}
		r.store(ctx, key, result)
	}

	if err := interp.Settle(result, cached); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("outcome", string(result.Outcome)),
		attribute.Int("depth", result.Depth),
		attribute.Int("transitions", result.Transitions),
		attribute.Bool("cached", cached),
	)
	span.SetStatus(codes.Ok, "")

	r.config.Metrics.RecordTrial(ctx, telemetry.TrialRecord{
		Machine:     m.Name,
		Outcome:     string(result.Outcome),
		Depth:       result.Depth,
		Transitions: result.Transitions,
		Frontier:    result.Frontier,
		Cached:      cached,
		Duration:    tr.Duration(),
	})

	logging.Info().
		Add(logging.TrialID(tr.ID)).
		Add(logging.Machine(m.Name)).
		Add(logging.Outcome(result.Outcome)).
		Add(logging.Depth(result.Depth)).
		Add(logging.Transitions(result.Transitions)).
		Add(logging.Duration(tr.Duration())).
		Add(logging.Cached(cached)).
		Msg("trial completed")

	if err := r.persist(ctx, tr); err != nil {
		return tr, err
	}
	return tr, nil
}

// lookup returns a cached result. Cache failures are logged and treated as misses.
func (r *Runner) lookup(ctx context.Context, key string) (trial.Result, bool) {
	if r.config.Cache == nil {
		return trial.Result{}, false
	}
	machineName := r.sim.Machine().Name

	data, ok, err := r.config.Cache.Get(ctx, key)
	if err != nil {
		logging.Warn().
			Add(logging.Component("cache")).
			Add(logging.Operation("get")).
			Add(logging.ErrorField(err)).
			Msg("cache lookup failed")
	}
	if err != nil || !ok {
		r.config.Metrics.RecordCacheMiss(ctx, machineName)
		return trial.Result{}, false
	}

	var result trial.Result
	if err := json.Unmarshal(data, &result); err != nil || !result.Outcome.IsValid() {
		logging.Warn().
			Add(logging.Component("cache")).
			Add(logging.ErrorField(err)).
			Msg("discarding undecodable cache entry")
		_ = r.config.Cache.Delete(ctx, key)
		r.config.Metrics.RecordCacheMiss(ctx, machineName)
		return trial.Result{}, false
	}

	r.config.Metrics.RecordCacheHit(ctx, machineName)
	return result, true
}

func (r *Runner) store(ctx context.Context, key string, result trial.Result) {
	if r.config.Cache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err == nil {
		err = r.config.Cache.Set(ctx, key, data, cache.SetOptions{TTL: r.config.CacheTTL})
	}
	if err != nil {
		logging.Warn().
			Add(logging.Component("cache")).
			Add(logging.Operation("set")).
			Add(logging.ErrorField(err)).
			Msg("cache store failed")
	}
}

func (r *Runner) persist(ctx context.Context, tr *trial.Trial) error {
	if r.config.Store == nil {
		return nil
	}

	err := r.config.Executor.Do(ctx, func(ctx context.Context) error {
		return r.config.Store.Save(ctx, tr)
	})
	if err == nil {
		return nil
	}

	r.config.Metrics.RecordPersistFailure(ctx, r.config.StoreName)
	logging.Error().
		Add(logging.TrialID(tr.ID)).
		Add(logging.Component(r.config.StoreName)).
		Add(logging.ErrorField(err)).
		Msg("trial not persisted")

	return errors.Join(ErrPersistFailed, err)
}
