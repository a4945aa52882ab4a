// Package telemetry provides OpenTelemetry metrics for trial execution.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsProvider provides access to metrics instruments.
type MetricsProvider struct {
	meter metric.Meter

	// Counters
	trials       metric.Int64Counter
	transitions  metric.Int64Counter
	cacheHits    metric.Int64Counter
	cacheMisses  metric.Int64Counter
	persistFails metric.Int64Counter

	// Histograms
	depth         metric.Int64Histogram
	frontier      metric.Int64Histogram
	trialDuration metric.Float64Histogram

	initErr error
}

// MetricsConfig configures the metrics provider.
type MetricsConfig struct {
	// MeterName is the name of the meter (default: "github.com/felixgeelhaar/tracetm").
	MeterName string
	// MeterVersion is the version of the meter.
	MeterVersion string
	// Provider overrides the global meter provider.
	Provider metric.MeterProvider
}

// DefaultMetricsConfig returns a default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MeterName:    "github.com/felixgeelhaar/tracetm",
		MeterVersion: "1.0.0",
	}
}

// NewMetricsProvider creates a new metrics provider.
func NewMetricsProvider(config MetricsConfig) *MetricsProvider {
	if config.MeterName == "" {
		config.MeterName = DefaultMetricsConfig().MeterName
	}

	provider := config.Provider
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(
		config.MeterName,
		metric.WithInstrumentationVersion(config.MeterVersion),
	)

	mp := &MetricsProvider{meter: meter}
	mp.initErr = mp.initInstruments()
	return mp
}

func (mp *MetricsProvider) initInstruments() error {
	var err error

	mp.trials, err = mp.meter.Int64Counter(
		"tracetm.trials",
		metric.WithDescription("Number of completed trials"),
		metric.WithUnit("{trial}"),
	)
	if err != nil {
		return err
	}

	mp.transitions, err = mp.meter.Int64Counter(
		"tracetm.transitions",
		metric.WithDescription("Number of generated transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	mp.cacheHits, err = mp.meter.Int64Counter(
		"tracetm.cache.hits",
		metric.WithDescription("Number of result cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	mp.cacheMisses, err = mp.meter.Int64Counter(
		"tracetm.cache.misses",
		metric.WithDescription("Number of result cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	mp.persistFails, err = mp.meter.Int64Counter(
		"tracetm.persist.failures",
		metric.WithDescription("Number of trials that could not be persisted"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return err
	}

	mp.depth, err = mp.meter.Int64Histogram(
		"tracetm.trial.depth",
		metric.WithDescription("Depth at which trials were decided"),
		metric.WithUnit("{level}"),
	)
	if err != nil {
		return err
	}

	mp.frontier, err = mp.meter.Int64Histogram(
		"tracetm.trial.frontier",
		metric.WithDescription("Widest level reached by a trial"),
		metric.WithUnit("{configuration}"),
	)
	if err != nil {
		return err
	}

	mp.trialDuration, err = mp.meter.Float64Histogram(
		"tracetm.trial.duration",
		metric.WithDescription("Duration of trials"),
		metric.WithUnit("ms"),
	)
	return err
}

// Error returns any initialization error.
func (mp *MetricsProvider) Error() error {
	return mp.initErr
}

// TrialRecord is what the runner reports once per trial.
type TrialRecord struct {
	Machine     string
	Outcome     string
	Depth       int
	Transitions int
	Frontier    int
	Cached      bool
	Duration    time.Duration
}

// RecordTrial records a completed trial.
func (mp *MetricsProvider) RecordTrial(ctx context.Context, r TrialRecord) {
	attrs := metric.WithAttributes(
		attribute.String("machine", r.Machine),
		attribute.String("outcome", r.Outcome),
		attribute.Bool("cached", r.Cached),
	)

	mp.trials.Add(ctx, 1, attrs)
	mp.trialDuration.Record(ctx, float64(r.Duration.Microseconds())/1000, attrs)
	mp.depth.Record(ctx, int64(r.Depth), attrs)

	// Cached trials did no exploration work.
	if !r.Cached {
		mp.transitions.Add(ctx, int64(r.Transitions), attrs)
		mp.frontier.Record(ctx, int64(r.Frontier), attrs)
	}
}

// RecordCacheHit records a cache hit.
func (mp *MetricsProvider) RecordCacheHit(ctx context.Context, machine string) {
	mp.cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("machine", machine)))
}

// RecordCacheMiss records a cache miss.
func (mp *MetricsProvider) RecordCacheMiss(ctx context.Context, machine string) {
	mp.cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("machine", machine)))
}

// RecordPersistFailure records a trial that could not be stored.
func (mp *MetricsProvider) RecordPersistFailure(ctx context.Context, backend string) {
	mp.persistFails.Add(ctx, 1, metric.WithAttributes(attribute.String("backend", backend)))
}

// NoopMetricsProvider is a no-op metrics provider for when metrics are disabled.
type NoopMetricsProvider struct{}

// RecordTrial is a no-op.
func (NoopMetricsProvider) RecordTrial(context.Context, TrialRecord) {}

// RecordCacheHit is a no-op.
func (NoopMetricsProvider) RecordCacheHit(context.Context, string) {}

// RecordCacheMiss is a no-op.
func (NoopMetricsProvider) RecordCacheMiss(context.Context, string) {}

// RecordPersistFailure is a no-op.
func (NoopMetricsProvider) RecordPersistFailure(context.Context, string) {}

// Metrics defines the interface for metrics recording.
type Metrics interface {
	RecordTrial(ctx context.Context, r TrialRecord)
	RecordCacheHit(ctx context.Context, machine string)
	RecordCacheMiss(ctx context.Context, machine string)
	RecordPersistFailure(ctx context.Context, backend string)
}

var (
	_ Metrics = (*MetricsProvider)(nil)
	_ Metrics = NoopMetricsProvider{}
)
