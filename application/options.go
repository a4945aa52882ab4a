package application

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/tracetm/domain/cache"
	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/resilience"
	"github.com/felixgeelhaar/tracetm/infrastructure/telemetry"
)

// Option configures the runner.
type Option func(*RunnerConfig)

// WithStore sets the trial store. The name labels persistence metrics.
func WithStore(s trial.Store, name string) Option {
	return func(c *RunnerConfig) {
		c.Store = s
		c.StoreName = name
	}
}

// WithCache sets the result cache and entry TTL.
func WithCache(cc cache.Cache, ttl time.Duration) Option {
	return func(c *RunnerConfig) {
		c.Cache = cc
		c.CacheTTL = ttl
	}
}

// WithExecutor sets the resilient executor used for store writes.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *RunnerConfig) {
		c.Executor = e
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *RunnerConfig) {
		c.Metrics = m
	}
}

// WithTracer sets the tracer for trial spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *RunnerConfig) {
		c.Tracer = t
	}
}

// WithTapeMode selects the head-movement rule.
func WithTapeMode(m tape.Mode) Option {
	return func(c *RunnerConfig) {
		c.TapeMode = m
	}
}

// WithFrontierLimit caps level width (0 = unlimited).
func WithFrontierLimit(n int) Option {
	return func(c *RunnerConfig) {
		c.FrontierLimit = n
	}
}

// WithIDGenerator overrides trial ID generation.
func WithIDGenerator(fn func() string) Option {
	return func(c *RunnerConfig) {
		c.IDGenerator = fn
	}
}
