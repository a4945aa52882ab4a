package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/felixgeelhaar/tracetm"
	"github.com/felixgeelhaar/tracetm/application"
	"github.com/felixgeelhaar/tracetm/domain/cache"
	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
	"github.com/felixgeelhaar/tracetm/domain/tape"
	"github.com/felixgeelhaar/tracetm/domain/trial"
	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
	"github.com/felixgeelhaar/tracetm/infrastructure/observability"
	"github.com/felixgeelhaar/tracetm/infrastructure/resilience"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/badger"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/memory"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/mongodb"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/postgres"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/redis"
	"github.com/felixgeelhaar/tracetm/infrastructure/storage/sqlite"
	"github.com/felixgeelhaar/tracetm/infrastructure/telemetry"
)

// Builder turns an AppConfig into runtime components.
type Builder struct {
	config        *domainconfig.AppConfig
	traceWriter   io.Writer
	meterProvider metric.MeterProvider
}

// BuilderOption configures the builder.
type BuilderOption func(*Builder)

// WithTraceWriter redirects the stdout trace exporter.
func WithTraceWriter(w io.Writer) BuilderOption {
	return func(b *Builder) {
		b.traceWriter = w
	}
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) BuilderOption {
	return func(b *Builder) {
		b.meterProvider = mp
	}
}

// NewBuilder creates a new configuration builder.
func NewBuilder(config *domainconfig.AppConfig, opts ...BuilderOption) *Builder {
	b := &Builder{config: config, traceWriter: os.Stderr}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Components are the collaborators built from a configuration.
type Components struct {
	Store     trial.Store
	StoreName string

	Cache     cache.Cache
	CacheName string
	CacheTTL  time.Duration

	TapeMode      tape.Mode
	MaxSteps      int
	FrontierLimit int

	Executor *resilience.Executor
	Tracing  *observability.Provider
	Metrics  telemetry.Metrics

	closers []func(context.Context) error
}

// RunnerOptions returns the runner options for these components.
func (c *Components) RunnerOptions() []application.Option {
	opts := []application.Option{
		application.WithTapeMode(c.TapeMode),
		application.WithFrontierLimit(c.FrontierLimit),
		application.WithExecutor(c.Executor),
		application.WithMetrics(c.Metrics),
		application.WithTracer(c.Tracing.Tracer()),
	}
	if c.Store != nil {
		opts = append(opts, application.WithStore(c.Store, c.StoreName))
	}
	if c.Cache != nil {
		opts = append(opts, application.WithCache(c.Cache, c.CacheTTL))
	}
	return opts
}

// Close releases every backend in reverse order of construction.
func (c *Components) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Components) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

func closeFunc(fn func() error) func(context.Context) error {
	return func(context.Context) error { return fn() }
}

// Build constructs every component. On failure, whatever was already
// opened is closed again.
func (b *Builder) Build(ctx context.Context) (*Components, error) {
	cfg := b.config

	mode, err := tape.ParseMode(cfg.Engine.TapeMode)
	if err != nil {
		return nil, errors.Join(domainconfig.ErrBuildFailed, err)
	}

	c := &Components{
		TapeMode:      mode,
		MaxSteps:      cfg.Engine.MaxSteps,
		FrontierLimit: cfg.Engine.FrontierLimit,
		CacheTTL:      cfg.Cache.TTL.Duration(),
		Executor:      b.buildExecutor(),
		Metrics: telemetry.NewMetricsProvider(telemetry.MetricsConfig{
			MeterName:    observability.TracerName,
			MeterVersion: tracetm.Version,
			Provider:     b.meterProvider,
		}),
	}

	steps := []func(context.Context, *Components) error{
		b.buildTracing,
		b.buildStore,
		b.buildCache,
	}
	for _, step := range steps {
		if err := step(ctx, c); err != nil {
			_ = c.Close(ctx)
			return nil, errors.Join(domainconfig.ErrBuildFailed, err)
		}
	}
	return c, nil
}

func (b *Builder) buildExecutor() *resilience.Executor {
	r := b.config.Resilience
	return resilience.NewExecutorWithOptions(
		resilience.WithRetryAttempts(max(r.RetryAttempts, 1)),
		resilience.WithRetryDelay(r.RetryDelay.Duration()),
		resilience.WithCircuitBreakerThreshold(r.BreakerThreshold),
		resilience.WithCircuitBreakerTimeout(r.BreakerTimeout.Duration()),
		resilience.WithPermanentErrors(trial.ErrTrialExists, trial.ErrInvalidTrialID),
	)
}

func (b *Builder) buildTracing(ctx context.Context, c *Components) error {
	t := b.config.Telemetry

	opts := []observability.Option{
		observability.WithServiceName(b.config.Name),
		observability.WithServiceVersion(tracetm.Version),
		observability.WithExporter(observability.ExporterType(strings.ToLower(t.Tracing)), t.Endpoint),
		observability.WithWriter(b.traceWriter),
	}
	if t.Insecure {
		opts = append(opts, observability.WithInsecure())
	}

	p, err := observability.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	c.Tracing = p
	c.onClose(p.Shutdown)
	return nil
}

func (b *Builder) buildStore(ctx context.Context, c *Components) error {
	s := b.config.Storage
	backend := strings.ToLower(s.Backend)
	c.StoreName = backend

	switch backend {
	case "", "memory":
		c.StoreName = "memory"
		c.Store = memory.NewTrialStore()

	case "none":

	case "sqlite":
		store, err := sqlite.NewTrialStore(sqlite.DefaultConfig(), sqlite.WithDSN(sqlite.FileDSN(s.DSN)))
		if err != nil {
			return fmt.Errorf("sqlite store: %w", err)
		}
		c.Store = store
		c.onClose(closeFunc(store.Close))

	case "postgres":
		pool, err := postgres.Connect(ctx, postgres.DefaultConfig(),
			postgres.WithDSN(s.DSN),
			postgres.WithSchema(s.Schema),
		)
		if err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		c.onClose(func(context.Context) error { pool.Close(); return nil })

		store := postgres.NewTrialStore(pool, s.Schema)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("postgres store: %w", err)
		}
		c.Store = store

	case "mongodb":
		client, err := mongodb.NewClient(ctx,
			mongodb.WithURI(s.DSN),
			mongodb.WithDatabase(s.Database),
		)
		if err != nil {
			return fmt.Errorf("mongodb store: %w", err)
		}
		c.onClose(client.Close)

		if err := client.CreateIndexes(ctx, s.Collection); err != nil {
			return fmt.Errorf("mongodb store: %w", err)
		}
		c.Store = mongodb.NewTrialStore(client, s.Collection)

	default:
		return fmt.Errorf("unknown storage backend %q", s.Backend)
	}

	logging.Debug().
		Add(logging.Component("config")).
		Add(logging.Str("store", c.StoreName)).
		Msg("trial store ready")
	return nil
}

func (b *Builder) buildCache(_ context.Context, c *Components) error {
	cc := b.config.Cache
	backend := strings.ToLower(cc.Backend)
	c.CacheName = backend

	switch backend {
	case "", "none":
		c.CacheName = "none"

	case "memory":
		c.Cache = memory.NewCache()

	case "redis":
		rc, err := redis.NewCache(redis.DefaultConfig(), redis.WithURL(cc.Address))
		if err != nil {
			return fmt.Errorf("redis cache: %w", err)
		}
		c.Cache = rc
		c.onClose(closeFunc(rc.Close))

	case "badger":
		cfg := badger.DefaultConfig(cc.Dir)
		cfg.InMemory = cc.Dir == ""
		bc, err := badger.NewCache(cfg)
		if err != nil {
			return fmt.Errorf("badger cache: %w", err)
		}
		c.Cache = bc
		c.onClose(closeFunc(bc.Close))

	case "sqlite":
		if err := os.MkdirAll(cc.Dir, 0o755); err != nil {
			return fmt.Errorf("sqlite cache: %w", err)
		}
		sc, err := sqlite.NewCache(sqlite.DefaultConfig(),
			sqlite.WithDSN(sqlite.FileDSN(filepath.Join(cc.Dir, "results.db"))),
		)
		if err != nil {
			return fmt.Errorf("sqlite cache: %w", err)
		}
		c.Cache = sc
		c.onClose(closeFunc(sc.Close))

	default:
		return fmt.Errorf("unknown cache backend %q", cc.Backend)
	}
	return nil
}

// LoggingConfig maps the logging section onto the logger configuration.
func LoggingConfig(cfg *domainconfig.AppConfig) logging.Config {
	lc := logging.DefaultConfig()
	if cfg.Logging.Level != "" {
		lc.Level = strings.ToLower(cfg.Logging.Level)
	}
	if cfg.Logging.Format != "" {
		lc.Format = strings.ToLower(cfg.Logging.Format)
	}
	return lc
}
