package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrUnknownExporter is returned for an unsupported exporter type.
var ErrUnknownExporter = errors.New("unknown trace exporter type")

// TracerName is the instrumentation name used for trial spans.
const TracerName = "github.com/felixgeelhaar/tracetm"

// Provider owns the tracer provider and its shutdown.
type Provider struct {
	config        Config
	tracer        trace.Tracer
	shutdownFuncs []func(context.Context) error
}

// New creates a new tracing provider.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Provider{config: cfg}

	exporter, err := p.newExporter(ctx)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		p.tracer = noop.NewTracerProvider().Tracer(TracerName)
		return p, nil
	}

	// Not merged with resource.Default() to avoid schema URL conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(cfg.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)

	p.tracer = tp.Tracer(TracerName)
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	return p, nil
}

func (p *Provider) newExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch p.config.Exporter {
	case ExporterNoop, "":
		return nil, nil

	case ExporterStdout:
		exp, err := stdouttrace.New(
			stdouttrace.WithWriter(p.config.Writer),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return nil, err
		}
		return exp, nil

	case ExporterOTLP:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(p.config.Endpoint),
		}
		if p.config.Insecure {
			opts = append(opts,
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
				otlptracegrpc.WithInsecure(),
			)
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return exp, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, p.config.Exporter)
	}
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Tracer returns the trial tracer.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewNoopProvider creates a provider whose tracer records nothing.
func NewNoopProvider() *Provider {
	return &Provider{
		config: DefaultConfig(),
		tracer: noop.NewTracerProvider().Tracer(TracerName),
	}
}
