package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.ServiceName != "tracetm" {
		t.Errorf("ServiceName = %s, want tracetm", cfg.ServiceName)
	}
	if cfg.Exporter != ExporterNoop {
		t.Errorf("Exporter = %s, want noop", cfg.Exporter)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v, want 1.0", cfg.SampleRate)
	}
}

func TestConfigOptions(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithServiceName("svc"),
		WithServiceVersion("2.0.0"),
		WithExporter(ExporterOTLP, "collector:4317"),
		WithInsecure(),
		WithSampleRate(0.5),
		WithWriter(&buf),
	} {
		opt(&cfg)
	}

	if cfg.ServiceName != "svc" || cfg.ServiceVersion != "2.0.0" {
		t.Errorf("service = %s@%s", cfg.ServiceName, cfg.ServiceVersion)
	}
	if cfg.Exporter != ExporterOTLP || cfg.Endpoint != "collector:4317" || !cfg.Insecure {
		t.Errorf("exporter config = %+v", cfg)
	}
	if cfg.SampleRate != 0.5 || cfg.Writer != &buf {
		t.Errorf("sampling/writer config = %+v", cfg)
	}
}

func TestNoopProvider(t *testing.T) {
	t.Parallel()

	p := NewNoopProvider()
	_, span := p.Tracer().Start(context.Background(), "tracetm.explore")
	if span.IsRecording() {
		t.Error("noop span should not record")
	}
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestProviderWithStdoutTracing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	p, err := New(context.Background(), WithExporter(ExporterStdout, ""), WithWriter(&buf))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, span := p.Tracer().Start(context.Background(), "tracetm.explore")
	if !span.IsRecording() {
		t.Error("stdout span should record")
	}
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if !strings.Contains(buf.String(), "tracetm.explore") {
		t.Errorf("exported spans missing span name: %s", buf.String())
	}
}

func TestProviderUnknownExporter(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithExporter("carrier-pigeon", ""))
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("New() error = %v, want ErrUnknownExporter", err)
	}
}

func TestSamplerFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rate float64
		want string
	}{
		{1.0, sdktrace.AlwaysSample().Description()},
		{0.0, sdktrace.NeverSample().Description()},
		{0.25, sdktrace.TraceIDRatioBased(0.25).Description()},
	}

	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("samplerFor(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}
