// Package observability provides OpenTelemetry tracing for trials.
package observability

import (
	"io"
	"os"
	"time"
)

// Config configures the tracing infrastructure.
type Config struct {
	// ServiceName is the name of the service for telemetry.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Exporter specifies the trace exporter type.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRate is the sampling rate (0.0-1.0, default: 1.0).
	SampleRate float64

	// BatchTimeout is the batch export timeout.
	BatchTimeout time.Duration

	// Writer receives stdout-exporter output. Defaults to stderr so
	// spans never interleave with reports.
	Writer io.Writer
}

// ExporterType specifies the trace exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP gRPC endpoint.
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout pretty-prints spans (useful for development).
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop disables tracing.
	ExporterNoop ExporterType = "noop"
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "tracetm",
		ServiceVersion: "1.0.0",
		Exporter:       ExporterNoop,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Writer:         os.Stderr,
	}
}

// Option configures the tracing infrastructure.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithExporter selects the exporter and its endpoint.
func WithExporter(exporter ExporterType, endpoint string) Option {
	return func(c *Config) {
		c.Exporter = exporter
		c.Endpoint = endpoint
	}
}

// WithInsecure disables TLS for OTLP.
func WithInsecure() Option {
	return func(c *Config) {
		c.Insecure = true
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithWriter redirects stdout-exporter output.
func WithWriter(w io.Writer) Option {
	return func(c *Config) {
		c.Writer = w
	}
}
