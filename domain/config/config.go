// Package config provides domain models for tracetm configuration.
package config

import "time"

// AppConfig represents the complete application configuration.
type AppConfig struct {
	// Name is a human-readable name for this configuration.
	Name string `json:"name" yaml:"name"`
	// Version is the configuration schema version.
	Version string `json:"version" yaml:"version"`
	// Description describes the deployment.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Logging    LoggingConfig    `json:"logging,omitempty" yaml:"logging,omitempty"`
	Storage    StorageConfig    `json:"storage,omitempty" yaml:"storage,omitempty"`
	Cache      CacheConfig      `json:"cache,omitempty" yaml:"cache,omitempty"`
	Telemetry  TelemetryConfig  `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
	Resilience ResilienceConfig `json:"resilience,omitempty" yaml:"resilience,omitempty"`
}

// EngineConfig contains simulation settings.
type EngineConfig struct {
	// MaxSteps is the step bound used when none is given on the command line.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`
	// TapeMode selects the head-movement rule (compat, strict).
	TapeMode string `json:"tape_mode,omitempty" yaml:"tape_mode,omitempty"`
	// FrontierLimit caps the width of a level (0 = unlimited).
	FrontierLimit int `json:"frontier_limit,omitempty" yaml:"frontier_limit,omitempty"`
}

// LoggingConfig contains logger settings.
type LoggingConfig struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is the output format (console, json).
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// StorageConfig selects the trial store.
type StorageConfig struct {
	// Backend is one of memory, sqlite, postgres, mongodb, none.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// DSN is the backend connection string or file path.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	// Schema is the postgres schema.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`
	// Database is the mongodb database.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	// Collection is the mongodb collection.
	Collection string `json:"collection,omitempty" yaml:"collection,omitempty"`
}

// CacheConfig selects the result cache.
type CacheConfig struct {
	// Backend is one of none, memory, redis, badger.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// Address is the redis address.
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
	// Dir is the badger directory (empty = in-memory) or the directory
	// holding the sqlite results.db.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// TTL is how long results stay cached (0 = forever).
	TTL Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
}

// TelemetryConfig contains tracing settings.
type TelemetryConfig struct {
	// Tracing is the exporter (noop, stdout, otlp).
	Tracing string `json:"tracing,omitempty" yaml:"tracing,omitempty"`
	// Endpoint is the OTLP collector endpoint.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	// Insecure disables TLS for OTLP.
	Insecure bool `json:"insecure,omitempty" yaml:"insecure,omitempty"`
}

// ResilienceConfig contains settings for store writes.
type ResilienceConfig struct {
	// RetryAttempts is the maximum attempts per write.
	RetryAttempts int `json:"retry_attempts,omitempty" yaml:"retry_attempts,omitempty"`
	// RetryDelay is the first retry delay.
	RetryDelay Duration `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	// BreakerThreshold is consecutive failures before the circuit opens.
	BreakerThreshold int `json:"breaker_threshold,omitempty" yaml:"breaker_threshold,omitempty"`
	// BreakerTimeout is how long the circuit stays open.
	BreakerTimeout Duration `json:"breaker_timeout,omitempty" yaml:"breaker_timeout,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{
		Name:    "tracetm",
		Version: "1.0",
		Engine: EngineConfig{
			MaxSteps: 100,
			TapeMode: "compat",
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{
			Backend:    "memory",
			Schema:     "public",
			Database:   "tracetm",
			Collection: "trials",
		},
		Cache:     CacheConfig{Backend: "none", TTL: Duration(time.Hour)},
		Telemetry: TelemetryConfig{Tracing: "noop"},
		Resilience: ResilienceConfig{
			RetryAttempts:    3,
			RetryDelay:       Duration(50 * time.Millisecond),
			BreakerThreshold: 5,
			BreakerTimeout:   Duration(30 * time.Second),
		},
	}
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
