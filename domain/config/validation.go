package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	// Path is the JSON path to the invalid field.
	Path string
	// Message describes the validation error.
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d validation errors:\n  - %s", len(e), strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Accepted values per enumerated field.
var (
	TapeModes       = []string{"compat", "strict"}
	LogLevels       = []string{"trace", "debug", "info", "warn", "error"}
	LogFormats      = []string{"console", "json"}
	StorageBackends = []string{"memory", "sqlite", "postgres", "mongodb", "none"}
	CacheBackends   = []string{"none", "memory", "redis", "badger", "sqlite"}
	TracingModes    = []string{"noop", "stdout", "otlp"}
)

// Validator validates application configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *AppConfig) ValidationErrors {
	v.errors = nil

	v.validateRequired(config)
	v.validateEngine(config)
	v.validateLogging(config)
	v.validateStorage(config)
	v.validateCache(config)
	v.validateTelemetry(config)
	v.validateResilience(config)

	return v.errors
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) checkEnum(path, value string, allowed []string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	v.addError(path, fmt.Sprintf("invalid value %q (want one of %s)", value, strings.Join(allowed, ", ")))
}

func (v *Validator) validateRequired(config *AppConfig) {
	if config.Name == "" {
		v.addError("name", "name is required")
	}
	if config.Version == "" {
		v.addError("version", "version is required")
	}
}

func (v *Validator) validateEngine(config *AppConfig) {
	if config.Engine.MaxSteps < 0 {
		v.addError("engine.max_steps", "max_steps must be non-negative")
	}
	if config.Engine.FrontierLimit < 0 {
		v.addError("engine.frontier_limit", "frontier_limit must be non-negative")
	}
	v.checkEnum("engine.tape_mode", config.Engine.TapeMode, TapeModes)
}

func (v *Validator) validateLogging(config *AppConfig) {
	v.checkEnum("logging.level", config.Logging.Level, LogLevels)
	v.checkEnum("logging.format", config.Logging.Format, LogFormats)
}

func (v *Validator) validateStorage(config *AppConfig) {
	s := config.Storage
	v.checkEnum("storage.backend", s.Backend, StorageBackends)

	switch strings.ToLower(s.Backend) {
	case "sqlite", "postgres":
		if s.DSN == "" {
			v.addError("storage.dsn", fmt.Sprintf("dsn is required for %s storage", s.Backend))
		}
	case "mongodb":
		if s.DSN == "" {
			v.addError("storage.dsn", "dsn is required for mongodb storage")
		}
		if s.Database == "" {
			v.addError("storage.database", "database is required for mongodb storage")
		}
	}
}

func (v *Validator) validateCache(config *AppConfig) {
	c := config.Cache
	v.checkEnum("cache.backend", c.Backend, CacheBackends)

	if strings.EqualFold(c.Backend, "redis") && c.Address == "" {
		v.addError("cache.address", "address is required for redis cache")
	}
	if strings.EqualFold(c.Backend, "sqlite") && c.Dir == "" {
		v.addError("cache.dir", "dir is required for sqlite cache")
	}
	if c.TTL < 0 {
		v.addError("cache.ttl", "ttl must be non-negative")
	}
}

func (v *Validator) validateTelemetry(config *AppConfig) {
	v.checkEnum("telemetry.tracing", config.Telemetry.Tracing, TracingModes)
	if strings.EqualFold(config.Telemetry.Tracing, "otlp") && config.Telemetry.Endpoint == "" {
		v.addError("telemetry.endpoint", "endpoint is required for otlp tracing")
	}
}

func (v *Validator) validateResilience(config *AppConfig) {
	r := config.Resilience
	if r.RetryAttempts < 0 {
		v.addError("resilience.retry_attempts", "retry_attempts must be non-negative")
	}
	if r.RetryDelay < 0 {
		v.addError("resilience.retry_delay", "retry_delay must be non-negative")
	}
	if r.BreakerThreshold < 0 {
		v.addError("resilience.breaker_threshold", "breaker_threshold must be non-negative")
	}
}
