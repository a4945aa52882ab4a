package config

import (
	"encoding/json"
	"fmt"

	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
)

// JSONSchema represents a JSON Schema document.
type JSONSchema struct {
	Schema               string                 `json:"$schema,omitempty"`
	ID                   string                 `json:"$id,omitempty"`
	Title                string                 `json:"title,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Type                 string                 `json:"type,omitempty"`
	Properties           map[string]*JSONSchema `json:"properties,omitempty"`
	Required             []string               `json:"required,omitempty"`
	AdditionalProperties *bool                  `json:"additionalProperties,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	Default              any                    `json:"default,omitempty"`
	Minimum              *float64               `json:"minimum,omitempty"`
	Maximum              *float64               `json:"maximum,omitempty"`
	Pattern              string                 `json:"pattern,omitempty"`
	Format               string                 `json:"format,omitempty"`
}

// durationPattern accepts Go duration strings such as "50ms" or "1h30m".
const durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`

// GenerateSchema generates a JSON Schema for the application config.
// Defaults are taken from domainconfig.Default so the two never drift.
func GenerateSchema() *JSONSchema {
	def := domainconfig.Default()

	return &JSONSchema{
		Schema:               "https://json-schema.org/draft/2020-12/schema",
		ID:                   "https://github.com/felixgeelhaar/tracetm/tracetm-config.schema.json",
		Title:                "tracetm Configuration",
		Description:          "Configuration schema for the tracetm simulator",
		Type:                 "object",
		Required:             []string{"name", "version"},
		AdditionalProperties: boolPtr(false),
		Properties: map[string]*JSONSchema{
			"name": {
				Type:        "string",
				Description: "A human-readable name for this configuration",
				Default:     def.Name,
			},
			"version": {
				Type:        "string",
				Description: "The configuration schema version",
				Default:     def.Version,
			},
			"description": {
				Type: "string",
			},
			"engine":     engineSchema(def.Engine),
			"logging":    loggingSchema(def.Logging),
			"storage":    storageSchema(def.Storage),
			"cache":      cacheSchema(def.Cache),
			"telemetry":  telemetrySchema(def.Telemetry),
			"resilience": resilienceSchema(def.Resilience),
		},
	}
}

func engineSchema(def domainconfig.EngineConfig) *JSONSchema {
	return object("Simulation engine settings", map[string]*JSONSchema{
		"max_steps": {
			Type:        "integer",
			Description: "Default step bound when none is given on the command line",
			Default:     def.MaxSteps,
			Minimum:     floatPtr(0),
		},
		"tape_mode": {
			Type:        "string",
			Description: "Head-movement rule: compat keeps the historical Move-Left collapse",
			Enum:        domainconfig.TapeModes,
			Default:     def.TapeMode,
		},
		"frontier_limit": {
			Type:        "integer",
			Description: "Maximum configurations per level (0 = unlimited)",
			Default:     def.FrontierLimit,
			Minimum:     floatPtr(0),
		},
	})
}

func loggingSchema(def domainconfig.LoggingConfig) *JSONSchema {
	return object("Structured logging", map[string]*JSONSchema{
		"level":  {Type: "string", Enum: domainconfig.LogLevels, Default: def.Level},
		"format": {Type: "string", Enum: domainconfig.LogFormats, Default: def.Format},
	})
}

func storageSchema(def domainconfig.StorageConfig) *JSONSchema {
	return object("Trial persistence", map[string]*JSONSchema{
		"backend": {
			Type:    "string",
			Enum:    domainconfig.StorageBackends,
			Default: def.Backend,
		},
		"dsn": {
			Type:        "string",
			Description: "sqlite file or DSN, postgres connection string, or mongodb URI",
		},
		"schema":     {Type: "string", Description: "postgres schema", Default: def.Schema},
		"database":   {Type: "string", Description: "mongodb database", Default: def.Database},
		"collection": {Type: "string", Description: "mongodb collection", Default: def.Collection},
	})
}

func cacheSchema(def domainconfig.CacheConfig) *JSONSchema {
	return object("Result cache", map[string]*JSONSchema{
		"backend": {
			Type:    "string",
			Enum:    domainconfig.CacheBackends,
			Default: def.Backend,
		},
		"address": {Type: "string", Description: "redis host:port or redis:// URL"},
		"dir":     {Type: "string", Description: "badger directory (empty = in-memory) or sqlite cache directory"},
		"ttl":     duration("Entry lifetime (0 = no expiry)", def.TTL),
	})
}

func telemetrySchema(def domainconfig.TelemetryConfig) *JSONSchema {
	return object("Tracing", map[string]*JSONSchema{
		"tracing": {
			Type:    "string",
			Enum:    domainconfig.TracingModes,
			Default: def.Tracing,
		},
		"endpoint": {Type: "string", Description: "OTLP gRPC endpoint (host:port)"},
		"insecure": {Type: "boolean", Default: false},
	})
}

func resilienceSchema(def domainconfig.ResilienceConfig) *JSONSchema {
	return object("Store write resilience", map[string]*JSONSchema{
		"retry_attempts": {
			Type:    "integer",
			Default: def.RetryAttempts,
			Minimum: floatPtr(0),
		},
		"retry_delay": duration("Initial delay between retries", def.RetryDelay),
		"breaker_threshold": {
			Type:        "integer",
			Description: "Consecutive failures before the circuit opens",
			Default:     def.BreakerThreshold,
			Minimum:     floatPtr(0),
		},
		"breaker_timeout": duration("How long the circuit stays open", def.BreakerTimeout),
	})
}

func object(description string, props map[string]*JSONSchema) *JSONSchema {
	return &JSONSchema{
		Type:                 "object",
		Description:          description,
		Properties:           props,
		AdditionalProperties: boolPtr(false),
	}
}

func duration(description string, def domainconfig.Duration) *JSONSchema {
	return &JSONSchema{
		Type:        "string",
		Description: description,
		Format:      "duration",
		Pattern:     durationPattern,
		Default:     def.Duration().String(),
	}
}

func floatPtr(f float64) *float64 {
	return &f
}

func boolPtr(b bool) *bool {
	return &b
}

// SchemaJSON returns the JSON Schema as indented JSON.
func SchemaJSON() (string, error) {
	data, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainconfig.ErrSchemaGenerationFailed, err)
	}
	return string(data), nil
}
