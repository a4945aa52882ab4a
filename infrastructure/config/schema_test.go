package config

import (
	"encoding/json"
	"slices"
	"testing"

	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
)

func TestGenerateSchema(t *testing.T) {
	t.Parallel()

	schema := GenerateSchema()

	if schema.Schema != "https://json-schema.org/draft/2020-12/schema" {
		t.Errorf("Schema = %s", schema.Schema)
	}
	if !slices.Equal(schema.Required, []string{"name", "version"}) {
		t.Errorf("Required = %v", schema.Required)
	}

	for _, section := range []string{"engine", "logging", "storage", "cache", "telemetry", "resilience"} {
		s, ok := schema.Properties[section]
		if !ok {
			t.Errorf("missing section %s", section)
			continue
		}
		if s.Type != "object" || s.AdditionalProperties == nil || *s.AdditionalProperties {
			t.Errorf("%s should be a closed object", section)
		}
	}
}

func TestGenerateSchema_TracksDomainConfig(t *testing.T) {
	t.Parallel()

	schema := GenerateSchema()
	engine := schema.Properties["engine"].Properties
	cache := schema.Properties["cache"].Properties

	if !slices.Equal(engine["tape_mode"].Enum, domainconfig.TapeModes) {
		t.Errorf("tape_mode enum = %v", engine["tape_mode"].Enum)
	}
	if engine["max_steps"].Default != domainconfig.Default().Engine.MaxSteps {
		t.Errorf("max_steps default = %v", engine["max_steps"].Default)
	}
	if !slices.Contains(cache["backend"].Enum, "badger") {
		t.Errorf("cache backends = %v", cache["backend"].Enum)
	}
	if cache["ttl"].Default != "1h0m0s" || cache["ttl"].Format != "duration" {
		t.Errorf("ttl = %+v", cache["ttl"])
	}
}

func TestSchemaJSON(t *testing.T) {
	t.Parallel()

	out, err := SchemaJSON()
	if err != nil {
		t.Fatalf("SchemaJSON() error = %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("SchemaJSON() is not valid JSON: %v", err)
	}
	if doc["title"] != "tracetm Configuration" {
		t.Errorf("title = %v", doc["title"])
	}
	if doc["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v", doc["additionalProperties"])
	}
}
