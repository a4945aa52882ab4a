package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoader_LoadFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "tracetm.yaml", `
name: ci
version: "1.0"
engine:
  max_steps: 250
  tape_mode: strict
cache:
  backend: memory
  ttl: 10m
`},
		{"json", "tracetm.json", `{
  "name": "ci",
  "version": "1.0",
  "engine": {"max_steps": 250, "tape_mode": "strict"},
  "cache": {"backend": "memory", "ttl": "10m"}
}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := NewLoader().LoadFile(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("LoadFile() error = %v", err)
			}
			if cfg.Name != "ci" || cfg.Engine.MaxSteps != 250 || cfg.Engine.TapeMode != "strict" {
				t.Errorf("engine = %+v", cfg.Engine)
			}
			if cfg.Cache.TTL.Duration() != 10*time.Minute {
				t.Errorf("Cache.TTL = %v, want 10m", cfg.Cache.TTL.Duration())
			}
			// Sections absent from the file keep their defaults.
			def := domainconfig.Default()
			if cfg.Storage != def.Storage || cfg.Resilience != def.Resilience {
				t.Errorf("defaults lost: storage=%+v resilience=%+v", cfg.Storage, cfg.Resilience)
			}
		})
	}
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		content string
		want    error
	}{
		{"unsupported extension", "tracetm.toml", "name = 'x'", domainconfig.ErrUnsupportedFormat},
		{"bad yaml", "tracetm.yaml", "engine: [", domainconfig.ErrInvalidFormat},
		{"bad json", "tracetm.json", "{", domainconfig.ErrInvalidFormat},
		{"invalid value", "tracetm.yaml", "engine:\n  tape_mode: lenient\n", domainconfig.ErrValidationFailed},
		{"bad duration", "tracetm.yaml", "cache:\n  ttl: soon\n", domainconfig.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewLoader().LoadFile(writeFile(t, tt.file, tt.content))
			if !errors.Is(err, tt.want) {
				t.Errorf("LoadFile() error = %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := NewLoader().LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
		if !errors.Is(err, domainconfig.ErrConfigNotFound) {
			t.Errorf("LoadFile() error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("directory", func(t *testing.T) {
		t.Parallel()

		_, err := NewLoader().LoadFile(t.TempDir())
		if !errors.Is(err, domainconfig.ErrInvalidFormat) {
			t.Errorf("LoadFile() error = %v, want ErrInvalidFormat", err)
		}
	})
}

func TestLoader_WithoutValidation(t *testing.T) {
	t.Parallel()

	l := NewLoaderWithOptions(WithValidation(false))
	cfg, err := l.LoadString("engine:\n  tape_mode: lenient\n", FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Engine.TapeMode != "lenient" {
		t.Errorf("TapeMode = %s", cfg.Engine.TapeMode)
	}
}

func TestLoader_ExpandsEnv(t *testing.T) {
	t.Setenv("TRACETM_TEST_DSN", "/var/lib/tracetm/trials.db")

	cfg, err := NewLoader().LoadString(`
storage:
  backend: sqlite
  dsn: ${TRACETM_TEST_DSN}
cache:
  backend: ${TRACETM_TEST_CACHE:-memory}
`, FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if cfg.Storage.DSN != "/var/lib/tracetm/trials.db" {
		t.Errorf("Storage.DSN = %q", cfg.Storage.DSN)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %q, want default memory", cfg.Cache.Backend)
	}

	off := NewLoaderWithOptions(WithEnvExpansion(false), WithValidation(false))
	raw, err := off.LoadString("storage:\n  dsn: ${TRACETM_TEST_DSN}\n", FormatYAML)
	if err != nil {
		t.Fatalf("LoadString() error = %v", err)
	}
	if raw.Storage.DSN != "${TRACETM_TEST_DSN}" {
		t.Errorf("unexpanded DSN = %q", raw.Storage.DSN)
	}
}

func TestLoader_Resolve(t *testing.T) {
	path := writeFile(t, "env.yaml", "name: from-env\n")

	t.Run("defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")

		cfg, err := NewLoader().Resolve("")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if cfg.Name != domainconfig.Default().Name {
			t.Errorf("Name = %s", cfg.Name)
		}
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(EnvConfigPath, path)

		cfg, err := NewLoader().Resolve("")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if cfg.Name != "from-env" {
			t.Errorf("Name = %s, want from-env", cfg.Name)
		}
	})

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvConfigPath, path)

		_, err := NewLoader().Resolve(filepath.Join(t.TempDir(), "missing.yaml"))
		if err == nil || !strings.Contains(err.Error(), "missing.yaml") {
			t.Errorf("Resolve() error = %v, want missing.yaml", err)
		}
	})
}
