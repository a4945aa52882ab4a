package config

import (
	"errors"
	"testing"

	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TRACETM_SET", "hello")
	t.Setenv("TRACETM_EMPTY", "")

	tests := []struct {
		input string
		want  string
	}{
		{"${TRACETM_SET}", "hello"},
		{"pre-${TRACETM_SET}-post", "pre-hello-post"},
		{"${TRACETM_SET}${TRACETM_SET}", "hellohello"},
		{"${TRACETM_UNSET}", ""},
		{"${TRACETM_UNSET:-fallback}", "fallback"},
		{"${TRACETM_EMPTY:-fallback}", "fallback"},
		{"${TRACETM_SET:-fallback}", "hello"},
		{"${TRACETM_UNSET:-}", ""},
		{"$TRACETM_SET", "$TRACETM_SET"},
		{"p@$$w0rd", "p@$$w0rd"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ExpandEnv(tt.input); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandEnv_Required(t *testing.T) {
	t.Setenv("TRACETM_SET", "x")

	if _, err := expand("${TRACETM_SET:?must be set}", false); err != nil {
		t.Errorf("expand(set) error = %v", err)
	}

	_, err := expand("${TRACETM_UNSET:?storage dsn}", false)
	if !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Fatalf("expand() error = %v, want ErrMissingEnvVar", err)
	}
	if got := err.Error(); got != "required environment variable not set: TRACETM_UNSET: storage dsn" {
		t.Errorf("error = %q", got)
	}

	// The lenient form leaves required markers untouched.
	if got := ExpandEnv("${TRACETM_UNSET:?x}"); got != "${TRACETM_UNSET:?x}" {
		t.Errorf("ExpandEnv() = %q", got)
	}
}

func TestExpandEnvStrict(t *testing.T) {
	t.Setenv("TRACETM_SET", "x")

	if got, err := ExpandEnvStrict("${TRACETM_SET}"); err != nil || got != "x" {
		t.Errorf("ExpandEnvStrict(set) = %q, %v", got, err)
	}
	if _, err := ExpandEnvStrict("${TRACETM_A} ${TRACETM_B:-ok}"); !errors.Is(err, domainconfig.ErrMissingEnvVar) {
		t.Errorf("ExpandEnvStrict(unset) error = %v", err)
	}
}
