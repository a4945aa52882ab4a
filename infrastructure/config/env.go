package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
)

// envPattern matches ${VAR}, ${VAR:-default} and ${VAR:?message}.
// Bare $VAR is left alone: DSNs and passwords may contain '$'.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:[-?])([^}]*))?\}`)

// expand substitutes environment references in input. Unset variables
// expand to "" unless strict is set. ${VAR:?msg} always fails when VAR is
// unset or empty.
func expand(input string, strict bool) (string, error) {
	var missing []string

	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		m := envPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]

		value, ok := os.LookupEnv(name)
		switch op {
		case ":-":
			if value == "" {
				return arg
			}
		case ":?":
			if value == "" {
				missing = append(missing, fmt.Sprintf("%s: %s", name, arg))
			}
		default:
			if !ok && strict {
				missing = append(missing, name)
			}
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(missing, ", "))
	}
	return out, nil
}

// ExpandEnv expands environment references, treating unset variables as empty.
func ExpandEnv(input string) string {
	out, err := expand(input, false)
	if err != nil {
		return input
	}
	return out
}

// ExpandEnvStrict expands environment references and fails on unset variables.
func ExpandEnvStrict(input string) (string, error) {
	return expand(input, true)
}
