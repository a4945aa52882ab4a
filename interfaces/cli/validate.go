package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/infrastructure/machinefile"
)

// maxSuggestDistance is the largest edit distance offered as a suggestion.
const maxSuggestDistance = 2

// validateOptions holds options for the validate command.
type validateOptions struct {
	machinePath string
	strict      bool
	export      string
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a machine file",
		Long: `Parse a machine file and print a summary.

The engine only needs the start and reject states. With --strict every
state and symbol used by a transition must also be declared in the header.

Examples:
  # Check that a file parses
  tracetm validate -m pairs.csv

  # Check declarations as well
  tracetm validate -m pairs.csv --strict

  # Convert a CSV machine to YAML
  tracetm validate -m pairs.csv --export yaml > pairs.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validate(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.machinePath, "machine", "m", "", "Path to the machine file (required)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Require every used state and symbol to be declared")
	cmd.Flags().StringVar(&opts.export, "export", "", "Print the machine as yaml or json instead of a summary")
	_ = cmd.MarkFlagRequired("machine")

	return cmd
}

func (a *App) validate(opts *validateOptions) error {
	m, err := loadMachine(opts.machinePath)
	if err != nil {
		return err
	}

	if opts.strict {
		if problems := m.Validate(); len(problems) > 0 {
			_, _ = fmt.Fprintf(a.stdout, "✗ Machine %s is inconsistent\n", m.Name)
			for _, p := range problems {
				_, _ = fmt.Fprintf(a.stdout, "  - %v\n", p)
				if hint := suggest(m, p); hint != "" {
					_, _ = fmt.Fprintf(a.stdout, "    did you mean %q?\n", hint)
				}
			}
			return fmt.Errorf("%w: %d problem(s)", machine.ErrInconsistentMachine, len(problems))
		}
	}

	switch strings.ToLower(opts.export) {
	case "":
	case "yaml", "yml":
		return exportYAML(a.stdout, machinefile.DescriptorFor(m))
	case "json":
		return writeJSON(a.stdout, machinefile.DescriptorFor(m))
	default:
		return fmt.Errorf("%w: %s", machine.ErrUnsupportedFormat, opts.export)
	}

	_, _ = fmt.Fprintf(a.stdout, "✓ Machine is valid\n")
	_, _ = fmt.Fprintf(a.stdout, "  Name: %s\n", m.Name)
	_, _ = fmt.Fprintf(a.stdout, "  Fingerprint: %s\n", m.Fingerprint())

	_, _ = fmt.Fprintf(a.stdout, "\nMachine summary:\n")
	_, _ = fmt.Fprintf(a.stdout, "  States: %d\n", len(m.States))
	_, _ = fmt.Fprintf(a.stdout, "  Start state: %s\n", m.Start)
	if len(m.Accept) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Accept states: %s\n", joinStates(m.Accept))
	}
	_, _ = fmt.Fprintf(a.stdout, "  Reject state: %s\n", m.Reject)
	_, _ = fmt.Fprintf(a.stdout, "  Transitions: %d\n", m.Table.Len())
	if m.Table.IsDeterministic() {
		_, _ = fmt.Fprintf(a.stdout, "  Deterministic: yes\n")
	} else {
		_, _ = fmt.Fprintf(a.stdout, "  Deterministic: no (max branching %d)\n", m.Table.MaxBranching())
	}

	return nil
}

// suggest returns the declared state closest to an undeclared one.
func suggest(m *machine.Machine, problem error) string {
	var undeclared *machine.UndeclaredStateError
	if !errors.As(problem, &undeclared) {
		return ""
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, s := range m.States {
		d := levenshtein.ComputeDistance(string(undeclared.State), string(s))
		if d < bestDist {
			best, bestDist = string(s), d
		}
	}
	return best
}

func joinStates(states []machine.State) string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func exportYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
