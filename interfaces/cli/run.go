package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tracetm/application"
	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
	"github.com/felixgeelhaar/tracetm/domain/machine"
	"github.com/felixgeelhaar/tracetm/infrastructure/machinefile"
)

// runOptions holds options for the run command.
type runOptions struct {
	machinePath   string
	input         string
	maxSteps      int
	tapeMode      string
	frontierLimit int
	jsonOutput    bool
}

// newRunCmd creates the run command.
func (a *App) newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate one input string",
		Long: `Simulate a machine on one input string and print the trial report.

The step bound defaults to engine.max_steps from the configuration.

Examples:
  # Run with the configured step bound
  tracetm run -m pairs.csv --input 0101

  # Run with an explicit bound and strict head movement
  tracetm run -m pairs.csv --input 0101 --max-steps 20 --tape-mode strict

  # Emit the trial as JSON
  tracetm run -m pairs.csv --input 0101 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), opts, cmd.Flags().Changed("max-steps"))
		},
	}

	cmd.Flags().StringVarP(&opts.machinePath, "machine", "m", "", "Path to the machine file (required)")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Input string")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Step bound (default: engine.max_steps)")
	cmd.Flags().StringVar(&opts.tapeMode, "tape-mode", "", "Head-movement rule: compat or strict")
	cmd.Flags().IntVar(&opts.frontierLimit, "frontier-limit", 0, "Abort when a level grows past this width")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the trial as JSON")
	_ = cmd.MarkFlagRequired("machine")

	return cmd
}

func (a *App) run(ctx context.Context, opts *runOptions, maxStepsSet bool) error {
	s, err := a.open(ctx, opts.engineOverride)
	if err != nil {
		return err
	}
	defer s.close()

	m, err := loadMachine(opts.machinePath)
	if err != nil {
		return err
	}

	runner, err := application.NewRunner(m, s.components.RunnerOptions()...)
	if err != nil {
		return err
	}

	steps := s.components.MaxSteps
	if maxStepsSet {
		steps = opts.maxSteps
	}

	tr, err := runner.Run(ctx, opts.input, steps)
	if err != nil {
		if tr == nil {
			return err
		}
		_, _ = fmt.Fprintf(a.stderr, "Warning: %v\n", err)
	}

	if opts.jsonOutput {
		return writeJSON(a.stdout, tr)
	}
	return FormatReport(a.stdout, m.Name, opts.input, *tr.Result)
}

func (o *runOptions) engineOverride(cfg *domainconfig.AppConfig) {
	if o.tapeMode != "" {
		cfg.Engine.TapeMode = o.tapeMode
	}
	if o.frontierLimit > 0 {
		cfg.Engine.FrontierLimit = o.frontierLimit
	}
}

func loadMachine(path string) (*machine.Machine, error) {
	m, err := machinefile.NewLoader().LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load machine: %w", err)
	}
	return m, nil
}
