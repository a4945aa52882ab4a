package cli

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tracetm/application"
	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
	"github.com/felixgeelhaar/tracetm/infrastructure/watch"
)

const (
	machinePrompt = "Enter Turing machine file name: "
	inputPrompt   = "\nEnter input string (or type 'exit' to quit): "
	stepsPrompt   = "Enter maximum steps for the simulation: "
)

// replOptions holds options for the repl command.
type replOptions struct {
	machinePath string
	watch       bool
}

// newReplCmd creates the repl command.
func (a *App) newReplCmd() *cobra.Command {
	opts := &replOptions{}

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Prompt for input strings interactively",
		Long: `Load a machine once, then repeatedly prompt for an input string and a
step bound and print the trial report. Type exit to quit.

When --machine is omitted the file name is read from the first prompt.
With --watch the machine is reloaded whenever the file changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.repl(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.machinePath, "machine", "m", "", "Path to the machine file")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Reload the machine when the file changes")

	return cmd
}

func (a *App) repl(ctx context.Context, opts *replOptions) error {
	in := bufio.NewScanner(a.stdin)

	path := opts.machinePath
	if path == "" {
		_, _ = fmt.Fprint(a.stdout, machinePrompt)
		line, ok := readLine(in)
		if !ok {
			return in.Err()
		}
		path = strings.TrimSpace(line)
	}

	s, err := a.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()

	m, err := loadMachine(path)
	if err != nil {
		return err
	}
	runner, err := application.NewRunner(m, s.components.RunnerOptions()...)
	if err != nil {
		return err
	}

	var updates <-chan watch.Update
	if opts.watch {
		w, err := watch.New(path)
		if err != nil {
			return fmt.Errorf("failed to watch machine: %w", err)
		}
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		updates = w.Run(watchCtx)
	}

	for {
		runner = a.applyReloads(runner, updates)

		_, _ = fmt.Fprint(a.stdout, inputPrompt)
		input, ok := readLine(in)
		if !ok {
			_, _ = fmt.Fprintln(a.stdout)
			return in.Err()
		}
		if strings.ToLower(input) == "exit" {
			_, _ = fmt.Fprintln(a.stdout, "Exiting program.")
			return nil
		}

		_, _ = fmt.Fprint(a.stdout, stepsPrompt)
		raw, ok := readLine(in)
		if !ok {
			_, _ = fmt.Fprintln(a.stdout)
			return in.Err()
		}
		steps, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			_, _ = fmt.Fprintln(a.stdout, "Invalid input for steps, please enter a number.")
			continue
		}

		tr, err := runner.Run(ctx, input, steps)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if tr == nil {
				_, _ = fmt.Fprintf(a.stderr, "Error: %v\n", err)
				continue
			}
			_, _ = fmt.Fprintf(a.stderr, "Warning: %v\n", err)
		}

		_, _ = fmt.Fprintln(a.stdout)
		if err := FormatReport(a.stdout, runner.Machine().Name, input, *tr.Result); err != nil {
			return err
		}
	}
}

// applyReloads swaps in every machine reloaded since the last prompt.
func (a *App) applyReloads(runner *application.Runner, updates <-chan watch.Update) *application.Runner {
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return runner
			}
			if u.Err != nil {
				_, _ = fmt.Fprintf(a.stderr, "Reload failed: %v\n", u.Err)
				continue
			}
			next, err := runner.ForMachine(u.Machine)
			if err != nil {
				_, _ = fmt.Fprintf(a.stderr, "Reload failed: %v\n", err)
				continue
			}
			logging.Info().
				Add(logging.Component("cli")).
				Add(logging.Machine(u.Machine.Name)).
				Msg("machine swapped")
			_, _ = fmt.Fprintf(a.stderr, "Reloaded machine %s\n", u.Machine.Name)
			runner = next
		default:
			return runner
		}
	}
}

// readLine returns the next line without its terminator.
func readLine(s *bufio.Scanner) (string, bool) {
	if !s.Scan() {
		return "", false
	}
	return strings.TrimSuffix(s.Text(), "\r"), true
}
