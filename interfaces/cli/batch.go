package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tracetm/application"
	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// batchOptions holds options for the batch command.
type batchOptions struct {
	runOptions
	inputsPath  string
	concurrency int
	timeout     time.Duration
}

// batchEntry is the JSON form of one batch result.
type batchEntry struct {
	Input string       `json:"input"`
	Trial *trial.Trial `json:"trial,omitempty"`
	Error string       `json:"error,omitempty"`
}

// newBatchCmd creates the batch command.
func (a *App) newBatchCmd() *cobra.Command {
	opts := &batchOptions{}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Simulate many input strings",
		Long: `Read input strings, one per line, and simulate each of them.

Inputs come from --inputs or, when it is omitted or "-", from standard input.
An empty line is the empty input. Trials run on a pool of workers and are
reported in input order.

Examples:
  tracetm batch -m pairs.csv --inputs words.txt --max-steps 50
  printf '1\n11\n111\n' | tracetm batch -m pairs.csv --concurrency 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.batch(cmd.Context(), opts, cmd.Flags().Changed("max-steps"))
		},
	}

	cmd.Flags().StringVarP(&opts.machinePath, "machine", "m", "", "Path to the machine file (required)")
	cmd.Flags().StringVar(&opts.inputsPath, "inputs", "", "File with one input per line (default: stdin)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Step bound (default: engine.max_steps)")
	cmd.Flags().StringVar(&opts.tapeMode, "tape-mode", "", "Head-movement rule: compat or strict")
	cmd.Flags().IntVar(&opts.frontierLimit, "frontier-limit", 0, "Abort a trial when a level grows past this width")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 1, "Trials run at once")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Abort a trial after this long (0 = no limit)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print results as JSON")
	_ = cmd.MarkFlagRequired("machine")

	return cmd
}

func (a *App) batch(ctx context.Context, opts *batchOptions, maxStepsSet bool) error {
	inputs, err := a.readInputs(opts.inputsPath)
	if err != nil {
		return err
	}

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
	items := make([]application.BatchItem, len(inputs))
	for i, in := range inputs {
		items[i] = application.BatchItem{Input: in, MaxSteps: steps}
	}

	results, stats := runner.RunBatch(ctx, items,
		application.WithConcurrency(opts.concurrency),
		application.WithItemTimeout(opts.timeout),
	)

	if opts.jsonOutput {
		entries := make([]batchEntry, len(results))
		for i, res := range results {
			entries[i] = batchEntry{Input: res.Input, Trial: res.Trial}
			if res.Err != nil {
				entries[i].Error = res.Err.Error()
			}
		}
		if err := writeJSON(a.stdout, entries); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(a.stdout, renderBatch(results))
		_, _ = fmt.Fprintf(a.stdout, "\nCompleted: %d  failed: %d  average: %s\n",
			stats.Completed, stats.Failed, stats.AverageDuration().Round(time.Microsecond))
	}

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d trials failed", stats.Failed, len(results))
	}
	return nil
}

func (a *App) readInputs(path string) ([]string, error) {
	var r io.Reader = a.stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open inputs: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	var inputs []string
	scanner := bufio.NewScanner(r)
	for {
		line, ok := readLine(scanner)
		if !ok {
			break
		}
		inputs = append(inputs, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read inputs: %w", err)
	}
	return inputs, nil
}

func renderBatch(results []application.BatchResult) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "INPUT", "OUTCOME", "DEPTH", "TRANSITIONS", "CACHED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, res := range results {
		if res.Trial == nil || res.Trial.Result == nil {
			t.Row(strconv.Itoa(res.Index+1), res.Input, "error: "+errString(res.Err), "-", "-", "-")
			continue
		}
		r := res.Trial.Result
		t.Row(
			strconv.Itoa(res.Index+1),
			res.Input,
			r.Outcome.String(),
			strconv.Itoa(r.Depth),
			strconv.Itoa(r.Transitions),
			strconv.FormatBool(res.Trial.Cached),
		)
	}
	return t.Render()
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
