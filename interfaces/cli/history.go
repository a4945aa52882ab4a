package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tracetm/domain/trial"
)

// ErrNoStore is returned when history is requested with storage disabled.
var ErrNoStore = errors.New("no trial store configured")

// outcomeAliases maps short outcome names to outcomes.
var outcomeAliases = map[string]trial.Outcome{
	"accepted":   trial.OutcomeAccepted,
	"exhausted":  trial.OutcomeExhausted,
	"step_bound": trial.OutcomeStepBound,
	"step-bound": trial.OutcomeStepBound,
}

// historyOptions holds options for the history command.
type historyOptions struct {
	machine    string
	input      string
	outcomes   []string
	limit      int
	jsonOutput bool
}

// newHistoryCmd creates the history command.
func (a *App) newHistoryCmd() *cobra.Command {
	opts := &historyOptions{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded trials",
		Long: `List trials recorded by the configured store, newest first.

The in-memory store only lives for one process, so history is most useful
with storage.backend set to sqlite, postgres or mongodb.

Examples:
  tracetm history -c tracetm.yaml
  tracetm history -c tracetm.yaml --machine pairs --outcome accepted
  tracetm history -c tracetm.yaml --limit 5 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.history(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.machine, "machine", "", "Only trials of this machine")
	cmd.Flags().StringVar(&opts.input, "input", "", "Only inputs containing this text")
	cmd.Flags().StringSliceVar(&opts.outcomes, "outcome", nil, "Only these outcomes (accepted, exhausted, step_bound)")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "Maximum trials to list (0 = all)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print trials as JSON")

	return cmd
}

func (a *App) history(ctx context.Context, opts *historyOptions) error {
	filter := trial.ListFilter{
		Machine:      opts.machine,
		InputPattern: opts.input,
		Limit:        opts.limit,
		OrderBy:      trial.OrderByStartTime,
		Descending:   true,
	}
	for _, raw := range opts.outcomes {
		o, err := parseOutcome(raw)
		if err != nil {
			return err
		}
		filter.Outcomes = append(filter.Outcomes, o)
	}

	s, err := a.open(ctx, nil)
	if err != nil {
		return err
	}
	defer s.close()

	store := s.components.Store
	if store == nil {
		return fmt.Errorf("%w (storage.backend is none)", ErrNoStore)
	}

	trials, err := store.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list trials: %w", err)
	}

	if opts.jsonOutput {
		return writeJSON(a.stdout, trials)
	}

	if len(trials) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No trials recorded.")
		return nil
	}
	_, _ = fmt.Fprintln(a.stdout, renderTrials(trials))

	if sp, ok := store.(trial.SummaryProvider); ok {
		filter.Limit = 0
		sum, err := sp.Summary(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to summarize trials: %w", err)
		}
		_, _ = fmt.Fprintf(a.stdout, "\nTotal: %d  accepted: %d  exhausted: %d  step bound: %d  average depth: %.1f\n",
			sum.TotalTrials, sum.AcceptedTrials, sum.ExhaustedTrials, sum.StepBoundTrials, sum.AverageDepth)
	}
	return nil
}

func parseOutcome(raw string) (trial.Outcome, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if o, ok := outcomeAliases[key]; ok {
		return o, nil
	}
	if o := trial.Outcome(key); o.IsValid() {
		return o, nil
	}
	return "", fmt.Errorf("unknown outcome %q", raw)
}

func renderTrials(trials []*trial.Trial) string {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "MACHINE", "INPUT", "STEPS", "OUTCOME", "DEPTH", "TRANSITIONS", "CACHED", "STARTED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})

	for _, tr := range trials {
		outcome, depth, transitions := "-", "-", "-"
		if tr.Result != nil {
			outcome = tr.Result.Outcome.String()
			depth = strconv.Itoa(tr.Result.Depth)
			transitions = strconv.Itoa(tr.Result.Transitions)
		}
		t.Row(
			shortID(tr.ID),
			tr.Machine,
			tr.Input,
			strconv.Itoa(tr.MaxSteps),
			outcome,
			depth,
			transitions,
			strconv.FormatBool(tr.Cached),
			tr.StartTime.Format("2006-01-02 15:04:05"),
		)
	}
	return t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
