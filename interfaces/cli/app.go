// Package cli provides the tracetm command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tracetm"
	domainconfig "github.com/felixgeelhaar/tracetm/domain/config"
	infraconfig "github.com/felixgeelhaar/tracetm/infrastructure/config"
	"github.com/felixgeelhaar/tracetm/infrastructure/logging"
)

// Build information set at link time.
var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	configPath  string
	logLevel    string
	builderOpts []infraconfig.BuilderOption
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
		stdin:  os.Stdin,
	}

	app.root = &cobra.Command{
		Use:   "tracetm",
		Short: "Nondeterministic Turing machine tracer",
		Long: `tracetm simulates a nondeterministic single-tape Turing machine by
breadth-first exploration of its configuration tree. It reports whether an
input is accepted within a step bound and, if so, the accepting path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "",
		"Path to configuration file (default: $"+infraconfig.EnvConfigPath+")")
	app.root.PersistentFlags().StringVar(&app.logLevel, "log-level", "",
		"Override logging.level (trace, debug, info, warn, error)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newRunCmd(),
		app.newReplCmd(),
		app.newBatchCmd(),
		app.newValidateCmd(),
		app.newHistoryCmd(),
		app.newExportSchemaCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithInput sets the reader the REPL prompts from.
func (a *App) WithInput(stdin io.Reader) *App {
	a.stdin = stdin
	a.root.SetIn(stdin)
	return a
}

// WithBuilderOptions passes options to the component builder.
func (a *App) WithBuilderOptions(opts ...infraconfig.BuilderOption) *App {
	a.builderOpts = append(a.builderOpts, opts...)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.stdout, "tracetm version %s\n", tracetm.GetVersion())
			_, _ = fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			_, _ = fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}

// session is the loaded configuration and the components built from it.
type session struct {
	config     *domainconfig.AppConfig
	components *infraconfig.Components
}

// open resolves the configuration, applies command-line overrides and
// builds the runtime components.
func (a *App) open(ctx context.Context, override func(*domainconfig.AppConfig)) (*session, error) {
	cfg, err := infraconfig.NewLoader().Resolve(a.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if override != nil {
		override(cfg)
		if errs := domainconfig.NewValidator().Validate(cfg); errs.HasErrors() {
			return nil, fmt.Errorf("%w: %v", domainconfig.ErrValidationFailed, errs)
		}
	}

	lc := infraconfig.LoggingConfig(cfg)
	logging.Init(lc)
	if a.logLevel != "" {
		lc.Level = a.logLevel
	}
	logging.SetLevel(lc.Level)

	components, err := infraconfig.NewBuilder(cfg, a.builderOpts...).Build(ctx)
	if err != nil {
		return nil, err
	}
	return &session{config: cfg, components: components}, nil
}

func (s *session) close() {
	if err := s.components.Close(context.Background()); err != nil {
		logging.Warn().
			Add(logging.Component("cli")).
			Add(logging.ErrorField(err)).
			Msg("shutdown failed")
	}
}
