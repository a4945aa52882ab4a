package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/tracetm/infrastructure/config"
)

// exportSchemaOptions holds options for the export-schema command.
type exportSchemaOptions struct {
	outputPath string
}

// newExportSchemaCmd creates the export-schema command.
func (a *App) newExportSchemaCmd() *cobra.Command {
	opts := &exportSchemaOptions{}

	cmd := &cobra.Command{
		Use:   "export-schema",
		Short: "Export the configuration JSON schema",
		Long: `Export the JSON Schema for tracetm configuration files.

Editors use it for completion and validation of tracetm.yaml.

Examples:
  tracetm export-schema
  tracetm export-schema -o tracetm.schema.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exportSchema(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output file path (default: stdout)")

	return cmd
}

// exportSchema exports the configuration JSON schema.
func (a *App) exportSchema(opts *exportSchemaOptions) error {
	schemaJSON, err := infraconfig.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if opts.outputPath == "" {
		_, _ = fmt.Fprintln(a.stdout, schemaJSON)
		return nil
	}

	if err := os.WriteFile(opts.outputPath, []byte(schemaJSON), 0600); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "Schema exported to %s\n", opts.outputPath)
	return nil
}
