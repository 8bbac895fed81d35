// Package cli wires the stripbg command tree: batch processing, archive
// export, and configuration management.
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/stripbg/stripbg/internal/config"
)

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Shared by subcommand handlers after setup

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// NewRootCmd creates the root Cobra command for the stripbg CLI.
func NewRootCmd(ver string) *cobra.Command {
	var logCleanup func() error

	cmd := &cobra.Command{
		Use:     "stripbg",
		Short:   "Batch background removal for images",
		Long:    "stripbg: remove backgrounds from batches of images and bundle the results",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cleanup, err := setupLogging(cmd)
			if err != nil {
				return err
			}
			logCleanup = cleanup
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logCleanup != nil {
				return logCleanup()
			}
			return nil
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file path (default ~/.stripbg/config.yaml)")
	cmd.AddCommand(newRunCmd(), newConfigCmd())

	return cmd
}

const rootCmdExample = `  # Remove backgrounds from two photos, results land in ./out
  stripbg run photo1.jpg photo2.png --out ./out

  # Process a whole directory with at most 4 concurrent removals
  stripbg run ./photos --concurrency 4

  # Process and bundle everything into processed-images.zip
  stripbg run ./photos --zip

  # Export as JPEG at quality 75
  stripbg run ./photos --zip --format jpeg --quality 75

  # Initialize configuration
  stripbg config init

  # Set configuration values
  stripbg config set export.format jpeg`

// loadConfig builds the effective configuration for a command invocation.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}
