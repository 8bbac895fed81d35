package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stripbg/stripbg/internal/logging"
)

// setupLogging configures the package logger from config, environment,
// and CLI flags, stamps a per-run trace id into the command context, and
// returns a cleanup closing any log file handle.
func setupLogging(cmd *cobra.Command) (func() error, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		logCfg.Level = "debug"
		logCfg.Format = "console"
	}

	result, err := logging.New(logCfg)
	if err != nil {
		// A broken log file is not fatal; console logging still works.
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not open log file: %v\n", err)
	}

	logger = logging.ComponentLogger(result.Logger, "cli")

	traceID := logging.NewTraceID()
	ctx := logging.WithTraceID(cmd.Context(), result.Logger, traceID)
	cmd.SetContext(ctx)

	logger.Debug().Str("command", cmd.Name()).Str("trace_id", traceID).Msg("command started")

	return result.Close, nil
}
