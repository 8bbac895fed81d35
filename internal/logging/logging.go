// Package logging configures structured logging for stripbg.
//
// All components log through zerolog. The logger is created once at CLI
// startup, tagged with a per-run trace id, and carried through the
// application via context so that background workers inherit it.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum level to emit ("debug", "info", "warn", "error").
	Level string

	// Format selects "console" (human-readable) or "json" output.
	Format string

	// File, when non-empty, receives a copy of all log output in JSON form.
	File string
}

// Result holds the constructed logger and any open file handle.
type Result struct {
	Logger zerolog.Logger

	file *os.File
}

// New builds a logger from cfg. An unparseable level falls back to info.
// When cfg.File cannot be opened the logger still works; the error is
// returned so the caller can warn without aborting the run.
func New(cfg Config) (Result, error) {
	lvl, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.Format == "json" {
		writers = append(writers, os.Stderr)
	} else {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		})
	}

	res := Result{}
	var openErr error
	if cfg.File != "" {
		f, fileErr := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if fileErr != nil {
			openErr = fileErr
		} else {
			res.file = f
			writers = append(writers, f)
		}
	}

	res.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return res, openErr
}

// Close releases the log file handle, if any.
func (r *Result) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// ComponentLogger returns a child logger stamped with a component name.
func ComponentLogger(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// NewTraceID generates the per-run trace identifier attached to every log line.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID returns a context whose logger carries the given trace id.
func WithTraceID(ctx context.Context, logger zerolog.Logger, traceID string) context.Context {
	l := logger.With().Str("trace_id", traceID).Logger()
	return l.WithContext(ctx)
}

// FromContext returns the logger carried by ctx, or a disabled logger when
// none was attached. Safe to call from any goroutine.
func FromContext(ctx context.Context) zerolog.Logger {
	return *zerolog.Ctx(ctx)
}
