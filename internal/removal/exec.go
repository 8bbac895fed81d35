package removal

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// progressPrefix marks progress lines on the tool's stderr, e.g.
// "progress 0.42". Anything else on stderr is diagnostic output.
const progressPrefix = "progress "

// stderrTailLimit caps how much diagnostic stderr is kept for error messages.
const stderrTailLimit = 8 << 10

// stderrLineLimit caps one scanned stderr line. Longer lines end the scan
// and are treated as diagnostic output.
const stderrLineLimit = 1 << 20

// ErrNoTool is returned when no external tool is configured.
var ErrNoTool = errors.New("removal: no background-removal tool configured")

// ExecAdapter invokes an external background-removal tool as a subprocess.
// The tool reads the source image on stdin, writes the processed image to
// stdout, and may report progress on stderr as "progress <float>" lines.
//
// The zero value is unusable; construct with NewExecAdapter.
type ExecAdapter struct {
	tool   string
	args   []string
	logger zerolog.Logger
}

// NewExecAdapter creates an adapter for the given tool binary and base
// arguments. Option-derived flags are appended per call.
func NewExecAdapter(tool string, args []string, logger zerolog.Logger) *ExecAdapter {
	return &ExecAdapter{tool: tool, args: args, logger: logger}
}

// Remove implements Adapter by running the external tool once. The context
// bounds the subprocess; cancellation kills it.
func (a *ExecAdapter) Remove(
	ctx context.Context,
	image []byte,
	opts Options,
	onProgress ProgressFunc,
) ([]byte, error) {
	if a.tool == "" {
		return nil, ErrNoTool
	}

	args := append([]string{}, a.args...)
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.OutputFormat != "" {
		args = append(args, "--format", opts.OutputFormat)
	}
	if opts.OutputQuality > 0 {
		args = append(args, "--quality", strconv.Itoa(opts.OutputQuality))
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, a.tool, args...)
	cmd.Stdin = bytes.NewReader(image)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("removal: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("removal: starting %s: %w", a.tool, err)
	}

	// Progress lines are forwarded in the order the tool produces them;
	// everything else is kept as a tail for error reporting.
	tail := a.scanStderr(stderr, onProgress)

	err = cmd.Wait()
	dur := time.Since(start)

	if err != nil {
		a.logger.Error().
			Str("tool", a.tool).
			Dur("duration", dur).
			Err(err).
			Str("stderr", tail).
			Msg("background-removal tool failed")
		return nil, fmt.Errorf("removal: %s: %w", a.tool, err)
	}

	a.logger.Debug().
		Str("tool", a.tool).
		Dur("duration", dur).
		Int("output_bytes", stdout.Len()).
		Msg("background-removal tool finished")

	return stdout.Bytes(), nil
}

// scanStderr reads the tool's stderr to EOF, dispatching progress lines to
// onProgress and returning the diagnostic remainder (truncated). The pipe
// is always drained: a child blocked writing stderr would otherwise keep
// cmd.Wait from returning.
func (a *ExecAdapter) scanStderr(r io.Reader, onProgress ProgressFunc) string {
	var tail strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), stderrLineLimit)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, progressPrefix) {
			if p, err := strconv.ParseFloat(strings.TrimSpace(line[len(progressPrefix):]), 64); err == nil {
				if onProgress != nil {
					onProgress(p)
				}
				continue
			}
		}
		if tail.Len() < stderrTailLimit {
			tail.WriteString(line)
			tail.WriteByte('\n')
		}
	}
	if err := scanner.Err(); err != nil && tail.Len() < stderrTailLimit {
		fmt.Fprintf(&tail, "(stderr scan stopped: %v)\n", err)
	}
	_, _ = io.Copy(io.Discard, r)
	return tail.String()
}
