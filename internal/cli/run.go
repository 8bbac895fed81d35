package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/stripbg/stripbg/internal/archive"
	"github.com/stripbg/stripbg/internal/batch"
	"github.com/stripbg/stripbg/internal/config"
	"github.com/stripbg/stripbg/internal/download"
	"github.com/stripbg/stripbg/internal/ingest"
	"github.com/stripbg/stripbg/internal/logging"
	"github.com/stripbg/stripbg/internal/notify"
	"github.com/stripbg/stripbg/internal/pipeline"
	"github.com/stripbg/stripbg/internal/removal"
	"github.com/stripbg/stripbg/internal/tui"
)

// runFlags holds the run command's flag values.
type runFlags struct {
	out         string
	zip         bool
	format      string
	quality     int
	concurrency int
	timeout     time.Duration
	model       string
	tool        string
	noProgress  bool
}

// newRunCmd creates the run command: ingest, process, deliver, and
// optionally bundle a batch of images.
func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [files or directories...]",
		Short: "Remove backgrounds from a batch of images",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args, flags)
		},
	}

	cmd.Flags().StringVar(&flags.out, "out", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&flags.zip, "zip", false, "bundle all completed results into one zip archive")
	cmd.Flags().StringVar(&flags.format, "format", "", "export format: png or jpeg")
	cmd.Flags().IntVar(&flags.quality, "quality", 0, "export quality 1-100 (lossy formats)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", -1,
		"max concurrent removals (0 = unbounded)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", -1,
		"per-image timeout (0 = none)")
	cmd.Flags().StringVar(&flags.model, "model", "", "background-removal model")
	cmd.Flags().StringVar(&flags.tool, "tool", "", "background-removal tool binary")
	cmd.Flags().BoolVar(&flags.noProgress, "no-progress", false, "disable the live progress view")

	return cmd
}

// runBatch executes the full pipeline for one invocation.
func runBatch(cmd *cobra.Command, args []string, flags runFlags) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	applyRunFlags(cfg, cmd, flags)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	appLogger := logging.FromContext(ctx)

	store := batch.NewStore()
	defer store.Clear()

	// With a live view attached, notifications only go to the recorder so
	// log output cannot tear the display; otherwise they go to both.
	rec := notify.NewRecorder()
	useTUI := !flags.noProgress && isTerminal(os.Stdout)
	var notifier notify.Notifier = rec
	if !useTUI {
		notifier = notify.Multi{rec, notify.NewLogNotifier(logging.ComponentLogger(appLogger, "notify"))}
	}

	ing := ingest.New(store, notifier, logging.ComponentLogger(appLogger, "ingest"))
	items, err := ing.AddPaths(args)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No images to process.")
		return nil
	}

	adapter := removal.NewExecAdapter(cfg.Processing.Tool, cfg.Processing.Args,
		logging.ComponentLogger(appLogger, "removal"))
	orch := pipeline.New(store, adapter, notifier, logging.ComponentLogger(appLogger, "pipeline"),
		pipeline.Config{
			Options: removal.Options{
				Model:         cfg.Processing.Model,
				OutputFormat:  cfg.Export.Format,
				OutputQuality: cfg.Export.Quality,
			},
			MaxConcurrent: cfg.Processing.MaxConcurrent,
			Timeout:       cfg.Processing.Timeout,
		})

	if err := processBatch(cmd, orch, store, items, useTUI); err != nil {
		return err
	}
	if useTUI {
		// Notifications raised before and during the live view only hit the
		// recorder; replay them now so rejections and failures still surface.
		rec.Replay(notify.NewLogNotifier(logging.ComponentLogger(appLogger, "notify")))
	}

	deliverer, err := download.NewDir(cfg.Output.Dir, logging.ComponentLogger(appLogger, "download"))
	if err != nil {
		return err
	}
	if err := deliverResults(store, deliverer); err != nil {
		notifier.Notify(notify.KindError, "Failed to write processed images")
		return err
	}

	if flags.zip {
		exporter := archive.NewExporter(store, deliverer, notifier,
			logging.ComponentLogger(appLogger, "archive"))
		if err := exporter.ExportAll(ctx, cfg.Export); err != nil {
			if errors.Is(err, archive.ErrNothingToExport) {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to export: no images completed.")
			} else {
				return err
			}
		}
	}

	printSummary(cmd, store, deliverer.Path())
	return nil
}

// processBatch runs the orchestrator, with a live terminal view when
// attached to a TTY. Quitting the view early only stops watching:
// processing continues and processBatch still blocks until every item is
// terminal, so delivery and the summary always cover the full batch.
func processBatch(
	cmd *cobra.Command,
	orch *pipeline.Orchestrator,
	store *batch.Store,
	items []batch.Snapshot,
	useTUI bool,
	opts ...tea.ProgramOption,
) error {
	ctx := cmd.Context()
	if !useTUI {
		orch.ProcessAll(ctx, items)
		return nil
	}

	opts = append([]tea.ProgramOption{tea.WithOutput(cmd.OutOrStdout())}, opts...)
	program := tea.NewProgram(tui.NewBatchModel(store), opts...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		orch.ProcessAll(ctx, items)
		program.Send(tui.DoneMsg{})
	}()
	_, err := program.Run()
	<-done
	if err != nil {
		return fmt.Errorf("progress view: %w", err)
	}
	return nil
}

// deliverResults writes each completed item's processed bytes into the
// output directory under its derived name. Sources from different
// directories can share a base name, so colliding names are suffixed the
// same way archive entries are.
func deliverResults(store *batch.Store, deliverer *download.Dir) error {
	used := make(map[string]int)
	for _, snap := range store.List() {
		if snap.Status != batch.StatusCompleted {
			continue
		}
		data, err := snap.Result.Bytes()
		if err != nil {
			return fmt.Errorf("fetching %s: %w", snap.Filename, err)
		}
		if err := deliverer.Deliver(archive.UniqueName(used, snap.Result.Name()), data); err != nil {
			return err
		}
	}
	return nil
}

// printSummary writes the closing counts line.
func printSummary(cmd *cobra.Command, store *batch.Store, outDir string) {
	var completed, failed int
	var totalBytes int
	for _, snap := range store.List() {
		switch snap.Status {
		case batch.StatusCompleted:
			completed++
			totalBytes += snap.Result.Len()
		case batch.StatusError:
			failed++
		}
	}

	p := message.NewPrinter(language.English)
	fmt.Fprintln(cmd.OutOrStdout(),
		p.Sprintf("%d completed, %d failed, %d bytes written to %s",
			completed, failed, totalBytes, outDir))
}

// applyRunFlags overlays explicitly set run flags onto the configuration.
func applyRunFlags(cfg *config.Config, cmd *cobra.Command, flags runFlags) {
	if cmd.Flags().Changed("out") {
		cfg.Output.Dir = flags.out
	}
	if cmd.Flags().Changed("format") {
		cfg.Export.Format = flags.format
	}
	if cmd.Flags().Changed("quality") {
		cfg.Export.Quality = flags.quality
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Processing.MaxConcurrent = flags.concurrency
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Processing.Timeout = flags.timeout
	}
	if cmd.Flags().Changed("model") {
		cfg.Processing.Model = flags.model
	}
	if cmd.Flags().Changed("tool") {
		cfg.Processing.Tool = flags.tool
	}
}
