// Package archive gathers completed batch items into a single zip bundle.
// Exporting is a pure read of the store plus a side-effecting delivery: it
// never mutates any item and can be repeated any number of times. Any
// failure aborts the whole export; a partial archive is never delivered.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stripbg/stripbg/internal/batch"
	"github.com/stripbg/stripbg/internal/config"
	"github.com/stripbg/stripbg/internal/notify"
)

// DefaultArchiveName is the fixed name the bundle is delivered under.
const DefaultArchiveName = "processed-images.zip"

// entryPrefix marks every archive entry name.
const entryPrefix = "removed-bg-"

// Export errors.
var (
	// ErrExportFailed wraps any fetch or packaging failure; the export is
	// aborted atomically when it occurs.
	ErrExportFailed = errors.New("archive: export failed")

	// ErrNothingToExport is returned when the store holds no completed
	// items. It is a guard condition, not an export failure.
	ErrNothingToExport = errors.New("archive: no completed items to export")
)

// Deliverer hands a finished blob to the user, e.g. by writing it into the
// output directory. Used for both the archive bundle and single items.
type Deliverer interface {
	Deliver(name string, data []byte) error
}

// Exporter packages completed items from the store.
type Exporter struct {
	store     *batch.Store
	deliverer Deliverer
	notifier  notify.Notifier
	logger    zerolog.Logger
}

// NewExporter creates an Exporter reading from store and delivering
// through deliverer.
func NewExporter(
	store *batch.Store,
	deliverer Deliverer,
	notifier notify.Notifier,
	logger zerolog.Logger,
) *Exporter {
	return &Exporter{store: store, deliverer: deliverer, notifier: notifier, logger: logger}
}

// ExportAll packages every completed item into one zip archive and
// delivers it under DefaultArchiveName. Non-completed items are silently
// excluded. On any fetch, encode, packaging, or delivery failure the
// export aborts, exactly one failure notification fires, and the error is
// returned wrapped in ErrExportFailed.
func (e *Exporter) ExportAll(ctx context.Context, settings config.ExportSettings) error {
	var completed []batch.Snapshot
	for _, snap := range e.store.List() {
		if snap.Status == batch.StatusCompleted {
			completed = append(completed, snap)
		}
	}
	if len(completed) == 0 {
		return ErrNothingToExport
	}

	data, err := e.buildArchive(ctx, completed, settings)
	if err == nil {
		err = e.deliverer.Deliver(DefaultArchiveName, data)
	}
	if err != nil {
		e.logger.Error().Err(err).Msg("archive export failed")
		e.notifier.Notify(notify.KindError, "Failed to create zip file")
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}

	e.logger.Info().Int("entries", len(completed)).Int("bytes", len(data)).
		Msg("archive exported")
	e.notifier.Notify(notify.KindSuccess, "All images downloaded successfully!")
	return nil
}

// buildArchive fetches and encodes every entry concurrently, then writes
// the zip sequentially in insertion order so the bundle is deterministic.
func (e *Exporter) buildArchive(
	ctx context.Context,
	completed []batch.Snapshot,
	settings config.ExportSettings,
) ([]byte, error) {
	encoded := make([][]byte, len(completed))

	g, ctx := errgroup.WithContext(ctx)
	for idx, snap := range completed {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			raw, err := snap.Result.Bytes()
			if err != nil {
				return fmt.Errorf("fetching %s: %w", snap.Filename, err)
			}
			out, err := EncodeAs(raw, settings.Format, settings.Quality)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", snap.Filename, err)
			}
			encoded[idx] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]int, len(completed))
	for idx, snap := range completed {
		name := UniqueName(used, EntryName(snap.Filename, settings.Format))
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("creating entry %s: %w", name, err)
		}
		if _, err := w.Write(encoded[idx]); err != nil {
			return nil, fmt.Errorf("writing entry %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("closing archive: %w", err)
	}

	return buf.Bytes(), nil
}

// EntryName derives an archive entry name from the original filename: the
// last extension is stripped, the fixed prefix is added, and the extension
// for the configured export format is appended.
func EntryName(filename, format string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return entryPrefix + stem + formatExt(format)
}

// UniqueName resolves derived-name collisions by suffixing "-1", "-2", …
// before the extension, in insertion order. used tracks names already
// taken and is updated in place; share one map per naming scope.
func UniqueName(used map[string]int, name string) string {
	n, seen := used[name]
	used[name] = n + 1
	if !seen {
		return name
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for {
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if _, taken := used[candidate]; !taken {
			used[candidate] = 1
			return candidate
		}
		n++
	}
}

// formatExt maps an export format to its file extension. PNG is the
// default for unknown values, matching the default export settings.
func formatExt(format string) string {
	if format == config.FormatJPEG {
		return ".jpg"
	}
	return ".png"
}
