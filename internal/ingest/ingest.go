// Package ingest is the file-submission boundary. It filters candidate
// files down to images, appends accepted ones to the batch store as
// pending items, and reports rejections through the notification channel.
// Non-image files never enter the store; their rejection does not affect
// sibling files in the same batch.
package ingest

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stripbg/stripbg/internal/batch"
	"github.com/stripbg/stripbg/internal/notify"
)

// imageMIMEPrefix is the MIME class accepted into the store.
const imageMIMEPrefix = "image/"

// File is one candidate submission: a stable byte payload plus its name.
// The MIME type is sniffed from the payload, not trusted from the name.
type File struct {
	Name string
	Data []byte
}

// Ingestor validates submissions and appends accepted items to the store.
type Ingestor struct {
	store    *batch.Store
	notifier notify.Notifier
	logger   zerolog.Logger
}

// New creates an Ingestor writing into store.
func New(store *batch.Store, notifier notify.Notifier, logger zerolog.Logger) *Ingestor {
	return &Ingestor{store: store, notifier: notifier, logger: logger}
}

// AddFiles filters files to images, appends the accepted ones in submission
// order, and returns snapshots of the appended items. Each rejected file
// produces one rejection notification; an accepting batch produces one
// acceptance notification. Never fails: a batch of zero images simply
// appends nothing.
func (i *Ingestor) AddFiles(files []File) []batch.Snapshot {
	items := make([]*batch.Item, 0, len(files))
	for _, f := range files {
		if !IsImage(f.Data) {
			i.logger.Warn().Str("file", f.Name).Msg("rejected non-image file")
			i.notifier.Notify(notify.KindError, fmt.Sprintf("%s is not an image file", f.Name))
			continue
		}
		items = append(items, batch.NewItem(filepath.Base(f.Name), f.Data))
	}

	if len(items) == 0 {
		return nil
	}

	i.store.Append(items...)
	i.notifier.Notify(notify.KindSuccess, fmt.Sprintf("Added %d image(s)", len(items)))

	out := make([]batch.Snapshot, 0, len(items))
	for _, it := range items {
		snap, ok := i.store.Get(it.ID)
		if !ok {
			continue
		}
		out = append(out, snap)
	}
	return out
}

// AddPaths reads candidate files from the filesystem, expanding directories
// one level of walk deep, then submits them through AddFiles. Unreadable
// paths fail the call before anything is submitted.
func (i *Ingestor) AddPaths(paths []string) ([]batch.Snapshot, error) {
	var files []File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("ingest: %w", err)
		}

		if !info.IsDir() {
			data, readErr := os.ReadFile(p)
			if readErr != nil {
				return nil, fmt.Errorf("ingest: %w", readErr)
			}
			files = append(files, File{Name: p, Data: data})
			continue
		}

		walkErr := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if isHidden(path) {
				if d.IsDir() && path != p {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			files = append(files, File{Name: path, Data: data})
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("ingest: %w", walkErr)
		}
	}

	return i.AddFiles(files), nil
}

// IsImage sniffs the payload's content type and reports whether it is an
// image of any kind.
func IsImage(data []byte) bool {
	return strings.HasPrefix(http.DetectContentType(data), imageMIMEPrefix)
}

// isHidden reports whether the path's base name starts with a dot.
func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
