// Package download is the delivery boundary: a "hand blob X to the user
// under name Y" primitive, used for single processed images and for the
// exported archive alike.
package download

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// ErrBadName rejects delivery names that would escape the output directory.
var ErrBadName = errors.New("download: invalid delivery name")

// Dir delivers blobs as files in one output directory.
type Dir struct {
	path   string
	logger zerolog.Logger
}

// NewDir creates the output directory if needed and returns a deliverer
// writing into it.
func NewDir(path string, logger zerolog.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("download: creating output directory: %w", err)
	}
	return &Dir{path: path, logger: logger}, nil
}

// Path returns the output directory.
func (d *Dir) Path() string {
	return d.path
}

// Deliver writes data under name inside the output directory. The name
// must be a bare file name; anything resembling a path is rejected.
func (d *Dir) Deliver(name string, data []byte) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrBadName, name)
	}

	dest := filepath.Join(d.path, name)
	if err := os.WriteFile(dest, data, 0o600); err != nil {
		return fmt.Errorf("download: writing %s: %w", dest, err)
	}

	d.logger.Debug().Str("file", dest).Int("bytes", len(data)).Msg("delivered")
	return nil
}
