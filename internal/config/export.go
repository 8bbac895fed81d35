package config

import "fmt"

// Supported export formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// Quality bounds for lossy export.
const (
	minQuality = 1
	maxQuality = 100
)

// ExportSettings holds the output format and quality preferences consumed
// by the archive exporter and passed through to the adapter's output
// encoding. Pure configuration with no lifecycle; edits replace the value
// wholesale.
type ExportSettings struct {
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"`
}

// DefaultExportSettings returns the defaults: PNG at quality 90.
func DefaultExportSettings() ExportSettings {
	return ExportSettings{Format: FormatPNG, Quality: 90}
}

// Validate checks format and quality bounds.
func (s ExportSettings) Validate() error {
	if s.Format != FormatPNG && s.Format != FormatJPEG {
		return fmt.Errorf("config: export.format must be %q or %q, got %q", FormatPNG, FormatJPEG, s.Format)
	}
	if s.Quality < minQuality || s.Quality > maxQuality {
		return fmt.Errorf("config: export.quality must be in [%d,%d], got %d", minQuality, maxQuality, s.Quality)
	}
	return nil
}
