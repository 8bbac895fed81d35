// Package config loads and validates stripbg configuration. Values merge
// in precedence order: built-in defaults, then the YAML config file, then
// STRIPBG_* environment variables (optionally sourced from a .env file),
// then CLI flags applied by the cli package.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configDirName is the per-user configuration directory under $HOME.
const configDirName = ".stripbg"

// configFileName is the YAML file inside the configuration directory.
const configFileName = "config.yaml"

// ErrUnknownKey is returned by Set and Get for an unrecognized dotted key.
var ErrUnknownKey = errors.New("config: unknown key")

// ProcessingConfig controls the orchestrator and the adapter subprocess.
type ProcessingConfig struct {
	// Tool is the external background-removal binary.
	Tool string `yaml:"tool"`

	// Args are base arguments always passed to the tool.
	Args []string `yaml:"args,omitempty"`

	// Model selects the capability's quality/speed trade-off.
	Model string `yaml:"model"`

	// MaxConcurrent caps simultaneous adapter calls; 0 means unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`

	// Timeout bounds one adapter call; 0 disables the bound.
	Timeout time.Duration `yaml:"timeout"`
}

// OutputConfig controls where results are delivered.
type OutputConfig struct {
	// Dir receives individual results and the exported archive.
	Dir string `yaml:"dir"`
}

// LoggingConfig mirrors logging.Config in YAML form.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// Config is the full application configuration.
type Config struct {
	Export     ExportSettings   `yaml:"export"`
	Processing ProcessingConfig `yaml:"processing"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Export: DefaultExportSettings(),
		Processing: ProcessingConfig{
			Tool:          "rembg",
			Model:         "medium",
			MaxConcurrent: 0,
			Timeout:       0,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultPath returns the per-user config file path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolving home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load builds the effective configuration. path selects the config file;
// when empty the default per-user path is used. A missing file is not an
// error, the defaults simply apply. Environment overrides are applied
// after the file, with a best-effort .env load first.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, unmarshalErr)
		}
	case os.IsNotExist(err):
		// Defaults apply.
	default:
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	// .env is optional; absence is the normal case.
	_ = godotenv.Load()
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("config: creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if err := c.Export.Validate(); err != nil {
		return err
	}
	if c.Processing.MaxConcurrent < 0 {
		return fmt.Errorf("config: processing.max_concurrent must be >= 0, got %d", c.Processing.MaxConcurrent)
	}
	if c.Processing.Timeout < 0 {
		return fmt.Errorf("config: processing.timeout must be >= 0, got %s", c.Processing.Timeout)
	}
	return nil
}

// applyEnv overlays STRIPBG_* environment variables.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("STRIPBG_TOOL"); v != "" {
		c.Processing.Tool = v
	}
	if v := getenv("STRIPBG_MODEL"); v != "" {
		c.Processing.Model = v
	}
	if v := getenv("STRIPBG_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Processing.MaxConcurrent = n
		}
	}
	if v := getenv("STRIPBG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Processing.Timeout = d
		}
	}
	if v := getenv("STRIPBG_OUTPUT_DIR"); v != "" {
		c.Output.Dir = v
	}
	if v := getenv("STRIPBG_FORMAT"); v != "" {
		c.Export.Format = v
	}
	if v := getenv("STRIPBG_QUALITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Export.Quality = n
		}
	}
	if v := getenv("STRIPBG_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("STRIPBG_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Set assigns a dotted configuration key from its string form.
func (c *Config) Set(key, value string) error {
	switch key {
	case "export.format":
		c.Export.Format = value
	case "export.quality":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: export.quality: %w", err)
		}
		c.Export.Quality = n
	case "processing.tool":
		c.Processing.Tool = value
	case "processing.model":
		c.Processing.Model = value
	case "processing.max_concurrent":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: processing.max_concurrent: %w", err)
		}
		c.Processing.MaxConcurrent = n
	case "processing.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("config: processing.timeout: %w", err)
		}
		c.Processing.Timeout = d
	case "output.dir":
		c.Output.Dir = value
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	case "logging.file":
		c.Logging.File = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return c.Validate()
}

// Get returns a dotted configuration key in string form.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "export.format":
		return c.Export.Format, nil
	case "export.quality":
		return strconv.Itoa(c.Export.Quality), nil
	case "processing.tool":
		return c.Processing.Tool, nil
	case "processing.model":
		return c.Processing.Model, nil
	case "processing.max_concurrent":
		return strconv.Itoa(c.Processing.MaxConcurrent), nil
	case "processing.timeout":
		return c.Processing.Timeout.String(), nil
	case "output.dir":
		return c.Output.Dir, nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "logging.file":
		return c.Logging.File, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Keys lists every dotted key understood by Set and Get.
func Keys() []string {
	return []string{
		"export.format",
		"export.quality",
		"processing.tool",
		"processing.model",
		"processing.max_concurrent",
		"processing.timeout",
		"output.dir",
		"logging.level",
		"logging.format",
		"logging.file",
	}
}
