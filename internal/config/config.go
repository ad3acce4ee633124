// Package config loads the packer configuration from YAML with environment
// overrides. Flags, environment, file, defaults: later sources fill what
// earlier ones left unset; environment wins over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

// Output formats accepted by the packer configuration.
const (
	FormatV1     = "v1"
	FormatLegacy = "legacy"
	FormatBoth   = "both"
)

// Config is the complete mvnidx configuration.
type Config struct {
	Packer  PackerConfig  `yaml:"packer"`
	Logging LoggingConfig `yaml:"logging"`
}

// PackerConfig configures a publication cycle.
type PackerConfig struct {
	// Format selects the published formats: v1, legacy, or both.
	Format string `yaml:"format"`
	// IncrementalChunks enables incremental chunk emission.
	IncrementalChunks bool `yaml:"incremental_chunks"`
	// MaxIncrementalChunks bounds the chunk history kept on disk and in the
	// descriptor.
	MaxIncrementalChunks int `yaml:"max_incremental_chunks"`
	// Checksums enables .sha1/.md5 sibling files.
	Checksums bool `yaml:"checksums"`
	// UseTargetProperties reads publication state from the target directory
	// descriptor instead of the sidecar.
	UseTargetProperties bool `yaml:"use_target_properties"`
}

// LoggingConfig configures the slog setup.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// File receives JSON log lines when set; empty logs to stderr only.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Packer: PackerConfig{
			Format:               FormatV1,
			IncrementalChunks:    true,
			MaxIncrementalChunks: 30,
			Checksums:            true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration file, fills defaults, applies MVNIDX_*
// environment overrides and validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ierr.New(ierr.ErrCodeConfigNotFound, "config file not found", err).
					WithDetail("path", path)
			}
			return nil, ierr.Wrap(ierr.ErrCodeConfigNotFound, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ierr.New(ierr.ErrCodeConfigInvalid, "config file unparseable", err).
				WithDetail("path", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration, filling defaults for zero values.
func (c *Config) Validate() error {
	if c.Packer.Format == "" {
		c.Packer.Format = FormatV1
	}
	switch c.Packer.Format {
	case FormatV1, FormatLegacy, FormatBoth:
	default:
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown format %q", c.Packer.Format), nil)
	}

	if c.Packer.MaxIncrementalChunks == 0 {
		c.Packer.MaxIncrementalChunks = 30
	}
	if c.Packer.MaxIncrementalChunks < 0 {
		return ierr.New(ierr.ErrCodeConfigInvalid, "max_incremental_chunks must be positive", nil)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ierr.New(ierr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown log level %q", c.Logging.Level), nil)
	}
	return nil
}

// PublishV1 reports whether the v1 dump is requested.
func (c *Config) PublishV1() bool {
	return c.Packer.Format == FormatV1 || c.Packer.Format == FormatBoth
}

// PublishLegacy reports whether the legacy archive is requested.
func (c *Config) PublishLegacy() bool {
	return c.Packer.Format == FormatLegacy || c.Packer.Format == FormatBoth
}

// applyEnv overrides fields from MVNIDX_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("MVNIDX_FORMAT"); v != "" {
		c.Packer.Format = v
	}
	if v, ok := envBool("MVNIDX_CHUNKS"); ok {
		c.Packer.IncrementalChunks = v
	}
	if v, ok := envBool("MVNIDX_CHECKSUMS"); ok {
		c.Packer.Checksums = v
	}
	if v := os.Getenv("MVNIDX_MAX_CHUNKS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Packer.MaxIncrementalChunks = n
		}
	}
	if v := os.Getenv("MVNIDX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("MVNIDX_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}
