package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/mvnidx/mvnidx/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, FormatV1, cfg.Packer.Format)
	assert.True(t, cfg.Packer.IncrementalChunks)
	assert.Equal(t, 30, cfg.Packer.MaxIncrementalChunks)
	assert.True(t, cfg.Packer.Checksums)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mvnidx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
packer:
  format: both
  incremental_chunks: false
  max_incremental_chunks: 5
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatBoth, cfg.Packer.Format)
	assert.False(t, cfg.Packer.IncrementalChunks)
	assert.Equal(t, 5, cfg.Packer.MaxIncrementalChunks)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.PublishV1())
	assert.True(t, cfg.PublishLegacy())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ierr.ErrCodeConfigNotFound, ierr.GetCode(err))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("packer: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Equal(t, ierr.ErrCodeConfigInvalid, ierr.GetCode(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults pass", mutate: func(*Config) {}},
		{name: "unknown format", mutate: func(c *Config) { c.Packer.Format = "v2" }, wantErr: true},
		{name: "legacy format", mutate: func(c *Config) { c.Packer.Format = FormatLegacy }},
		{name: "negative chunks", mutate: func(c *Config) { c.Packer.MaxIncrementalChunks = -1 }, wantErr: true},
		{name: "zero chunks defaulted", mutate: func(c *Config) { c.Packer.MaxIncrementalChunks = 0 }},
		{name: "unknown level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ierr.ErrCodeConfigInvalid, ierr.GetCode(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MVNIDX_FORMAT", "legacy")
	t.Setenv("MVNIDX_CHUNKS", "false")
	t.Setenv("MVNIDX_CHECKSUMS", "false")
	t.Setenv("MVNIDX_MAX_CHUNKS", "7")
	t.Setenv("MVNIDX_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, FormatLegacy, cfg.Packer.Format)
	assert.False(t, cfg.Packer.IncrementalChunks)
	assert.False(t, cfg.Packer.Checksums)
	assert.Equal(t, 7, cfg.Packer.MaxIncrementalChunks)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.PublishV1())
	assert.True(t, cfg.PublishLegacy())
}

func TestEnvIgnoresGarbageBool(t *testing.T) {
	t.Setenv("MVNIDX_CHUNKS", "maybe")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Packer.IncrementalChunks, "unparseable env bool keeps the default")
}
